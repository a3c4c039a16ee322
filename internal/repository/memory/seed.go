package memory

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spec-kit/order-ticket-service/internal/domain"
)

type seedOrder struct {
	ID            string  `json:"id"`
	CustomerID    string  `json:"customer_id"`
	ResellerID    *string `json:"reseller_id"`
	SupplierID    *string `json:"supplier_id"`
	Status        string  `json:"status"`
	PaymentStatus string  `json:"payment_status"`
	TotalAmount   float64 `json:"total_amount"`
}

// LoadOrders reads a JSON array of orders and stores each one. It returns
// the number of orders loaded.
func (s *Store) LoadOrders(r io.Reader) (int, error) {
	var seeds []seedOrder
	if err := json.NewDecoder(r).Decode(&seeds); err != nil {
		return 0, fmt.Errorf("decode orders: %w", err)
	}
	for i, seed := range seeds {
		if seed.ID == "" || seed.CustomerID == "" {
			return 0, fmt.Errorf("order %d: id and customer_id required", i)
		}
	}
	for _, seed := range seeds {
		s.PutOrder(domain.Order{
			ID:            seed.ID,
			CustomerID:    seed.CustomerID,
			ResellerID:    seed.ResellerID,
			SupplierID:    seed.SupplierID,
			Status:        seed.Status,
			PaymentStatus: seed.PaymentStatus,
			TotalAmount:   seed.TotalAmount,
		})
	}
	return len(seeds), nil
}

// LoadOrdersFile is LoadOrders on the file at path.
func (s *Store) LoadOrdersFile(path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()
	return s.LoadOrders(f)
}
