package domain

// PartyType identifies the kind of participant acting on a ticket. It is
// also recorded as a message author type.
type PartyType string

const (
	PartyCustomer   PartyType = "customer"
	PartyReseller   PartyType = "reseller"
	PartySupplier   PartyType = "supplier"
	PartySuperadmin PartyType = "superadmin"
	PartySystem     PartyType = "system"
)

// AdminPool is the responsible party for tickets nobody else can own.
const AdminPool = "platform_admin"

// Actor is the caller performing an operation. It is always passed
// explicitly.
type Actor struct {
	ID   string
	Type PartyType
}

// IsAdmin reports whether the actor is a platform admin.
func (a Actor) IsAdmin() bool {
	return a.Type == PartySuperadmin
}

// Valid reports whether the actor carries an id and a known human party type.
func (a Actor) Valid() bool {
	if a.ID == "" {
		return false
	}
	switch a.Type {
	case PartyCustomer, PartyReseller, PartySupplier, PartySuperadmin:
		return true
	}
	return false
}

// String renders the actor as type:id.
func (a Actor) String() string {
	return string(a.Type) + ":" + a.ID
}
