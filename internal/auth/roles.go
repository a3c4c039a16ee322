package auth

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/order-ticket-service/internal/domain"
	apperrors "github.com/spec-kit/order-ticket-service/pkg/util/errorutil"
)

// RequireParty ensures the caller is one of the allowed party types.
func RequireParty(allowed ...domain.PartyType) fiber.Handler {
	allowedSet := make(map[domain.PartyType]struct{}, len(allowed))
	for _, party := range allowed {
		allowedSet[party] = struct{}{}
	}

	return func(c *fiber.Ctx) error {
		actor, ok := ActorFromContext(c)
		if !ok {
			return apperrors.NewUnauthorized("authentication required")
		}
		if _, exists := allowedSet[actor.Type]; !exists {
			return apperrors.NewForbidden("party not allowed")
		}
		return c.Next()
	}
}
