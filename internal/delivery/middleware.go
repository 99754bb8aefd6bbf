package delivery

import (
	"errors"

	"chat-relay/internal/domain"

	"github.com/gofiber/fiber/v2"
)

const identityKey = "identity"

// requireIdentity verifies the bearer token of a REST request and stores the
// resulting identity in the request locals.
func (s *Server) requireIdentity(c *fiber.Ctx) error {
	identity, err := s.verifier.Verify(c.UserContext(), c.Get(fiber.HeaderAuthorization))
	if err != nil {
		return s.writeError(c, err, "Authentication failed")
	}
	c.Locals(identityKey, identity)
	return c.Next()
}

func identityOf(c *fiber.Ctx) domain.Identity {
	identity, _ := c.Locals(identityKey).(domain.Identity)
	return identity
}

func statusFor(err error) int {
	if errors.Is(err, domain.ErrNotFound) {
		return fiber.StatusNotFound
	}
	switch domain.KindOf(err) {
	case domain.KindAuthentication:
		return fiber.StatusUnauthorized
	case domain.KindAuthorization:
		return fiber.StatusForbidden
	case domain.KindValidation:
		return fiber.StatusBadRequest
	case domain.KindNotFound:
		return fiber.StatusNotFound
	default:
		return fiber.StatusInternalServerError
	}
}

// writeError renders err in the API error shape. Infrastructure failures are
// logged and reported with fallback only.
func (s *Server) writeError(c *fiber.Ctx, err error, fallback string) error {
	status := statusFor(err)
	message := domain.PublicMessage(err, fallback)
	if status == fiber.StatusInternalServerError {
		s.log.WithError(err).WithField("path", c.Path()).Error("Request failed")
	}
	return c.Status(status).JSON(fiber.Map{
		"success": false,
		"message": message,
	})
}

func ok(c *fiber.Ctx, message string, data interface{}) error {
	return c.JSON(fiber.Map{
		"success": true,
		"message": message,
		"data":    data,
	})
}
