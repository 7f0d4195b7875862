package middleware

import (
	"context"
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"

	"github.com/ServiAPP/serviapp/app/models"
	"github.com/ServiAPP/serviapp/internal/pkg/usercontext"
)

// ProfileLookup resolves a hashed bearer token to a profile.
type ProfileLookup interface {
	GetByAPITokenHash(ctx context.Context, hash string) (*models.Profile, error)
}

// TokenAuthMiddleware authenticates requests carrying a bearer token or X-API-Key header.
func TokenAuthMiddleware(profiles ProfileLookup) fiber.Handler {
	return func(c *fiber.Ctx) error {
		token := extractToken(c)
		if token == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized", "message": "Missing token"})
		}

		profile, err := profiles.GetByAPITokenHash(c.UserContext(), models.HashAPIToken(token))
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized", "message": "Invalid token"})
			}
			log.Errorf("[Auth] token lookup failed: %v", err)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Token verification failed"})
		}

		usercontext.Set(c, usercontext.UserContext{
			UserID:     profile.ID,
			Email:      profile.Email,
			IsLoggedIn: true,
		})
		return c.Next()
	}
}

func extractToken(c *fiber.Ctx) string {
	auth := strings.TrimSpace(c.Get(fiber.HeaderAuthorization))
	if len(auth) > 7 && strings.EqualFold(auth[:7], "bearer ") {
		return strings.TrimSpace(auth[7:])
	}
	return strings.TrimSpace(c.Get("X-API-Key"))
}
