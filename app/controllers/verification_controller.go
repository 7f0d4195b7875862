package controllers

import (
	"context"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"

	"github.com/ServiAPP/serviapp/internal/pkg/usercontext"
	"github.com/ServiAPP/serviapp/internal/pkg/verification"
)

type VerificationController struct {
	svc *verification.Service
	now func() time.Time
}

func NewVerificationController(svc *verification.Service) *VerificationController {
	return &VerificationController{svc: svc, now: time.Now}
}

// HandleVerifyIdentity runs a document/selfie comparison for the caller.
func (vc *VerificationController) HandleVerifyIdentity(c *fiber.Ctx) error {
	userID := usercontext.GetUserID(c)
	if userID == "" {
		return unauthorized(c)
	}
	if !vc.svc.Configured() {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": "verification_unavailable"})
	}

	var req verification.Request
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_request", "message": "Body must be JSON"})
	}

	ctx, cancel := context.WithTimeout(c.UserContext(), 60*time.Second)
	defer cancel()

	result, err := vc.svc.Verify(ctx, userID, req, vc.now())
	switch {
	case err == nil:
		return c.JSON(result)
	case errors.Is(err, verification.ErrInvalidInput):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_request", "message": err.Error()})
	case errors.Is(err, verification.ErrAIFailed):
		log.Errorf("[Verification] user=%s: %v", userID, err)
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"error": "verification_provider_failed"})
	case errors.Is(err, verification.ErrNotConfigured):
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": "verification_unavailable"})
	default:
		log.Errorf("[Verification] user=%s: %v", userID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error"})
	}
}
