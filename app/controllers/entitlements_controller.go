package controllers

import (
	"errors"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"

	"github.com/ServiAPP/serviapp/app/repository"
	"github.com/ServiAPP/serviapp/internal/pkg/entitlements"
	"github.com/ServiAPP/serviapp/internal/pkg/usercontext"
)

const (
	defaultTransactionLimit = 50
	maxTransactionLimit     = 200
)

type EntitlementsController struct {
	repos *repository.Repositories
	now   func() time.Time
}

func NewEntitlementsController(repos *repository.Repositories) *EntitlementsController {
	return &EntitlementsController{repos: repos, now: time.Now}
}

// HandleGetEntitlements reports the caller's plan and active promotions,
// with expired flags resolved against the current time.
func (ec *EntitlementsController) HandleGetEntitlements(c *fiber.Ctx) error {
	userID := usercontext.GetUserID(c)
	if userID == "" {
		return unauthorized(c)
	}
	ctx := c.UserContext()
	now := ec.now()

	profile, err := ec.repos.Profile.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "not_found", "message": "Profile not found"})
		}
		log.Errorf("[Entitlements] load profile %s: %v", userID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error"})
	}

	services, err := ec.repos.Service.ListByProfile(ctx, userID)
	if err != nil {
		log.Errorf("[Entitlements] list services of %s: %v", userID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error"})
	}
	promoted := make([]string, 0, len(services))
	for i := range services {
		if entitlements.PromotionActive(&services[i], now) {
			promoted = append(promoted, services[i].ID)
		}
	}

	isPlus := entitlements.PlusActive(profile, now)
	var plusExpiresAt interface{}
	if isPlus {
		plusExpiresAt = formatTimePtr(profile.PlusExpiresAt)
	}

	return c.JSON(fiber.Map{
		"user_id":           profile.ID,
		"plan":              entitlements.PlanFor(profile, now),
		"is_plus":           isPlus,
		"plus_expires_at":   plusExpiresAt,
		"promoted_services": promoted,
	})
}

// HandleListTransactions returns the caller's recent purchases.
func (ec *EntitlementsController) HandleListTransactions(c *fiber.Ctx) error {
	userID := usercontext.GetUserID(c)
	if userID == "" {
		return unauthorized(c)
	}
	limit := defaultTransactionLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_limit"})
		}
		limit = min(n, maxTransactionLimit)
	}

	txs, err := ec.repos.Transaction.ListByUser(c.UserContext(), userID, limit)
	if err != nil {
		log.Errorf("[Entitlements] list transactions of %s: %v", userID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error"})
	}

	items := make([]fiber.Map, 0, len(txs))
	for _, tx := range txs {
		items = append(items, fiber.Map{
			"id":          tx.ID,
			"amount":      tx.Amount,
			"description": tx.Description,
			"type":        tx.Type,
			"created_at":  tx.CreatedAt.UTC().Format(time.RFC3339),
		})
	}
	return c.JSON(fiber.Map{"transactions": items})
}
