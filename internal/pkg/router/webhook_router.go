package router

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/ServiAPP/serviapp/internal/pkg/ratelimit"
)

// WebhookRouter mounts provider callbacks outside /api so they get their own
// limiter and no token auth.
type WebhookRouter struct {
	deps Dependencies
}

func (h WebhookRouter) InstallRouter(app *fiber.App) {
	limit := ratelimit.LoadConfig("WEBHOOK", ratelimit.Config{Max: 300, Expiration: time.Minute})
	hooks := app.Group("/webhooks", ratelimit.New(limit, h.deps.LimiterStorage))
	hooks.Post("/lemonsqueezy", h.deps.Billing.HandleLemonSqueezyWebhook)
}

func NewWebhookRouter(deps Dependencies) *WebhookRouter {
	return &WebhookRouter{deps: deps}
}
