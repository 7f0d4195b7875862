package router

import (
	"time"

	"github.com/gofiber/fiber/v2"

	apiv1 "github.com/ServiAPP/serviapp/internal/api/v1"
	"github.com/ServiAPP/serviapp/internal/pkg/middleware"
	"github.com/ServiAPP/serviapp/internal/pkg/ratelimit"
)

type ApiRouter struct {
	deps Dependencies
}

func (h ApiRouter) InstallRouter(app *fiber.App) {
	limit := ratelimit.LoadConfig("API", ratelimit.Config{Max: 60, Expiration: time.Minute})
	api := app.Group("/api", ratelimit.New(limit, h.deps.LimiterStorage))
	api.Get("/", func(ctx *fiber.Ctx) error {
		return ctx.Status(fiber.StatusOK).JSON(fiber.Map{
			"message": "Hello from api",
		})
	})

	// API v1 routes
	v1 := api.Group("/v1")
	apiServer := apiv1.NewAPIServer(h.deps.Account, h.deps.Verification, h.deps.Entitlements)
	apiv1.RegisterHandlers(v1, apiServer, middleware.TokenAuthMiddleware(h.deps.Profiles))
}

func NewApiRouter(deps Dependencies) *ApiRouter {
	return &ApiRouter{deps: deps}
}
