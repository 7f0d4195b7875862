package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/ServiAPP/serviapp/app/controllers"
	"github.com/ServiAPP/serviapp/internal/pkg/middleware"
)

type Router interface {
	InstallRouter(app *fiber.App)
}

// Dependencies carries the constructed controllers into the routers.
type Dependencies struct {
	Billing      *controllers.BillingController
	Account      *controllers.AccountController
	Verification *controllers.VerificationController
	Entitlements *controllers.EntitlementsController
	Profiles     middleware.ProfileLookup
	// LimiterStorage shares rate limit counters; nil keeps them in memory.
	LimiterStorage fiber.Storage
}

func InstallRouter(app *fiber.App, deps Dependencies) {
	setup(app, NewWebhookRouter(deps), NewApiRouter(deps))
}

func setup(app *fiber.App, router ...Router) {
	for _, r := range router {
		r.InstallRouter(app)
	}
}
