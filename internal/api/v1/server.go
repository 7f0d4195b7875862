package apiv1

import "github.com/gofiber/fiber/v2"

// Pong is the body of GET /ping.
type Pong struct {
	Ping string `json:"ping"`
}

// ServerInterface lists the operations documented in public/docs/v1/openapi.yml.
type ServerInterface interface {
	// (GET /ping)
	GetPing(c *fiber.Ctx) error
	// (GET /entitlements)
	GetEntitlements(c *fiber.Ctx) error
	// (GET /transactions)
	ListTransactions(c *fiber.Ctx) error
	// (DELETE /account)
	DeleteAccount(c *fiber.Ctx) error
	// (POST /verification)
	PostVerification(c *fiber.Ctx) error
}

// Route is one documented operation.
type Route struct {
	Method string
	Path   string
	// Authenticated routes run behind the token middleware.
	Authenticated bool
}

// Routes is the v1 surface, relative to the /api/v1 prefix.
var Routes = []Route{
	{fiber.MethodGet, "/ping", false},
	{fiber.MethodGet, "/entitlements", true},
	{fiber.MethodGet, "/transactions", true},
	{fiber.MethodDelete, "/account", true},
	{fiber.MethodPost, "/verification", true},
}

// RegisterHandlers mounts si on router. auth guards the authenticated routes.
func RegisterHandlers(router fiber.Router, si ServerInterface, auth fiber.Handler) {
	handlers := map[string]fiber.Handler{
		fiber.MethodGet + " /ping":          si.GetPing,
		fiber.MethodGet + " /entitlements":  si.GetEntitlements,
		fiber.MethodGet + " /transactions":  si.ListTransactions,
		fiber.MethodDelete + " /account":    si.DeleteAccount,
		fiber.MethodPost + " /verification": si.PostVerification,
	}
	for _, r := range Routes {
		h := handlers[r.Method+" "+r.Path]
		if r.Authenticated {
			router.Add(r.Method, r.Path, auth, h)
			continue
		}
		router.Add(r.Method, r.Path, h)
	}
}
