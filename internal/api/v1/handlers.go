package apiv1

import (
	"github.com/gofiber/fiber/v2"

	// Delegate to the controllers to keep behavior consistent
	"github.com/ServiAPP/serviapp/app/controllers"
)

// APIServer implements the ServerInterface
type APIServer struct {
	account      *controllers.AccountController
	verification *controllers.VerificationController
	entitlements *controllers.EntitlementsController
}

// NewAPIServer creates a new API server instance
func NewAPIServer(account *controllers.AccountController, verification *controllers.VerificationController, entitlements *controllers.EntitlementsController) *APIServer {
	return &APIServer{
		account:      account,
		verification: verification,
		entitlements: entitlements,
	}
}

// GetPing handles the ping endpoint
func (s *APIServer) GetPing(c *fiber.Ctx) error {
	return c.Status(fiber.StatusOK).JSON(Pong{Ping: "pong"})
}

func (s *APIServer) GetEntitlements(c *fiber.Ctx) error {
	return s.entitlements.HandleGetEntitlements(c)
}

func (s *APIServer) ListTransactions(c *fiber.Ctx) error {
	return s.entitlements.HandleListTransactions(c)
}

func (s *APIServer) DeleteAccount(c *fiber.Ctx) error {
	return s.account.HandleDeleteAccount(c)
}

func (s *APIServer) PostVerification(c *fiber.Ctx) error {
	return s.verification.HandleVerifyIdentity(c)
}
