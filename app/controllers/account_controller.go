package controllers

import (
	"context"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"

	"github.com/ServiAPP/serviapp/app/models"
	"github.com/ServiAPP/serviapp/app/repository"
	"github.com/ServiAPP/serviapp/internal/pkg/usercontext"
)

// PrefixDeleter removes stored objects below a key prefix.
type PrefixDeleter interface {
	DeletePrefix(ctx context.Context, prefix string) (int, error)
}

type AccountController struct {
	profiles repository.ProfileRepository
	// files may be nil when object storage is disabled.
	files PrefixDeleter
}

func NewAccountController(profiles repository.ProfileRepository, files PrefixDeleter) *AccountController {
	return &AccountController{profiles: profiles, files: files}
}

// HandleDeleteAccount removes the caller's profile, listings, transactions and uploads.
func (ac *AccountController) HandleDeleteAccount(c *fiber.Ctx) error {
	userID := usercontext.GetUserID(c)
	if userID == "" {
		return unauthorized(c)
	}

	ctx, cancel := context.WithTimeout(c.UserContext(), 30*time.Second)
	defer cancel()

	if err := ac.profiles.DeleteCascade(ctx, userID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return unauthorized(c)
		}
		log.Errorf("[Account] delete profile %s: %v", userID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "account_delete_failed"})
	}

	if ac.files != nil {
		prefix := models.ProfileStoragePrefix(userID)
		n, err := ac.files.DeletePrefix(ctx, prefix)
		if err != nil {
			log.Errorf("[Account] profile %s deleted but removing %s failed after %d objects: %v", userID, prefix, n, err)
		} else {
			log.Infof("[Account] removed %d stored objects for %s", n, userID)
		}
	}

	log.Infof("[Account] deleted profile %s", userID)
	return c.JSON(fiber.Map{"success": true})
}
