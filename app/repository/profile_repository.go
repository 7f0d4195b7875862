package repository

import (
	"context"
	"strings"
	"time"

	"github.com/ServiAPP/serviapp/app/models"
	"gorm.io/gorm"
)

// profileRepository implements the ProfileRepository interface
type profileRepository struct {
	db *gorm.DB
}

// NewProfileRepository creates a new profile repository instance
func NewProfileRepository(db *gorm.DB) ProfileRepository {
	return &profileRepository{db: db}
}

// GetByID retrieves a profile by its ID
func (r *profileRepository) GetByID(ctx context.Context, id string) (*models.Profile, error) {
	var profile models.Profile
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&profile).Error
	if err != nil {
		return nil, err
	}
	return &profile, nil
}

// GetByAPITokenHash resolves a bearer token hash to its profile.
func (r *profileRepository) GetByAPITokenHash(ctx context.Context, hash string) (*models.Profile, error) {
	trimmed := strings.TrimSpace(hash)
	if trimmed == "" {
		return nil, gorm.ErrRecordNotFound
	}
	var profile models.Profile
	err := r.db.WithContext(ctx).Where("api_token_hash = ?", trimmed).First(&profile).Error
	if err != nil {
		return nil, err
	}
	return &profile, nil
}

func (r *profileRepository) UpdateVerification(ctx context.Context, id, status string, verifiedAt *time.Time) error {
	res := r.db.WithContext(ctx).Model(&models.Profile{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"verification_status": status,
			"verified_at":         verifiedAt,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// DeleteCascade removes the profile and its listings. Transaction rows are
// kept: the purchase ledger outlives the account.
func (r *profileRepository) DeleteCascade(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return deleteProfileRows(tx, id)
	})
}

func deleteProfileRows(tx *gorm.DB, id string) error {
	if err := tx.Where("profile_id = ?", id).Delete(&models.ServiceListing{}).Error; err != nil {
		return err
	}
	res := tx.Where("id = ?", id).Delete(&models.Profile{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
