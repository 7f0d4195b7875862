package billing

import (
	"context"
	"errors"
	"time"

	"github.com/ServiAPP/serviapp/app/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrTargetNotFound is returned when a conditional update matched no row.
var ErrTargetNotFound = errors.New("entitlement target not found")

// Repository provides DB operations used by the billing service.
type Repository interface {
	PromoteService(ctx context.Context, serviceID string, until time.Time) error
	GetServiceOwnerID(ctx context.Context, serviceID string) (string, error)
	GrantPlus(ctx context.Context, userID string, expiresAt time.Time) error
	RevokePlus(ctx context.Context, userID string) error
	CreateTransaction(ctx context.Context, tx *models.Transaction) error
	CreateWebhookEventIfNotExists(ctx context.Context, event *models.BillingWebhookEvent) (bool, *models.BillingWebhookEvent, error)
	MarkWebhookProcessed(ctx context.Context, id uint, processingError string) error
}

type gormRepository struct {
	db *gorm.DB
}

// NewRepository creates a billing repository backed by GORM.
func NewRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

func (r *gormRepository) PromoteService(ctx context.Context, serviceID string, until time.Time) error {
	return r.updateByID(ctx, &models.ServiceListing{}, serviceID, map[string]interface{}{
		"is_promoted":    true,
		"promoted_until": until,
	})
}

func (r *gormRepository) GetServiceOwnerID(ctx context.Context, serviceID string) (string, error) {
	var listing models.ServiceListing
	err := r.db.WithContext(ctx).Select("id", "profile_id").Where("id = ?", serviceID).First(&listing).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", ErrTargetNotFound
	}
	if err != nil {
		return "", err
	}
	return listing.ProfileID, nil
}

func (r *gormRepository) GrantPlus(ctx context.Context, userID string, expiresAt time.Time) error {
	return r.updateByID(ctx, &models.Profile{}, userID, map[string]interface{}{
		"is_plus":         true,
		"plus_expires_at": expiresAt,
	})
}

func (r *gormRepository) RevokePlus(ctx context.Context, userID string) error {
	return r.updateByID(ctx, &models.Profile{}, userID, map[string]interface{}{
		"is_plus":         false,
		"plus_expires_at": nil,
	})
}

// updateByID relies on clientFoundRows in the DSN so a rewrite of identical
// values still reports the matched row.
func (r *gormRepository) updateByID(ctx context.Context, model interface{}, id string, updates map[string]interface{}) error {
	res := r.db.WithContext(ctx).Model(model).Where("id = ?", id).Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrTargetNotFound
	}
	return nil
}

func (r *gormRepository) CreateTransaction(ctx context.Context, tx *models.Transaction) error {
	return r.db.WithContext(ctx).Create(tx).Error
}

func (r *gormRepository) CreateWebhookEventIfNotExists(ctx context.Context, event *models.BillingWebhookEvent) (bool, *models.BillingWebhookEvent, error) {
	db := r.db.WithContext(ctx)
	tx := db.Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "provider"},
			{Name: "provider_event_id"},
		},
		DoNothing: true,
	}).Create(event)
	if tx.Error != nil {
		return false, nil, tx.Error
	}

	created := tx.RowsAffected > 0
	var stored models.BillingWebhookEvent
	if err := db.Where("provider = ? AND provider_event_id = ?", event.Provider, event.ProviderEventID).
		First(&stored).Error; err != nil {
		return false, nil, err
	}
	return created, &stored, nil
}

func (r *gormRepository) MarkWebhookProcessed(ctx context.Context, id uint, processingError string) error {
	now := time.Now()
	updates := map[string]interface{}{
		"processed_at":     &now,
		"processing_error": processingError,
	}
	return r.db.WithContext(ctx).Model(&models.BillingWebhookEvent{}).Where("id = ?", id).Updates(updates).Error
}
