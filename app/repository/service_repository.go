package repository

import (
	"context"

	"github.com/ServiAPP/serviapp/app/models"
	"gorm.io/gorm"
)

type serviceRepository struct {
	db *gorm.DB
}

// NewServiceRepository creates a new service listing repository instance
func NewServiceRepository(db *gorm.DB) ServiceRepository {
	return &serviceRepository{db: db}
}

// ListByProfile returns every listing owned by the profile, newest first.
func (r *serviceRepository) ListByProfile(ctx context.Context, profileID string) ([]models.ServiceListing, error) {
	var services []models.ServiceListing
	err := r.db.WithContext(ctx).
		Where("profile_id = ?", profileID).
		Order("created_at DESC").
		Find(&services).Error
	return services, err
}
