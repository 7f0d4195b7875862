package repository

import (
	"context"
	"time"

	"github.com/ServiAPP/serviapp/app/models"
	"gorm.io/gorm"
)

// ProfileRepository defines the interface for profile-related database operations
type ProfileRepository interface {
	GetByID(ctx context.Context, id string) (*models.Profile, error)
	GetByAPITokenHash(ctx context.Context, hash string) (*models.Profile, error)
	UpdateVerification(ctx context.Context, id, status string, verifiedAt *time.Time) error
	// DeleteCascade removes the profile and its services. Transactions stay.
	DeleteCascade(ctx context.Context, id string) error
}

// ServiceRepository defines the interface for service listing operations
type ServiceRepository interface {
	ListByProfile(ctx context.Context, profileID string) ([]models.ServiceListing, error)
}

// TransactionRepository defines the interface for transaction history operations
type TransactionRepository interface {
	ListByUser(ctx context.Context, userID string, limit int) ([]models.Transaction, error)
}

// Repositories struct holds all repository instances
type Repositories struct {
	Profile     ProfileRepository
	Service     ServiceRepository
	Transaction TransactionRepository
}

// NewRepositories creates a new instance of all repositories
func NewRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		Profile:     NewProfileRepository(db),
		Service:     NewServiceRepository(db),
		Transaction: NewTransactionRepository(db),
	}
}
