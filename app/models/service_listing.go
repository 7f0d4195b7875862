package models

import (
	"time"

	"github.com/go-playground/validator/v10"
)

// ServiceListing is a published service. Promotion is a flag plus expiry,
// expired at read time like Plus.
type ServiceListing struct {
	ID            string     `gorm:"primaryKey;type:varchar(36)" json:"id" validate:"required,max=36"`
	ProfileID     string     `gorm:"type:varchar(36);not null;index" json:"profile_id" validate:"required,max=36"`
	Title         string     `gorm:"type:varchar(200);not null" json:"title" validate:"required,max=200"`
	Category      string     `gorm:"type:varchar(100);index" json:"category" validate:"max=100"`
	IsPromoted    bool       `gorm:"not null;default:false;index" json:"is_promoted"`
	PromotedUntil *time.Time `gorm:"type:datetime(6);default:null" json:"promoted_until"`
	CreatedAt     time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

func (ServiceListing) TableName() string {
	return "services"
}

func (s *ServiceListing) Validate() error {
	v := validator.New()

	return v.Struct(s)
}
