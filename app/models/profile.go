package models

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

const (
	VerificationUnverified = "unverified"
	VerificationVerified   = "verified"
	VerificationRejected   = "rejected"
)

// Profile is the account-level record. Plus entitlement lives here and is
// expired at read time, see entitlements.PlusActive.
type Profile struct {
	ID                 string     `gorm:"primaryKey;type:varchar(36)" json:"id" validate:"required,max=36"`
	Email              string     `gorm:"type:varchar(200);index" json:"email" validate:"omitempty,email,max=200"`
	FullName           string     `gorm:"type:varchar(150)" json:"full_name" validate:"max=150"`
	IsPlus             bool       `gorm:"not null;default:false" json:"is_plus"`
	PlusExpiresAt      *time.Time `gorm:"type:datetime(6);default:null" json:"plus_expires_at"`
	APITokenHash       *string    `gorm:"type:varchar(64);uniqueIndex" json:"-"`
	VerificationStatus string     `gorm:"type:varchar(20);not null;default:'unverified'" json:"verification_status" validate:"oneof=unverified verified rejected"`
	VerifiedAt         *time.Time `gorm:"type:datetime;default:null" json:"verified_at,omitempty"`
	CreatedAt          time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt          time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

func (p *Profile) Validate() error {
	v := validator.New()

	return v.Struct(p)
}

// StoragePrefix is the object-store folder owned by this profile.
func (p *Profile) StoragePrefix() string {
	return ProfileStoragePrefix(p.ID)
}

func ProfileStoragePrefix(profileID string) string {
	return "users/" + profileID + "/"
}

// HashAPIToken returns the hex SHA-256 digest stored for bearer tokens.
func HashAPIToken(raw string) string {
	sum := sha256.Sum256([]byte(strings.TrimSpace(raw)))
	return hex.EncodeToString(sum[:])
}
