package models

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	TransactionTypeBoost        = "boost"
	TransactionTypeSubscription = "subscription"
)

// Transaction is an append-only ledger row written after an entitlement
// change has been applied. There is no update or delete path.
type Transaction struct {
	ID          string    `gorm:"primaryKey;type:varchar(36)" json:"id"`
	UserID      string    `gorm:"type:varchar(36);not null;index" json:"user_id" validate:"required,max=36"`
	Amount      float64   `gorm:"type:decimal(12,2);not null" json:"amount" validate:"gte=0"`
	Description string    `gorm:"type:varchar(255)" json:"description" validate:"max=255"`
	Type        string    `gorm:"type:enum('boost','subscription');not null" json:"type" validate:"oneof=boost subscription"`
	CreatedAt   time.Time `gorm:"autoCreateTime;index" json:"created_at"`
}

func NewTransaction(userID string, amount float64, description, txType string) (*Transaction, error) {
	t := &Transaction{
		ID:          uuid.NewString(),
		UserID:      userID,
		Amount:      amount,
		Description: description,
		Type:        txType,
	}

	if err := t.Validate(); err != nil {
		return nil, err
	}

	return t, nil
}

func (t *Transaction) Validate() error {
	v := validator.New()

	return v.Struct(t)
}

func (t *Transaction) BeforeCreate(tx *gorm.DB) error {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	return nil
}
