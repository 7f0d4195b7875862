package billing

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ServiAPP/serviapp/app/models"
	"github.com/ServiAPP/serviapp/internal/pkg/entitlements"
	"gorm.io/gorm"
)

var ErrInvalidBoost = errors.New("invalid boost")

// Service applies classified webhook intents to profiles and listings.
type Service struct {
	repo Repository
}

// Outcome describes what Apply changed.
type Outcome struct {
	Kind        IntentKind
	Transaction *models.Transaction
}

// NewService creates a billing service from an injected repository.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// NewServiceFromDB creates a billing service from a GORM DB handle.
func NewServiceFromDB(db *gorm.DB) *Service {
	return NewService(NewRepository(db))
}

// Apply performs the side effect selected by Classify. The ledger row is
// only written after the entitlement update succeeded.
func (s *Service) Apply(ctx context.Context, intent Intent, now time.Time) (*Outcome, error) {
	switch in := intent.(type) {
	case BoostPurchase:
		return s.applyBoost(ctx, in, now)
	case PlusPurchase:
		return s.applyPlusPurchase(ctx, in, now)
	case SubscriptionActivated:
		if err := s.repo.GrantPlus(ctx, in.UserID, in.RenewsAt); err != nil {
			return nil, fmt.Errorf("activate plus for user %s: %w", in.UserID, err)
		}
		return &Outcome{Kind: in.Kind()}, nil
	case SubscriptionTerminated:
		if err := s.repo.RevokePlus(ctx, in.UserID); err != nil {
			return nil, fmt.Errorf("revoke plus for user %s: %w", in.UserID, err)
		}
		return &Outcome{Kind: in.Kind()}, nil
	case Ignored:
		return &Outcome{Kind: in.Kind()}, nil
	case nil:
		return nil, errors.New("intent is required")
	default:
		return nil, fmt.Errorf("unsupported intent %T", intent)
	}
}

func (s *Service) applyBoost(ctx context.Context, in BoostPurchase, now time.Time) (*Outcome, error) {
	if in.Hours <= 0 || in.Hours > MaxBoostHours {
		return nil, fmt.Errorf("%w: boost duration %dh", ErrInvalidBoost, in.Hours)
	}
	until := now.Add(in.Duration())
	if err := s.repo.PromoteService(ctx, in.ServiceID, until); err != nil {
		return nil, fmt.Errorf("promote service %s: %w", in.ServiceID, err)
	}

	userID := in.UserID
	if userID == "" {
		owner, err := s.repo.GetServiceOwnerID(ctx, in.ServiceID)
		if err != nil {
			return nil, fmt.Errorf("resolve owner of service %s: %w", in.ServiceID, err)
		}
		userID = owner
	}

	desc := fmt.Sprintf("Service boost %s (%dh)", in.ServiceID, in.Hours)
	tx, err := s.recordTransaction(ctx, userID, in.Amount, desc, models.TransactionTypeBoost)
	if err != nil {
		return nil, err
	}
	return &Outcome{Kind: in.Kind(), Transaction: tx}, nil
}

func (s *Service) applyPlusPurchase(ctx context.Context, in PlusPurchase, now time.Time) (*Outcome, error) {
	expiresAt := now.Add(entitlements.PlusOneTimeDuration)
	if err := s.repo.GrantPlus(ctx, in.UserID, expiresAt); err != nil {
		return nil, fmt.Errorf("grant plus for user %s: %w", in.UserID, err)
	}

	desc := "Plus (30 days)"
	if in.ProductName != "" {
		desc = in.ProductName + " (30 days)"
	}
	tx, err := s.recordTransaction(ctx, in.UserID, in.Amount, desc, models.TransactionTypeSubscription)
	if err != nil {
		return nil, err
	}
	return &Outcome{Kind: in.Kind(), Transaction: tx}, nil
}

func (s *Service) recordTransaction(ctx context.Context, userID string, amount float64, desc, txType string) (*models.Transaction, error) {
	tx, err := models.NewTransaction(userID, amount, truncate(desc, 255), txType)
	if err != nil {
		return nil, fmt.Errorf("build transaction: %w", err)
	}
	if err := s.repo.CreateTransaction(ctx, tx); err != nil {
		return nil, fmt.Errorf("record transaction: %w", err)
	}
	return tx, nil
}

// RecordWebhookEvent persists webhook payloads idempotently.
func (s *Service) RecordWebhookEvent(ctx context.Context, in WebhookEventInput) (bool, *models.BillingWebhookEvent, error) {
	provider := strings.ToLower(strings.TrimSpace(in.Provider))
	if provider == "" {
		return false, nil, errors.New("provider is required")
	}

	event := &models.BillingWebhookEvent{
		Provider:        provider,
		ProviderEventID: EventID(in.ProviderEventID, []byte(in.PayloadJSON)),
		EventType:       strings.TrimSpace(in.EventType),
		PayloadJSON:     in.PayloadJSON,
		SignatureValid:  in.SignatureValid,
	}
	return s.repo.CreateWebhookEventIfNotExists(ctx, event)
}

// MarkWebhookProcessed marks an event as processed and stores an optional error.
func (s *Service) MarkWebhookProcessed(ctx context.Context, webhookEventID uint, processingErr error) error {
	if webhookEventID == 0 {
		return errors.New("webhook_event_id is required")
	}
	errMsg := ""
	if processingErr != nil {
		errMsg = processingErr.Error()
	}
	return s.repo.MarkWebhookProcessed(ctx, webhookEventID, errMsg)
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}
