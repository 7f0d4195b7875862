// Package billingtest provides an in-memory billing repository for tests.
package billingtest

import (
	"context"
	"sync"
	"time"

	"github.com/ServiAPP/serviapp/app/models"
	"github.com/ServiAPP/serviapp/internal/pkg/billing"
)

var _ billing.Repository = (*Repository)(nil)

// Repository is an in-process billing.Repository.
type Repository struct {
	mu           sync.Mutex
	Profiles     map[string]*models.Profile
	Services     map[string]*models.ServiceListing
	Transactions []models.Transaction
	Events       []models.BillingWebhookEvent

	// EntitlementWrites counts successful profile and listing updates.
	EntitlementWrites int
	// FailTransactionInsert, when set, is returned by CreateTransaction.
	FailTransactionInsert error
}

func NewRepository() *Repository {
	return &Repository{
		Profiles: map[string]*models.Profile{},
		Services: map[string]*models.ServiceListing{},
	}
}

func (m *Repository) PromoteService(_ context.Context, serviceID string, until time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.Services[serviceID]
	if !ok {
		return billing.ErrTargetNotFound
	}
	s.IsPromoted = true
	s.PromotedUntil = &until
	m.EntitlementWrites++
	return nil
}

func (m *Repository) GetServiceOwnerID(_ context.Context, serviceID string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.Services[serviceID]
	if !ok {
		return "", billing.ErrTargetNotFound
	}
	return s.ProfileID, nil
}

func (m *Repository) GrantPlus(_ context.Context, userID string, expiresAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.Profiles[userID]
	if !ok {
		return billing.ErrTargetNotFound
	}
	p.IsPlus = true
	p.PlusExpiresAt = &expiresAt
	m.EntitlementWrites++
	return nil
}

func (m *Repository) RevokePlus(_ context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.Profiles[userID]
	if !ok {
		return billing.ErrTargetNotFound
	}
	p.IsPlus = false
	p.PlusExpiresAt = nil
	m.EntitlementWrites++
	return nil
}

func (m *Repository) CreateTransaction(_ context.Context, tx *models.Transaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailTransactionInsert != nil {
		return m.FailTransactionInsert
	}
	tx.CreatedAt = time.Now()
	m.Transactions = append(m.Transactions, *tx)
	return nil
}

func (m *Repository) CreateWebhookEventIfNotExists(_ context.Context, event *models.BillingWebhookEvent) (bool, *models.BillingWebhookEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.Events {
		if m.Events[i].Provider == event.Provider && m.Events[i].ProviderEventID == event.ProviderEventID {
			stored := m.Events[i]
			return false, &stored, nil
		}
	}
	event.ID = uint(len(m.Events) + 1)
	event.CreatedAt = time.Now()
	m.Events = append(m.Events, *event)
	stored := *event
	return true, &stored, nil
}

func (m *Repository) MarkWebhookProcessed(_ context.Context, id uint, processingError string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.Events {
		if m.Events[i].ID == id {
			now := time.Now()
			m.Events[i].ProcessedAt = &now
			m.Events[i].ProcessingError = processingError
			return nil
		}
	}
	return billing.ErrTargetNotFound
}

// TransactionsOfType returns a copy of the ledger rows with the given type.
func (m *Repository) TransactionsOfType(txType string) []models.Transaction {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Transaction
	for _, tx := range m.Transactions {
		if tx.Type == txType {
			out = append(out, tx)
		}
	}
	return out
}

// Writes is the number of entitlement updates plus ledger inserts.
func (m *Repository) Writes() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.EntitlementWrites + len(m.Transactions)
}
