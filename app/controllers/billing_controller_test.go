package controllers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ServiAPP/serviapp/app/models"
	"github.com/ServiAPP/serviapp/internal/pkg/billing"
	"github.com/ServiAPP/serviapp/internal/pkg/billing/billingtest"
)

const testWebhookSecret = "whsec_test"

var fixedNow = time.Date(2026, 5, 10, 9, 30, 0, 0, time.UTC)

type fakeLocker struct {
	mu       sync.Mutex
	held     map[string]bool
	err      error
	released []string
}

func (l *fakeLocker) Acquire(_ context.Context, key string, _ time.Duration) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.err != nil {
		return false, l.err
	}
	if l.held[key] {
		return false, nil
	}
	l.held[key] = true
	return true, nil
}

func (l *fakeLocker) Release(_ context.Context, key string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.held, key)
	l.released = append(l.released, key)
	return nil
}

type webhookFixture struct {
	app    *fiber.App
	ctrl   *BillingController
	repo   *billingtest.Repository
	locker *fakeLocker
}

func newWebhookFixture(secret string) *webhookFixture {
	repo := billingtest.NewRepository()
	repo.Services["S1"] = &models.ServiceListing{ID: "S1", ProfileID: "owner-1", Title: "Plumbing"}
	plusUntil := fixedNow.Add(10 * 24 * time.Hour)
	repo.Profiles["user-1"] = &models.Profile{ID: "user-1", IsPlus: true, PlusExpiresAt: &plusUntil}
	repo.Profiles["user-2"] = &models.Profile{ID: "user-2"}

	locker := &fakeLocker{held: map[string]bool{}}
	bc := NewBillingController(billing.NewService(repo), secret, locker)
	bc.now = func() time.Time { return fixedNow }

	app := fiber.New()
	app.Post("/webhooks/lemonsqueezy", bc.HandleLemonSqueezyWebhook)
	return &webhookFixture{app: app, ctrl: bc, repo: repo, locker: locker}
}

func (f *webhookFixture) post(t *testing.T, body []byte, signature string) (int, map[string]any) {
	t.Helper()
	req := httptest.NewRequest("POST", "/webhooks/lemonsqueezy", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if signature != "" {
		req.Header.Set("x-signature", signature)
	}
	resp, err := f.app.Test(req, -1)
	require.NoError(t, err)
	raw, _ := io.ReadAll(resp.Body)
	out := map[string]any{}
	_ = json.Unmarshal(raw, &out)
	return resp.StatusCode, out
}

func signed(body string) ([]byte, string) {
	b := []byte(body)
	return b, billing.SignWebhookPayload(b, testWebhookSecret)
}

const boostBody = `{"meta":{"event_name":"order_created","custom_data":{"service_id":"S1","duration":"72"}},"data":{"attributes":{"total":49900,"total_formatted":"$499.00"}}}`

func TestWebhookBoostPurchase(t *testing.T) {
	f := newWebhookFixture(testWebhookSecret)
	body, sig := signed(boostBody)

	status, resp := f.post(t, body, sig)
	assert.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, map[string]any{"received": true}, resp)

	listing := f.repo.Services["S1"]
	assert.True(t, listing.IsPromoted)
	require.NotNil(t, listing.PromotedUntil)
	assert.True(t, listing.PromotedUntil.Equal(fixedNow.Add(72*time.Hour)))

	boosts := f.repo.TransactionsOfType(models.TransactionTypeBoost)
	require.Len(t, boosts, 1)
	assert.InDelta(t, 499.00, boosts[0].Amount, 1e-9)
	assert.Equal(t, "owner-1", boosts[0].UserID)

	require.Len(t, f.repo.Events, 1)
	assert.True(t, f.repo.Events[0].Succeeded())
	assert.Len(t, f.locker.released, 1)
}

func TestWebhookMutatedBodyRejected(t *testing.T) {
	f := newWebhookFixture(testWebhookSecret)
	_, sig := signed(boostBody)
	mutated := []byte(boostBody)
	mutated[len(mutated)-3] = '1'

	status, resp := f.post(t, mutated, sig)
	assert.Equal(t, fiber.StatusUnauthorized, status)
	assert.Equal(t, "invalid_signature", resp["error"])
	assert.Zero(t, f.repo.Writes())
	assert.Empty(t, f.repo.Events)
}

func TestWebhookSignatureRequired(t *testing.T) {
	bodies := []string{
		boostBody,
		`{"meta":{"event_name":"subscription_expired","custom_data":{"user_id":"user-1"}}}`,
		`{"meta":{"event_name":"order_created","custom_data":{"user_id":"user-2"}},"data":{"attributes":{"total":999,"first_order_item":{"product_name":"ServiAPP Plus"}}}}`,
	}
	for _, body := range bodies {
		f := newWebhookFixture(testWebhookSecret)
		for _, sig := range []string{"", "deadbeef", billing.SignWebhookPayload([]byte(body), "wrong-secret")} {
			status, _ := f.post(t, []byte(body), sig)
			assert.Equal(t, fiber.StatusUnauthorized, status)
		}
		assert.Zero(t, f.repo.Writes())
		assert.True(t, f.repo.Profiles["user-1"].IsPlus)
	}
}

func TestWebhookSecretNotConfigured(t *testing.T) {
	f := newWebhookFixture("  ")
	body, sig := signed(boostBody)

	status, resp := f.post(t, body, sig)
	assert.Equal(t, fiber.StatusInternalServerError, status)
	assert.Equal(t, "webhook_secret_not_configured", resp["error"])
	assert.Zero(t, f.repo.Writes())
}

func TestWebhookSubscriptionExpired(t *testing.T) {
	f := newWebhookFixture(testWebhookSecret)
	body, sig := signed(`{"meta":{"event_name":"subscription_expired","webhook_id":"wh-1","custom_data":{"user_id":"user-1"}}}`)

	status, _ := f.post(t, body, sig)
	assert.Equal(t, fiber.StatusOK, status)
	p := f.repo.Profiles["user-1"]
	assert.False(t, p.IsPlus)
	assert.Nil(t, p.PlusExpiresAt)
}

func TestWebhookSubscriptionCancelledIsIdempotent(t *testing.T) {
	f := newWebhookFixture(testWebhookSecret)
	for _, id := range []string{"wh-a", "wh-b"} {
		body, sig := signed(`{"meta":{"event_name":"subscription_cancelled","webhook_id":"` + id + `","custom_data":{"user_id":"user-1"}}}`)
		status, _ := f.post(t, body, sig)
		assert.Equal(t, fiber.StatusOK, status)
		assert.False(t, f.repo.Profiles["user-1"].IsPlus)
		assert.Nil(t, f.repo.Profiles["user-1"].PlusExpiresAt)
	}
}

func TestWebhookSubscriptionUpdatedUsesRenewsAt(t *testing.T) {
	f := newWebhookFixture(testWebhookSecret)
	body, sig := signed(`{"meta":{"event_name":"subscription_updated","custom_data":{"user_id":"user-2"}},"data":{"attributes":{"renews_at":"2026-06-10T09:30:00.000000Z"}}}`)

	status, _ := f.post(t, body, sig)
	assert.Equal(t, fiber.StatusOK, status)
	p := f.repo.Profiles["user-2"]
	assert.True(t, p.IsPlus)
	require.NotNil(t, p.PlusExpiresAt)
	assert.True(t, p.PlusExpiresAt.Equal(time.Date(2026, 6, 10, 9, 30, 0, 0, time.UTC)))
	assert.Empty(t, f.repo.Transactions)
}

func TestWebhookSubscriptionMissingRenewsAt(t *testing.T) {
	f := newWebhookFixture(testWebhookSecret)
	body, sig := signed(`{"meta":{"event_name":"subscription_created","custom_data":{"user_id":"user-2"}},"data":{"attributes":{}}}`)

	status, resp := f.post(t, body, sig)
	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.NotEmpty(t, resp["error"])
	assert.Zero(t, f.repo.Writes())
}

func TestWebhookPlusPurchase(t *testing.T) {
	f := newWebhookFixture(testWebhookSecret)
	body, sig := signed(`{"meta":{"event_name":"order_created","custom_data":{"user_id":"user-2"}},"data":{"attributes":{"total":999,"first_order_item":{"product_name":"ServiAPP Plus"}}}}`)

	status, _ := f.post(t, body, sig)
	assert.Equal(t, fiber.StatusOK, status)
	p := f.repo.Profiles["user-2"]
	assert.True(t, p.IsPlus)
	require.NotNil(t, p.PlusExpiresAt)
	assert.True(t, p.PlusExpiresAt.Equal(fixedNow.Add(30*24*time.Hour)))

	subs := f.repo.TransactionsOfType(models.TransactionTypeSubscription)
	require.Len(t, subs, 1)
	assert.InDelta(t, 9.99, subs[0].Amount, 1e-9)
}

func TestWebhookUnknownEventNoWrites(t *testing.T) {
	f := newWebhookFixture(testWebhookSecret)
	body, sig := signed(`{"meta":{"event_name":"license_key_created","custom_data":{"user_id":"user-2"}}}`)

	status, resp := f.post(t, body, sig)
	assert.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, map[string]any{"received": true}, resp)
	assert.Zero(t, f.repo.Writes())
	assert.Empty(t, f.repo.Events)
}

func TestWebhookInvalidJSON(t *testing.T) {
	f := newWebhookFixture(testWebhookSecret)
	body, sig := signed(`{"meta":`)

	status, resp := f.post(t, body, sig)
	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.Equal(t, "invalid_payload", resp["error"])
}

func TestWebhookDuplicateDelivery(t *testing.T) {
	f := newWebhookFixture(testWebhookSecret)
	body, sig := signed(boostBody)

	status, _ := f.post(t, body, sig)
	require.Equal(t, fiber.StatusOK, status)

	status, resp := f.post(t, body, sig)
	assert.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, true, resp["duplicate"])
	assert.Len(t, f.repo.TransactionsOfType(models.TransactionTypeBoost), 1)
}

func TestWebhookInFlightDelivery(t *testing.T) {
	f := newWebhookFixture(testWebhookSecret)
	body, sig := signed(boostBody)
	f.locker.held[billing.LockKey(models.BillingProviderLemonSqueezy, billing.EventID("", body))] = true

	status, resp := f.post(t, body, sig)
	assert.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, true, resp["duplicate"])
	assert.Zero(t, f.repo.Writes())
}

func TestWebhookUnprocessedRowWithoutLocker(t *testing.T) {
	body, sig := signed(boostBody)
	eventID := billing.EventID("", body)

	tests := []struct {
		name       string
		age        time.Duration
		wantStatus int
		wantBoosts int
	}{
		{name: "recent attempt still running", age: time.Second, wantStatus: fiber.StatusConflict, wantBoosts: 0},
		{name: "stale attempt is reprocessed", age: time.Hour, wantStatus: fiber.StatusOK, wantBoosts: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newWebhookFixture(testWebhookSecret)
			f.ctrl.locker = nil
			f.repo.Events = append(f.repo.Events, models.BillingWebhookEvent{
				ID:              1,
				Provider:        models.BillingProviderLemonSqueezy,
				ProviderEventID: eventID,
				EventType:       "order_created",
				CreatedAt:       time.Now().Add(-tt.age),
			})

			status, resp := f.post(t, body, sig)
			assert.Equal(t, tt.wantStatus, status)
			assert.Len(t, f.repo.TransactionsOfType(models.TransactionTypeBoost), tt.wantBoosts)
			if tt.wantStatus == fiber.StatusConflict {
				assert.Equal(t, "delivery_in_flight", resp["error"])
				assert.Zero(t, f.repo.Writes())
			}
		})
	}
}

func TestWebhookOversizedBoostIsIgnored(t *testing.T) {
	f := newWebhookFixture(testWebhookSecret)
	for _, duration := range []string{`"10000000"`, `1e12`, `"1.5"`} {
		body, sig := signed(`{"meta":{"event_name":"order_created","custom_data":{"service_id":"S1","duration":` + duration + `}},"data":{"attributes":{"total":100}}}`)

		status, resp := f.post(t, body, sig)
		assert.Equal(t, fiber.StatusOK, status, duration)
		assert.Equal(t, true, resp["received"])
	}
	assert.Zero(t, f.repo.Writes())
	assert.Empty(t, f.repo.Events)
	assert.False(t, f.repo.Services["S1"].IsPromoted)
}

func TestWebhookLockErrorFallsBackToLedger(t *testing.T) {
	f := newWebhookFixture(testWebhookSecret)
	f.locker.err = errors.New("redis down")
	body, sig := signed(boostBody)

	status, _ := f.post(t, body, sig)
	assert.Equal(t, fiber.StatusOK, status)
	assert.Len(t, f.repo.TransactionsOfType(models.TransactionTypeBoost), 1)
}

func TestWebhookApplyFailureIsRetried(t *testing.T) {
	f := newWebhookFixture(testWebhookSecret)
	f.repo.FailTransactionInsert = errors.New("insert failed")
	body, sig := signed(boostBody)

	status, resp := f.post(t, body, sig)
	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.Contains(t, resp["error"], "insert failed")
	require.Len(t, f.repo.Events, 1)
	assert.False(t, f.repo.Events[0].Succeeded())

	// The provider retries the same delivery once the store recovers.
	f.repo.FailTransactionInsert = nil
	status, resp = f.post(t, body, sig)
	assert.Equal(t, fiber.StatusOK, status)
	assert.Nil(t, resp["duplicate"])
	assert.Len(t, f.repo.TransactionsOfType(models.TransactionTypeBoost), 1)
}

func TestWebhookUnknownTarget(t *testing.T) {
	f := newWebhookFixture(testWebhookSecret)
	body, sig := signed(`{"meta":{"event_name":"subscription_expired","custom_data":{"user_id":"ghost"}}}`)

	status, resp := f.post(t, body, sig)
	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.Contains(t, resp["error"], billing.ErrTargetNotFound.Error())
}
