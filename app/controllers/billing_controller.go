package controllers

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"

	"github.com/ServiAPP/serviapp/app/models"
	"github.com/ServiAPP/serviapp/internal/pkg/billing"
)

const (
	lemonSqueezySignatureHeader = "X-Signature"
	webhookTimeout              = 15 * time.Second
	webhookLockTTL              = 60 * time.Second
)

// BillingController receives payment provider webhooks.
type BillingController struct {
	svc    *billing.Service
	secret string
	// locker is optional; without it the ledger alone deduplicates.
	locker billing.Locker
	now    func() time.Time
}

func NewBillingController(svc *billing.Service, secret string, locker billing.Locker) *BillingController {
	return &BillingController{
		svc:    svc,
		secret: strings.TrimSpace(secret),
		locker: locker,
		now:    time.Now,
	}
}

// HandleLemonSqueezyWebhook verifies, deduplicates and applies one delivery.
func (bc *BillingController) HandleLemonSqueezyWebhook(c *fiber.Ctx) error {
	if bc.secret == "" {
		log.Errorf("[Billing] LEMONSQUEEZY_WEBHOOK_SECRET is not set, rejecting webhook")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "webhook_secret_not_configured"})
	}

	rawBody := append([]byte(nil), c.BodyRaw()...)
	if !billing.VerifyWebhookSignature(rawBody, c.Get(lemonSqueezySignatureHeader), bc.secret) {
		log.Warnf("[Billing] rejected webhook with invalid signature from %s", c.IP())
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "invalid_signature"})
	}

	payload, err := billing.ParseWebhookPayload(rawBody)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_payload"})
	}

	intent, err := billing.Classify(payload)
	if err != nil {
		log.Warnf("[Billing] %s rejected: %v", payload.Meta.EventName, err)
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}
	if ignored, ok := intent.(billing.Ignored); ok {
		log.Infof("[Billing] ignoring %q: %s", ignored.EventName, ignored.Reason)
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"received": true})
	}

	ctx, cancel := context.WithTimeout(c.UserContext(), webhookTimeout)
	defer cancel()

	eventID := billing.EventID(payload.Meta.WebhookID, rawBody)
	if bc.locker != nil {
		key := billing.LockKey(models.BillingProviderLemonSqueezy, eventID)
		acquired, err := bc.locker.Acquire(ctx, key, webhookLockTTL)
		switch {
		case err != nil:
			log.Warnf("[Billing] lock %s unavailable, relying on ledger: %v", key, err)
		case !acquired:
			log.Infof("[Billing] delivery %s already in flight", eventID)
			return c.Status(fiber.StatusOK).JSON(fiber.Map{"received": true, "duplicate": true})
		default:
			defer func() {
				if err := bc.locker.Release(context.Background(), key); err != nil {
					log.Warnf("[Billing] release lock %s: %v", key, err)
				}
			}()
		}
	}

	created, stored, err := bc.svc.RecordWebhookEvent(ctx, billing.WebhookEventInput{
		Provider:        models.BillingProviderLemonSqueezy,
		ProviderEventID: eventID,
		EventType:       payload.Meta.EventName,
		PayloadJSON:     string(rawBody),
		SignatureValid:  true,
	})
	if err != nil {
		log.Errorf("[Billing] persist delivery %s: %v", eventID, err)
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "webhook_persist_failed"})
	}
	if !created && stored.Succeeded() {
		log.Infof("[Billing] duplicate delivery %s", eventID)
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"received": true, "duplicate": true})
	}
	// A recent unprocessed row belongs to an attempt that has not finished.
	// Answer non-2xx so the provider retries once that attempt settled.
	if !created && stored.InFlight(time.Now(), webhookTimeout) {
		log.Infof("[Billing] delivery %s still being applied", eventID)
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "delivery_in_flight"})
	}

	outcome, applyErr := bc.svc.Apply(ctx, intent, bc.now())
	if err := bc.svc.MarkWebhookProcessed(ctx, stored.ID, applyErr); err != nil {
		log.Errorf("[Billing] mark delivery %s processed: %v", eventID, err)
	}
	if applyErr != nil {
		if errors.Is(applyErr, billing.ErrTargetNotFound) {
			log.Warnf("[Billing] %s for %s: %v", intent.Kind(), eventID, applyErr)
		} else {
			log.Errorf("[Billing] %s for %s: %v", intent.Kind(), eventID, applyErr)
		}
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": applyErr.Error()})
	}

	if outcome.Transaction != nil {
		log.Infof("[Billing] %s applied, transaction %s amount %.2f", outcome.Kind, outcome.Transaction.ID, outcome.Transaction.Amount)
	} else {
		log.Infof("[Billing] %s applied", outcome.Kind)
	}
	return c.Status(fiber.StatusOK).JSON(fiber.Map{"received": true})
}
