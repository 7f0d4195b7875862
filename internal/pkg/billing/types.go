package billing

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// WebhookEventInput is the normalized input for webhook event persistence.
type WebhookEventInput struct {
	Provider        string
	ProviderEventID string
	EventType       string
	PayloadJSON     string
	SignatureValid  bool
}

// EventID returns the ledger key for a delivery. Providers that do not send
// a delivery id are keyed by a digest of the body, which is stable across
// retries of the same delivery.
func EventID(providerEventID string, payload []byte) string {
	if id := strings.TrimSpace(providerEventID); id != "" {
		return id
	}
	sum := sha256.Sum256(payload)
	return "hash:" + hex.EncodeToString(sum[:])
}
