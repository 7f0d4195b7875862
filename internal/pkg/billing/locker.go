package billing

import (
	"context"
	"time"
)

// Locker guards a delivery id against concurrent processing. The ledger
// still decides whether a delivery is new; the lock only keeps two
// in-flight attempts from racing.
type Locker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, key string) error
}

// LockKey namespaces the in-flight lock for a provider delivery.
func LockKey(provider, eventID string) string {
	return "webhook:lock:" + provider + ":" + eventID
}
