package repository

import (
	"context"
	"time"
)

// MarkerStore is the idempotency-key store for the reconciliation engine.
//
// Contract ("marker before mirror"): a marker proves the side-effecting
// operation it names has completed, so implementations must be durable and
// the engine must write the marker before any mirror write that records the
// operation's result. Today the store is backed by the payment record's
// metadata bag at the gateway; the interface exists so a dedicated
// key-value store can replace it without touching the engine.
//
// Set is last-writer-wins. The backing store offers no conditional write,
// which leaves a race window between concurrent invocations that both read
// an absent marker; Locker is the optional strict-mode answer to that.
type MarkerStore interface {
	// Get returns the marker value for (paymentID, key) and whether it is set.
	Get(ctx context.Context, paymentID, key string) (string, bool, error)
	// Set durably records the marker. Other keys on the same payment are
	// preserved (merge semantics).
	Set(ctx context.Context, paymentID, key, value string) error
}

// Locker serializes processing of a single payment across concurrent
// invocations. Optional: the engine runs in documented best-effort mode
// without one.
type Locker interface {
	// TryLock acquires key for ttl and returns an unlock token, or an
	// error when the key is already held.
	TryLock(ctx context.Context, key string, ttl time.Duration) (token string, err error)
	Unlock(ctx context.Context, key, token string) error
}
