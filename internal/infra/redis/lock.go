// File: internal/infra/redis/lock.go
package redis

import (
	"context"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"

	"stripe-invoice-bridge/internal/domain"
	"stripe-invoice-bridge/internal/domain/ports/repository"
)

var _ repository.Locker = (*Locker)(nil)

// Locker is the strict-mode guard around the issue+marker critical section.
// SetNX with a TTL: a crashed holder never wedges a payment, the lock just
// expires and the next retry re-enters through the idempotency gate.
type Locker struct {
	cli *redis.Client
}

func NewLocker(c *Client) *Locker {
	return &Locker{cli: c.cli}
}

func (l *Locker) TryLock(ctx context.Context, key string, ttl time.Duration) (string, error) {
	token := uuid.NewString()
	ok, err := l.cli.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return "", err
	}
	if !ok {
		return "", domain.ErrAlreadyProcessing
	}
	return token, nil
}

var luaUnlock = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
else
	return 0
end`)

// Unlock releases only if we still hold the token, so an expired lock
// re-acquired by another invocation is never released from under it.
func (l *Locker) Unlock(ctx context.Context, key, token string) error {
	_, err := luaUnlock.Run(ctx, l.cli, []string{key}, token).Result()
	return err
}
