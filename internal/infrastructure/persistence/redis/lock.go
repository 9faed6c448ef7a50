package redis

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/engagehub/engagement-core/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// DISTRIBUTED LOCK
// ══════════════════════════════════════════════════════════════════════════════

// Lock implements shared.Locker on Redis using SET NX with a per-acquisition
// token. Release is a check-and-delete Lua script so a worker that held a
// lock past its TTL cannot release a successor's lock.
type Lock struct {
	client *redis.Client
}

// NewLock creates a distributed lock manager backed by the store's client.
func NewLock(store *Store) *Lock {
	return &Lock{client: store.client}
}

// releaseScript deletes the lock key only if it still holds our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Acquire implements shared.Locker. Returns ok=false without error when
// another worker holds the lock.
func (l *Lock) Acquire(ctx context.Context, name string, ttl time.Duration) (func(ctx context.Context) error, bool, error) {
	key := PrefixLock + name
	token := uuid.NewString()

	ok, err := l.client.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return nil, false, wrap("Acquire", err)
	}
	if !ok {
		return nil, false, nil
	}

	release := func(ctx context.Context) error {
		if err := releaseScript.Run(ctx, l.client, []string{key}, token).Err(); err != nil {
			return shared.WrapError("redis", "Release", shared.ErrStoreUnavailable, "lock release failed", err)
		}
		return nil
	}
	return release, true, nil
}
