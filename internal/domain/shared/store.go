package shared

import (
	"context"
	"time"
)

// KeyValueStore is the storage contract every engagement component depends on.
// All cross-worker synchronization is delegated to these primitives; no
// component holds private mutable state across calls.
//
// Semantics the implementation must provide:
//   - atomic numeric increments (IncrBy, HIncrBy) safe under concurrent callers
//   - set-if-not-exists (SetNX, SAdd) for at-most-once grant creation
//   - compare-and-swap on a single key for linearizable state transitions
//   - TTL expiry with lazy-expired reads: an expired key reads as not found
//
// A TTL of zero means the key does not expire. Reads of missing keys return
// ErrKeyNotFound; infrastructure failures are wrapped as ErrStoreUnavailable.
type KeyValueStore interface {
	// Get returns the raw value stored at key.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores value at key with the given TTL.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// SetNX stores value only if key does not exist. Returns true if the
	// value was stored by this call.
	SetNX(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error)

	// CompareAndSwap replaces the value at key only if the current value
	// equals old. Returns true if the swap happened. A missing key never
	// matches.
	CompareAndSwap(ctx context.Context, key string, old, new []byte, ttl time.Duration) (bool, error)

	// Delete removes the given keys. Missing keys are ignored.
	Delete(ctx context.Context, keys ...string) error

	// Exists reports whether key is present (and not expired).
	Exists(ctx context.Context, key string) (bool, error)

	// Expire sets a new TTL on an existing key.
	Expire(ctx context.Context, key string, ttl time.Duration) error

	// IncrBy atomically adds delta to the integer at key and returns the
	// new value. A missing key counts as zero.
	IncrBy(ctx context.Context, key string, delta int64) (int64, error)

	// HIncrBy atomically adds delta to an integer hash field and returns
	// the new value.
	HIncrBy(ctx context.Context, key, field string, delta int64) (int64, error)

	// HSet stores the given hash fields.
	HSet(ctx context.Context, key string, fields map[string]string) error

	// HGet returns a single hash field. Missing field reads as ErrKeyNotFound.
	HGet(ctx context.Context, key, field string) (string, error)

	// HGetAll returns all fields of a hash. A missing hash returns an
	// empty map, not an error.
	HGetAll(ctx context.Context, key string) (map[string]string, error)

	// SAdd adds member to the set at key. Returns true if the member was
	// newly added by this call.
	SAdd(ctx context.Context, key, member string, ttl time.Duration) (bool, error)

	// SIsMember reports set membership.
	SIsMember(ctx context.Context, key, member string) (bool, error)

	// SMembers returns all members of the set at key.
	SMembers(ctx context.Context, key string) ([]string, error)

	// SRem removes member from the set at key.
	SRem(ctx context.Context, key, member string) error

	// Scan calls fn for every key matching pattern ('*' wildcard). Used by
	// the cleanup job only; hot paths never scan.
	Scan(ctx context.Context, pattern string, fn func(key string) error) error
}

// Locker provides short-lived distributed locks for scheduler jobs so that
// at most one instance executes a job per cadence window.
type Locker interface {
	// Acquire tries to take the named lock for ttl. Returns ok=false if
	// another holder owns it. The returned release function is safe to
	// call once; releasing an expired lock is a no-op.
	Acquire(ctx context.Context, name string, ttl time.Duration) (release func(ctx context.Context) error, ok bool, err error)
}
