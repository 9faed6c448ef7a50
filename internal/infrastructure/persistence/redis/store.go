// Package redis implements the engagement engine's key-value store contract
// on Redis. All cross-worker synchronization (atomic counters, one-time
// grants, session state transitions, distributed job locks) runs through
// this package's primitives.
package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/engagehub/engagement-core/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// CONFIGURATION
// ══════════════════════════════════════════════════════════════════════════════

// Config holds Redis connection configuration.
type Config struct {
	// Host is the Redis server hostname.
	Host string

	// Port is the Redis server port.
	Port int

	// Password is the Redis authentication password (empty if no auth).
	Password string

	// DB is the Redis database number (0-15).
	DB int

	// PoolSize is the maximum number of socket connections.
	PoolSize int

	// MinIdleConns is the minimum number of idle connections.
	MinIdleConns int

	// MaxRetries is the maximum number of retries before giving up.
	MaxRetries int

	// DialTimeout is the timeout for establishing new connections.
	DialTimeout time.Duration

	// ReadTimeout is the timeout for socket reads.
	ReadTimeout time.Duration

	// WriteTimeout is the timeout for socket writes.
	WriteTimeout time.Duration
}

// DefaultConfig returns a sensible default configuration.
func DefaultConfig() Config {
	return Config{
		Host:         "localhost",
		Port:         6379,
		DB:           0,
		PoolSize:     10,
		MinIdleConns: 2,
		MaxRetries:   3,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	}
}

// Addr returns the Redis address in "host:port" format.
func (c Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// PrefixLock namespaces distributed job lock keys. Domain key layout is owned
// by the service layer; the store stays schema-agnostic.
const PrefixLock = "lock:"

// ══════════════════════════════════════════════════════════════════════════════
// STORE
// ══════════════════════════════════════════════════════════════════════════════

// Store implements shared.KeyValueStore on a Redis client.
type Store struct {
	client *redis.Client
	config Config
}

// NewStore connects to Redis and verifies the connection.
func NewStore(cfg Config) (*Store, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr(),
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
		MaxRetries:   cfg.MaxRetries,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	})

	ctx, cancel := context.WithTimeout(context.Background(), cfg.DialTimeout)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, shared.WrapError("redis", "NewStore", shared.ErrStoreUnavailable, "connection failed", err)
	}

	return &Store{client: client, config: cfg}, nil
}

// Client returns the underlying Redis client for advanced operations.
// Use with caution - prefer the Store methods when possible.
func (s *Store) Client() *redis.Client {
	return s.client
}

// Close closes the Redis connection.
func (s *Store) Close() error {
	return s.client.Close()
}

// Ping checks if Redis is reachable.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return wrap("Ping", err)
	}
	return nil
}

// wrap converts a go-redis error into the domain error taxonomy.
func wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, redis.Nil) {
		return shared.ErrKeyNotFound
	}
	return shared.WrapError("redis", op, shared.ErrStoreUnavailable, "store operation failed", err)
}

// Get implements shared.KeyValueStore.
func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := s.client.Get(ctx, key).Bytes()
	if err != nil {
		return nil, wrap("Get", err)
	}
	return data, nil
}

// Set implements shared.KeyValueStore.
func (s *Store) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return wrap("Set", s.client.Set(ctx, key, value, ttl).Err())
}

// SetNX implements shared.KeyValueStore.
func (s *Store) SetNX(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	ok, err := s.client.SetNX(ctx, key, value, ttl).Result()
	if err != nil {
		return false, wrap("SetNX", err)
	}
	return ok, nil
}

// casScript swaps a key's value only when the current value matches.
// KEYS[1] = key; ARGV[1] = expected old value, ARGV[2] = new value,
// ARGV[3] = TTL in milliseconds (0 = keep without expiry change on PERSIST-less path).
var casScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) ~= ARGV[1] then
	return 0
end
if tonumber(ARGV[3]) > 0 then
	redis.call("SET", KEYS[1], ARGV[2], "PX", ARGV[3])
else
	redis.call("SET", KEYS[1], ARGV[2], "KEEPTTL")
end
return 1
`)

// CompareAndSwap implements shared.KeyValueStore. Runs as a Lua script so
// the read-compare-write is a single atomic step on the server.
func (s *Store) CompareAndSwap(ctx context.Context, key string, old, new []byte, ttl time.Duration) (bool, error) {
	res, err := casScript.Run(ctx, s.client, []string{key}, old, new, ttl.Milliseconds()).Int()
	if err != nil {
		return false, wrap("CompareAndSwap", err)
	}
	return res == 1, nil
}

// Delete implements shared.KeyValueStore.
func (s *Store) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	return wrap("Delete", s.client.Del(ctx, keys...).Err())
}

// Exists implements shared.KeyValueStore.
func (s *Store) Exists(ctx context.Context, key string) (bool, error) {
	count, err := s.client.Exists(ctx, key).Result()
	if err != nil {
		return false, wrap("Exists", err)
	}
	return count > 0, nil
}

// Expire implements shared.KeyValueStore.
func (s *Store) Expire(ctx context.Context, key string, ttl time.Duration) error {
	return wrap("Expire", s.client.Expire(ctx, key, ttl).Err())
}

// IncrBy implements shared.KeyValueStore.
func (s *Store) IncrBy(ctx context.Context, key string, delta int64) (int64, error) {
	n, err := s.client.IncrBy(ctx, key, delta).Result()
	if err != nil {
		return 0, wrap("IncrBy", err)
	}
	return n, nil
}

// HIncrBy implements shared.KeyValueStore.
func (s *Store) HIncrBy(ctx context.Context, key, field string, delta int64) (int64, error) {
	n, err := s.client.HIncrBy(ctx, key, field, delta).Result()
	if err != nil {
		return 0, wrap("HIncrBy", err)
	}
	return n, nil
}

// HSet implements shared.KeyValueStore.
func (s *Store) HSet(ctx context.Context, key string, fields map[string]string) error {
	if len(fields) == 0 {
		return nil
	}
	args := make([]interface{}, 0, len(fields)*2)
	for k, v := range fields {
		args = append(args, k, v)
	}
	return wrap("HSet", s.client.HSet(ctx, key, args...).Err())
}

// HGet implements shared.KeyValueStore.
func (s *Store) HGet(ctx context.Context, key, field string) (string, error) {
	v, err := s.client.HGet(ctx, key, field).Result()
	if err != nil {
		return "", wrap("HGet", err)
	}
	return v, nil
}

// HGetAll implements shared.KeyValueStore.
func (s *Store) HGetAll(ctx context.Context, key string) (map[string]string, error) {
	m, err := s.client.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, wrap("HGetAll", err)
	}
	return m, nil
}

// SAdd implements shared.KeyValueStore. The TTL, when positive, is applied to
// the whole set on every add; per-day activity sets rely on this to expire.
func (s *Store) SAdd(ctx context.Context, key, member string, ttl time.Duration) (bool, error) {
	added, err := s.client.SAdd(ctx, key, member).Result()
	if err != nil {
		return false, wrap("SAdd", err)
	}
	if ttl > 0 {
		if err := s.client.Expire(ctx, key, ttl).Err(); err != nil {
			return added == 1, wrap("SAdd", err)
		}
	}
	return added == 1, nil
}

// SIsMember implements shared.KeyValueStore.
func (s *Store) SIsMember(ctx context.Context, key, member string) (bool, error) {
	ok, err := s.client.SIsMember(ctx, key, member).Result()
	if err != nil {
		return false, wrap("SIsMember", err)
	}
	return ok, nil
}

// SMembers implements shared.KeyValueStore.
func (s *Store) SMembers(ctx context.Context, key string) ([]string, error) {
	members, err := s.client.SMembers(ctx, key).Result()
	if err != nil {
		return nil, wrap("SMembers", err)
	}
	return members, nil
}

// SRem implements shared.KeyValueStore.
func (s *Store) SRem(ctx context.Context, key, member string) error {
	return wrap("SRem", s.client.SRem(ctx, key, member).Err())
}

// Scan implements shared.KeyValueStore. Used by the cleanup job only; SCAN
// can be slow on large datasets, keep it off hot paths.
func (s *Store) Scan(ctx context.Context, pattern string, fn func(key string) error) error {
	iter := s.client.Scan(ctx, 0, pattern, 100).Iterator()
	for iter.Next(ctx) {
		if err := fn(iter.Val()); err != nil {
			return err
		}
	}
	return wrap("Scan", iter.Err())
}
