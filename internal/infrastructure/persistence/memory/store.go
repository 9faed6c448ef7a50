// Package memory implements the key-value store contract in process memory.
// It mirrors the Redis store's semantics, including TTL expiry with
// lazy-expired reads, atomic increments, and set-if-not-exists, so services
// can be exercised in tests and single-process development without a Redis
// instance.
package memory

import (
	"bytes"
	"context"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/engagehub/engagement-core/internal/domain/shared"
)

type entry struct {
	value     []byte
	hash      map[string]string
	set       map[string]struct{}
	expiresAt time.Time // zero = no expiry
}

func (e *entry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && now.After(e.expiresAt)
}

// Store is an in-memory shared.KeyValueStore.
type Store struct {
	mu   sync.Mutex
	data map[string]*entry

	// now is swappable so tests can drive TTL expiry.
	now func() time.Time
}

// NewStore creates an empty in-memory store.
func NewStore() *Store {
	return &Store{
		data: make(map[string]*entry),
		now:  time.Now,
	}
}

// SetClock replaces the store's time source. Test hook.
func (s *Store) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

// live returns the entry at key, dropping it first if expired.
// Caller must hold s.mu.
func (s *Store) live(key string) *entry {
	e, ok := s.data[key]
	if !ok {
		return nil
	}
	if e.expired(s.now()) {
		delete(s.data, key)
		return nil
	}
	return e
}

func (s *Store) expiry(ttl time.Duration) time.Time {
	if ttl <= 0 {
		return time.Time{}
	}
	return s.now().Add(ttl)
}

// Get implements shared.KeyValueStore.
func (s *Store) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e := s.live(key)
	if e == nil || e.value == nil {
		return nil, shared.ErrKeyNotFound
	}
	out := make([]byte, len(e.value))
	copy(out, e.value)
	return out, nil
}

// Set implements shared.KeyValueStore.
func (s *Store) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	v := make([]byte, len(value))
	copy(v, value)
	s.data[key] = &entry{value: v, expiresAt: s.expiry(ttl)}
	return nil
}

// SetNX implements shared.KeyValueStore.
func (s *Store) SetNX(_ context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.live(key) != nil {
		return false, nil
	}
	v := make([]byte, len(value))
	copy(v, value)
	s.data[key] = &entry{value: v, expiresAt: s.expiry(ttl)}
	return true, nil
}

// CompareAndSwap implements shared.KeyValueStore.
func (s *Store) CompareAndSwap(_ context.Context, key string, old, new []byte, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e := s.live(key)
	if e == nil || e.value == nil || !bytes.Equal(e.value, old) {
		return false, nil
	}
	v := make([]byte, len(new))
	copy(v, new)
	e.value = v
	if ttl > 0 {
		e.expiresAt = s.now().Add(ttl)
	}
	return true, nil
}

// Delete implements shared.KeyValueStore.
func (s *Store) Delete(_ context.Context, keys ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, k := range keys {
		delete(s.data, k)
	}
	return nil
}

// Exists implements shared.KeyValueStore.
func (s *Store) Exists(_ context.Context, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.live(key) != nil, nil
}

// Expire implements shared.KeyValueStore.
func (s *Store) Expire(_ context.Context, key string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e := s.live(key)
	if e == nil {
		return shared.ErrKeyNotFound
	}
	e.expiresAt = s.expiry(ttl)
	return nil
}

// IncrBy implements shared.KeyValueStore.
func (s *Store) IncrBy(_ context.Context, key string, delta int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e := s.live(key)
	var cur int64
	if e != nil && e.value != nil {
		v, err := strconv.ParseInt(string(e.value), 10, 64)
		if err != nil {
			return 0, shared.WrapError("memory", "IncrBy", shared.ErrInvalidState, "value is not an integer", err)
		}
		cur = v
	}
	cur += delta
	if e == nil {
		e = &entry{}
		s.data[key] = e
	}
	e.value = []byte(strconv.FormatInt(cur, 10))
	return cur, nil
}

// HIncrBy implements shared.KeyValueStore.
func (s *Store) HIncrBy(_ context.Context, key, field string, delta int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e := s.live(key)
	if e == nil {
		e = &entry{hash: make(map[string]string)}
		s.data[key] = e
	}
	if e.hash == nil {
		e.hash = make(map[string]string)
	}

	var cur int64
	if raw, ok := e.hash[field]; ok && raw != "" {
		v, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return 0, shared.WrapError("memory", "HIncrBy", shared.ErrInvalidState, "field is not an integer", err)
		}
		cur = v
	}
	cur += delta
	e.hash[field] = strconv.FormatInt(cur, 10)
	return cur, nil
}

// HSet implements shared.KeyValueStore.
func (s *Store) HSet(_ context.Context, key string, fields map[string]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e := s.live(key)
	if e == nil {
		e = &entry{hash: make(map[string]string)}
		s.data[key] = e
	}
	if e.hash == nil {
		e.hash = make(map[string]string)
	}
	for k, v := range fields {
		e.hash[k] = v
	}
	return nil
}

// HGet implements shared.KeyValueStore.
func (s *Store) HGet(_ context.Context, key, field string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e := s.live(key)
	if e == nil || e.hash == nil {
		return "", shared.ErrKeyNotFound
	}
	v, ok := e.hash[field]
	if !ok {
		return "", shared.ErrKeyNotFound
	}
	return v, nil
}

// HGetAll implements shared.KeyValueStore.
func (s *Store) HGetAll(_ context.Context, key string) (map[string]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[string]string)
	e := s.live(key)
	if e == nil || e.hash == nil {
		return out, nil
	}
	for k, v := range e.hash {
		out[k] = v
	}
	return out, nil
}

// SAdd implements shared.KeyValueStore.
func (s *Store) SAdd(_ context.Context, key, member string, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e := s.live(key)
	if e == nil {
		e = &entry{set: make(map[string]struct{}), expiresAt: s.expiry(ttl)}
		s.data[key] = e
	}
	if e.set == nil {
		e.set = make(map[string]struct{})
	}
	if _, exists := e.set[member]; exists {
		return false, nil
	}
	e.set[member] = struct{}{}
	return true, nil
}

// SIsMember implements shared.KeyValueStore.
func (s *Store) SIsMember(_ context.Context, key, member string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e := s.live(key)
	if e == nil || e.set == nil {
		return false, nil
	}
	_, ok := e.set[member]
	return ok, nil
}

// SMembers implements shared.KeyValueStore.
func (s *Store) SMembers(_ context.Context, key string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e := s.live(key)
	if e == nil || e.set == nil {
		return nil, nil
	}
	out := make([]string, 0, len(e.set))
	for m := range e.set {
		out = append(out, m)
	}
	return out, nil
}

// SRem implements shared.KeyValueStore.
func (s *Store) SRem(_ context.Context, key, member string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e := s.live(key)
	if e == nil || e.set == nil {
		return nil
	}
	delete(e.set, member)
	return nil
}

// Scan implements shared.KeyValueStore.
func (s *Store) Scan(_ context.Context, pattern string, fn func(key string) error) error {
	s.mu.Lock()
	now := s.now()
	keys := make([]string, 0, len(s.data))
	for k, e := range s.data {
		if e.expired(now) {
			delete(s.data, k)
			continue
		}
		if globMatch(pattern, k) {
			keys = append(keys, k)
		}
	}
	s.mu.Unlock()

	for _, k := range keys {
		if err := fn(k); err != nil {
			return err
		}
	}
	return nil
}

// globMatch matches keys against patterns using '*' as the only wildcard,
// the subset of Redis glob syntax the engine uses.
func globMatch(pattern, s string) bool {
	parts := strings.Split(pattern, "*")
	if len(parts) == 1 {
		return pattern == s
	}

	if !strings.HasPrefix(s, parts[0]) {
		return false
	}
	s = s[len(parts[0]):]

	for _, part := range parts[1 : len(parts)-1] {
		idx := strings.Index(s, part)
		if idx < 0 {
			return false
		}
		s = s[idx+len(part):]
	}

	return strings.HasSuffix(s, parts[len(parts)-1])
}

// Lock is an in-memory shared.Locker for single-process deployments.
type Lock struct {
	store *Store
}

// NewLock creates a Locker backed by the in-memory store.
func NewLock(store *Store) *Lock {
	return &Lock{store: store}
}

// Acquire implements shared.Locker.
func (l *Lock) Acquire(ctx context.Context, name string, ttl time.Duration) (func(ctx context.Context) error, bool, error) {
	key := "lock:" + name
	ok, err := l.store.SetNX(ctx, key, []byte("held"), ttl)
	if err != nil || !ok {
		return nil, false, err
	}
	release := func(ctx context.Context) error {
		return l.store.Delete(ctx, key)
	}
	return release, true, nil
}
