package memory

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/engagehub/engagement-core/internal/domain/shared"
)

func TestStore_GetSetDelete(t *testing.T) {
	ctx := context.Background()
	s := NewStore()

	_, err := s.Get(ctx, "missing")
	assert.ErrorIs(t, err, shared.ErrKeyNotFound)

	require.NoError(t, s.Set(ctx, "k", []byte("v"), 0))
	v, err := s.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("v"), v)

	require.NoError(t, s.Delete(ctx, "k"))
	_, err = s.Get(ctx, "k")
	assert.ErrorIs(t, err, shared.ErrKeyNotFound)
}

func TestStore_TTLLazyExpiry(t *testing.T) {
	ctx := context.Background()
	s := NewStore()

	now := time.Now()
	s.SetClock(func() time.Time { return now })

	require.NoError(t, s.Set(ctx, "k", []byte("v"), time.Minute))

	now = now.Add(59 * time.Second)
	_, err := s.Get(ctx, "k")
	assert.NoError(t, err)

	now = now.Add(2 * time.Second)
	_, err = s.Get(ctx, "k")
	assert.ErrorIs(t, err, shared.ErrKeyNotFound, "expired key reads as not found")

	ok, err := s.Exists(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestStore_SetNX(t *testing.T) {
	ctx := context.Background()
	s := NewStore()

	ok, err := s.SetNX(ctx, "k", []byte("first"), 0)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.SetNX(ctx, "k", []byte("second"), 0)
	require.NoError(t, err)
	assert.False(t, ok)

	v, _ := s.Get(ctx, "k")
	assert.Equal(t, []byte("first"), v)
}

func TestStore_SetNXAfterExpiry(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	now := time.Now()
	s.SetClock(func() time.Time { return now })

	ok, _ := s.SetNX(ctx, "k", []byte("a"), time.Second)
	require.True(t, ok)

	now = now.Add(2 * time.Second)
	ok, err := s.SetNX(ctx, "k", []byte("b"), time.Second)
	require.NoError(t, err)
	assert.True(t, ok, "expired key behaves as absent")
}

func TestStore_CompareAndSwap(t *testing.T) {
	ctx := context.Background()
	s := NewStore()

	ok, err := s.CompareAndSwap(ctx, "k", []byte("a"), []byte("b"), 0)
	require.NoError(t, err)
	assert.False(t, ok, "missing key never matches")

	require.NoError(t, s.Set(ctx, "k", []byte("a"), 0))

	ok, _ = s.CompareAndSwap(ctx, "k", []byte("x"), []byte("b"), 0)
	assert.False(t, ok)

	ok, _ = s.CompareAndSwap(ctx, "k", []byte("a"), []byte("b"), 0)
	assert.True(t, ok)

	v, _ := s.Get(ctx, "k")
	assert.Equal(t, []byte("b"), v)
}

func TestStore_IncrByConcurrent(t *testing.T) {
	ctx := context.Background()
	s := NewStore()

	const workers = 20
	const perWorker = 50

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perWorker; j++ {
				_, err := s.IncrBy(ctx, "counter", 1)
				assert.NoError(t, err)
			}
		}()
	}
	wg.Wait()

	total, err := s.IncrBy(ctx, "counter", 0)
	require.NoError(t, err)
	assert.Equal(t, int64(workers*perWorker), total)
}

func TestStore_HashOps(t *testing.T) {
	ctx := context.Background()
	s := NewStore()

	n, err := s.HIncrBy(ctx, "h", "count", 5)
	require.NoError(t, err)
	assert.Equal(t, int64(5), n)

	n, _ = s.HIncrBy(ctx, "h", "count", 3)
	assert.Equal(t, int64(8), n)

	require.NoError(t, s.HSet(ctx, "h", map[string]string{"name": "alice"}))

	v, err := s.HGet(ctx, "h", "name")
	require.NoError(t, err)
	assert.Equal(t, "alice", v)

	_, err = s.HGet(ctx, "h", "missing")
	assert.ErrorIs(t, err, shared.ErrKeyNotFound)

	all, err := s.HGetAll(ctx, "h")
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"count": "8", "name": "alice"}, all)

	empty, err := s.HGetAll(ctx, "nope")
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestStore_SetMembership(t *testing.T) {
	ctx := context.Background()
	s := NewStore()

	added, err := s.SAdd(ctx, "s", "a", 0)
	require.NoError(t, err)
	assert.True(t, added)

	added, _ = s.SAdd(ctx, "s", "a", 0)
	assert.False(t, added, "re-adding a member reports not-added")

	ok, _ := s.SIsMember(ctx, "s", "a")
	assert.True(t, ok)
	ok, _ = s.SIsMember(ctx, "s", "b")
	assert.False(t, ok)

	_, _ = s.SAdd(ctx, "s", "b", 0)
	members, _ := s.SMembers(ctx, "s")
	assert.ElementsMatch(t, []string{"a", "b"}, members)

	require.NoError(t, s.SRem(ctx, "s", "a"))
	ok, _ = s.SIsMember(ctx, "s", "a")
	assert.False(t, ok)
}

func TestStore_Scan(t *testing.T) {
	ctx := context.Background()
	s := NewStore()

	_ = s.Set(ctx, "game:session:1", []byte("a"), 0)
	_ = s.Set(ctx, "game:session:2", []byte("b"), 0)
	_ = s.Set(ctx, "profile:u1", []byte("c"), 0)

	var found []string
	err := s.Scan(ctx, "game:session:*", func(key string) error {
		found = append(found, key)
		return nil
	})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"game:session:1", "game:session:2"}, found)
}

func TestGlobMatch(t *testing.T) {
	assert.True(t, globMatch("a:*", "a:b"))
	assert.True(t, globMatch("a:*:c", "a:b:c"))
	assert.True(t, globMatch("exact", "exact"))
	assert.False(t, globMatch("exact", "exactly"))
	assert.False(t, globMatch("a:*:c", "a:b:d"))
}

func TestLock_AcquireRelease(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	l := NewLock(s)

	release, ok, err := l.Acquire(ctx, "job:test", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	_, ok2, err := l.Acquire(ctx, "job:test", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok2, "second acquire while held must fail")

	require.NoError(t, release(ctx))

	_, ok3, err := l.Acquire(ctx, "job:test", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok3)
}
