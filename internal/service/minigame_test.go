package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/engagehub/engagement-core/internal/domain/minigame"
	"github.com/engagehub/engagement-core/internal/domain/shared"
)

func TestTargetPracticeCorrectGuess(t *testing.T) {
	eng, _, bus := newTestEngine(t)
	ctx := context.Background()

	sess, err := eng.Games.CreateSession(ctx, "u1", minigame.TargetPractice)
	require.NoError(t, err)
	require.Len(t, sess.Options, 5)

	eng.Games.now = func() time.Time { return sess.StartedAt.Add(5 * time.Second) }

	resolved, err := eng.Games.ResolveGuess(ctx, sess.ID, sess.Target)
	require.NoError(t, err)
	assert.Equal(t, minigame.StateCompleted, resolved.State)
	assert.Equal(t, int64(45), resolved.Score)

	p, err := eng.Profiles.Get(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), p.GamesPlayed)
	assert.Equal(t, int64(1), p.GamesWon)
	// 45 plus the one-time first-points and first-win achievement bonuses.
	assert.Equal(t, int64(75), p.TotalPoints)

	events := bus.ofType(shared.EventGameCompleted)
	require.Len(t, events, 1)
	assert.True(t, events[0].(shared.GameCompletedEvent).Won)
}

func TestTargetPracticeWrongGuessScoresZero(t *testing.T) {
	eng, _, _ := newTestEngine(t)
	ctx := context.Background()

	sess, err := eng.Games.CreateSession(ctx, "u1", minigame.TargetPractice)
	require.NoError(t, err)

	var wrong string
	for _, o := range sess.Options {
		if o != sess.Target {
			wrong = o
			break
		}
	}

	resolved, err := eng.Games.ResolveGuess(ctx, sess.ID, wrong)
	require.NoError(t, err)
	assert.Equal(t, minigame.StateCompleted, resolved.State)
	assert.Equal(t, int64(0), resolved.Score)

	p, err := eng.Profiles.Get(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(0), p.GamesWon)
	assert.Equal(t, int64(0), p.TotalPoints)

	// The one guess is spent.
	_, err = eng.Games.ResolveGuess(ctx, sess.ID, sess.Target)
	assert.ErrorIs(t, err, shared.ErrAlreadyCompleted)
}

func TestTargetPracticeScoreFloor(t *testing.T) {
	eng, _, _ := newTestEngine(t)
	ctx := context.Background()

	sess, err := eng.Games.CreateSession(ctx, "u1", minigame.TargetPractice)
	require.NoError(t, err)

	eng.Games.now = func() time.Time { return sess.StartedAt.Add(55 * time.Second) }

	resolved, err := eng.Games.ResolveGuess(ctx, sess.ID, sess.Target)
	require.NoError(t, err)
	assert.Equal(t, int64(10), resolved.Score)
}

func TestGuessAfterTTLFailsExpired(t *testing.T) {
	eng, _, _ := newTestEngine(t)
	ctx := context.Background()

	sess, err := eng.Games.CreateSession(ctx, "u1", minigame.TargetPractice)
	require.NoError(t, err)

	eng.Games.now = func() time.Time { return sess.StartedAt.Add(61 * time.Second) }

	_, err = eng.Games.ResolveGuess(ctx, sess.ID, sess.Target)
	assert.ErrorIs(t, err, shared.ErrSessionExpired)

	_, err = eng.Games.GetSession(ctx, sess.ID)
	assert.ErrorIs(t, err, shared.ErrSessionExpired)
}

func TestResolveMissingSession(t *testing.T) {
	eng, _, _ := newTestEngine(t)

	_, err := eng.Games.ResolveGuess(context.Background(), "no-such-session", "🎯")
	assert.ErrorIs(t, err, shared.ErrSessionNotFound)
}

func TestInvalidGuessRejected(t *testing.T) {
	eng, _, _ := newTestEngine(t)
	ctx := context.Background()

	sess, err := eng.Games.CreateSession(ctx, "u1", minigame.TargetPractice)
	require.NoError(t, err)

	_, err = eng.Games.ResolveGuess(ctx, sess.ID, "not-an-option")
	assert.ErrorIs(t, err, shared.ErrInvalidGuess)
}

func TestEmojiHuntCompletesExactlyAtAllTargetsFound(t *testing.T) {
	eng, _, bus := newTestEngine(t)
	ctx := context.Background()

	sess, err := eng.Games.CreateSession(ctx, "u1", minigame.EmojiHunt)
	require.NoError(t, err)
	require.GreaterOrEqual(t, sess.TargetCount, 1)

	eng.Games.now = func() time.Time { return sess.StartedAt.Add(20 * time.Second) }

	var targets []int
	for i, cell := range sess.Grid {
		if cell == sess.TargetEmoji {
			targets = append(targets, i)
		}
	}
	require.Len(t, targets, sess.TargetCount)

	// Decoy clicks never advance the hunt.
	for i, cell := range sess.Grid {
		if cell != sess.TargetEmoji {
			cur, err := eng.Games.ClickCell(ctx, sess.ID, i)
			require.NoError(t, err)
			assert.NotEqual(t, minigame.StateCompleted, cur.State)
			break
		}
	}

	for n, idx := range targets {
		cur, err := eng.Games.ClickCell(ctx, sess.ID, idx)
		require.NoError(t, err)
		if n < len(targets)-1 {
			assert.Equal(t, minigame.StateActive, cur.State, "completed before all targets found")
		} else {
			assert.Equal(t, minigame.StateCompleted, cur.State)
			// max(20, 100 - 20/2) = 90.
			assert.Equal(t, int64(90), cur.Score)
		}
	}

	require.Len(t, bus.ofType(shared.EventGameCompleted), 1)

	p, err := eng.Profiles.Get(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), p.GamesWon)
}

func TestEmojiHuntRepeatClickIsNoOp(t *testing.T) {
	eng, store, _ := newTestEngine(t)
	ctx := context.Background()

	var sess *minigame.Session
	var err error
	// A single-target grid would complete on the first click; retry until
	// the fill produces at least two targets.
	for i := 0; i < 100; i++ {
		sess, err = eng.Games.CreateSession(ctx, "u1", minigame.EmojiHunt)
		require.NoError(t, err)
		if sess.TargetCount >= 2 {
			break
		}
	}
	require.GreaterOrEqual(t, sess.TargetCount, 2)

	var first int
	for i, cell := range sess.Grid {
		if cell == sess.TargetEmoji {
			first = i
			break
		}
	}

	cur, err := eng.Games.ClickCell(ctx, sess.ID, first)
	require.NoError(t, err)
	assert.Equal(t, 1, cur.FoundCount)

	cur, err = eng.Games.ClickCell(ctx, sess.ID, first)
	require.NoError(t, err)
	assert.Equal(t, minigame.StateActive, cur.State)

	n, err := store.Get(ctx, keySessionFoundN(sess.ID))
	require.NoError(t, err)
	assert.Equal(t, "1", string(n))
}

func TestEmojiHuntDerivedKeysCleanedUpOnCompletion(t *testing.T) {
	eng, store, _ := newTestEngine(t)
	ctx := context.Background()

	sess, err := eng.Games.CreateSession(ctx, "u1", minigame.EmojiHunt)
	require.NoError(t, err)

	eng.Games.now = func() time.Time { return sess.StartedAt.Add(10 * time.Second) }

	for i, cell := range sess.Grid {
		if cell == sess.TargetEmoji {
			_, err := eng.Games.ClickCell(ctx, sess.ID, i)
			require.NoError(t, err)
		}
	}

	loaded, err := eng.Games.GetSession(ctx, sess.ID)
	require.NoError(t, err)
	require.Equal(t, minigame.StateCompleted, loaded.State)

	// Completion removes the per-cell set and the found counter.
	for _, key := range []string{keySessionFound(sess.ID), keySessionFoundN(sess.ID)} {
		ok, err := store.Exists(ctx, key)
		require.NoError(t, err)
		assert.False(t, ok, key)
	}
}

func TestEmojiHuntAbandonedCountersExpire(t *testing.T) {
	eng, store, _ := newTestEngine(t)
	ctx := context.Background()

	var sess *minigame.Session
	var err error
	for i := 0; i < 100; i++ {
		sess, err = eng.Games.CreateSession(ctx, "u1", minigame.EmojiHunt)
		require.NoError(t, err)
		if sess.TargetCount >= 2 {
			break
		}
	}
	require.GreaterOrEqual(t, sess.TargetCount, 2)

	var first int
	for i, cell := range sess.Grid {
		if cell == sess.TargetEmoji {
			first = i
			break
		}
	}
	_, err = eng.Games.ClickCell(ctx, sess.ID, first)
	require.NoError(t, err)

	// Abandon the hunt. Both derived keys carry the session window TTL, so
	// they lapse with the session document instead of lingering.
	store.SetClock(func() time.Time { return sess.StartedAt.Add(365 * 24 * time.Hour) })

	for _, key := range []string{keySessionFound(sess.ID), keySessionFoundN(sess.ID)} {
		ok, err := store.Exists(ctx, key)
		require.NoError(t, err)
		assert.False(t, ok, key)
	}
}

func TestEmojiHuntInvalidCell(t *testing.T) {
	eng, _, _ := newTestEngine(t)
	ctx := context.Background()

	sess, err := eng.Games.CreateSession(ctx, "u1", minigame.EmojiHunt)
	require.NoError(t, err)

	_, err = eng.Games.ClickCell(ctx, sess.ID, -1)
	assert.ErrorIs(t, err, shared.ErrInvalidCell)
	_, err = eng.Games.ClickCell(ctx, sess.ID, minigame.GridSize)
	assert.ErrorIs(t, err, shared.ErrInvalidCell)
}

func TestReapExpiredSessions(t *testing.T) {
	eng, _, _ := newTestEngine(t)
	ctx := context.Background()

	stale, err := eng.Games.CreateSession(ctx, "u1", minigame.TargetPractice)
	require.NoError(t, err)
	fresh, err := eng.Games.CreateSession(ctx, "u2", minigame.EmojiHunt)
	require.NoError(t, err)

	// Past the target-practice TTL, inside the emoji-hunt TTL.
	eng.Games.now = func() time.Time { return stale.StartedAt.Add(90 * time.Second) }

	reaped, err := eng.Games.ReapExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, reaped)

	got, _, err := eng.Games.load(ctx, stale.ID)
	require.NoError(t, err)
	assert.Equal(t, minigame.StateExpired, got.State)
	assert.Equal(t, int64(0), got.Score)

	got, _, err = eng.Games.load(ctx, fresh.ID)
	require.NoError(t, err)
	assert.Equal(t, minigame.StateActive, got.State)
}
