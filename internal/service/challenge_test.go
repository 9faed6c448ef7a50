package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/engagehub/engagement-core/internal/domain/challenge"
	"github.com/engagehub/engagement-core/internal/domain/shared"
)

func TestGetDailyChallengeIsIdempotent(t *testing.T) {
	eng, _, _ := newTestEngine(t)
	ctx := context.Background()

	first, err := eng.Challenges.GetDailyChallenge(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(0), first.Progress)
	assert.False(t, first.Completed)

	second, err := eng.Challenges.GetDailyChallenge(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, first.TemplateID, second.TemplateID)
	assert.Equal(t, first.AssignedAt, second.AssignedAt)
}

func TestRecordProgressCompletesAndPaysOnce(t *testing.T) {
	eng, store, bus := newTestEngine(t)
	ctx := context.Background()

	d, err := eng.Challenges.GetDailyChallenge(ctx, "u1")
	require.NoError(t, err)

	// Drive progress to one short of the target, then over it.
	if d.Target > 1 {
		cur, err := eng.Challenges.RecordProgress(ctx, "u1", d.Action, d.Target-1)
		require.NoError(t, err)
		assert.False(t, cur.Completed)
		assert.Equal(t, d.Target-1, cur.Progress)
	}
	cur, err := eng.Challenges.RecordProgress(ctx, "u1", d.Action, 1)
	require.NoError(t, err)
	assert.True(t, cur.Completed)
	assert.Equal(t, d.Target, cur.Progress)

	require.Len(t, bus.ofType(shared.EventChallengeCompleted), 1)

	p, err := eng.Profiles.Get(ctx, "u1")
	require.NoError(t, err)
	// Reward plus the one-time first-points achievement bonus.
	assert.Equal(t, d.Reward+10, p.TotalPoints)

	// Further matching actions change nothing; the reward never double-pays.
	cur, err = eng.Challenges.RecordProgress(ctx, "u1", d.Action, 5)
	require.NoError(t, err)
	assert.True(t, cur.Completed)
	assert.Equal(t, d.Target, cur.Progress)
	require.Len(t, bus.ofType(shared.EventChallengeCompleted), 1)

	// Even with the challenge document gone, the done marker blocks replays.
	require.NoError(t, store.Delete(ctx, keyChallenge("u1", cur.Date)))
	_, err = eng.Challenges.RecordProgress(ctx, "u1", cur.Action, 1)
	assert.ErrorIs(t, err, shared.ErrChallengeNotFound)
}

func TestRecordProgressIgnoresUnrelatedActions(t *testing.T) {
	eng, _, _ := newTestEngine(t)
	ctx := context.Background()

	d, err := eng.Challenges.GetDailyChallenge(ctx, "u1")
	require.NoError(t, err)

	var other challenge.ActionKind
	for _, k := range []challenge.ActionKind{
		challenge.ActionPollVote, challenge.ActionGameWon,
		challenge.ActionReferral, challenge.ActionPointsEarned,
	} {
		if k != d.Action {
			other = k
			break
		}
	}

	cur, err := eng.Challenges.RecordProgress(ctx, "u1", other, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(0), cur.Progress)
	assert.False(t, cur.Completed)
}

func TestRecordProgressValidation(t *testing.T) {
	eng, _, _ := newTestEngine(t)
	ctx := context.Background()

	_, err := eng.Challenges.RecordProgress(ctx, "u1", challenge.ActionKind("bogus"), 1)
	assert.ErrorIs(t, err, shared.ErrInvalidInput)

	_, err = eng.Challenges.RecordProgress(ctx, "u1", challenge.ActionPollVote, 0)
	assert.ErrorIs(t, err, shared.ErrInvalidInput)

	// No assignment for today yet.
	_, err = eng.Challenges.RecordProgress(ctx, "u1", challenge.ActionPollVote, 1)
	assert.ErrorIs(t, err, shared.ErrChallengeNotFound)
}

func TestDistributeDailyChallenges(t *testing.T) {
	eng, _, _ := newTestEngine(t)
	ctx := context.Background()

	now := eng.Challenges.now()
	for _, u := range []string{"a", "b", "c"} {
		require.NoError(t, eng.Profiles.MarkActive(ctx, u, now))
	}
	// Registered but never active: not part of the batch.
	require.NoError(t, eng.Profiles.Ensure(ctx, "ghost"))

	assigned, err := eng.Challenges.DistributeDailyChallenges(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, assigned)

	for _, u := range []string{"a", "b", "c"} {
		d, err := eng.Challenges.GetDailyChallenge(ctx, u)
		require.NoError(t, err)
		assert.Equal(t, int64(0), d.Progress)
	}
}
