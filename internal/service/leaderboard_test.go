package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/engagehub/engagement-core/internal/domain/profile"
	"github.com/engagehub/engagement-core/internal/domain/shared"
)

func TestGetTopNWithoutSnapshot(t *testing.T) {
	eng, _, _ := newTestEngine(t)

	_, err := eng.Leaderboard.GetTopN(context.Background(), 10)
	assert.ErrorIs(t, err, shared.ErrSnapshotNotFound)
}

func TestRefreshRanksDenseWithUserIDTieBreak(t *testing.T) {
	eng, _, bus := newTestEngine(t)
	ctx := context.Background()

	seed := map[string]int64{"alice": 300, "bob": 300, "carol": 150}
	for user, pts := range seed {
		require.NoError(t, eng.Profiles.Ensure(ctx, user))
		_, err := eng.Profiles.IncrementCounter(ctx, user, profile.FieldTotalPoints, pts)
		require.NoError(t, err)
	}

	snap, err := eng.Leaderboard.Refresh(ctx)
	require.NoError(t, err)
	require.Len(t, snap.Entries, 3)

	// Tied totals share a dense rank, ordered by userID ascending.
	assert.Equal(t, "alice", snap.Entries[0].UserID)
	assert.Equal(t, 1, snap.Entries[0].Rank)
	assert.Equal(t, "bob", snap.Entries[1].UserID)
	assert.Equal(t, 1, snap.Entries[1].Rank)
	assert.Equal(t, "carol", snap.Entries[2].UserID)
	assert.Equal(t, 2, snap.Entries[2].Rank)

	top, err := eng.Leaderboard.GetTopN(ctx, 2)
	require.NoError(t, err)
	require.Len(t, top, 2)
	assert.Equal(t, "alice", top[0].UserID)

	rank, err := eng.Leaderboard.RankOf(ctx, "carol")
	require.NoError(t, err)
	assert.Equal(t, 2, rank)

	require.Len(t, bus.ofType(shared.EventLeaderboardUpdated), 1)
}

func TestRefreshReplacesPriorSnapshot(t *testing.T) {
	eng, _, _ := newTestEngine(t)
	ctx := context.Background()

	require.NoError(t, eng.Profiles.Ensure(ctx, "u1"))
	first, err := eng.Leaderboard.Refresh(ctx)
	require.NoError(t, err)

	_, err = eng.Profiles.IncrementCounter(ctx, "u1", profile.FieldTotalPoints, 700)
	require.NoError(t, err)

	second, err := eng.Leaderboard.Refresh(ctx)
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, second.ID)

	top, err := eng.Leaderboard.GetTopN(ctx, 1)
	require.NoError(t, err)
	require.Len(t, top, 1)
	assert.Equal(t, int64(700), top[0].Points)
	assert.Equal(t, 4, top[0].Level)
}
