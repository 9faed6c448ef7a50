package leaderboard

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuild_DenseRanksWithStableTieBreak(t *testing.T) {
	snap := Build("snap1", []Entry{
		{UserID: "carol", Points: 150},
		{UserID: "bob", Points: 300},
		{UserID: "alice", Points: 300},
	})

	require.Len(t, snap.Entries, 3)

	// Tied totals sort by userID ascending and share a dense rank.
	assert.Equal(t, "alice", snap.Entries[0].UserID)
	assert.Equal(t, 1, snap.Entries[0].Rank)
	assert.Equal(t, "bob", snap.Entries[1].UserID)
	assert.Equal(t, 1, snap.Entries[1].Rank)
	assert.Equal(t, "carol", snap.Entries[2].UserID)
	assert.Equal(t, 2, snap.Entries[2].Rank, "dense ranking leaves no gap after a tie")
}

func TestBuild_Deterministic(t *testing.T) {
	in := []Entry{
		{UserID: "u3", Points: 10},
		{UserID: "u1", Points: 10},
		{UserID: "u2", Points: 10},
	}

	a := Build("a", in)
	b := Build("b", []Entry{in[2], in[0], in[1]})

	for i := range a.Entries {
		assert.Equal(t, a.Entries[i].UserID, b.Entries[i].UserID)
		assert.Equal(t, a.Entries[i].Rank, b.Entries[i].Rank)
	}
}

func TestBuild_DoesNotMutateInput(t *testing.T) {
	in := []Entry{
		{UserID: "b", Points: 1},
		{UserID: "a", Points: 2},
	}
	_ = Build("snap", in)
	assert.Equal(t, "b", in[0].UserID)
	assert.Zero(t, in[0].Rank)
}

func TestSnapshot_Top(t *testing.T) {
	snap := Build("snap", []Entry{
		{UserID: "a", Points: 30},
		{UserID: "b", Points: 20},
		{UserID: "c", Points: 10},
	})

	top2 := snap.Top(2)
	require.Len(t, top2, 2)
	assert.Equal(t, "a", top2[0].UserID)

	assert.Len(t, snap.Top(10), 3)
	assert.Nil(t, snap.Top(0))
}

func TestSnapshot_RankOf(t *testing.T) {
	snap := Build("snap", []Entry{
		{UserID: "a", Points: 30},
		{UserID: "b", Points: 20},
	})

	assert.Equal(t, 1, snap.RankOf("a"))
	assert.Equal(t, 2, snap.RankOf("b"))
	assert.Zero(t, snap.RankOf("ghost"))
}
