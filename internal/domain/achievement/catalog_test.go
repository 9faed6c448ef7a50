package achievement

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/engagehub/engagement-core/internal/domain/profile"
)

func TestCatalog_UniqueIDsAndPositiveBonuses(t *testing.T) {
	seen := make(map[string]bool)
	for _, d := range Catalog() {
		assert.False(t, seen[d.ID], "duplicate achievement ID %q", d.ID)
		seen[d.ID] = true
		assert.Positive(t, d.Points, "achievement %q has no bonus", d.ID)
		assert.NotNil(t, d.Requirement, "achievement %q has no requirement", d.ID)
	}
}

func TestThresholdRequirements(t *testing.T) {
	now := time.Now().UTC()

	pollDevotee, ok := ByID("poll_devotee")
	require.True(t, ok)

	p := profile.NewUserProfile("u1")
	p.PollsVoted = 49
	assert.False(t, pollDevotee.Requirement(p, now))
	p.PollsVoted = 50
	assert.True(t, pollDevotee.Requirement(p, now))

	streakMonth, ok := ByID("streak_month")
	require.True(t, ok)
	p.StreakDays = 30
	assert.True(t, streakMonth.Requirement(p, now))

	ambassador, ok := ByID("ambassador")
	require.True(t, ok)
	p.ReferralsMade = 9
	assert.False(t, ambassador.Requirement(p, now))
	p.ReferralsMade = 10
	assert.True(t, ambassador.Requirement(p, now))
}

func TestNightOwl_HourWindowAndRecency(t *testing.T) {
	nightOwl, ok := ByID("night_owl")
	require.True(t, ok)

	now := time.Date(2026, 8, 30, 3, 10, 0, 0, time.UTC)

	p := profile.NewUserProfile("u1")
	p.LastActiveAt = time.Date(2026, 8, 30, 3, 0, 0, 0, time.UTC)
	assert.True(t, nightOwl.Requirement(p, now))

	// Activity in-window but hours ago must not count.
	p.LastActiveAt = time.Date(2026, 8, 30, 0, 30, 0, 0, time.UTC)
	assert.False(t, nightOwl.Requirement(p, now))

	// Recent activity outside the window must not count.
	p.LastActiveAt = time.Date(2026, 8, 30, 3, 0, 0, 0, time.UTC)
	noon := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	assert.False(t, nightOwl.Requirement(p, noon))

	// No activity at all.
	p.LastActiveAt = time.Time{}
	assert.False(t, nightOwl.Requirement(p, now))
}
