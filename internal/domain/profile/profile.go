// Package profile contains the per-user aggregate engagement state and the
// static level table derived from it.
//
// A profile is created on first interaction and grows append-only: counters
// only ever increase, and the ledger remains the source of truth for
// TotalPoints. Profiles are persisted as hash fields so that every counter
// mutation can be an atomic increment on the backing store.
package profile

import (
	"strconv"
	"time"
)

// Hash field names under which a profile is stored.
// Counters listed here must only be mutated via atomic increments.
const (
	FieldTotalPoints       = "total_points"
	FieldLevel             = "level"
	FieldEngagementScore   = "engagement_score"
	FieldStreakDays        = "streak_days"
	FieldPollsVoted        = "polls_voted"
	FieldGamesWon          = "games_won"
	FieldGamesPlayed       = "games_played"
	FieldReferralsMade     = "referrals_made"
	FieldAchievementsCount = "achievements_count"
	FieldLastActiveAt      = "last_active_at"
	FieldCreatedAt         = "created_at"
)

// UserProfile is the per-user aggregate engagement state.
type UserProfile struct {
	UserID string

	TotalPoints       int64
	Level             int
	EngagementScore   int64
	StreakDays        int64
	PollsVoted        int64
	GamesWon          int64
	GamesPlayed       int64
	ReferralsMade     int64
	AchievementsCount int64

	LastActiveAt time.Time
	CreatedAt    time.Time
}

// NewUserProfile creates a fresh profile for a user's first interaction.
func NewUserProfile(userID string) *UserProfile {
	now := time.Now().UTC()
	return &UserProfile{
		UserID:       userID,
		Level:        1,
		LastActiveAt: now,
		CreatedAt:    now,
	}
}

// FromFields reconstructs a profile from stored hash fields.
// Unknown or malformed fields fall back to zero values.
func FromFields(userID string, fields map[string]string) *UserProfile {
	p := &UserProfile{UserID: userID, Level: 1}

	p.TotalPoints = parseInt64(fields[FieldTotalPoints])
	if lvl := parseInt64(fields[FieldLevel]); lvl > 0 {
		p.Level = int(lvl)
	}
	p.EngagementScore = parseInt64(fields[FieldEngagementScore])
	p.StreakDays = parseInt64(fields[FieldStreakDays])
	p.PollsVoted = parseInt64(fields[FieldPollsVoted])
	p.GamesWon = parseInt64(fields[FieldGamesWon])
	p.GamesPlayed = parseInt64(fields[FieldGamesPlayed])
	p.ReferralsMade = parseInt64(fields[FieldReferralsMade])
	p.AchievementsCount = parseInt64(fields[FieldAchievementsCount])
	p.LastActiveAt = parseTime(fields[FieldLastActiveAt])
	p.CreatedAt = parseTime(fields[FieldCreatedAt])

	return p
}

// InitialFields returns the hash fields written when a profile is created.
func (p *UserProfile) InitialFields() map[string]string {
	return map[string]string{
		FieldLevel:        strconv.Itoa(p.Level),
		FieldLastActiveAt: p.LastActiveAt.Format(time.RFC3339),
		FieldCreatedAt:    p.CreatedAt.Format(time.RFC3339),
	}
}

// InactiveFor returns how long the user has been inactive as of now.
func (p *UserProfile) InactiveFor(now time.Time) time.Duration {
	if p.LastActiveAt.IsZero() {
		return 0
	}
	return now.Sub(p.LastActiveAt)
}

// ActiveWithin reports whether the user was active within d of now.
func (p *UserProfile) ActiveWithin(now time.Time, d time.Duration) bool {
	return !p.LastActiveAt.IsZero() && now.Sub(p.LastActiveAt) <= d
}

func parseInt64(s string) int64 {
	if s == "" {
		return 0
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0
	}
	return v
}

func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}
	}
	return t.UTC()
}
