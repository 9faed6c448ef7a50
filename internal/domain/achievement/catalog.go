// Package achievement holds the static achievement catalog and the grant
// record. Each achievement unlocks at most once per user; idempotency is
// enforced by the grant's set-if-not-exists creation, not by the predicates.
package achievement

import (
	"time"

	"github.com/engagehub/engagement-core/internal/domain/profile"
)

// Definition describes one achievement in the catalog.
type Definition struct {
	// ID is the stable identifier grants are keyed by.
	ID string

	// Name is the display name.
	Name string

	// Description explains how to earn it.
	Description string

	// Points is the one-time bonus awarded on unlock.
	Points int64

	// Requirement tests whether the user's current stats satisfy the
	// achievement. Pure: no store access, no side effects. The evaluation
	// time is passed in so behavioral (time-window) requirements stay
	// deterministic in tests.
	Requirement func(p *profile.UserProfile, now time.Time) bool
}

// Grant is a one-time unlock record.
type Grant struct {
	AchievementID string    `json:"achievement_id"`
	UserID        string    `json:"user_id"`
	PointsAwarded int64     `json:"points_awarded"`
	EarnedAt      time.Time `json:"earned_at"`
}

// NewGrant creates a grant record for an unlock.
func NewGrant(def Definition, userID string) Grant {
	return Grant{
		AchievementID: def.ID,
		UserID:        userID,
		PointsAwarded: def.Points,
		EarnedAt:      time.Now().UTC(),
	}
}

// catalog is the static achievement table. Thresholds are compile-time
// constants; there is no runtime configuration for them.
var catalog = []Definition{
	{
		ID:          "first_points",
		Name:        "Getting Started",
		Description: "Earn your first points",
		Points:      10,
		Requirement: func(p *profile.UserProfile, _ time.Time) bool {
			return p.TotalPoints >= 1
		},
	},
	{
		ID:          "poll_regular",
		Name:        "Opinionated",
		Description: "Vote in 10 polls",
		Points:      25,
		Requirement: func(p *profile.UserProfile, _ time.Time) bool {
			return p.PollsVoted >= 10
		},
	},
	{
		ID:          "poll_devotee",
		Name:        "Voice of the People",
		Description: "Vote in 50 polls",
		Points:      100,
		Requirement: func(p *profile.UserProfile, _ time.Time) bool {
			return p.PollsVoted >= 50
		},
	},
	{
		ID:          "first_win",
		Name:        "Beginner's Luck",
		Description: "Win your first mini-game",
		Points:      20,
		Requirement: func(p *profile.UserProfile, _ time.Time) bool {
			return p.GamesWon >= 1
		},
	},
	{
		ID:          "game_champion",
		Name:        "Sharpshooter",
		Description: "Win 25 mini-games",
		Points:      150,
		Requirement: func(p *profile.UserProfile, _ time.Time) bool {
			return p.GamesWon >= 25
		},
	},
	{
		ID:          "streak_week",
		Name:        "Committed",
		Description: "Stay active 7 days in a row",
		Points:      50,
		Requirement: func(p *profile.UserProfile, _ time.Time) bool {
			return p.StreakDays >= 7
		},
	},
	{
		ID:          "streak_month",
		Name:        "Iron Will",
		Description: "Stay active 30 days in a row",
		Points:      300,
		Requirement: func(p *profile.UserProfile, _ time.Time) bool {
			return p.StreakDays >= 30
		},
	},
	{
		ID:          "recruiter",
		Name:        "Recruiter",
		Description: "Bring in 3 friends",
		Points:      75,
		Requirement: func(p *profile.UserProfile, _ time.Time) bool {
			return p.ReferralsMade >= 3
		},
	},
	{
		ID:          "ambassador",
		Name:        "Ambassador",
		Description: "Bring in 10 friends",
		Points:      250,
		Requirement: func(p *profile.UserProfile, _ time.Time) bool {
			return p.ReferralsMade >= 10
		},
	},
	{
		ID:          "points_1k",
		Name:        "Grandmaster",
		Description: "Accumulate 1000 points",
		Points:      200,
		Requirement: func(p *profile.UserProfile, _ time.Time) bool {
			return p.TotalPoints >= 1000
		},
	},
	{
		ID:          "night_owl",
		Name:        "Night Owl",
		Description: "Be active between midnight and 5 AM UTC",
		Points:      30,
		Requirement: func(p *profile.UserProfile, now time.Time) bool {
			return activeInHourWindow(p, now, 0, 5)
		},
	},
	{
		ID:          "early_bird",
		Name:        "Early Bird",
		Description: "Be active between 5 and 7 AM UTC",
		Points:      30,
		Requirement: func(p *profile.UserProfile, now time.Time) bool {
			return activeInHourWindow(p, now, 5, 7)
		},
	},
}

// Catalog returns the static achievement definitions.
func Catalog() []Definition {
	out := make([]Definition, len(catalog))
	copy(out, catalog)
	return out
}

// ByID looks up a definition by ID.
func ByID(id string) (Definition, bool) {
	for _, d := range catalog {
		if d.ID == id {
			return d, true
		}
	}
	return Definition{}, false
}

// activeInHourWindow reports whether the user's last activity falls inside
// [fromHour, toHour) UTC and is recent enough to count as current behavior.
// The half-hour recency bound keeps the periodic sweep from granting
// time-window achievements off stale timestamps.
func activeInHourWindow(p *profile.UserProfile, now time.Time, fromHour, toHour int) bool {
	if p.LastActiveAt.IsZero() {
		return false
	}
	if now.Sub(p.LastActiveAt) > 30*time.Minute {
		return false
	}
	h := p.LastActiveAt.UTC().Hour()
	return h >= fromHour && h < toHour
}
