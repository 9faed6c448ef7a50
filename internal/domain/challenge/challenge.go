// Package challenge contains daily challenge templates and per-user daily
// assignments. One challenge exists per (user, UTC calendar date); its
// completed flag is one-way.
package challenge

import (
	"math/rand"
	"time"
)

// ActionKind is the closed set of user actions challenge progress reacts to.
// Routing on this enum replaces the stringly-typed callback dispatch the
// engine grew out of.
type ActionKind string

const (
	ActionPollVote     ActionKind = "poll_vote"
	ActionGameWon      ActionKind = "game_won"
	ActionReferral     ActionKind = "referral"
	ActionPointsEarned ActionKind = "points_earned"
)

// Known reports whether k is one of the defined action kinds.
func (k ActionKind) Known() bool {
	switch k {
	case ActionPollVote, ActionGameWon, ActionReferral, ActionPointsEarned:
		return true
	}
	return false
}

// Template describes one challenge from the daily pool.
type Template struct {
	ID       string
	Category string
	Title    string
	Action   ActionKind

	// Target is the progress needed to complete the challenge.
	Target int64

	// Reward is the points paid out exactly once on completion.
	Reward int64
}

// CategoryDaily is the pool daily assignments are drawn from.
const CategoryDaily = "daily"

// dailyPool is the static template table for daily challenges.
var dailyPool = []Template{
	{ID: "vote_3", Category: CategoryDaily, Title: "Cast 3 poll votes", Action: ActionPollVote, Target: 3, Reward: 30},
	{ID: "vote_1", Category: CategoryDaily, Title: "Vote in a poll", Action: ActionPollVote, Target: 1, Reward: 10},
	{ID: "win_2", Category: CategoryDaily, Title: "Win 2 mini-games", Action: ActionGameWon, Target: 2, Reward: 40},
	{ID: "win_1", Category: CategoryDaily, Title: "Win a mini-game", Action: ActionGameWon, Target: 1, Reward: 15},
	{ID: "refer_1", Category: CategoryDaily, Title: "Bring in a friend", Action: ActionReferral, Target: 1, Reward: 50},
	{ID: "earn_50", Category: CategoryDaily, Title: "Earn 50 points", Action: ActionPointsEarned, Target: 50, Reward: 25},
}

// DailyPool returns the daily challenge templates.
func DailyPool() []Template {
	out := make([]Template, len(dailyPool))
	copy(out, dailyPool)
	return out
}

// TemplateByID looks up a template.
func TemplateByID(id string) (Template, bool) {
	for _, t := range dailyPool {
		if t.ID == id {
			return t, true
		}
	}
	return Template{}, false
}

// PickDaily selects a random template from the daily pool.
func PickDaily(rng *rand.Rand) Template {
	return dailyPool[rng.Intn(len(dailyPool))]
}

// Daily is one user's challenge assignment for one calendar date.
type Daily struct {
	UserID     string     `json:"user_id"`
	Date       string     `json:"date"` // UTC calendar date, "2006-01-02"
	TemplateID string     `json:"template_id"`
	Action     ActionKind `json:"action"`
	Title      string     `json:"title"`
	Progress   int64      `json:"progress"`
	Target     int64      `json:"target"`
	Reward     int64      `json:"reward"`
	Completed  bool       `json:"completed"`
	AssignedAt time.Time  `json:"assigned_at"`
}

// NewDaily creates the day's assignment from a template.
func NewDaily(userID, date string, tpl Template) Daily {
	return Daily{
		UserID:     userID,
		Date:       date,
		TemplateID: tpl.ID,
		Action:     tpl.Action,
		Title:      tpl.Title,
		Target:     tpl.Target,
		Reward:     tpl.Reward,
		AssignedAt: time.Now().UTC(),
	}
}

// Matches reports whether an action contributes to this challenge.
func (d *Daily) Matches(action ActionKind) bool {
	return !d.Completed && d.Action == action
}

// Advance adds increment to progress and reports whether the target was
// reached by this call. Progress past the target is clamped.
func (d *Daily) Advance(increment int64) bool {
	if d.Completed || increment <= 0 {
		return false
	}
	d.Progress += increment
	if d.Progress >= d.Target {
		d.Progress = d.Target
		d.Completed = true
		return true
	}
	return false
}
