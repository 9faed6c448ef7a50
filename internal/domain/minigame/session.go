// Package minigame contains the ephemeral game session state machines.
//
// A session moves Created → Active → {Completed | Expired}; terminal states
// are final. Sessions are TTL-bound: expiry is checked lazily on access and
// reaped eagerly by the daily cleanup job.
package minigame

import (
	"math/rand"
	"time"
)

// GameType identifies a mini-game flavor.
type GameType string

const (
	// TargetPractice is a single-guess pick-the-target game.
	TargetPractice GameType = "target_practice"

	// EmojiHunt is a find-all-targets grid game.
	EmojiHunt GameType = "emoji_hunt"
)

// State is the session lifecycle state.
type State string

const (
	StateCreated   State = "created"
	StateActive    State = "active"
	StateCompleted State = "completed"
	StateExpired   State = "expired"
)

// Terminal reports whether the state accepts no further transitions.
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateExpired
}

// Session TTLs per game type.
const (
	TargetPracticeTTL = 60 * time.Second
	EmojiHuntTTL      = 120 * time.Second
)

// GridSize is the emoji-hunt grid cell count (5x5).
const GridSize = 25

// targetSet is the fixed option pool for target practice.
var targetSet = []string{"🎯", "🎪", "🎨", "🎭", "🎲"}

// decoySet fills non-target cells of the emoji-hunt grid.
var decoySet = []string{"🌲", "🌊", "⛰️", "🌵", "🍂", "🌸"}

// huntTargets is the pool an emoji-hunt target is drawn from.
var huntTargets = []string{"🐿️", "🦊", "🦉", "🐞"}

// Session is the persisted state of one mini-game.
type Session struct {
	ID       string   `json:"id"`
	GameType GameType `json:"game_type"`
	UserID   string   `json:"user_id"`
	State    State    `json:"state"`

	StartedAt time.Time     `json:"started_at"`
	TTL       time.Duration `json:"ttl"`

	// Target practice
	Target  string   `json:"target,omitempty"`
	Options []string `json:"options,omitempty"`

	// Emoji hunt
	Grid        []string `json:"grid,omitempty"`
	TargetEmoji string   `json:"target_emoji,omitempty"`
	TargetCount int      `json:"target_count,omitempty"`
	FoundCount  int      `json:"found_count,omitempty"`

	Score       int64      `json:"score"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// NewTargetPractice creates a target-practice session: one correct target
// from the fixed set, display order shuffled.
func NewTargetPractice(id, userID string, rng *rand.Rand) *Session {
	options := make([]string, len(targetSet))
	copy(options, targetSet)
	rng.Shuffle(len(options), func(i, j int) {
		options[i], options[j] = options[j], options[i]
	})

	return &Session{
		ID:        id,
		GameType:  TargetPractice,
		UserID:    userID,
		State:     StateActive,
		StartedAt: time.Now().UTC(),
		TTL:       TargetPracticeTTL,
		Target:    options[rng.Intn(len(options))],
		Options:   options,
	}
}

// NewEmojiHunt creates an emoji-hunt session with a GridSize-cell grid.
// TargetCount is however many target cells the fill produced, forced to at
// least one.
func NewEmojiHunt(id, userID string, rng *rand.Rand) *Session {
	target := huntTargets[rng.Intn(len(huntTargets))]

	grid := make([]string, GridSize)
	count := 0
	for i := range grid {
		// Roughly one target per five cells.
		if rng.Intn(5) == 0 {
			grid[i] = target
			count++
		} else {
			grid[i] = decoySet[rng.Intn(len(decoySet))]
		}
	}
	if count == 0 {
		grid[rng.Intn(GridSize)] = target
		count = 1
	}

	return &Session{
		ID:          id,
		GameType:    EmojiHunt,
		UserID:      userID,
		State:       StateActive,
		StartedAt:   time.Now().UTC(),
		TTL:         EmojiHuntTTL,
		Grid:        grid,
		TargetEmoji: target,
		TargetCount: count,
	}
}

// ExpiresAt returns the wall-clock deadline of the session.
func (s *Session) ExpiresAt() time.Time {
	return s.StartedAt.Add(s.TTL)
}

// ExpiredAt reports whether the session's TTL has elapsed at now.
func (s *Session) ExpiredAt(now time.Time) bool {
	return now.After(s.ExpiresAt())
}

// Elapsed returns how long the session has been running at now.
func (s *Session) Elapsed(now time.Time) time.Duration {
	return now.Sub(s.StartedAt)
}

// ValidOption reports whether guess is one of the displayed options.
func (s *Session) ValidOption(guess string) bool {
	for _, o := range s.Options {
		if o == guess {
			return true
		}
	}
	return false
}

// IsTargetCell reports whether the grid cell at idx holds the target emoji.
func (s *Session) IsTargetCell(idx int) bool {
	return idx >= 0 && idx < len(s.Grid) && s.Grid[idx] == s.TargetEmoji
}

// Complete marks the session resolved with the given score.
// Returns false if the session is already in a terminal state.
func (s *Session) Complete(score int64, now time.Time) bool {
	if s.State.Terminal() {
		return false
	}
	s.State = StateCompleted
	s.Score = score
	t := now.UTC()
	s.CompletedAt = &t
	return true
}

// Expire marks the session expired with score zero.
// Returns false if the session is already in a terminal state.
func (s *Session) Expire(now time.Time) bool {
	if s.State.Terminal() {
		return false
	}
	s.State = StateExpired
	s.Score = 0
	t := now.UTC()
	s.CompletedAt = &t
	return true
}

// TargetPracticeScore computes the score for a correct guess after elapsed
// time: 50 minus a point per second, floored at 10.
func TargetPracticeScore(elapsed time.Duration) int64 {
	score := 50 - int64(elapsed.Seconds())
	if score < 10 {
		return 10
	}
	return score
}

// EmojiHuntScore computes the score for finding all targets after elapsed
// time: 100 minus half a point per second, floored at 20.
func EmojiHuntScore(elapsed time.Duration) int64 {
	score := 100 - int64(elapsed.Seconds())/2
	if score < 20 {
		return 20
	}
	return score
}
