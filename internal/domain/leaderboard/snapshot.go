// Package leaderboard contains the cached global ranking model.
// Snapshots are recreated on each scheduled refresh and superseded, never
// mutated in place; reads always hit the latest snapshot, never a live
// recomputation.
package leaderboard

import (
	"sort"
	"time"
)

// Entry is one ranked row of a snapshot.
type Entry struct {
	UserID string `json:"user_id"`
	Points int64  `json:"points"`
	Rank   int    `json:"rank"`
	Level  int    `json:"level"`
}

// Snapshot is a cached global ranking.
type Snapshot struct {
	ID          string    `json:"id"`
	GeneratedAt time.Time `json:"generated_at"`
	Entries     []Entry   `json:"entries"`
}

// Build constructs a snapshot from unranked entries.
//
// Ordering: points descending with a stable tie-break by userID ascending.
// Ranks are dense and 1-based: tied point totals share a rank and the next
// distinct total takes the following rank number, so there are no gaps.
func Build(id string, entries []Entry) *Snapshot {
	ranked := make([]Entry, len(entries))
	copy(ranked, entries)

	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].Points != ranked[j].Points {
			return ranked[i].Points > ranked[j].Points
		}
		return ranked[i].UserID < ranked[j].UserID
	})

	rank := 0
	var prevPoints int64
	for i := range ranked {
		if i == 0 || ranked[i].Points != prevPoints {
			rank++
			prevPoints = ranked[i].Points
		}
		ranked[i].Rank = rank
	}

	return &Snapshot{
		ID:          id,
		GeneratedAt: time.Now().UTC(),
		Entries:     ranked,
	}
}

// Top returns the first n entries of the snapshot.
func (s *Snapshot) Top(n int) []Entry {
	if n <= 0 {
		return nil
	}
	if n > len(s.Entries) {
		n = len(s.Entries)
	}
	out := make([]Entry, n)
	copy(out, s.Entries[:n])
	return out
}

// RankOf returns the rank of a user, or 0 if the user is not in the snapshot.
func (s *Snapshot) RankOf(userID string) int {
	for _, e := range s.Entries {
		if e.UserID == userID {
			return e.Rank
		}
	}
	return 0
}
