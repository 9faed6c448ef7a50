package service

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/engagehub/engagement-core/internal/domain/leaderboard"
	"github.com/engagehub/engagement-core/internal/domain/profile"
	"github.com/engagehub/engagement-core/internal/domain/shared"
)

// SnapshotTTL bounds how stale a served leaderboard can be. A snapshot past
// its TTL reads as missing rather than being recomputed live.
const SnapshotTTL = time.Hour

// ══════════════════════════════════════════════════════════════════════════════
// LEADERBOARD AGGREGATOR
// ══════════════════════════════════════════════════════════════════════════════

// LeaderboardAggregator builds and serves the cached global ranking. Reads
// always hit the latest snapshot; ranking is only computed on Refresh, which
// the hourly job drives.
type LeaderboardAggregator struct {
	store    shared.KeyValueStore
	profiles *Profiles
	bus      shared.EventPublisher
	logger   *slog.Logger
}

// NewLeaderboardAggregator creates the aggregator.
func NewLeaderboardAggregator(
	store shared.KeyValueStore,
	profiles *Profiles,
	bus shared.EventPublisher,
	logger *slog.Logger,
) *LeaderboardAggregator {
	return &LeaderboardAggregator{
		store:    store,
		profiles: profiles,
		bus:      bus,
		logger:   logger,
	}
}

// Refresh reads every user's total, ranks them, and replaces the stored
// snapshot. Per-user load failures are logged and skipped so one bad profile
// never sinks the refresh.
func (s *LeaderboardAggregator) Refresh(ctx context.Context) (*leaderboard.Snapshot, error) {
	ids, err := s.profiles.AllUserIDs(ctx)
	if err != nil {
		return nil, err
	}

	entries := make([]leaderboard.Entry, 0, len(ids))
	for _, userID := range ids {
		p, err := s.profiles.Get(ctx, userID)
		if err != nil {
			s.logger.Warn("refresh skipped user", "user_id", userID, "error", err)
			continue
		}
		entries = append(entries, leaderboard.Entry{
			UserID: userID,
			Points: p.TotalPoints,
			Level:  profile.Level(p.TotalPoints),
		})
	}

	snap := leaderboard.Build(uuid.NewString(), entries)
	data, err := json.Marshal(snap)
	if err != nil {
		return nil, shared.WrapError("leaderboard", "Refresh", shared.ErrInvalidInput, "encode snapshot", err)
	}
	if err := s.store.Set(ctx, keyLeaderboardLatest, data, SnapshotTTL); err != nil {
		return nil, shared.WrapError("leaderboard", "Refresh", shared.ErrStoreUnavailable, "store snapshot", err)
	}

	if err := s.bus.Publish(shared.NewLeaderboardUpdatedEvent(snap.ID, len(snap.Entries))); err != nil {
		s.logger.Warn("publish leaderboard updated failed", "error", err)
	}
	s.logger.Info("leaderboard refreshed", "snapshot_id", snap.ID, "entries", len(snap.Entries))
	return snap, nil
}

// GetTopN returns the first n rows of the latest snapshot. Never computes
// live; with no live snapshot it fails with SnapshotNotFound.
func (s *LeaderboardAggregator) GetTopN(ctx context.Context, n int) ([]leaderboard.Entry, error) {
	snap, err := s.latest(ctx)
	if err != nil {
		return nil, err
	}
	return snap.Top(n), nil
}

// RankOf returns a user's rank in the latest snapshot, or 0 if absent.
func (s *LeaderboardAggregator) RankOf(ctx context.Context, userID string) (int, error) {
	snap, err := s.latest(ctx)
	if err != nil {
		return 0, err
	}
	return snap.RankOf(userID), nil
}

func (s *LeaderboardAggregator) latest(ctx context.Context) (*leaderboard.Snapshot, error) {
	data, err := s.store.Get(ctx, keyLeaderboardLatest)
	if err != nil {
		if shared.IsNotFound(err) {
			return nil, shared.ErrSnapshotNotFound
		}
		return nil, shared.WrapError("leaderboard", "GetTopN", shared.ErrStoreUnavailable, "load snapshot", err)
	}
	var snap leaderboard.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, shared.WrapError("leaderboard", "GetTopN", shared.ErrInvalidState, "decode snapshot", err)
	}
	return &snap, nil
}
