package service

import (
	"context"
	"encoding/json"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"github.com/engagehub/engagement-core/internal/domain/challenge"
	"github.com/engagehub/engagement-core/internal/domain/points"
	"github.com/engagehub/engagement-core/internal/domain/shared"
	"github.com/engagehub/engagement-core/pkg/timeutil"
)

// challengeDoneTTL keeps the completion guard past midnight so a late retry
// of a completing call cannot double-pay after the challenge key expired.
const challengeDoneTTL = 48 * time.Hour

// ══════════════════════════════════════════════════════════════════════════════
// CHALLENGE SCHEDULER
// ══════════════════════════════════════════════════════════════════════════════

// ChallengeScheduler assigns one daily challenge per (user, UTC date) and
// tracks progress. The completion reward pays out exactly once, guarded by a
// set-if-not-exists completion marker.
type ChallengeScheduler struct {
	store    shared.KeyValueStore
	profiles *Profiles
	ledger   *PointsLedger
	bus      shared.EventPublisher
	logger   *slog.Logger

	mu  sync.Mutex
	rng *rand.Rand
	now func() time.Time
}

// NewChallengeScheduler creates the challenge service.
func NewChallengeScheduler(
	store shared.KeyValueStore,
	profiles *Profiles,
	ledger *PointsLedger,
	bus shared.EventPublisher,
	logger *slog.Logger,
) *ChallengeScheduler {
	return &ChallengeScheduler{
		store:    store,
		profiles: profiles,
		ledger:   ledger,
		bus:      bus,
		logger:   logger,
		rng:      rand.New(rand.NewSource(time.Now().UnixNano())),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// GetDailyChallenge returns the user's challenge for today, creating one from
// a random daily template on first call. Idempotent: concurrent first calls
// race on a set-if-not-exists and the loser returns the winner's instance.
// The assignment expires at end of the UTC day.
func (s *ChallengeScheduler) GetDailyChallenge(ctx context.Context, userID string) (*challenge.Daily, error) {
	if err := s.profiles.Ensure(ctx, userID); err != nil {
		return nil, err
	}

	now := s.now()
	date := timeutil.DayKey(now)
	key := keyChallenge(userID, date)

	if d, _, err := s.loadDaily(ctx, key); err == nil {
		return d, nil
	} else if !shared.IsNotFound(err) {
		return nil, err
	}

	s.mu.Lock()
	tpl := challenge.PickDaily(s.rng)
	s.mu.Unlock()

	d := challenge.NewDaily(userID, date, tpl)
	data, err := json.Marshal(d)
	if err != nil {
		return nil, shared.WrapError("challenge", "GetDailyChallenge", shared.ErrInvalidInput, "encode challenge", err)
	}
	created, err := s.store.SetNX(ctx, key, data, timeutil.UntilEndOfDay(now))
	if err != nil {
		return nil, shared.WrapError("challenge", "GetDailyChallenge", shared.ErrStoreUnavailable, "assign challenge", err)
	}
	if created {
		s.logger.Debug("daily challenge assigned",
			"user_id", userID, "date", date, "template", tpl.ID)
		return &d, nil
	}

	// Lost the race; return the winner's assignment.
	winner, _, err := s.loadDaily(ctx, key)
	if err != nil {
		return nil, err
	}
	return winner, nil
}

// RecordProgress advances today's challenge if its template reacts to action.
// An action the challenge does not track, or progress on an already completed
// challenge, is a no-op returning current state. The call whose increment
// reaches the target wins the completion guard, pays the reward, and emits
// the completion event.
func (s *ChallengeScheduler) RecordProgress(ctx context.Context, userID string, action challenge.ActionKind, increment int64) (*challenge.Daily, error) {
	if !action.Known() {
		return nil, shared.NewDomainError("challenge", "RecordProgress", shared.ErrInvalidInput, "unknown action kind")
	}
	if increment <= 0 {
		return nil, shared.NewDomainError("challenge", "RecordProgress", shared.ErrInvalidInput, "increment must be positive")
	}

	now := s.now()
	date := timeutil.DayKey(now)
	key := keyChallenge(userID, date)

	for attempt := 0; attempt < casAttempts; attempt++ {
		d, raw, err := s.loadDaily(ctx, key)
		if err != nil {
			if shared.IsNotFound(err) {
				return nil, shared.ErrChallengeNotFound
			}
			return nil, err
		}
		if !d.Matches(action) {
			return d, nil
		}

		completed := d.Advance(increment)
		data, err := json.Marshal(d)
		if err != nil {
			return nil, shared.WrapError("challenge", "RecordProgress", shared.ErrInvalidInput, "encode challenge", err)
		}
		swapped, err := s.store.CompareAndSwap(ctx, key, raw, data, timeutil.UntilEndOfDay(now))
		if err != nil {
			return nil, shared.WrapError("challenge", "RecordProgress", shared.ErrStoreUnavailable, "swap challenge", err)
		}
		if !swapped {
			continue
		}

		if completed {
			s.payReward(ctx, d, date)
		}
		return d, nil
	}
	return nil, shared.NewDomainError("challenge", "RecordProgress", shared.ErrConcurrentModification, "challenge contention")
}

// payReward settles a completion exactly once per (user, date).
func (s *ChallengeScheduler) payReward(ctx context.Context, d *challenge.Daily, date string) {
	won, err := s.store.SetNX(ctx, keyChallengeDone(d.UserID, date), []byte("1"), challengeDoneTTL)
	if err != nil {
		s.logger.Error("challenge completion guard failed",
			"user_id", d.UserID, "date", date, "error", err)
		return
	}
	if !won {
		return
	}

	if _, err := s.ledger.Award(ctx, d.UserID, d.Reward, points.ReasonChallengeReward); err != nil {
		s.logger.Error("challenge reward failed",
			"user_id", d.UserID, "template", d.TemplateID, "error", err)
	}
	if err := s.bus.Publish(shared.NewChallengeCompletedEvent(d.UserID, d.TemplateID, d.Title, date, d.Reward)); err != nil {
		s.logger.Warn("publish challenge completed failed", "user_id", d.UserID, "error", err)
	}
	s.logger.Info("challenge completed",
		"user_id", d.UserID, "template", d.TemplateID, "reward", d.Reward)
}

// DistributeDailyChallenges assigns today's challenge to every user active in
// the last 24 hours. Per-user failures are logged and skipped; the batch
// never aborts. Returns how many users received an assignment.
func (s *ChallengeScheduler) DistributeDailyChallenges(ctx context.Context) (int, error) {
	users, err := s.profiles.ActiveUserIDs(ctx, s.now())
	if err != nil {
		return 0, err
	}

	assigned := 0
	for _, userID := range users {
		if _, err := s.GetDailyChallenge(ctx, userID); err != nil {
			s.logger.Warn("challenge distribution skipped user",
				"user_id", userID, "error", err)
			continue
		}
		assigned++
	}

	s.logger.Info("daily challenges distributed",
		"active_users", len(users), "assigned", assigned)
	return assigned, nil
}

func (s *ChallengeScheduler) loadDaily(ctx context.Context, key string) (*challenge.Daily, []byte, error) {
	raw, err := s.store.Get(ctx, key)
	if err != nil {
		if shared.IsNotFound(err) {
			return nil, nil, shared.ErrKeyNotFound
		}
		return nil, nil, shared.WrapError("challenge", "load", shared.ErrStoreUnavailable, "load challenge", err)
	}
	var d challenge.Daily
	if err := json.Unmarshal(raw, &d); err != nil {
		return nil, nil, shared.WrapError("challenge", "load", shared.ErrInvalidState, "decode challenge", err)
	}
	return &d, raw, nil
}
