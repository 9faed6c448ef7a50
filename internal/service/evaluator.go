package service

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/engagehub/engagement-core/internal/domain/achievement"
	"github.com/engagehub/engagement-core/internal/domain/points"
	"github.com/engagehub/engagement-core/internal/domain/profile"
	"github.com/engagehub/engagement-core/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// ACHIEVEMENT EVALUATOR
// ══════════════════════════════════════════════════════════════════════════════

// AchievementEvaluator tests the static catalog against user stats and grants
// newly satisfied achievements at most once each.
type AchievementEvaluator struct {
	store    shared.KeyValueStore
	profiles *Profiles
	ledger   *PointsLedger
	bus      shared.EventPublisher
	logger   *slog.Logger

	// now is swappable for time-window achievement tests.
	now func() time.Time
}

// NewAchievementEvaluator creates the evaluator and binds it to the ledger as
// its post-award achievement pass.
func NewAchievementEvaluator(
	store shared.KeyValueStore,
	profiles *Profiles,
	ledger *PointsLedger,
	bus shared.EventPublisher,
	logger *slog.Logger,
) *AchievementEvaluator {
	ev := &AchievementEvaluator{
		store:    store,
		profiles: profiles,
		ledger:   ledger,
		bus:      bus,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
	ledger.BindEvaluator(ev)
	return ev
}

// Evaluate runs one pass over the catalog for a user and returns the newly
// granted achievements, possibly none. Redundant calls are no-ops: the grant
// marker's set-if-not-exists creation is the idempotency guard, and bonus
// points are awarded through the non-re-entrant ledger path so a pass never
// triggers another pass.
func (s *AchievementEvaluator) Evaluate(ctx context.Context, userID string) ([]achievement.Grant, error) {
	p, err := s.profiles.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	now := s.now()

	var granted []achievement.Grant
	for _, def := range achievement.Catalog() {
		key := keyAchievementGrant(userID, def.ID)

		// Cheap pre-check; the SetNX below is the authoritative guard.
		exists, err := s.store.Exists(ctx, key)
		if err != nil {
			return granted, shared.WrapError("achievement", "Evaluate", shared.ErrStoreUnavailable, "check grant", err)
		}
		if exists || !def.Requirement(p, now) {
			continue
		}

		grant := achievement.NewGrant(def, userID)
		data, err := json.Marshal(grant)
		if err != nil {
			return granted, shared.WrapError("achievement", "Evaluate", shared.ErrInvalidInput, "encode grant", err)
		}
		won, err := s.store.SetNX(ctx, key, data, 0)
		if err != nil {
			return granted, shared.WrapError("achievement", "Evaluate", shared.ErrStoreUnavailable, "create grant", err)
		}
		if !won {
			continue
		}

		if def.Points > 0 {
			if _, err := s.ledger.award(ctx, userID, def.Points, points.ReasonAchievementBonus, false); err != nil {
				s.logger.Error("achievement bonus failed",
					"user_id", userID, "achievement", def.ID, "error", err)
			}
		}
		if _, err := s.profiles.IncrementCounter(ctx, userID, profile.FieldAchievementsCount, 1); err != nil {
			s.logger.Warn("achievement count update failed",
				"user_id", userID, "achievement", def.ID, "error", err)
		}
		if err := s.bus.Publish(shared.NewAchievementGrantedEvent(userID, def.ID, def.Name, def.Points)); err != nil {
			s.logger.Warn("publish achievement granted failed", "user_id", userID, "error", err)
		}

		s.logger.Info("achievement granted",
			"user_id", userID, "achievement", def.ID, "points", def.Points)
		granted = append(granted, grant)
	}
	return granted, nil
}

// Grants returns the user's existing achievement grants.
func (s *AchievementEvaluator) Grants(ctx context.Context, userID string) ([]achievement.Grant, error) {
	var grants []achievement.Grant
	for _, def := range achievement.Catalog() {
		data, err := s.store.Get(ctx, keyAchievementGrant(userID, def.ID))
		if err != nil {
			if shared.IsNotFound(err) {
				continue
			}
			return nil, shared.WrapError("achievement", "Grants", shared.ErrStoreUnavailable, "load grant", err)
		}
		var g achievement.Grant
		if err := json.Unmarshal(data, &g); err != nil {
			return nil, shared.WrapError("achievement", "Grants", shared.ErrInvalidState, "decode grant", err)
		}
		grants = append(grants, g)
	}
	return grants, nil
}
