package service

import (
	"context"
	"encoding/json"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/engagehub/engagement-core/internal/domain/achievement"
	"github.com/engagehub/engagement-core/internal/domain/points"
	"github.com/engagehub/engagement-core/internal/domain/profile"
	"github.com/engagehub/engagement-core/internal/domain/shared"
)

// DefaultTransactionRetention is how long transaction records stay in the
// store. The durable archive keeps them beyond that.
const DefaultTransactionRetention = 90 * 24 * time.Hour

// Archiver persists transactions to durable storage beyond the store's
// retention window. Archive failures never fail an award.
type Archiver interface {
	Append(ctx context.Context, tx points.Transaction) error
}

// Evaluator is the achievement pass the ledger triggers after an award.
type Evaluator interface {
	Evaluate(ctx context.Context, userID string) ([]achievement.Grant, error)
}

// ══════════════════════════════════════════════════════════════════════════════
// POINTS LEDGER
// ══════════════════════════════════════════════════════════════════════════════

// PointsLedger is the append-only record of point-earning events and the sole
// writer of totalPoints. Awards are strictly positive; corrections are new
// awards with an explanatory reason, never reversals.
type PointsLedger struct {
	store     shared.KeyValueStore
	profiles  *Profiles
	bus       shared.EventPublisher
	archive   Archiver
	evaluator Evaluator
	logger    *slog.Logger
	retention time.Duration
}

// NewPointsLedger creates the ledger. archive may be nil when no durable
// archive is configured. The evaluator is bound after construction since it
// awards its bonuses back through the ledger.
func NewPointsLedger(
	store shared.KeyValueStore,
	profiles *Profiles,
	bus shared.EventPublisher,
	archive Archiver,
	logger *slog.Logger,
) *PointsLedger {
	return &PointsLedger{
		store:     store,
		profiles:  profiles,
		bus:       bus,
		archive:   archive,
		logger:    logger,
		retention: DefaultTransactionRetention,
	}
}

// BindEvaluator attaches the achievement pass triggered after each award.
func (l *PointsLedger) BindEvaluator(ev Evaluator) {
	l.evaluator = ev
}

// Award appends a transaction, atomically adds amount to the user's total,
// and runs level-up detection plus one achievement pass. Returns the
// transaction ID.
//
// Safe under concurrent calls for the same user: the total is an atomic
// increment, so the final aggregate equals the sum of all awarded amounts
// regardless of interleaving.
func (l *PointsLedger) Award(ctx context.Context, userID string, amount int64, reason string) (string, error) {
	return l.award(ctx, userID, amount, reason, true)
}

// award is the non-re-entrant path. The achievement evaluator awards its
// bonuses with evaluate=false, which bounds the Award → Evaluate chain to one
// achievement pass per external award.
func (l *PointsLedger) award(ctx context.Context, userID string, amount int64, reason string, evaluate bool) (string, error) {
	if amount <= 0 {
		return "", shared.ErrInvalidAmount
	}
	if err := l.profiles.Ensure(ctx, userID); err != nil {
		return "", err
	}

	tx := points.NewTransaction(uuid.NewString(), userID, amount, reason)
	data, err := json.Marshal(tx)
	if err != nil {
		return "", shared.WrapError("ledger", "Award", shared.ErrInvalidInput, "encode transaction", err)
	}
	if err := l.store.Set(ctx, keyTransaction(tx.ID), data, l.retention); err != nil {
		return "", shared.WrapError("ledger", "Award", shared.ErrStoreUnavailable, "record transaction", err)
	}

	newTotal, err := l.store.HIncrBy(ctx, keyProfile(userID), profile.FieldTotalPoints, amount)
	if err != nil {
		// Remove the record so the total stays equal to the sum of recorded
		// transactions and a caller-side retry cannot double-record.
		if delErr := l.store.Delete(ctx, keyTransaction(tx.ID)); delErr != nil {
			l.logger.Error("transaction rollback failed", "tx_id", tx.ID, "error", delErr)
		}
		return "", shared.WrapError("ledger", "Award", shared.ErrStoreUnavailable, "increment total", err)
	}

	if l.archive != nil {
		if err := l.archive.Append(ctx, tx); err != nil {
			l.logger.Error("transaction archive failed",
				"tx_id", tx.ID, "user_id", userID, "error", err)
		}
	}
	if _, err := l.store.HIncrBy(ctx, keyProfile(userID), profile.FieldEngagementScore, 1); err != nil {
		l.logger.Warn("engagement score update failed", "user_id", userID, "error", err)
	}

	if err := l.bus.Publish(shared.NewPointsAwardedEvent(userID, tx.ID, amount, newTotal, reason)); err != nil {
		l.logger.Warn("publish points awarded failed", "user_id", userID, "error", err)
	}

	l.checkLevelUp(ctx, userID, newTotal, amount)

	if evaluate && l.evaluator != nil {
		if _, err := l.evaluator.Evaluate(ctx, userID); err != nil {
			l.logger.Error("achievement pass failed", "user_id", userID, "error", err)
		}
	}

	l.logger.Debug("points awarded",
		"user_id", userID, "amount", amount, "reason", reason, "new_total", newTotal)
	return tx.ID, nil
}

// checkLevelUp compares the level before and after this award. Both sides are
// derived from the post-increment total, so concurrent awards each see a
// consistent before/after pair without reading the stored level. The crossing
// award wins the one-time grant marker and emits the event.
func (l *PointsLedger) checkLevelUp(ctx context.Context, userID string, newTotal, amount int64) {
	prevLevel := profile.Level(newTotal - amount)
	newLevel := profile.Level(newTotal)
	if newLevel <= prevLevel {
		return
	}

	for lvl := prevLevel + 1; lvl <= newLevel; lvl++ {
		won, err := l.store.SetNX(ctx, keyLevelGrant(userID, strconv.Itoa(lvl)), []byte("1"), 0)
		if err != nil {
			l.logger.Error("level grant failed", "user_id", userID, "level", lvl, "error", err)
			return
		}
		if !won {
			continue
		}

		tier := profile.TierByLevel(lvl)
		if err := l.profiles.SetLevel(ctx, userID, lvl); err != nil {
			l.logger.Error("level write failed", "user_id", userID, "level", lvl, "error", err)
		}
		if err := l.bus.Publish(shared.NewLevelUpEvent(userID, lvl, tier.Name, tier.Perks)); err != nil {
			l.logger.Warn("publish level up failed", "user_id", userID, "error", err)
		}
		l.logger.Info("level up", "user_id", userID, "level", lvl, "tier", tier.Name)
	}
}

// Transaction loads a recorded transaction by ID.
func (l *PointsLedger) Transaction(ctx context.Context, txID string) (points.Transaction, error) {
	var tx points.Transaction
	data, err := l.store.Get(ctx, keyTransaction(txID))
	if err != nil {
		if shared.IsNotFound(err) {
			return tx, shared.NewDomainError("ledger", "Transaction", shared.ErrNotFound, "transaction not found")
		}
		return tx, shared.WrapError("ledger", "Transaction", shared.ErrStoreUnavailable, "load transaction", err)
	}
	if err := json.Unmarshal(data, &tx); err != nil {
		return tx, shared.WrapError("ledger", "Transaction", shared.ErrInvalidState, "decode transaction", err)
	}
	return tx, nil
}
