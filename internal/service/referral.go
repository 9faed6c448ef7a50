package service

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/engagehub/engagement-core/internal/domain/points"
	"github.com/engagehub/engagement-core/internal/domain/profile"
	"github.com/engagehub/engagement-core/internal/domain/referral"
	"github.com/engagehub/engagement-core/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// REFERRAL TRACKER
// ══════════════════════════════════════════════════════════════════════════════

// ReferralTracker issues invite codes and settles redemptions. A code is
// consumed by its first valid redemption; each user may also redeem one
// code ever, enforced by the redeemed-by relationship's uniqueness.
type ReferralTracker struct {
	store    shared.KeyValueStore
	profiles *Profiles
	ledger   *PointsLedger
	bus      shared.EventPublisher
	logger   *slog.Logger
}

// NewReferralTracker creates the referral service.
func NewReferralTracker(
	store shared.KeyValueStore,
	profiles *Profiles,
	ledger *PointsLedger,
	bus shared.EventPublisher,
	logger *slog.Logger,
) *ReferralTracker {
	return &ReferralTracker{
		store:    store,
		profiles: profiles,
		ledger:   ledger,
		bus:      bus,
		logger:   logger,
	}
}

// IssueCode issues a new invite code for the user, valid for 30 days. A user
// may hold several live codes; each redeems independently.
func (s *ReferralTracker) IssueCode(ctx context.Context, userID string) (referral.Code, error) {
	if err := s.profiles.Ensure(ctx, userID); err != nil {
		return referral.Code{}, err
	}

	code := referral.NewCode(userID, referral.DefaultCodeTTL)
	data, err := json.Marshal(code)
	if err != nil {
		return referral.Code{}, shared.WrapError("referral", "IssueCode", shared.ErrInvalidInput, "encode code", err)
	}
	if err := s.store.Set(ctx, keyReferralCode(code.Code), data, referral.DefaultCodeTTL); err != nil {
		return referral.Code{}, shared.WrapError("referral", "IssueCode", shared.ErrStoreUnavailable, "store code", err)
	}

	s.logger.Info("referral code issued", "user_id", userID, "code", code.Code)
	return code, nil
}

// Redeem settles a redemption of code by newUserID.
//
// Two test-and-sets guard the two uniqueness rules: set-if-not-exists on
// the relationship key rejects a user who was already referred, and
// compare-and-swap on the code document consumes the code for exactly one
// redeemer. Losing the swap rolls the relationship back so the loser is
// free to redeem a different code. Bonuses are paid only after both wins.
func (s *ReferralTracker) Redeem(ctx context.Context, code, newUserID string) (referral.Relationship, error) {
	var rel referral.Relationship

	now := time.Now().UTC()
	data, err := s.store.Get(ctx, keyReferralCode(code))
	if err != nil {
		if shared.IsNotFound(err) {
			return rel, shared.ErrCodeNotFound
		}
		return rel, shared.WrapError("referral", "Redeem", shared.ErrStoreUnavailable, "load code", err)
	}

	var c referral.Code
	if err := json.Unmarshal(data, &c); err != nil {
		return rel, shared.WrapError("referral", "Redeem", shared.ErrInvalidState, "decode code", err)
	}
	if c.Redeemed() {
		return rel, shared.ErrCodeRedeemed
	}
	remaining := time.Until(c.ExpiresAt)
	if c.Expired(now) || remaining <= 0 {
		return rel, shared.ErrCodeExpired
	}
	if c.IssuerUserID == newUserID {
		return rel, shared.ErrSelfReferral
	}

	rel = referral.NewRelationship(newUserID, c.IssuerUserID, c.Code)
	relData, err := json.Marshal(rel)
	if err != nil {
		return referral.Relationship{}, shared.WrapError("referral", "Redeem", shared.ErrInvalidInput, "encode relationship", err)
	}
	won, err := s.store.SetNX(ctx, keyReferralRel(newUserID), relData, 0)
	if err != nil {
		return referral.Relationship{}, shared.WrapError("referral", "Redeem", shared.ErrStoreUnavailable, "create relationship", err)
	}
	if !won {
		return referral.Relationship{}, shared.ErrAlreadyReferred
	}

	consumedData, err := json.Marshal(c.Consume(newUserID, now))
	if err != nil {
		return referral.Relationship{}, shared.WrapError("referral", "Redeem", shared.ErrInvalidInput, "encode consumed code", err)
	}
	swapped, err := s.store.CompareAndSwap(ctx, keyReferralCode(code), data, consumedData, remaining)
	if err != nil {
		s.rollbackRelationship(ctx, newUserID)
		return referral.Relationship{}, shared.WrapError("referral", "Redeem", shared.ErrStoreUnavailable, "consume code", err)
	}
	if !swapped {
		// A concurrent redeemer consumed the code between our load and the
		// swap. Undo the relationship so this user can still redeem another
		// code.
		s.rollbackRelationship(ctx, newUserID)
		return referral.Relationship{}, shared.ErrCodeRedeemed
	}

	if _, err := s.ledger.Award(ctx, c.IssuerUserID, referral.ReferrerBonus, points.ReasonReferralBonus); err != nil {
		s.logger.Error("referrer bonus failed",
			"referrer_id", c.IssuerUserID, "referred_id", newUserID, "error", err)
	}
	if _, err := s.ledger.Award(ctx, newUserID, referral.ReferredBonus, points.ReasonReferredWelcome); err != nil {
		s.logger.Error("referred welcome bonus failed",
			"referred_id", newUserID, "error", err)
	}
	if _, err := s.profiles.IncrementCounter(ctx, c.IssuerUserID, profile.FieldReferralsMade, 1); err != nil {
		s.logger.Warn("referrals counter update failed",
			"referrer_id", c.IssuerUserID, "error", err)
	}

	if err := s.bus.Publish(shared.NewReferralRedeemedEvent(c.IssuerUserID, newUserID, c.Code)); err != nil {
		s.logger.Warn("publish referral redeemed failed", "referrer_id", c.IssuerUserID, "error", err)
	}

	s.logger.Info("referral redeemed",
		"referrer_id", c.IssuerUserID, "referred_id", newUserID, "code", c.Code)
	return rel, nil
}

func (s *ReferralTracker) rollbackRelationship(ctx context.Context, userID string) {
	if err := s.store.Delete(ctx, keyReferralRel(userID)); err != nil {
		s.logger.Error("relationship rollback failed", "user_id", userID, "error", err)
	}
}

// ReferredBy returns who referred userID, if anyone.
func (s *ReferralTracker) ReferredBy(ctx context.Context, userID string) (referral.Relationship, bool, error) {
	var rel referral.Relationship
	data, err := s.store.Get(ctx, keyReferralRel(userID))
	if err != nil {
		if shared.IsNotFound(err) {
			return rel, false, nil
		}
		return rel, false, shared.WrapError("referral", "ReferredBy", shared.ErrStoreUnavailable, "load relationship", err)
	}
	if err := json.Unmarshal(data, &rel); err != nil {
		return rel, false, shared.WrapError("referral", "ReferredBy", shared.ErrInvalidState, "decode relationship", err)
	}
	return rel, true, nil
}
