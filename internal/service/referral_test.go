package service

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/engagehub/engagement-core/internal/domain/referral"
	"github.com/engagehub/engagement-core/internal/domain/shared"
)

func TestRedeemHappyPath(t *testing.T) {
	eng, _, bus := newTestEngine(t)
	ctx := context.Background()

	code, err := eng.Referrals.IssueCode(ctx, "referrer")
	require.NoError(t, err)
	assert.Contains(t, code.Code, "REF-")

	rel, err := eng.Referrals.Redeem(ctx, code.Code, "newbie")
	require.NoError(t, err)
	assert.Equal(t, "referrer", rel.ReferrerUserID)
	assert.Equal(t, "newbie", rel.ReferredUserID)

	referrerProfile, err := eng.Profiles.Get(ctx, "referrer")
	require.NoError(t, err)
	// +100 bonus plus the one-time first-points achievement bonus.
	assert.Equal(t, int64(110), referrerProfile.TotalPoints)
	assert.Equal(t, int64(1), referrerProfile.ReferralsMade)

	newbieProfile, err := eng.Profiles.Get(ctx, "newbie")
	require.NoError(t, err)
	assert.Equal(t, int64(35), newbieProfile.TotalPoints)

	require.Len(t, bus.ofType(shared.EventReferralRedeemed), 1)

	stored, found, err := eng.Referrals.ReferredBy(ctx, "newbie")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, code.Code, stored.Code)
}

func TestRedeemUnknownCode(t *testing.T) {
	eng, _, _ := newTestEngine(t)

	_, err := eng.Referrals.Redeem(context.Background(), "REF-NOPE", "u1")
	assert.ErrorIs(t, err, shared.ErrCodeNotFound)
}

func TestRedeemExpiredCode(t *testing.T) {
	eng, store, _ := newTestEngine(t)
	ctx := context.Background()

	// A code whose validity window already passed but whose key the store
	// has not reaped yet. Wall-clock expiry must still reject it.
	stale := referral.Code{
		Code:         "REF-STALE00AB",
		IssuerUserID: "referrer",
		IssuedAt:     time.Now().UTC().Add(-31 * 24 * time.Hour),
		ExpiresAt:    time.Now().UTC().Add(-24 * time.Hour),
	}
	data, err := json.Marshal(stale)
	require.NoError(t, err)
	require.NoError(t, store.Set(ctx, keyReferralCode(stale.Code), data, time.Hour))

	_, err = eng.Referrals.Redeem(ctx, stale.Code, "u1")
	assert.ErrorIs(t, err, shared.ErrCodeExpired)
}

func TestRedeemOwnCode(t *testing.T) {
	eng, _, _ := newTestEngine(t)
	ctx := context.Background()

	code, err := eng.Referrals.IssueCode(ctx, "referrer")
	require.NoError(t, err)

	_, err = eng.Referrals.Redeem(ctx, code.Code, "referrer")
	assert.ErrorIs(t, err, shared.ErrSelfReferral)
}

func TestEachUserRedeemsOnlyOnce(t *testing.T) {
	eng, _, _ := newTestEngine(t)
	ctx := context.Background()

	codeA, err := eng.Referrals.IssueCode(ctx, "alice")
	require.NoError(t, err)
	codeB, err := eng.Referrals.IssueCode(ctx, "bob")
	require.NoError(t, err)

	_, err = eng.Referrals.Redeem(ctx, codeA.Code, "newbie")
	require.NoError(t, err)

	// The consumed code is rejected outright; a live code is rejected
	// because the user was already referred.
	_, err = eng.Referrals.Redeem(ctx, codeA.Code, "newbie")
	assert.ErrorIs(t, err, shared.ErrCodeRedeemed)
	_, err = eng.Referrals.Redeem(ctx, codeB.Code, "newbie")
	assert.ErrorIs(t, err, shared.ErrAlreadyReferred)

	p, err := eng.Profiles.Get(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, int64(1), p.ReferralsMade)
}

func TestCodeConsumedOnFirstRedemption(t *testing.T) {
	eng, _, bus := newTestEngine(t)
	ctx := context.Background()

	code, err := eng.Referrals.IssueCode(ctx, "alice")
	require.NoError(t, err)

	_, err = eng.Referrals.Redeem(ctx, code.Code, "bob")
	require.NoError(t, err)

	// A second distinct user is rejected: the code died with bob's
	// redemption.
	_, err = eng.Referrals.Redeem(ctx, code.Code, "carol")
	assert.ErrorIs(t, err, shared.ErrCodeRedeemed)

	// The failed attempt left no relationship behind, so carol can still
	// redeem a live code.
	_, found, err := eng.Referrals.ReferredBy(ctx, "carol")
	require.NoError(t, err)
	assert.False(t, found)

	fresh, err := eng.Referrals.IssueCode(ctx, "dave")
	require.NoError(t, err)
	rel, err := eng.Referrals.Redeem(ctx, fresh.Code, "carol")
	require.NoError(t, err)
	assert.Equal(t, "dave", rel.ReferrerUserID)

	// Only alice's single redemption paid her bonus.
	p, err := eng.Profiles.Get(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, int64(1), p.ReferralsMade)
	require.Len(t, bus.ofType(shared.EventReferralRedeemed), 2)
}
