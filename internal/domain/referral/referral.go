// Package referral contains referral codes and the redeemed-by record.
//
// A code may be shared publicly and attempted many times, but the first
// valid redemption consumes it. Each user may also redeem one code ever,
// enforced by the relationship's uniqueness per referred user.
package referral

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Point bonuses paid out on a successful redemption.
const (
	ReferrerBonus = 100
	ReferredBonus = 25
)

// DefaultCodeTTL is how long an issued code stays redeemable.
const DefaultCodeTTL = 30 * 24 * time.Hour

// Code is an issued invite token. The first valid redemption marks it
// consumed; the marked document stays in the store until its original
// expiry so later attempts are rejected rather than treated as unknown.
type Code struct {
	Code         string    `json:"code"`
	IssuerUserID string    `json:"issuer_user_id"`
	IssuedAt     time.Time `json:"issued_at"`
	ExpiresAt    time.Time `json:"expires_at"`
	RedeemedBy   string    `json:"redeemed_by,omitempty"`
	RedeemedAt   time.Time `json:"redeemed_at,omitempty"`
}

// NewCode issues a code for a user with the given validity window.
func NewCode(issuerUserID string, ttl time.Duration) Code {
	now := time.Now().UTC()
	return Code{
		Code:         generateCode(),
		IssuerUserID: issuerUserID,
		IssuedAt:     now,
		ExpiresAt:    now.Add(ttl),
	}
}

// Redeemed reports whether the code has already been consumed.
func (c Code) Redeemed() bool {
	return c.RedeemedBy != ""
}

// Consume returns a copy of the code marked as redeemed by the given user.
func (c Code) Consume(redeemedBy string, now time.Time) Code {
	c.RedeemedBy = redeemedBy
	c.RedeemedAt = now
	return c
}

// Expired reports whether the code is past its validity window.
// Expiry is also enforced lazily by the store TTL; this check covers the
// window between wall clocks.
func (c Code) Expired(now time.Time) bool {
	return now.After(c.ExpiresAt)
}

// Relationship records who referred a user. At most one exists per referred
// user, created exactly once via set-if-not-exists.
type Relationship struct {
	ReferredUserID string    `json:"referred_user_id"`
	ReferrerUserID string    `json:"referrer_user_id"`
	Code           string    `json:"code"`
	RedeemedAt     time.Time `json:"redeemed_at"`
}

// NewRelationship creates the redeemed-by record.
func NewRelationship(referredUserID, referrerUserID, code string) Relationship {
	return Relationship{
		ReferredUserID: referredUserID,
		ReferrerUserID: referrerUserID,
		Code:           code,
		RedeemedAt:     time.Now().UTC(),
	}
}

// generateCode derives a short shareable token. Uppercase without hyphens so
// it survives being typed from a phone.
func generateCode() string {
	raw := strings.ReplaceAll(uuid.New().String(), "-", "")
	return "REF-" + strings.ToUpper(raw[:10])
}
