// Package points contains the immutable point-earning event record.
// The ledger of these transactions is the source of truth for every user's
// total; profile counters are derived aggregates.
package points

import (
	"time"
)

// Well-known award reasons. Free-form reasons are allowed (corrections carry
// an explanatory reason instead of reversing points), but the engine itself
// only emits these.
const (
	ReasonPollVote         = "poll_vote"
	ReasonGameScore        = "game_score"
	ReasonChallengeReward  = "challenge_reward"
	ReasonReferralBonus    = "referral_bonus"
	ReasonReferredWelcome  = "referred_welcome"
	ReasonAchievementBonus = "achievement_bonus"
	ReasonCorrection       = "correction"
)

// Transaction is one immutable point-earning event.
type Transaction struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Amount    int64     `json:"amount"`
	Reason    string    `json:"reason"`
	Timestamp time.Time `json:"timestamp"`
}

// NewTransaction creates a transaction record for an award.
func NewTransaction(id, userID string, amount int64, reason string) Transaction {
	return Transaction{
		ID:        id,
		UserID:    userID,
		Amount:    amount,
		Reason:    reason,
		Timestamp: time.Now().UTC(),
	}
}

// Valid reports whether the transaction can be recorded.
// Awards are strictly positive; there is no deduct operation.
func (t Transaction) Valid() bool {
	return t.ID != "" && t.UserID != "" && t.Amount > 0
}
