// Package service contains the engagement engine's application services:
// the points ledger, achievement evaluator, referral tracker, mini-game
// session manager, challenge scheduler, and leaderboard aggregator.
//
// Services are stateless between calls. An explicit KeyValueStore is injected
// into every constructor; all cross-worker synchronization runs through its
// atomic primitives.
package service

// Key layout of the engagement namespace. All services share this schema so
// the cleanup job can reason about retention per prefix.
func keyProfile(userID string) string         { return "profile:" + userID }
func keyTransaction(txID string) string       { return "ledger:tx:" + txID }
func keyLevelGrant(userID, lvl string) string { return "level:grant:" + userID + ":" + lvl }

func keyAchievementGrant(userID, achievementID string) string {
	return "achievement:grant:" + userID + ":" + achievementID
}

func keyReferralCode(code string) string       { return "referral:code:" + code }
func keyReferralRel(referredID string) string  { return "referral:rel:" + referredID }
func keySession(sessionID string) string       { return "game:session:" + sessionID }
func keySessionFound(sessionID string) string  { return "game:session:" + sessionID + ":found" }
func keySessionFoundN(sessionID string) string { return "game:session:" + sessionID + ":foundcount" }

func keyChallenge(userID, date string) string     { return "challenge:" + date + ":" + userID }
func keyChallengeDone(userID, date string) string { return "challenge:done:" + date + ":" + userID }

func keyReminderSent(userID, window string) string {
	return "reminder:sent:" + window + ":" + userID
}

func keyPollWeek(week string) string { return "poll:week:" + week }

const (
	keyUsersAll          = "users:all"
	keyLeaderboardLatest = "leaderboard:latest"
)

func keyUsersActive(date string) string { return "users:active:" + date }
