package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/engagehub/engagement-core/internal/domain/challenge"
	"github.com/engagehub/engagement-core/internal/domain/minigame"
	"github.com/engagehub/engagement-core/internal/domain/points"
	"github.com/engagehub/engagement-core/internal/domain/profile"
	"github.com/engagehub/engagement-core/internal/domain/referral"
	"github.com/engagehub/engagement-core/internal/domain/shared"
)

// PollVotePoints is the award for one poll vote.
const PollVotePoints = 5

// Engine bundles the engagement services behind one inbound surface for the
// caller layer (a bot or API adapter). It owns nothing itself; each method
// marks activity, forwards to the owning service, and routes challenge
// progress for the action it represents.
type Engine struct {
	Profiles     *Profiles
	Ledger       *PointsLedger
	Achievements *AchievementEvaluator
	Referrals    *ReferralTracker
	Games        *MiniGameSessionManager
	Challenges   *ChallengeScheduler
	Leaderboard  *LeaderboardAggregator
	Notifier     *EngagementNotifier

	logger *slog.Logger
}

// NewEngine wires the full service graph on one store and event bus.
// archive may be nil when no durable transaction archive is configured.
func NewEngine(store shared.KeyValueStore, bus shared.EventPublisher, archive Archiver, logger *slog.Logger) *Engine {
	profiles := NewProfiles(store, logger)
	ledger := NewPointsLedger(store, profiles, bus, archive, logger)
	evaluator := NewAchievementEvaluator(store, profiles, ledger, bus, logger)

	return &Engine{
		Profiles:     profiles,
		Ledger:       ledger,
		Achievements: evaluator,
		Referrals:    NewReferralTracker(store, profiles, ledger, bus, logger),
		Games:        NewMiniGameSessionManager(store, profiles, ledger, bus, logger),
		Challenges:   NewChallengeScheduler(store, profiles, ledger, bus, logger),
		Leaderboard:  NewLeaderboardAggregator(store, profiles, bus, logger),
		Notifier:     NewEngagementNotifier(store, profiles, bus, logger),
		logger:       logger,
	}
}

// VotePoll records one poll vote: activity, the vote counter, the point
// award, and challenge progress for the vote and the points it earned.
func (e *Engine) VotePoll(ctx context.Context, userID string) error {
	if err := e.Profiles.MarkActive(ctx, userID, time.Now()); err != nil {
		return err
	}
	if _, err := e.Profiles.IncrementCounter(ctx, userID, profile.FieldPollsVoted, 1); err != nil {
		return err
	}
	if _, err := e.Ledger.Award(ctx, userID, PollVotePoints, points.ReasonPollVote); err != nil {
		return err
	}
	e.progress(ctx, userID, challenge.ActionPollVote, 1)
	e.progress(ctx, userID, challenge.ActionPointsEarned, PollVotePoints)
	return nil
}

// RedeemReferral settles a redemption and routes the referrer's challenge
// progress. Domain rejections pass through untouched for user-facing
// messaging.
func (e *Engine) RedeemReferral(ctx context.Context, code, newUserID string) (referral.Relationship, error) {
	if err := e.Profiles.MarkActive(ctx, newUserID, time.Now()); err != nil {
		return referral.Relationship{}, err
	}
	rel, err := e.Referrals.Redeem(ctx, code, newUserID)
	if err != nil {
		return rel, err
	}
	e.progress(ctx, rel.ReferrerUserID, challenge.ActionReferral, 1)
	e.progress(ctx, rel.ReferrerUserID, challenge.ActionPointsEarned, referral.ReferrerBonus)
	e.progress(ctx, newUserID, challenge.ActionPointsEarned, referral.ReferredBonus)
	return rel, nil
}

// StartGame creates a session for the user.
func (e *Engine) StartGame(ctx context.Context, userID string, gameType minigame.GameType) (*minigame.Session, error) {
	if err := e.Profiles.MarkActive(ctx, userID, time.Now()); err != nil {
		return nil, err
	}
	return e.Games.CreateSession(ctx, userID, gameType)
}

// Guess resolves a target-practice session and routes win progress.
func (e *Engine) Guess(ctx context.Context, sessionID, guess string) (*minigame.Session, error) {
	sess, err := e.Games.ResolveGuess(ctx, sessionID, guess)
	if err != nil {
		return nil, err
	}
	e.settleGameProgress(ctx, sess)
	return sess, nil
}

// ClickCell forwards an emoji-hunt click and routes win progress when the
// click completed the hunt.
func (e *Engine) ClickCell(ctx context.Context, sessionID string, cell int) (*minigame.Session, error) {
	sess, err := e.Games.ClickCell(ctx, sessionID, cell)
	if err != nil {
		return nil, err
	}
	e.settleGameProgress(ctx, sess)
	return sess, nil
}

func (e *Engine) settleGameProgress(ctx context.Context, sess *minigame.Session) {
	if sess.State != minigame.StateCompleted || sess.Score <= 0 {
		return
	}
	e.progress(ctx, sess.UserID, challenge.ActionGameWon, 1)
	e.progress(ctx, sess.UserID, challenge.ActionPointsEarned, sess.Score)
}

// progress is tolerant: today's challenge may not exist or may not track the
// action, and neither should fail the action that got the user here.
func (e *Engine) progress(ctx context.Context, userID string, action challenge.ActionKind, increment int64) {
	if _, err := e.Challenges.RecordProgress(ctx, userID, action, increment); err != nil {
		if shared.IsNotFound(err) {
			return
		}
		e.logger.Warn("challenge progress failed",
			"user_id", userID, "action", action, "error", err)
	}
}
