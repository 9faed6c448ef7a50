// Package shared contains common domain types, errors, events, and the
// key-value store contract used across all domain packages.
package shared

import (
	"context"
	"time"
)

// EventType represents the type of domain event.
type EventType string

// Domain event types. Each event represents something significant that
// happened in the engagement core and is consumed by the notification layer.
const (
	// Ledger events
	EventPointsAwarded EventType = "ledger.points_awarded"
	EventLevelUp       EventType = "ledger.level_up"

	// Achievement events
	EventAchievementGranted EventType = "achievement.granted"

	// Referral events
	EventReferralRedeemed EventType = "referral.redeemed"

	// Mini-game events
	EventGameCompleted EventType = "minigame.completed"

	// Challenge events
	EventChallengeAssigned  EventType = "challenge.assigned"
	EventChallengeCompleted EventType = "challenge.completed"

	// Scheduler-originated events
	EventPollScheduled      EventType = "engagement.poll_scheduled"
	EventEngagementReminder EventType = "engagement.reminder"
	EventLeaderboardUpdated EventType = "leaderboard.updated"
)

// Event is the base interface for all domain events.
type Event interface {
	// EventType returns the type of the event.
	EventType() EventType

	// OccurredAt returns when the event occurred.
	OccurredAt() time.Time

	// AggregateID returns the ID of the aggregate that produced this event.
	AggregateID() string

	// Payload returns the event data as a map for serialization.
	Payload() map[string]interface{}
}

// EventHandler processes a published event.
type EventHandler func(ctx context.Context, event Event) error

// EventPublisher publishes domain events to the notification collaborator.
type EventPublisher interface {
	Publish(event Event) error
}

// NopPublisher is an EventPublisher that discards all events.
// Useful for tests and for running jobs without a notification layer.
type NopPublisher struct{}

// Publish implements EventPublisher.
func (NopPublisher) Publish(Event) error { return nil }

// BaseEvent provides common event functionality.
type BaseEvent struct {
	Type        EventType `json:"type"`
	Timestamp   time.Time `json:"timestamp"`
	AggregateId string    `json:"aggregate_id"`
}

// EventType implements Event interface.
func (e BaseEvent) EventType() EventType {
	return e.Type
}

// OccurredAt implements Event interface.
func (e BaseEvent) OccurredAt() time.Time {
	return e.Timestamp
}

// AggregateID implements Event interface.
func (e BaseEvent) AggregateID() string {
	return e.AggregateId
}

// NewBaseEvent creates a new base event.
func NewBaseEvent(eventType EventType, aggregateID string) BaseEvent {
	return BaseEvent{
		Type:        eventType,
		Timestamp:   time.Now().UTC(),
		AggregateId: aggregateID,
	}
}

// PointsAwardedEvent is emitted after every successful point award.
type PointsAwardedEvent struct {
	BaseEvent
	UserID        string `json:"user_id"`
	TransactionID string `json:"transaction_id"`
	Amount        int64  `json:"amount"`
	NewTotal      int64  `json:"new_total"`
	Reason        string `json:"reason"`
}

// Payload implements Event interface.
func (e PointsAwardedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"user_id":        e.UserID,
		"transaction_id": e.TransactionID,
		"amount":         e.Amount,
		"new_total":      e.NewTotal,
		"reason":         e.Reason,
	}
}

// NewPointsAwardedEvent creates a new PointsAwardedEvent.
func NewPointsAwardedEvent(userID, transactionID string, amount, newTotal int64, reason string) PointsAwardedEvent {
	return PointsAwardedEvent{
		BaseEvent:     NewBaseEvent(EventPointsAwarded, userID),
		UserID:        userID,
		TransactionID: transactionID,
		Amount:        amount,
		NewTotal:      newTotal,
		Reason:        reason,
	}
}

// LevelUpEvent is emitted when a user's derived level increases.
type LevelUpEvent struct {
	BaseEvent
	UserID   string   `json:"user_id"`
	NewLevel int      `json:"new_level"`
	Tier     string   `json:"tier"`
	Perks    []string `json:"perks"`
}

// Payload implements Event interface.
func (e LevelUpEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"user_id":   e.UserID,
		"new_level": e.NewLevel,
		"tier":      e.Tier,
		"perks":     e.Perks,
	}
}

// NewLevelUpEvent creates a new LevelUpEvent.
func NewLevelUpEvent(userID string, newLevel int, tier string, perks []string) LevelUpEvent {
	return LevelUpEvent{
		BaseEvent: NewBaseEvent(EventLevelUp, userID),
		UserID:    userID,
		NewLevel:  newLevel,
		Tier:      tier,
		Perks:     perks,
	}
}

// AchievementGrantedEvent is emitted when a one-time achievement unlocks.
type AchievementGrantedEvent struct {
	BaseEvent
	UserID        string `json:"user_id"`
	AchievementID string `json:"achievement_id"`
	Name          string `json:"name"`
	PointsAwarded int64  `json:"points_awarded"`
}

// Payload implements Event interface.
func (e AchievementGrantedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"user_id":        e.UserID,
		"achievement_id": e.AchievementID,
		"name":           e.Name,
		"points_awarded": e.PointsAwarded,
	}
}

// NewAchievementGrantedEvent creates a new AchievementGrantedEvent.
func NewAchievementGrantedEvent(userID, achievementID, name string, points int64) AchievementGrantedEvent {
	return AchievementGrantedEvent{
		BaseEvent:     NewBaseEvent(EventAchievementGranted, userID),
		UserID:        userID,
		AchievementID: achievementID,
		Name:          name,
		PointsAwarded: points,
	}
}

// ReferralRedeemedEvent is emitted on the first valid redemption of a code.
type ReferralRedeemedEvent struct {
	BaseEvent
	ReferrerID string `json:"referrer_id"`
	ReferredID string `json:"referred_id"`
	Code       string `json:"code"`
}

// Payload implements Event interface.
func (e ReferralRedeemedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"referrer_id": e.ReferrerID,
		"referred_id": e.ReferredID,
		"code":        e.Code,
	}
}

// NewReferralRedeemedEvent creates a new ReferralRedeemedEvent.
func NewReferralRedeemedEvent(referrerID, referredID, code string) ReferralRedeemedEvent {
	return ReferralRedeemedEvent{
		BaseEvent:  NewBaseEvent(EventReferralRedeemed, referredID),
		ReferrerID: referrerID,
		ReferredID: referredID,
		Code:       code,
	}
}

// GameCompletedEvent is emitted when a mini-game session resolves.
type GameCompletedEvent struct {
	BaseEvent
	UserID    string `json:"user_id"`
	SessionID string `json:"session_id"`
	GameType  string `json:"game_type"`
	Score     int64  `json:"score"`
	Won       bool   `json:"won"`
}

// Payload implements Event interface.
func (e GameCompletedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"user_id":    e.UserID,
		"session_id": e.SessionID,
		"game_type":  e.GameType,
		"score":      e.Score,
		"won":        e.Won,
	}
}

// NewGameCompletedEvent creates a new GameCompletedEvent.
func NewGameCompletedEvent(userID, sessionID, gameType string, score int64, won bool) GameCompletedEvent {
	return GameCompletedEvent{
		BaseEvent: NewBaseEvent(EventGameCompleted, sessionID),
		UserID:    userID,
		SessionID: sessionID,
		GameType:  gameType,
		Score:     score,
		Won:       won,
	}
}

// ChallengeCompletedEvent is emitted when a daily challenge reaches its target.
type ChallengeCompletedEvent struct {
	BaseEvent
	UserID     string `json:"user_id"`
	TemplateID string `json:"template_id"`
	Title      string `json:"title"`
	Date       string `json:"date"`
	Reward     int64  `json:"reward"`
}

// Payload implements Event interface.
func (e ChallengeCompletedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"user_id":     e.UserID,
		"template_id": e.TemplateID,
		"title":       e.Title,
		"date":        e.Date,
		"reward":      e.Reward,
	}
}

// NewChallengeCompletedEvent creates a new ChallengeCompletedEvent.
func NewChallengeCompletedEvent(userID, templateID, title, date string, reward int64) ChallengeCompletedEvent {
	return ChallengeCompletedEvent{
		BaseEvent:  NewBaseEvent(EventChallengeCompleted, userID),
		UserID:     userID,
		TemplateID: templateID,
		Title:      title,
		Date:       date,
		Reward:     reward,
	}
}

// PollScheduledEvent is emitted by the weekly poll job. The notification
// layer turns it into an actual poll message.
type PollScheduledEvent struct {
	BaseEvent
	PollID   string   `json:"poll_id"`
	Question string   `json:"question"`
	Options  []string `json:"options"`
	Week     string   `json:"week"` // ISO week, e.g. "2026-W35"
}

// Payload implements Event interface.
func (e PollScheduledEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"poll_id":  e.PollID,
		"question": e.Question,
		"options":  e.Options,
		"week":     e.Week,
	}
}

// NewPollScheduledEvent creates a new PollScheduledEvent.
func NewPollScheduledEvent(pollID, question string, options []string, week string) PollScheduledEvent {
	return PollScheduledEvent{
		BaseEvent: NewBaseEvent(EventPollScheduled, pollID),
		PollID:    pollID,
		Question:  question,
		Options:   options,
		Week:      week,
	}
}

// EngagementReminderEvent is emitted for users inactive past the threshold.
type EngagementReminderEvent struct {
	BaseEvent
	UserID       string    `json:"user_id"`
	LastActiveAt time.Time `json:"last_active_at"`
	InactiveFor  string    `json:"inactive_for"`
}

// Payload implements Event interface.
func (e EngagementReminderEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"user_id":        e.UserID,
		"last_active_at": e.LastActiveAt.Format(time.RFC3339),
		"inactive_for":   e.InactiveFor,
	}
}

// NewEngagementReminderEvent creates a new EngagementReminderEvent.
func NewEngagementReminderEvent(userID string, lastActiveAt time.Time, inactiveFor time.Duration) EngagementReminderEvent {
	return EngagementReminderEvent{
		BaseEvent:    NewBaseEvent(EventEngagementReminder, userID),
		UserID:       userID,
		LastActiveAt: lastActiveAt,
		InactiveFor:  inactiveFor.String(),
	}
}

// LeaderboardUpdatedEvent is emitted after a snapshot refresh.
type LeaderboardUpdatedEvent struct {
	BaseEvent
	SnapshotID string `json:"snapshot_id"`
	TotalUsers int    `json:"total_users"`
}

// Payload implements Event interface.
func (e LeaderboardUpdatedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"snapshot_id": e.SnapshotID,
		"total_users": e.TotalUsers,
	}
}

// NewLeaderboardUpdatedEvent creates a new LeaderboardUpdatedEvent.
func NewLeaderboardUpdatedEvent(snapshotID string, totalUsers int) LeaderboardUpdatedEvent {
	return LeaderboardUpdatedEvent{
		BaseEvent:  NewBaseEvent(EventLeaderboardUpdated, snapshotID),
		SnapshotID: snapshotID,
		TotalUsers: totalUsers,
	}
}
