// Package shared contains common domain types, errors, events, and value objects
// that are used across all domain packages.
package shared

import (
	"encoding/json"
	"time"
)

// EventType represents the type of domain event.
type EventType string

// Domain event types - these drive the event-driven architecture.
// Each event represents something significant that happened in the domain.
const (
	// Progression events
	EventUserRegistered EventType = "progression.user_registered"
	EventXPGained       EventType = "progression.xp_gained"
	EventLevelUp        EventType = "progression.level_up"
	EventLoginRecorded  EventType = "progression.login_recorded"
	EventStreakBroken   EventType = "progression.streak_broken"

	// Mission events
	EventMissionCompleted EventType = "mission.completed"
	EventProofSubmitted   EventType = "mission.proof_submitted"
	EventProofRejected    EventType = "mission.proof_rejected"
	EventPeriodRolledOver EventType = "mission.period_rolled_over"

	// Setup events
	EventSetupScored  EventType = "setup.scored"
	EventTierChanged  EventType = "setup.tier_changed"
	EventSetupUpdated EventType = "setup.updated"

	// Achievement events
	EventAchievementUnlocked EventType = "achievement.unlocked"

	// Leaderboard events
	EventLeaderboardRebuilt EventType = "leaderboard.rebuilt"
	EventRankChanged        EventType = "leaderboard.rank_changed"
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

// BaseEvent provides common event functionality.
type BaseEvent struct {
	Type          EventType `json:"type"`
	Timestamp     time.Time `json:"timestamp"`
	AggregateId   string    `json:"aggregate_id"`
	Version       int       `json:"version"`
	CorrelationID string    `json:"correlation_id,omitempty"`
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
		Timestamp:   time.Now(),
		AggregateId: aggregateID,
		Version:     1,
	}
}

// WithCorrelationID sets the correlation ID for tracing.
func (e BaseEvent) WithCorrelationID(id string) BaseEvent {
	e.CorrelationID = id
	return e
}

// ═══════════════════════════════════════════════════════════════════════════
// Progression Events
// ═══════════════════════════════════════════════════════════════════════════

// UserRegisteredEvent is emitted when a user enters the progression system
// for the first time.
type UserRegisteredEvent struct {
	BaseEvent
	UserID      string `json:"user_id"`
	DisplayName string `json:"display_name"`
}

// Payload implements Event interface.
func (e UserRegisteredEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"user_id":      e.UserID,
		"display_name": e.DisplayName,
	}
}

// NewUserRegisteredEvent creates a new UserRegisteredEvent.
func NewUserRegisteredEvent(userID, displayName string) UserRegisteredEvent {
	return UserRegisteredEvent{
		BaseEvent:   NewBaseEvent(EventUserRegistered, userID),
		UserID:      userID,
		DisplayName: displayName,
	}
}

// XPGainedEvent is emitted when a user gains XP.
type XPGainedEvent struct {
	BaseEvent
	UserID      string `json:"user_id"`
	Amount      int    `json:"amount"`
	TotalPoints int    `json:"total_points"`
	Source      string `json:"source"` // e.g., "mission", "achievement_bonus"
	SourceID    string `json:"source_id,omitempty"`
}

// Payload implements Event interface.
func (e XPGainedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"user_id":      e.UserID,
		"amount":       e.Amount,
		"total_points": e.TotalPoints,
		"source":       e.Source,
		"source_id":    e.SourceID,
	}
}

// NewXPGainedEvent creates a new XPGainedEvent.
func NewXPGainedEvent(userID string, amount, totalPoints int, source, sourceID string) XPGainedEvent {
	return XPGainedEvent{
		BaseEvent:   NewBaseEvent(EventXPGained, userID),
		UserID:      userID,
		Amount:      amount,
		TotalPoints: totalPoints,
		Source:      source,
		SourceID:    sourceID,
	}
}

// LevelUpEvent is emitted when applying XP carries a user over one or more
// level thresholds.
type LevelUpEvent struct {
	BaseEvent
	UserID   string `json:"user_id"`
	OldLevel int    `json:"old_level"`
	NewLevel int    `json:"new_level"`
	LevelUps int    `json:"level_ups"`
}

// Payload implements Event interface.
func (e LevelUpEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"user_id":   e.UserID,
		"old_level": e.OldLevel,
		"new_level": e.NewLevel,
		"level_ups": e.LevelUps,
	}
}

// NewLevelUpEvent creates a new LevelUpEvent.
func NewLevelUpEvent(userID string, oldLevel, newLevel int) LevelUpEvent {
	return LevelUpEvent{
		BaseEvent: NewBaseEvent(EventLevelUp, userID),
		UserID:    userID,
		OldLevel:  oldLevel,
		NewLevel:  newLevel,
		LevelUps:  newLevel - oldLevel,
	}
}

// LoginRecordedEvent is emitted when a user's daily login is recorded.
type LoginRecordedEvent struct {
	BaseEvent
	UserID        string `json:"user_id"`
	CurrentStreak int    `json:"current_streak"`
}

// Payload implements Event interface.
func (e LoginRecordedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"user_id":        e.UserID,
		"current_streak": e.CurrentStreak,
	}
}

// NewLoginRecordedEvent creates a new LoginRecordedEvent.
func NewLoginRecordedEvent(userID string, currentStreak int) LoginRecordedEvent {
	return LoginRecordedEvent{
		BaseEvent:     NewBaseEvent(EventLoginRecorded, userID),
		UserID:        userID,
		CurrentStreak: currentStreak,
	}
}

// StreakBrokenEvent is emitted when a login streak is broken.
type StreakBrokenEvent struct {
	BaseEvent
	UserID         string `json:"user_id"`
	PreviousStreak int    `json:"previous_streak"`
	DaysMissed     int    `json:"days_missed"`
}

// Payload implements Event interface.
func (e StreakBrokenEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"user_id":         e.UserID,
		"previous_streak": e.PreviousStreak,
		"days_missed":     e.DaysMissed,
	}
}

// NewStreakBrokenEvent creates a new StreakBrokenEvent.
func NewStreakBrokenEvent(userID string, previousStreak, daysMissed int) StreakBrokenEvent {
	return StreakBrokenEvent{
		BaseEvent:      NewBaseEvent(EventStreakBroken, userID),
		UserID:         userID,
		PreviousStreak: previousStreak,
		DaysMissed:     daysMissed,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Mission Events
// ═══════════════════════════════════════════════════════════════════════════

// MissionCompletedEvent is emitted when a user completes a mission.
type MissionCompletedEvent struct {
	BaseEvent
	UserID      string    `json:"user_id"`
	MissionID   string    `json:"mission_id"`
	XPReward    int       `json:"xp_reward"`
	Period      string    `json:"period"`
	PeriodStart time.Time `json:"period_start"`
}

// Payload implements Event interface.
func (e MissionCompletedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"user_id":      e.UserID,
		"mission_id":   e.MissionID,
		"xp_reward":    e.XPReward,
		"period":       e.Period,
		"period_start": e.PeriodStart.Format(time.RFC3339),
	}
}

// NewMissionCompletedEvent creates a new MissionCompletedEvent.
func NewMissionCompletedEvent(userID, missionID string, xpReward int, period string, periodStart time.Time) MissionCompletedEvent {
	return MissionCompletedEvent{
		BaseEvent:   NewBaseEvent(EventMissionCompleted, userID),
		UserID:      userID,
		MissionID:   missionID,
		XPReward:    xpReward,
		Period:      period,
		PeriodStart: periodStart,
	}
}

// ProofSubmittedEvent is emitted when a user submits proof for a weekly mission.
type ProofSubmittedEvent struct {
	BaseEvent
	UserID    string `json:"user_id"`
	MissionID string `json:"mission_id"`
	Accepted  bool   `json:"accepted"`
}

// Payload implements Event interface.
func (e ProofSubmittedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"user_id":    e.UserID,
		"mission_id": e.MissionID,
		"accepted":   e.Accepted,
	}
}

// NewProofSubmittedEvent creates a new ProofSubmittedEvent.
func NewProofSubmittedEvent(userID, missionID string, accepted bool) ProofSubmittedEvent {
	eventType := EventProofSubmitted
	if !accepted {
		eventType = EventProofRejected
	}
	return ProofSubmittedEvent{
		BaseEvent: NewBaseEvent(eventType, userID),
		UserID:    userID,
		MissionID: missionID,
		Accepted:  accepted,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Setup Events
// ═══════════════════════════════════════════════════════════════════════════

// SetupScoredEvent is emitted when a setup profile is saved and scored.
type SetupScoredEvent struct {
	BaseEvent
	UserID   string `json:"user_id"`
	OldScore int    `json:"old_score"`
	NewScore int    `json:"new_score"`
	Tier     string `json:"tier"`
}

// Payload implements Event interface.
func (e SetupScoredEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"user_id":   e.UserID,
		"old_score": e.OldScore,
		"new_score": e.NewScore,
		"tier":      e.Tier,
	}
}

// NewSetupScoredEvent creates a new SetupScoredEvent.
func NewSetupScoredEvent(userID string, oldScore, newScore int, tier string) SetupScoredEvent {
	return SetupScoredEvent{
		BaseEvent: NewBaseEvent(EventSetupScored, userID),
		UserID:    userID,
		OldScore:  oldScore,
		NewScore:  newScore,
		Tier:      tier,
	}
}

// TierChangedEvent is emitted when a new setup score crosses a tier boundary.
type TierChangedEvent struct {
	BaseEvent
	UserID  string `json:"user_id"`
	OldTier string `json:"old_tier"`
	NewTier string `json:"new_tier"`
}

// Payload implements Event interface.
func (e TierChangedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"user_id":  e.UserID,
		"old_tier": e.OldTier,
		"new_tier": e.NewTier,
	}
}

// NewTierChangedEvent creates a new TierChangedEvent.
func NewTierChangedEvent(userID, oldTier, newTier string) TierChangedEvent {
	return TierChangedEvent{
		BaseEvent: NewBaseEvent(EventTierChanged, userID),
		UserID:    userID,
		OldTier:   oldTier,
		NewTier:   newTier,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Achievement Events
// ═══════════════════════════════════════════════════════════════════════════

// AchievementUnlockedEvent is emitted exactly once per (user, achievement).
type AchievementUnlockedEvent struct {
	BaseEvent
	UserID        string `json:"user_id"`
	AchievementID string `json:"achievement_id"`
	BonusXP       int    `json:"bonus_xp"`
}

// Payload implements Event interface.
func (e AchievementUnlockedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"user_id":        e.UserID,
		"achievement_id": e.AchievementID,
		"bonus_xp":       e.BonusXP,
	}
}

// NewAchievementUnlockedEvent creates a new AchievementUnlockedEvent.
func NewAchievementUnlockedEvent(userID, achievementID string, bonusXP int) AchievementUnlockedEvent {
	return AchievementUnlockedEvent{
		BaseEvent:     NewBaseEvent(EventAchievementUnlocked, userID),
		UserID:        userID,
		AchievementID: achievementID,
		BonusXP:       bonusXP,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Leaderboard Events
// ═══════════════════════════════════════════════════════════════════════════

// RankChangedEvent is emitted when a user's leaderboard position changes.
type RankChangedEvent struct {
	BaseEvent
	UserID  string `json:"user_id"`
	OldRank int    `json:"old_rank"`
	NewRank int    `json:"new_rank"`
}

// Payload implements Event interface.
func (e RankChangedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"user_id":  e.UserID,
		"old_rank": e.OldRank,
		"new_rank": e.NewRank,
	}
}

// NewRankChangedEvent creates a new RankChangedEvent.
func NewRankChangedEvent(userID string, oldRank, newRank int) RankChangedEvent {
	return RankChangedEvent{
		BaseEvent: NewBaseEvent(EventRankChanged, userID),
		UserID:    userID,
		OldRank:   oldRank,
		NewRank:   newRank,
	}
}

// LeaderboardRebuiltEvent is emitted after the worker rebuilds the leaderboard.
type LeaderboardRebuiltEvent struct {
	BaseEvent
	TotalUsers int           `json:"total_users"`
	TookMs     int64         `json:"took_ms"`
	Duration   time.Duration `json:"-"`
}

// Payload implements Event interface.
func (e LeaderboardRebuiltEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"total_users": e.TotalUsers,
		"took_ms":     e.TookMs,
	}
}

// NewLeaderboardRebuiltEvent creates a new LeaderboardRebuiltEvent.
func NewLeaderboardRebuiltEvent(totalUsers int, duration time.Duration) LeaderboardRebuiltEvent {
	return LeaderboardRebuiltEvent{
		BaseEvent:  NewBaseEvent(EventLeaderboardRebuilt, "leaderboard"),
		TotalUsers: totalUsers,
		TookMs:     duration.Milliseconds(),
		Duration:   duration,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Event Envelope (for serialization and transport)
// ═══════════════════════════════════════════════════════════════════════════

// EventEnvelope wraps an event for transport/storage.
type EventEnvelope struct {
	ID            string          `json:"id"`
	Type          EventType       `json:"type"`
	AggregateID   string          `json:"aggregate_id"`
	Timestamp     time.Time       `json:"timestamp"`
	Version       int             `json:"version"`
	CorrelationID string          `json:"correlation_id,omitempty"`
	Payload       json.RawMessage `json:"payload"`
}

// EventHandler is a function that handles an event.
type EventHandler func(event Event) error

// EventPublisher defines the interface for publishing events.
type EventPublisher interface {
	// Publish sends an event to subscribers.
	Publish(event Event) error
}

// EventSubscriber defines the interface for subscribing to events.
type EventSubscriber interface {
	// Subscribe registers a handler for an event type.
	Subscribe(eventType EventType, handler EventHandler) error

	// SubscribeAll registers a handler for all events.
	SubscribeAll(handler EventHandler) error
}

// EventBus combines publishing and subscribing.
type EventBus interface {
	EventPublisher
	EventSubscriber
}
