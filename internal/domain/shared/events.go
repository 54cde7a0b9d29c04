package shared

import (
	"time"
)

// EventType represents the type of domain event.
type EventType string

// Domain event types published after gamification work commits.
const (
	EventAchievementEarned  EventType = "gamification.achievement_earned"
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
		Timestamp:   time.Now().UTC(),
		AggregateId: aggregateID,
		Version:     1,
	}
}

// WithCorrelationID sets the correlation ID for tracing.
func (e BaseEvent) WithCorrelationID(id string) BaseEvent {
	e.CorrelationID = id
	return e
}

// AchievementEarnedEvent is emitted once per newly earned (user, achievement) pair.
type AchievementEarnedEvent struct {
	BaseEvent
	UserID          string `json:"user_id"`
	AchievementID   string `json:"achievement_id"`
	AchievementName string `json:"achievement_name"`
	Points          int    `json:"points"`
	CourseID        string `json:"course_id,omitempty"`
}

// Payload implements Event interface.
func (e AchievementEarnedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"user_id":          e.UserID,
		"achievement_id":   e.AchievementID,
		"achievement_name": e.AchievementName,
		"points":           e.Points,
		"course_id":        e.CourseID,
	}
}

// NewAchievementEarnedEvent creates a new AchievementEarnedEvent.
func NewAchievementEarnedEvent(userID, achievementID, name string, points int, courseID string) AchievementEarnedEvent {
	return AchievementEarnedEvent{
		BaseEvent:       NewBaseEvent(EventAchievementEarned, userID),
		UserID:          userID,
		AchievementID:   achievementID,
		AchievementName: name,
		Points:          points,
		CourseID:        courseID,
	}
}

// LeaderboardUpdatedEvent is emitted after a user's standing was recomputed.
type LeaderboardUpdatedEvent struct {
	BaseEvent
	UserID      string `json:"user_id"`
	PointsDelta int    `json:"points_delta"`
	TotalPoints int    `json:"total_points"`
}

// Payload implements Event interface.
func (e LeaderboardUpdatedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"user_id":      e.UserID,
		"points_delta": e.PointsDelta,
		"total_points": e.TotalPoints,
	}
}

// NewLeaderboardUpdatedEvent creates a new LeaderboardUpdatedEvent.
func NewLeaderboardUpdatedEvent(userID string, delta, total int) LeaderboardUpdatedEvent {
	return LeaderboardUpdatedEvent{
		BaseEvent:   NewBaseEvent(EventLeaderboardUpdated, userID),
		UserID:      userID,
		PointsDelta: delta,
		TotalPoints: total,
	}
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
