package shared

import (
	"encoding/json"
	"time"
)

// EventType represents the type of domain event.
type EventType string

// Domain event types emitted by the progression engine.
const (
	// Progress events
	EventPointsEarned        EventType = "progress.points_earned"
	EventLevelUp             EventType = "progress.level_up"
	EventAchievementUnlocked EventType = "progress.achievement_unlocked"

	// Session events
	EventSessionStarted EventType = "session.started"
	EventSessionEnded   EventType = "session.ended"

	// Week events
	EventWeekRolledOver EventType = "week.rolled_over"
)

// UserAggregateID identifies the single user whose progression the engine owns.
const UserAggregateID = "user"

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
	Type        EventType `json:"type"`
	Timestamp   time.Time `json:"timestamp"`
	AggregateId string    `json:"aggregate_id"`
	Version     int       `json:"version"`
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

// NewBaseEvent creates a new base event stamped with at.
func NewBaseEvent(eventType EventType, aggregateID string, at time.Time) BaseEvent {
	return BaseEvent{
		Type:        eventType,
		Timestamp:   at,
		AggregateId: aggregateID,
		Version:     1,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Progress Events
// ═══════════════════════════════════════════════════════════════════════════

// PointsEarnedEvent is emitted for every applied point award.
type PointsEarnedEvent struct {
	BaseEvent
	Amount   int `json:"amount"`
	NewTotal int `json:"new_total"`
}

// Payload implements Event interface.
func (e PointsEarnedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"amount":    e.Amount,
		"new_total": e.NewTotal,
	}
}

// NewPointsEarnedEvent creates a new PointsEarnedEvent.
func NewPointsEarnedEvent(amount, newTotal int, at time.Time) PointsEarnedEvent {
	return PointsEarnedEvent{
		BaseEvent: NewBaseEvent(EventPointsEarned, UserAggregateID, at),
		Amount:    amount,
		NewTotal:  newTotal,
	}
}

// LevelUpEvent is emitted once per award that raises the user's level.
type LevelUpEvent struct {
	BaseEvent
	PreviousLevel int      `json:"previous_level"`
	NewLevel      int      `json:"new_level"`
	Title         string   `json:"title"`
	Milestones    []string `json:"milestones,omitempty"` // level milestone tags crossed by this award
	Achievement   string   `json:"achievement,omitempty"` // title of the highest level milestone crossed
}

// Payload implements Event interface.
func (e LevelUpEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"previous_level": e.PreviousLevel,
		"new_level":      e.NewLevel,
		"title":          e.Title,
		"milestones":     e.Milestones,
		"achievement":    e.Achievement,
	}
}

// NewLevelUpEvent creates a new LevelUpEvent.
func NewLevelUpEvent(previous, next int, title string, milestones []string, achievement string, at time.Time) LevelUpEvent {
	return LevelUpEvent{
		BaseEvent:     NewBaseEvent(EventLevelUp, UserAggregateID, at),
		PreviousLevel: previous,
		NewLevel:      next,
		Title:         title,
		Milestones:    milestones,
		Achievement:   achievement,
	}
}

// AchievementUnlockedEvent is emitted once per crossed point milestone.
type AchievementUnlockedEvent struct {
	BaseEvent
	Tag     string `json:"tag"`
	Title   string `json:"title"`
	Message string `json:"message"`
}

// Payload implements Event interface.
func (e AchievementUnlockedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"tag":     e.Tag,
		"title":   e.Title,
		"message": e.Message,
	}
}

// NewAchievementUnlockedEvent creates a new AchievementUnlockedEvent.
func NewAchievementUnlockedEvent(tag, title, message string, at time.Time) AchievementUnlockedEvent {
	return AchievementUnlockedEvent{
		BaseEvent: NewBaseEvent(EventAchievementUnlocked, UserAggregateID, at),
		Tag:       tag,
		Title:     title,
		Message:   message,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Session Events
// ═══════════════════════════════════════════════════════════════════════════

// SessionStartedEvent is emitted when a chill session opens.
type SessionStartedEvent struct {
	BaseEvent
	ParticipantIDs []string `json:"participant_ids"`
	Private        bool     `json:"private"`
}

// Payload implements Event interface.
func (e SessionStartedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"participant_ids": e.ParticipantIDs,
		"private":         e.Private,
	}
}

// NewSessionStartedEvent creates a new SessionStartedEvent.
func NewSessionStartedEvent(sessionID string, participantIDs []string, private bool, at time.Time) SessionStartedEvent {
	return SessionStartedEvent{
		BaseEvent:      NewBaseEvent(EventSessionStarted, sessionID, at),
		ParticipantIDs: participantIDs,
		Private:        private,
	}
}

// SessionEndedEvent is emitted when a chill session closes.
// Private sessions report the figures they discarded.
type SessionEndedEvent struct {
	BaseEvent
	DurationMinutes int  `json:"duration_minutes"`
	Points          int  `json:"points"`
	Private         bool `json:"private"`
}

// Payload implements Event interface.
func (e SessionEndedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"duration_minutes": e.DurationMinutes,
		"points":           e.Points,
		"private":          e.Private,
	}
}

// NewSessionEndedEvent creates a new SessionEndedEvent.
func NewSessionEndedEvent(sessionID string, duration, points int, private bool, at time.Time) SessionEndedEvent {
	return SessionEndedEvent{
		BaseEvent:       NewBaseEvent(EventSessionEnded, sessionID, at),
		DurationMinutes: duration,
		Points:          points,
		Private:         private,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Week Events
// ═══════════════════════════════════════════════════════════════════════════

// WeekRolledOverEvent carries the discarded weekly bucket so that an
// external archiver can keep history.
type WeekRolledOverEvent struct {
	BaseEvent
	PreviousWeekStart time.Time `json:"previous_week_start"`
	NewWeekStart      time.Time `json:"new_week_start"`
	SessionsCount     int       `json:"sessions_count"`
	TotalMinutes      int       `json:"total_minutes"`
	UniqueFriends     []string  `json:"unique_friends"`
	PointsEarned      int       `json:"points_earned"`
}

// Payload implements Event interface.
func (e WeekRolledOverEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"previous_week_start": e.PreviousWeekStart.Format(time.RFC3339),
		"new_week_start":      e.NewWeekStart.Format(time.RFC3339),
		"sessions_count":      e.SessionsCount,
		"total_minutes":       e.TotalMinutes,
		"unique_friends":      e.UniqueFriends,
		"points_earned":       e.PointsEarned,
	}
}

// NewWeekRolledOverEvent creates a new WeekRolledOverEvent.
func NewWeekRolledOverEvent(previousStart, newStart time.Time, sessions, minutes int, friends []string, points int, at time.Time) WeekRolledOverEvent {
	return WeekRolledOverEvent{
		BaseEvent:         NewBaseEvent(EventWeekRolledOver, UserAggregateID, at),
		PreviousWeekStart: previousStart,
		NewWeekStart:      newStart,
		SessionsCount:     sessions,
		TotalMinutes:      minutes,
		UniqueFriends:     friends,
		PointsEarned:      points,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Event Envelope (for serialization and transport)
// ═══════════════════════════════════════════════════════════════════════════

// EventEnvelope wraps an event for transport/storage.
type EventEnvelope struct {
	ID          string          `json:"id"`
	Type        EventType       `json:"type"`
	AggregateID string          `json:"aggregate_id"`
	Timestamp   time.Time       `json:"timestamp"`
	Payload     json.RawMessage `json:"payload"`
}

// NewEventEnvelope serializes an event's payload into an envelope.
func NewEventEnvelope(id string, event Event) (EventEnvelope, error) {
	payload, err := json.Marshal(event.Payload())
	if err != nil {
		return EventEnvelope{}, err
	}
	return EventEnvelope{
		ID:          id,
		Type:        event.EventType(),
		AggregateID: event.AggregateID(),
		Timestamp:   event.OccurredAt(),
		Payload:     payload,
	}, nil
}

// EventHandler is a function that handles an event.
type EventHandler func(event Event) error

// EventSink receives fire-and-forget notifications from the engine.
// Implementations must not block the caller for long and must not panic;
// the engine recovers and drops anything they throw.
type EventSink interface {
	Notify(event Event)
}

// EventSinkFunc adapts a function to EventSink.
type EventSinkFunc func(event Event)

// Notify implements EventSink.
func (f EventSinkFunc) Notify(event Event) {
	f(event)
}

// EventSubscriber defines the interface for subscribing to events.
type EventSubscriber interface {
	// Subscribe registers a handler for an event type.
	Subscribe(eventType EventType, handler EventHandler) error

	// SubscribeAll registers a handler for all events.
	SubscribeAll(handler EventHandler) error
}

// NopSink discards every event.
type NopSink struct{}

// Notify implements EventSink.
func (NopSink) Notify(Event) {}
