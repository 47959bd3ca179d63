package core

import (
	"context"
	"log/slog"
	"time"
)

// EventType identifies a semantic event emitted by the runtime.
type EventType string

const (
	EventToolRegistered    EventType = "tool.registered"
	EventToolUnregistered  EventType = "tool.unregistered"
	EventToolExecuted      EventType = "tool.executed"
	EventToolFailed        EventType = "tool.failed"
	EventToolDeprecated    EventType = "tool.deprecated"
	EventBatchExecuted     EventType = "batch.executed"
	EventCacheHit          EventType = "cache.hit"
	EventCacheMiss         EventType = "cache.miss"
	EventRateLimitExceeded EventType = "ratelimit.exceeded"
	EventPermissionDenied  EventType = "permission.denied"
	EventBreakerState      EventType = "breaker.state"
	EventHealthChecked     EventType = "health.checked"
	EventAgentRegistered   EventType = "agent.registered"
	EventAgentUnregistered EventType = "agent.unregistered"
	EventAgentRestarted    EventType = "agent.restarted"
)

// Event captures a semantic runtime event for external observers.
// Consumption is optional and must never affect control flow.
type Event struct {
	Type      EventType
	Tool      string
	Agent     string
	Timestamp time.Time
	Payload   map[string]any
}

// EventEmitter receives semantic events.
type EventEmitter interface {
	Emit(ctx context.Context, event Event)
}

// NoopEventEmitter is a default no-op implementation.
type NoopEventEmitter struct{}

// Emit implements EventEmitter.
func (NoopEventEmitter) Emit(_ context.Context, _ Event) {}

// SlogEventEmitter logs every event at debug level.
type SlogEventEmitter struct {
	Logger *slog.Logger
}

// Emit implements EventEmitter.
func (s SlogEventEmitter) Emit(ctx context.Context, event Event) {
	logger := s.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.DebugContext(ctx, "runtime event",
		"type", string(event.Type),
		"tool", event.Tool,
		"agent", event.Agent,
		"payload", event.Payload,
	)
}

// NewEvent builds an event with the current timestamp.
func NewEvent(eventType EventType, payload map[string]any) Event {
	return Event{
		Type:      eventType,
		Timestamp: time.Now().UTC(),
		Payload:   payload,
	}
}

// WithTool returns a copy of the event tagged with a tool name.
func (e Event) WithTool(name string) Event {
	e.Tool = name
	return e
}

// WithAgent returns a copy of the event tagged with an agent id.
func (e Event) WithAgent(id string) Event {
	e.Agent = id
	return e
}
