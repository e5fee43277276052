package interfaces

import (
	"context"
	"time"
)

// EventType identifies a cache lifecycle event.
type EventType string

const (
	EventCacheHit         EventType = "cache_hit"
	EventCacheMiss        EventType = "cache_miss"
	EventCacheStale       EventType = "cache_stale"
	EventRefreshStarted   EventType = "refresh_started"
	EventQuarterStored    EventType = "quarter_stored"
	EventRefreshCompleted EventType = "refresh_completed"
	EventRefreshFailed    EventType = "refresh_failed"
)

// Event is a cache lifecycle notification pushed to subscribers and over
// the WebSocket surface.
type Event struct {
	Type      EventType              `json:"type"`
	Ticker    string                 `json:"ticker,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
	Data      map[string]interface{} `json:"data,omitempty"`
}

// EventHandler receives published events.
type EventHandler func(ctx context.Context, event Event) error

// EventService is a process-local pub/sub bus for cache events.
type EventService interface {
	// Publish delivers an event to subscribers asynchronously.
	Publish(ctx context.Context, event Event) error
	// PublishSync delivers an event and waits for all handlers.
	PublishSync(ctx context.Context, event Event) error
	Subscribe(eventType EventType, handler EventHandler) error
	// SubscribeAll registers a handler for every known event type.
	SubscribeAll(handler EventHandler) error
}
