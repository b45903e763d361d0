package pipeline

import (
	"sync"
	"time"
)

// EventType identifies a pipeline lifecycle event.
type EventType string

const (
	// EventStageStarted is emitted when a stage begins running.
	EventStageStarted EventType = "stage_started"
	// EventStageFinished is emitted when a stage records its outcome.
	EventStageFinished EventType = "stage_finished"
	// EventPipelineFinished is emitted once the report is built.
	EventPipelineFinished EventType = "pipeline_finished"
)

// Event is one pipeline lifecycle event.
type Event struct {
	Type      EventType
	RunID     string
	Stage     string
	Timestamp time.Time

	// Event-specific data
	Result *StageResult
	Report *Report
}

// EventHandler handles pipeline events.
type EventHandler func(event Event)

// Bus dispatches pipeline events to subscribers. Handlers run synchronously
// in emission order so the metrics collector and log subscriber observe
// stages in the order they ran.
type Bus struct {
	mu       sync.RWMutex
	handlers map[EventType][]EventHandler
}

// NewBus creates an event bus.
func NewBus() *Bus {
	return &Bus{handlers: make(map[EventType][]EventHandler)}
}

// Subscribe registers a handler for an event type.
func (b *Bus) Subscribe(eventType EventType, handler EventHandler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[eventType] = append(b.handlers[eventType], handler)
}

// Publish sends an event to all handlers registered for its type.
func (b *Bus) Publish(event Event) {
	b.mu.RLock()
	handlers := b.handlers[event.Type]
	b.mu.RUnlock()

	for _, handler := range handlers {
		handler(event)
	}
}
