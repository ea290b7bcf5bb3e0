package scopeauth

import (
	"context"
	"encoding/json"
	"io"
	"sync"
	"time"
)

// Event describes a session lifecycle transition: a login, a rotation, a
// logout, a degraded store write, or a watchdog-driven refresh. Event types
// are dotted strings ("login.success", "rotation.failure", "session.logout",
// "session.hydrated", "store.degraded", "watchdog.rotated").
type Event struct {
	Timestamp time.Time         `json:"timestamp"`
	EventType string            `json:"event_type"`
	Email     string            `json:"email,omitempty"`
	Success   bool              `json:"success"`
	Error     string            `json:"error,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

const (
	eventLoginSuccess    = "login.success"
	eventLoginFailure    = "login.failure"
	eventRotationSuccess = "rotation.success"
	eventRotationFailure = "rotation.failure"
	eventLogout          = "session.logout"
	eventHydrated        = "session.hydrated"
	eventStoreDegraded   = "store.degraded"
	eventWatchdogRotated = "watchdog.rotated"
)

// EventSink receives emitted session events.
type EventSink interface {
	Emit(ctx context.Context, event Event)
}

// NoOpSink drops session events.
type NoOpSink struct{}

func (NoOpSink) Emit(context.Context, Event) {}

// ChannelSink writes session events into a buffered channel.
type ChannelSink struct {
	events chan Event
}

func NewChannelSink(buffer int) *ChannelSink {
	if buffer <= 0 {
		buffer = 1
	}
	return &ChannelSink{
		events: make(chan Event, buffer),
	}
}

func (s *ChannelSink) Emit(ctx context.Context, event Event) {
	select {
	case s.events <- event:
	case <-ctx.Done():
	}
}

func (s *ChannelSink) Events() <-chan Event {
	return s.events
}

// JSONWriterSink writes one JSON object per line.
type JSONWriterSink struct {
	writer io.Writer
	mu     sync.Mutex
}

func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return &JSONWriterSink{
		writer: w,
	}
}

func (s *JSONWriterSink) Emit(ctx context.Context, event Event) {
	if s == nil || s.writer == nil {
		return
	}
	data, err := json.Marshal(event)
	if err != nil {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, _ = s.writer.Write(data)
	_, _ = s.writer.Write([]byte("\n"))
}
