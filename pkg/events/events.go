// Package events publishes domain events about issued assertions.
package events

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

const TypeAssertionIssued = "assertion.issued"

// Event is the envelope written to the relay as JSON.
type Event struct {
	ID         string    `json:"id"`
	Type       string    `json:"type"`
	OccurredAt time.Time `json:"occurredAt"`
	Data       any       `json:"data"`
}

func New(typ string, at time.Time, data any) Event {
	return Event{
		ID:         uuid.NewString(),
		Type:       typ,
		OccurredAt: at.UTC(),
		Data:       data,
	}
}

// Publisher delivers events. Publish must be safe for concurrent use.
type Publisher interface {
	Publish(ctx context.Context, e Event) error
	Close() error
}

type noop struct{}

// Noop discards every event.
func Noop() Publisher { return noop{} }

func (noop) Publish(context.Context, Event) error { return nil }
func (noop) Close() error                         { return nil }

// Memory keeps published events in order. Useful as a test double.
type Memory struct {
	mu     sync.Mutex
	events []Event
	Err    error
}

func (m *Memory) Publish(_ context.Context, e Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.events = append(m.events, e)
	return nil
}

func (m *Memory) Close() error { return nil }

func (m *Memory) Events() []Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Event(nil), m.events...)
}
