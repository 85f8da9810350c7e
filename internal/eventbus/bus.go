// Package eventbus is an in-process fan-out of domain events. Slow
// subscribers lose events rather than block publishers.
package eventbus

import (
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

type EventType string

const (
	NotificationCreated EventType = "notification.created"
	TaskSpawned         EventType = "task.spawned"
	DeadlineScanned     EventType = "deadline.scanned"
)

type Event struct {
	ID         string
	Type       EventType
	ResourceID string
	Payload    string
	Metadata   map[string]string
	CreatedAt  time.Time
}

type Bus struct {
	mu          sync.RWMutex
	subscribers map[string]chan Event
	now         func() time.Time
}

func New() *Bus {
	return &Bus{
		subscribers: make(map[string]chan Event),
		now:         time.Now,
	}
}

func (b *Bus) Subscribe(bufSize int) (string, <-chan Event) {
	id := ulid.Make().String()
	ch := make(chan Event, bufSize)
	b.mu.Lock()
	b.subscribers[id] = ch
	b.mu.Unlock()
	return id, ch
}

func (b *Bus) Unsubscribe(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if ch, ok := b.subscribers[id]; ok {
		close(ch)
		delete(b.subscribers, id)
	}
}

// Publish delivers event to every subscriber with buffer space and reports
// how many received it.
func (b *Bus) Publish(event Event) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	delivered := 0
	for _, ch := range b.subscribers {
		select {
		case ch <- event:
			delivered++
		default:
		}
	}
	return delivered
}

func (b *Bus) PublishNew(eventType EventType, resourceID, payload string, metadata map[string]string) Event {
	event := Event{
		ID:         ulid.Make().String(),
		Type:       eventType,
		ResourceID: resourceID,
		Payload:    payload,
		Metadata:   metadata,
		CreatedAt:  b.now(),
	}
	b.Publish(event)
	return event
}
