package eventbus

import (
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

type EventType string

const (
	// EventTypeArticleShared fires when a member shares a new article.
	EventTypeArticleShared EventType = "article.shared"
	// EventTypeCommentCreated fires when a member comments on an article.
	EventTypeCommentCreated EventType = "comment.created"
	// EventTypeTestRequested fires when a test notification is requested.
	EventTypeTestRequested EventType = "test.requested"
)

// Event is one activity produced by a collaborator. ActorID identifies the
// member whose action caused the event; that member is excluded from the
// notification fan-out.
type Event struct {
	ID        string
	Type      EventType
	ActorID   string
	Title     string
	Body      string
	URL       string
	CreatedAt time.Time
}

// Bus is an in-process publish/subscribe bus. Publishing never blocks: a
// subscriber with a full buffer misses the event.
type Bus struct {
	mu          sync.RWMutex
	subscribers map[string]chan *Event
}

func New() *Bus {
	return &Bus{
		subscribers: make(map[string]chan *Event),
	}
}

func (b *Bus) Subscribe(bufSize int) (string, <-chan *Event) {
	id := ulid.Make().String()
	ch := make(chan *Event, bufSize)
	b.mu.Lock()
	b.subscribers[id] = ch
	b.mu.Unlock()
	return id, ch
}

func (b *Bus) Unsubscribe(id string) {
	b.mu.Lock()
	if ch, ok := b.subscribers[id]; ok {
		close(ch)
		delete(b.subscribers, id)
	}
	b.mu.Unlock()
}

func (b *Bus) Publish(event *Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, ch := range b.subscribers {
		select {
		case ch <- event:
		default:
			// buffer full, drop event for this subscriber
		}
	}
}

func (b *Bus) PublishNew(eventType EventType, actorID, title, body, url string) {
	b.Publish(&Event{
		ID:        ulid.Make().String(),
		Type:      eventType,
		ActorID:   actorID,
		Title:     title,
		Body:      body,
		URL:       url,
		CreatedAt: time.Now(),
	})
}
