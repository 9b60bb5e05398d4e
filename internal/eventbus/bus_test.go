package eventbus

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBusPublishSubscribe(t *testing.T) {
	bus := New()
	id, ch := bus.Subscribe(4)
	defer bus.Unsubscribe(id)

	bus.PublishNew(EventTypeArticleShared, "u1", "Shared: Go 1.26", "", "/articles/42")

	select {
	case event := <-ch:
		assert.Equal(t, EventTypeArticleShared, event.Type)
		assert.Equal(t, "u1", event.ActorID)
		assert.Equal(t, "/articles/42", event.URL)
		assert.NotEmpty(t, event.ID)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
	}
}

func TestBusFullBufferDropsEvent(t *testing.T) {
	bus := New()
	id, ch := bus.Subscribe(1)
	defer bus.Unsubscribe(id)

	bus.PublishNew(EventTypeArticleShared, "u1", "first", "", "/")
	bus.PublishNew(EventTypeArticleShared, "u1", "second", "", "/")

	event := <-ch
	require.Equal(t, "first", event.Title)

	select {
	case event := <-ch:
		t.Fatalf("expected second event to be dropped, got %q", event.Title)
	default:
	}
}

func TestBusUnsubscribeClosesChannel(t *testing.T) {
	bus := New()
	id, ch := bus.Subscribe(1)
	bus.Unsubscribe(id)

	_, ok := <-ch
	assert.False(t, ok, "channel should be closed after unsubscribe")

	// Publishing after unsubscribe must not panic.
	bus.PublishNew(EventTypeCommentCreated, "u2", "c", "", "/")
}
