package receiver

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/famnews/famnews/internal/pushnotification"
)

type fakeNotifier struct {
	shown  []*Notification
	closed []string
}

func (n *fakeNotifier) Show(_ context.Context, notification *Notification) error {
	n.shown = append(n.shown, notification)
	return nil
}

func (n *fakeNotifier) Close(_ context.Context, tag string) error {
	n.closed = append(n.closed, tag)
	return nil
}

type fakeWindow struct {
	url       string
	navigated []string
	focused   int
}

func (w *fakeWindow) URL() string { return w.url }

func (w *fakeWindow) Navigate(_ context.Context, target string) error {
	w.navigated = append(w.navigated, target)
	return nil
}

func (w *fakeWindow) Focus(context.Context) error {
	w.focused++
	return nil
}

type fakeWindowManager struct {
	windows []Window
	opened  []string
}

func (m *fakeWindowManager) Windows(context.Context) ([]Window, error) {
	return m.windows, nil
}

func (m *fakeWindowManager) OpenWindow(_ context.Context, target string) error {
	m.opened = append(m.opened, target)
	return nil
}

func newTestReceiver(t *testing.T, windows ...Window) (*Receiver, *fakeNotifier, *fakeWindowManager) {
	t.Helper()
	notifier := &fakeNotifier{}
	wm := &fakeWindowManager{windows: windows}
	r, err := New(notifier, wm, "https://news.family.example")
	require.NoError(t, err)
	return r, notifier, wm
}

func TestHandlePushRendersPayload(t *testing.T) {
	r, notifier, _ := newTestReceiver(t)

	err := r.HandlePush(context.Background(), []byte(`{"title":"Dinner","body":"Photos are up","url":"/articles/7"}`))
	require.NoError(t, err)

	require.Len(t, notifier.shown, 1)
	n := notifier.shown[0]
	assert.Equal(t, "Dinner", n.Title)
	assert.Equal(t, "Photos are up", n.Body)
	assert.Equal(t, "/articles/7", n.URL)
	assert.Equal(t, "/pwa-192x192.png", n.Icon)
	assert.Equal(t, []int{100, 50, 100}, n.Vibrate)
	require.Len(t, n.Actions, 2)
	assert.Equal(t, ActionOpen, n.Actions[0].ID)
	assert.Equal(t, ActionDismiss, n.Actions[1].ID)
}

func TestHandlePushEmptyDeliveryIgnored(t *testing.T) {
	r, notifier, _ := newTestReceiver(t)

	require.NoError(t, r.HandlePush(context.Background(), nil))
	require.NoError(t, r.HandlePush(context.Background(), []byte{}))
	assert.Empty(t, notifier.shown)
}

func TestHandlePushUndecodableFallsBackToDefaults(t *testing.T) {
	r, notifier, _ := newTestReceiver(t)

	err := r.HandlePush(context.Background(), []byte("not json"))
	require.NoError(t, err)

	require.Len(t, notifier.shown, 1)
	assert.Equal(t, pushnotification.DefaultTitle, notifier.shown[0].Title)
	assert.Equal(t, pushnotification.DefaultBody, notifier.shown[0].Body)
	assert.Equal(t, pushnotification.DefaultURL, notifier.shown[0].URL)
}

func TestHandleClickDismissClosesWithoutNavigation(t *testing.T) {
	w := &fakeWindow{url: "https://news.family.example/feed"}
	r, notifier, wm := newTestReceiver(t, w)

	err := r.HandleClick(context.Background(), &Click{Action: ActionDismiss, Tag: "t1", URL: "/articles/7"})
	require.NoError(t, err)

	assert.Equal(t, []string{"t1"}, notifier.closed)
	assert.Empty(t, w.navigated)
	assert.Zero(t, w.focused)
	assert.Empty(t, wm.opened)
}

func TestHandleClickFocusesExistingWindow(t *testing.T) {
	other := &fakeWindow{url: "https://elsewhere.example/feed"}
	app := &fakeWindow{url: "https://news.family.example/feed"}
	r, _, wm := newTestReceiver(t, other, app)

	err := r.HandleClick(context.Background(), &Click{Action: ActionOpen, URL: "/articles/7"})
	require.NoError(t, err)

	assert.Equal(t, []string{"https://news.family.example/articles/7"}, app.navigated)
	assert.Equal(t, 1, app.focused)
	assert.Empty(t, other.navigated, "foreign-origin windows are never steered")
	assert.Empty(t, wm.opened)
}

func TestHandleClickOpensExactlyOneWindow(t *testing.T) {
	other := &fakeWindow{url: "https://elsewhere.example/feed"}
	r, _, wm := newTestReceiver(t, other)

	err := r.HandleClick(context.Background(), &Click{Action: ""})
	require.NoError(t, err)

	assert.Equal(t, []string{"https://news.family.example/"}, wm.opened)
}

func TestHandleClickBodyTapBehavesLikeOpen(t *testing.T) {
	app := &fakeWindow{url: "https://news.family.example/feed"}
	r, _, _ := newTestReceiver(t, app)

	err := r.HandleClick(context.Background(), &Click{Action: "", URL: "/articles/9"})
	require.NoError(t, err)
	assert.Equal(t, []string{"https://news.family.example/articles/9"}, app.navigated)
}

func TestRunProcessesEventsInOrder(t *testing.T) {
	r, notifier, _ := newTestReceiver(t)

	events := make(chan Event, 2)
	events <- Event{Push: []byte(`{"title":"First","body":"b"}`)}
	events <- Event{Push: []byte(`{"title":"Second","body":"b"}`)}
	close(events)

	r.Run(context.Background(), events)

	require.Len(t, notifier.shown, 2)
	assert.Equal(t, "First", notifier.shown[0].Title)
	assert.Equal(t, "Second", notifier.shown[1].Title)
}

func TestNewRejectsRelativeOrigin(t *testing.T) {
	_, err := New(&fakeNotifier{}, &fakeWindowManager{}, "/not-absolute")
	assert.Error(t, err)
}
