package receiver

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/url"

	"github.com/famnews/famnews/internal/pushnotification"
	"github.com/famnews/famnews/pkg/cerr"
)

// Notification action identifiers, surfaced as buttons on the rendered
// notification.
const (
	ActionOpen    = "open"
	ActionDismiss = "dismiss"
)

const (
	iconPath = "/pwa-192x192.png"
)

// vibratePattern is the on/off/on buzz in milliseconds.
var vibratePattern = []int{100, 50, 100}

// Action is one button on a notification.
type Action struct {
	ID    string
	Title string
}

// Notification is a fully resolved, renderable notification.
type Notification struct {
	Title   string
	Body    string
	Tag     string
	Icon    string
	Badge   string
	Vibrate []int
	URL     string
	Actions []Action
}

// Notifier renders notifications on the device and retracts them again.
type Notifier interface {
	Show(ctx context.Context, n *Notification) error
	Close(ctx context.Context, tag string) error
}

// Window is one open app surface the receiver can steer.
type Window interface {
	URL() string
	Navigate(ctx context.Context, target string) error
	Focus(ctx context.Context) error
}

// WindowManager enumerates open app surfaces and opens new ones.
type WindowManager interface {
	Windows(ctx context.Context) ([]Window, error)
	OpenWindow(ctx context.Context, target string) error
}

// Click is a user interaction with a shown notification. An empty Action is
// a tap on the notification body and behaves like ActionOpen.
type Click struct {
	Action string
	Tag    string
	URL    string
}

// Event is one unit of work for the receiver loop: either an incoming push
// or a notification click, never both.
type Event struct {
	Push  []byte
	Click *Click
}

// Receiver turns raw push deliveries into rendered notifications and click
// interactions into window navigation. appOrigin anchors relative payload
// URLs and bounds which windows a click may steer.
type Receiver struct {
	notifier Notifier
	windows  WindowManager
	origin   *url.URL
}

func New(notifier Notifier, windows WindowManager, appOrigin string) (*Receiver, error) {
	origin, err := url.Parse(appOrigin)
	if err != nil || origin.Scheme == "" || origin.Host == "" {
		return nil, cerr.NewError(cerr.InvalidArgument, "app origin must be an absolute URL", err)
	}
	return &Receiver{
		notifier: notifier,
		windows:  windows,
		origin:   origin,
	}, nil
}

// HandlePush renders one delivered payload. An empty delivery is dropped
// without rendering; an undecodable one still renders with the fallback
// text so the member is never silently skipped.
func (r *Receiver) HandlePush(ctx context.Context, data []byte) error {
	if len(data) == 0 {
		slog.Debug("push receiver: empty delivery ignored")
		return nil
	}

	var payload pushnotification.Payload
	if err := json.Unmarshal(data, &payload); err != nil {
		slog.Warn("push receiver: undecodable payload, using defaults", "error", err)
		payload = pushnotification.Payload{}
	}
	payload.ApplyDefaults()

	return r.notifier.Show(ctx, &Notification{
		Title:   payload.Title,
		Body:    payload.Body,
		Tag:     payload.Tag,
		Icon:    iconPath,
		Badge:   iconPath,
		Vibrate: vibratePattern,
		URL:     payload.URL,
		Actions: []Action{
			{ID: ActionOpen, Title: "View Article"},
			{ID: ActionDismiss, Title: "Dismiss"},
		},
	})
}

// HandleClick retracts the notification, then either stops (dismiss) or
// brings the app into view: an existing same-origin window is navigated and
// focused, otherwise exactly one new window is opened.
func (r *Receiver) HandleClick(ctx context.Context, click *Click) error {
	if err := r.notifier.Close(ctx, click.Tag); err != nil {
		slog.Warn("push receiver: failed to close notification", "tag", click.Tag, "error", err)
	}
	if click.Action == ActionDismiss {
		return nil
	}

	target := click.URL
	if target == "" {
		target = pushnotification.DefaultURL
	}
	resolved, err := r.resolve(target)
	if err != nil {
		return err
	}

	windows, err := r.windows.Windows(ctx)
	if err != nil {
		return err
	}
	for _, w := range windows {
		if !r.sameOrigin(w.URL()) {
			continue
		}
		if err := w.Navigate(ctx, resolved); err != nil {
			return err
		}
		return w.Focus(ctx)
	}
	return r.windows.OpenWindow(ctx, resolved)
}

// Run processes events one at a time until the context ends. Each event is
// fully handled before the next is taken, so a delivery is not reported
// complete while its notification is still rendering.
func (r *Receiver) Run(ctx context.Context, events <-chan Event) {
	slog.Info("push receiver started", "origin", r.origin.String())
	for {
		select {
		case <-ctx.Done():
			slog.Info("push receiver stopped")
			return
		case event, ok := <-events:
			if !ok {
				return
			}
			r.handle(ctx, event)
		}
	}
}

func (r *Receiver) handle(ctx context.Context, event Event) {
	var err error
	switch {
	case event.Click != nil:
		err = r.HandleClick(ctx, event.Click)
	default:
		err = r.HandlePush(ctx, event.Push)
	}
	if err != nil {
		slog.Error("push receiver: event dropped", "error", err)
	}
}

func (r *Receiver) resolve(target string) (string, error) {
	u, err := url.Parse(target)
	if err != nil {
		return "", cerr.NewError(cerr.InvalidArgument, "invalid notification url", err)
	}
	return r.origin.ResolveReference(u).String(), nil
}

// sameOrigin compares scheme and host only; path and query never widen or
// narrow the match.
func (r *Receiver) sameOrigin(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	return u.Scheme == r.origin.Scheme && u.Host == r.origin.Host
}
