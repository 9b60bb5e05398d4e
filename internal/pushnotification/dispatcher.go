package pushnotification

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/sourcegraph/conc"

	"github.com/famnews/famnews/internal/config"
	"github.com/famnews/famnews/internal/eventbus"
	"github.com/famnews/famnews/internal/pushsubscription"
	"github.com/famnews/famnews/pkg/cerr"
	"github.com/famnews/famnews/pkg/panicerr"
)

// Request is a one-shot broadcast instruction: deliver this message to every
// subscription not owned by ExcludeUserID. It is never persisted.
type Request struct {
	Title         string
	Body          string
	URL           string
	ExcludeUserID string
}

// Summary is the aggregate result of one broadcast.
// Sent + Failed always equals the number of targeted subscriptions.
type Summary struct {
	Sent   int
	Failed int
}

type Dispatcher struct {
	vapidEnv *config.VAPIDEnv
	repo     pushsubscription.Repository
	pusher   Pusher
	bus      *eventbus.Bus
}

func NewDispatcher(vapidEnv *config.VAPIDEnv, repo pushsubscription.Repository, pusher Pusher, bus *eventbus.Bus) *Dispatcher {
	return &Dispatcher{
		vapidEnv: vapidEnv,
		repo:     repo,
		pusher:   pusher,
		bus:      bus,
	}
}

// Broadcast fans the message out to every subscription not owned by the
// excluded user. Each delivery is attempted exactly once; individual
// failures are folded into the summary, never returned as errors. The only
// hard failures are missing signing configuration and an unreadable store.
func (d *Dispatcher) Broadcast(ctx context.Context, req *Request) (*Summary, error) {
	if !d.vapidEnv.Configured() {
		return nil, cerr.NewError(cerr.FailedPrecondition, "push notifications not configured", nil)
	}

	payload := Payload{
		Title: req.Title,
		Body:  req.Body,
		URL:   req.URL,
	}
	payload.ApplyDefaults()
	data, err := json.Marshal(&payload)
	if err != nil {
		return nil, cerr.NewError(cerr.Internal, "server error", fmt.Errorf("failed to marshal payload: %w", err))
	}

	targets, err := d.repo.ListExcludingUser(ctx, req.ExcludeUserID)
	if err != nil {
		return nil, err
	}
	if len(targets) == 0 {
		return &Summary{}, nil
	}

	// Scatter/gather: one send per target, join on all of them. A failure
	// or panic in one send never aborts the others.
	outcomes := make([]Outcome, len(targets))
	var wg conc.WaitGroup
	for i, sub := range targets {
		i, sub := i, sub
		wg.Go(func() {
			outcomes[i] = d.pusher.Push(ctx, sub, data)
		})
	}
	if recovered := wg.WaitAndRecover(); recovered != nil {
		slog.Error("push broadcast: send panicked", "panic", recovered.Value)
	}

	summary := &Summary{}
	for i, outcome := range outcomes {
		sub := targets[i]
		switch outcome.Kind {
		case OutcomeDelivered:
			summary.Sent++
		case OutcomePermanent:
			summary.Failed++
			slog.Info("push broadcast: subscription expired, removing", "endpoint", sub.Endpoint, "status", outcome.StatusCode)
			if err := d.repo.DeleteByEndpoint(ctx, sub.Endpoint); err != nil {
				// Cleanup is best effort; the dispatch result stands.
				slog.Error("push broadcast: failed to delete expired subscription", "endpoint", sub.Endpoint, "error", err)
			}
		default:
			summary.Failed++
			if outcome.Err != nil {
				slog.Warn("push broadcast: failed to send", "endpoint", sub.Endpoint, "error", outcome.Err)
			} else {
				slog.Warn("push broadcast: unexpected status", "endpoint", sub.Endpoint, "status", outcome.StatusCode)
			}
		}
	}
	return summary, nil
}

// Start consumes activity events from the bus and broadcasts a notification
// for each, excluding the acting member. Every broadcast runs in its own
// panic-recovered goroutine with a log-and-drop error policy, so a broken
// dispatch can never reach the action that triggered it.
func (d *Dispatcher) Start(ctx context.Context) {
	subID, ch := d.bus.Subscribe(256)
	defer d.bus.Unsubscribe(subID)

	slog.Info("push notification dispatcher started")
	for {
		select {
		case <-ctx.Done():
			slog.Info("push notification dispatcher stopped")
			return
		case event, ok := <-ch:
			if !ok {
				return
			}
			d.handleEvent(ctx, event)
		}
	}
}

func (d *Dispatcher) handleEvent(ctx context.Context, event *eventbus.Event) {
	switch event.Type {
	case eventbus.EventTypeArticleShared, eventbus.EventTypeCommentCreated, eventbus.EventTypeTestRequested:
	default:
		return
	}

	req := &Request{
		Title:         event.Title,
		Body:          event.Body,
		URL:           event.URL,
		ExcludeUserID: event.ActorID,
	}

	go func() {
		err := panicerr.SafeContext(func(ctx context.Context) error {
			summary, err := d.Broadcast(ctx, req)
			if err != nil {
				return err
			}
			slog.Info("push broadcast: done", "event", string(event.Type), "sent", summary.Sent, "failed", summary.Failed)
			return nil
		})(ctx)
		if err != nil {
			slog.Error("push broadcast: dropped", "event", string(event.Type), "error", err)
		}
	}()
}
