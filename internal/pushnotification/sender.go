package pushnotification

import (
	"context"
	"net/http"

	webpush "github.com/SherClockHolmes/webpush-go"

	"github.com/famnews/famnews/internal/config"
	"github.com/famnews/famnews/internal/pushsubscription"
)

type OutcomeKind int

const (
	// OutcomeTransient is the zero value: a delivery is never presumed
	// successful. The subscription is kept for the next dispatch.
	OutcomeTransient OutcomeKind = iota
	OutcomeDelivered
	// OutcomePermanent means the channel no longer exists; the stored
	// subscription should be removed.
	OutcomePermanent
)

// Outcome is the per-subscription result of one delivery attempt.
type Outcome struct {
	Kind       OutcomeKind
	StatusCode int
	Err        error
}

// Pusher sends one encrypted payload to one subscription's channel.
type Pusher interface {
	Push(ctx context.Context, sub *pushsubscription.Subscription, payload []byte) Outcome
}

// WebPushSender delivers payloads over the Web Push protocol. The VAPID
// options are assembled once at construction, not per send.
type WebPushSender struct {
	options *webpush.Options
}

func NewWebPushSender(vapidEnv *config.VAPIDEnv) *WebPushSender {
	return &WebPushSender{
		options: &webpush.Options{
			Subscriber:      vapidEnv.VAPIDContact,
			VAPIDPublicKey:  vapidEnv.VAPIDPublicKey,
			VAPIDPrivateKey: vapidEnv.VAPIDPrivateKey,
			TTL:             86400,
			Urgency:         webpush.UrgencyNormal,
		},
	}
}

func (s *WebPushSender) Push(ctx context.Context, sub *pushsubscription.Subscription, payload []byte) Outcome {
	wpSub := &webpush.Subscription{
		Endpoint: sub.Endpoint,
		Keys: webpush.Keys{
			P256dh: sub.P256dhKey,
			Auth:   sub.AuthKey,
		},
	}

	resp, err := webpush.SendNotificationWithContext(ctx, payload, wpSub, s.options)
	if err != nil {
		return Outcome{Kind: OutcomeTransient, Err: err}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusGone || resp.StatusCode == http.StatusNotFound:
		return Outcome{Kind: OutcomePermanent, StatusCode: resp.StatusCode}
	case resp.StatusCode >= 400:
		return Outcome{Kind: OutcomeTransient, StatusCode: resp.StatusCode}
	default:
		return Outcome{Kind: OutcomeDelivered, StatusCode: resp.StatusCode}
	}
}
