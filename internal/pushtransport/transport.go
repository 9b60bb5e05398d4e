package pushtransport

import (
	"context"
	"errors"
)

// ErrNoChannel is returned when an operation needs an active channel and the
// device has none.
var ErrNoChannel = errors.New("no active push channel")

// Channel is the push-receiving address of one device: an opaque endpoint
// issued by the push service plus the client key material the server needs
// to encrypt payloads for it.
type Channel struct {
	Endpoint  string
	P256dhKey string
	AuthKey   string
}

// Transport is the device-side half of the push platform: create, inspect
// and destroy this device's push channel. Sending is the server-side half
// (see pushnotification.Pusher).
type Transport interface {
	// Subscribe returns the device's channel, creating one bound to the
	// server's public signing key if none is active yet.
	Subscribe(ctx context.Context, serverPublicKey string) (*Channel, error)
	// Current returns the active channel, or nil when the device has none.
	Current(ctx context.Context) (*Channel, error)
	// Release destroys the channel. ErrNoChannel when none is active.
	Release(ctx context.Context, ch *Channel) error
}
