package registrar

import (
	"context"
	"errors"
	"log/slog"

	"github.com/famnews/famnews/internal/pushtransport"
	"github.com/famnews/famnews/pkg/cerr"
)

// Permission is the device-level notification permission state.
type Permission string

const (
	PermissionDefault Permission = "default"
	PermissionGranted Permission = "granted"
	PermissionDenied  Permission = "denied"
)

// Platform reports what the device allows. Requesting permission may block on
// user interaction, so it takes a context.
type Platform interface {
	Supported() bool
	Permission() Permission
	RequestPermission(ctx context.Context) (Permission, error)
}

// StaticPlatform is a Platform with fixed answers. The device CLI runs with an
// auto-granting one; tests use it to script denial paths.
type StaticPlatform struct {
	IsSupported bool
	Perm        Permission
}

func (p *StaticPlatform) Supported() bool        { return p.IsSupported }
func (p *StaticPlatform) Permission() Permission { return p.Perm }

func (p *StaticPlatform) RequestPermission(context.Context) (Permission, error) {
	if p.Perm == PermissionDefault {
		p.Perm = PermissionGranted
	}
	return p.Perm, nil
}

// API is the slice of the server this device talks to.
type API interface {
	ServerKey(ctx context.Context) (string, error)
	Register(ctx context.Context, userID string, ch *pushtransport.Channel) error
	Unregister(ctx context.Context, userID, endpoint string) error
}

// Status is a snapshot of this device's push state.
type Status struct {
	Supported  bool
	Permission Permission
	Subscribed bool
	Endpoint   string
}

// Registrar drives the device's subscription lifecycle: permission, channel
// creation against the transport, and registration with the server.
type Registrar struct {
	platform  Platform
	transport pushtransport.Transport
	api       API
	userID    string
}

func New(platform Platform, transport pushtransport.Transport, api API, userID string) *Registrar {
	return &Registrar{
		platform:  platform,
		transport: transport,
		api:       api,
		userID:    userID,
	}
}

func (r *Registrar) Status(ctx context.Context) (*Status, error) {
	status := &Status{
		Supported:  r.platform.Supported(),
		Permission: r.platform.Permission(),
	}
	if !status.Supported {
		return status, nil
	}
	ch, err := r.transport.Current(ctx)
	if err != nil {
		return nil, err
	}
	if ch != nil {
		status.Subscribed = true
		status.Endpoint = ch.Endpoint
	}
	return status, nil
}

// Subscribe obtains permission, creates a channel and registers it with the
// server. Calling it while already subscribed re-registers the existing
// channel, which the server treats as an update of the same record.
func (r *Registrar) Subscribe(ctx context.Context) (*Status, error) {
	if !r.platform.Supported() {
		return nil, cerr.NewError(cerr.FailedPrecondition, "push notifications are not supported on this device", nil)
	}

	perm := r.platform.Permission()
	if perm == PermissionDefault {
		var err error
		perm, err = r.platform.RequestPermission(ctx)
		if err != nil {
			return nil, cerr.NewError(cerr.Internal, "server error", err)
		}
	}
	if perm != PermissionGranted {
		return nil, cerr.NewError(cerr.PermissionDenied, "notification permission was not granted", nil)
	}

	serverKey, err := r.api.ServerKey(ctx)
	if err != nil {
		return nil, err
	}
	ch, err := r.transport.Subscribe(ctx, serverKey)
	if err != nil {
		return nil, cerr.NewError(cerr.Internal, "server error", err)
	}
	if err := r.api.Register(ctx, r.userID, ch); err != nil {
		return nil, err
	}

	return &Status{
		Supported:  true,
		Permission: PermissionGranted,
		Subscribed: true,
		Endpoint:   ch.Endpoint,
	}, nil
}

// Unsubscribe removes the server record first and only then releases the
// channel, so a failed removal leaves a channel we can retry with. With no
// active channel it reports success without calling the server.
func (r *Registrar) Unsubscribe(ctx context.Context) (*Status, error) {
	status := &Status{
		Supported:  r.platform.Supported(),
		Permission: r.platform.Permission(),
	}

	ch, err := r.transport.Current(ctx)
	if err != nil {
		return nil, err
	}
	if ch == nil {
		return status, nil
	}

	if err := r.api.Unregister(ctx, r.userID, ch.Endpoint); err != nil {
		if !cerr.IsCode(err, cerr.NotFound) {
			return nil, err
		}
		// The server already dropped the record; keep going.
		slog.Debug("unsubscribe: server record already gone", "endpoint", ch.Endpoint)
	}

	if err := r.transport.Release(ctx, ch); err != nil && !errors.Is(err, pushtransport.ErrNoChannel) {
		return nil, cerr.NewError(cerr.Internal, "server error", err)
	}
	return status, nil
}
