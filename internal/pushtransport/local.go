package pushtransport

import (
	"context"
	"crypto/ecdh"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"sync"

	"github.com/oklog/ulid/v2"
)

// LocalTransport issues channels the way a browser push service does:
// an opaque per-device endpoint plus a fresh P-256 key pair and auth secret.
// It backs the device CLI and tests; a production device would sit behind a
// real platform push service instead.
type LocalTransport struct {
	endpointBase string

	mu      sync.Mutex
	current *Channel
}

func NewLocalTransport(endpointBase string) *LocalTransport {
	return &LocalTransport{endpointBase: endpointBase}
}

func (t *LocalTransport) Subscribe(_ context.Context, serverPublicKey string) (*Channel, error) {
	if serverPublicKey == "" {
		return nil, errors.New("server public key is required")
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.current != nil {
		return t.current, nil
	}

	ch, err := generateChannel(t.endpointBase)
	if err != nil {
		return nil, err
	}
	t.current = ch
	return t.current, nil
}

// generateChannel mints a fresh channel: an opaque endpoint plus a P-256
// key pair and a 16-byte auth secret, both base64url without padding.
func generateChannel(endpointBase string) (*Channel, error) {
	key, err := ecdh.P256().GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("failed to generate channel key pair: %w", err)
	}
	auth := make([]byte, 16)
	if _, err := rand.Read(auth); err != nil {
		return nil, fmt.Errorf("failed to generate auth secret: %w", err)
	}
	return &Channel{
		Endpoint:  endpointBase + "/" + ulid.Make().String(),
		P256dhKey: base64.RawURLEncoding.EncodeToString(key.PublicKey().Bytes()),
		AuthKey:   base64.RawURLEncoding.EncodeToString(auth),
	}, nil
}

func (t *LocalTransport) Current(_ context.Context) (*Channel, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.current, nil
}

func (t *LocalTransport) Release(_ context.Context, ch *Channel) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.current == nil {
		return ErrNoChannel
	}
	if ch != nil && ch.Endpoint != t.current.Endpoint {
		return fmt.Errorf("channel %s is not the active channel", ch.Endpoint)
	}
	t.current = nil
	return nil
}
