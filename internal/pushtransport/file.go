package pushtransport

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/famnews/famnews/pkg/storage"
)

const channelPath = "push_channel.yaml"

type channelRecord struct {
	Endpoint  string `yaml:"endpoint"`
	P256dhKey string `yaml:"p256dh_key"`
	AuthKey   string `yaml:"auth_key"`
}

// FileTransport persists the device's channel through the storage layer, so
// subscribe and unsubscribe can run as separate processes.
type FileTransport struct {
	store        storage.Storage
	endpointBase string

	mu sync.Mutex
}

func NewFileTransport(store storage.Storage, endpointBase string) *FileTransport {
	return &FileTransport{store: store, endpointBase: endpointBase}
}

func (t *FileTransport) Subscribe(ctx context.Context, serverPublicKey string) (*Channel, error) {
	if serverPublicKey == "" {
		return nil, errors.New("server public key is required")
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	ch, err := t.read(ctx)
	if err != nil {
		return nil, err
	}
	if ch != nil {
		return ch, nil
	}

	ch, err = generateChannel(t.endpointBase)
	if err != nil {
		return nil, err
	}
	data, err := yaml.Marshal(&channelRecord{
		Endpoint:  ch.Endpoint,
		P256dhKey: ch.P256dhKey,
		AuthKey:   ch.AuthKey,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal channel: %w", err)
	}
	if err := t.store.Write(ctx, channelPath, data); err != nil {
		return nil, fmt.Errorf("failed to persist channel: %w", err)
	}
	return ch, nil
}

func (t *FileTransport) Current(ctx context.Context) (*Channel, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.read(ctx)
}

func (t *FileTransport) Release(ctx context.Context, ch *Channel) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	current, err := t.read(ctx)
	if err != nil {
		return err
	}
	if current == nil {
		return ErrNoChannel
	}
	if ch != nil && ch.Endpoint != current.Endpoint {
		return fmt.Errorf("channel %s is not the active channel", ch.Endpoint)
	}
	if err := t.store.Delete(ctx, channelPath); err != nil {
		return fmt.Errorf("failed to remove channel: %w", err)
	}
	return nil
}

func (t *FileTransport) read(ctx context.Context) (*Channel, error) {
	data, err := t.store.Read(ctx, channelPath)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read channel: %w", err)
	}
	var rec channelRecord
	if err := yaml.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("failed to unmarshal channel: %w", err)
	}
	return &Channel{
		Endpoint:  rec.Endpoint,
		P256dhKey: rec.P256dhKey,
		AuthKey:   rec.AuthKey,
	}, nil
}
