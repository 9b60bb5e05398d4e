package pushtransport

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/famnews/famnews/pkg/storage"
)

func newFileTransport(t *testing.T) (*FileTransport, storage.Storage) {
	t.Helper()
	store, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	return NewFileTransport(store, "https://push.example/devices"), store
}

func TestFileTransportChannelSurvivesRestart(t *testing.T) {
	tr, store := newFileTransport(t)

	ch, err := tr.Subscribe(context.Background(), "server-key")
	require.NoError(t, err)
	require.NotNil(t, ch)

	// A new transport over the same storage sees the same channel.
	reopened := NewFileTransport(store, "https://push.example/devices")
	current, err := reopened.Current(context.Background())
	require.NoError(t, err)
	require.NotNil(t, current)
	assert.Equal(t, ch.Endpoint, current.Endpoint)
	assert.Equal(t, ch.P256dhKey, current.P256dhKey)
}

func TestFileTransportSubscribeIsIdempotent(t *testing.T) {
	tr, _ := newFileTransport(t)

	first, err := tr.Subscribe(context.Background(), "server-key")
	require.NoError(t, err)
	second, err := tr.Subscribe(context.Background(), "server-key")
	require.NoError(t, err)
	assert.Equal(t, first.Endpoint, second.Endpoint)
}

func TestFileTransportRelease(t *testing.T) {
	tr, _ := newFileTransport(t)

	ch, err := tr.Subscribe(context.Background(), "server-key")
	require.NoError(t, err)

	require.NoError(t, tr.Release(context.Background(), ch))

	current, err := tr.Current(context.Background())
	require.NoError(t, err)
	assert.Nil(t, current)

	assert.ErrorIs(t, tr.Release(context.Background(), nil), ErrNoChannel)
}
