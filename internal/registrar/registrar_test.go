package registrar

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/famnews/famnews/internal/pushtransport"
	"github.com/famnews/famnews/pkg/cerr"
)

type fakeAPI struct {
	serverKey     string
	registered    map[string]*pushtransport.Channel
	unregistered  []string
	unregisterErr error
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{
		serverKey:  "server-public-key",
		registered: map[string]*pushtransport.Channel{},
	}
}

func (a *fakeAPI) ServerKey(context.Context) (string, error) {
	return a.serverKey, nil
}

func (a *fakeAPI) Register(_ context.Context, userID string, ch *pushtransport.Channel) error {
	a.registered[userID+"|"+ch.Endpoint] = ch
	return nil
}

func (a *fakeAPI) Unregister(_ context.Context, userID, endpoint string) error {
	a.unregistered = append(a.unregistered, endpoint)
	if a.unregisterErr != nil {
		return a.unregisterErr
	}
	delete(a.registered, userID+"|"+endpoint)
	return nil
}

func grantedRegistrar(api *fakeAPI) *Registrar {
	platform := &StaticPlatform{IsSupported: true, Perm: PermissionDefault}
	transport := pushtransport.NewLocalTransport("https://push.example/devices")
	return New(platform, transport, api, "u1")
}

func TestSubscribeRegistersChannel(t *testing.T) {
	api := newFakeAPI()
	r := grantedRegistrar(api)

	status, err := r.Subscribe(context.Background())
	require.NoError(t, err)
	assert.True(t, status.Subscribed)
	assert.Equal(t, PermissionGranted, status.Permission)
	assert.NotEmpty(t, status.Endpoint)
	assert.Len(t, api.registered, 1)
}

func TestSubscribeTwiceReusesChannel(t *testing.T) {
	api := newFakeAPI()
	r := grantedRegistrar(api)

	first, err := r.Subscribe(context.Background())
	require.NoError(t, err)
	second, err := r.Subscribe(context.Background())
	require.NoError(t, err)

	assert.Equal(t, first.Endpoint, second.Endpoint)
	assert.Len(t, api.registered, 1, "re-subscribing must update the same record")
}

func TestSubscribeUnsupportedDevice(t *testing.T) {
	platform := &StaticPlatform{IsSupported: false}
	r := New(platform, pushtransport.NewLocalTransport("https://push.example/devices"), newFakeAPI(), "u1")

	_, err := r.Subscribe(context.Background())
	assert.True(t, cerr.IsCode(err, cerr.FailedPrecondition))
}

func TestSubscribeDeniedPermission(t *testing.T) {
	platform := &StaticPlatform{IsSupported: true, Perm: PermissionDenied}
	api := newFakeAPI()
	r := New(platform, pushtransport.NewLocalTransport("https://push.example/devices"), api, "u1")

	_, err := r.Subscribe(context.Background())
	assert.True(t, cerr.IsCode(err, cerr.PermissionDenied))
	assert.Empty(t, api.registered, "a denied device must never reach the server")
}

func TestUnsubscribeRemovesRecordThenChannel(t *testing.T) {
	api := newFakeAPI()
	r := grantedRegistrar(api)

	status, err := r.Subscribe(context.Background())
	require.NoError(t, err)

	_, err = r.Unsubscribe(context.Background())
	require.NoError(t, err)
	assert.Empty(t, api.registered)
	assert.Equal(t, []string{status.Endpoint}, api.unregistered)

	after, err := r.Status(context.Background())
	require.NoError(t, err)
	assert.False(t, after.Subscribed)
}

func TestUnsubscribeWithoutSubscriptionIsNoOp(t *testing.T) {
	api := newFakeAPI()
	r := grantedRegistrar(api)

	status, err := r.Unsubscribe(context.Background())
	require.NoError(t, err)
	assert.False(t, status.Subscribed)
	assert.Empty(t, api.unregistered, "no channel means no server call")
}

func TestUnsubscribeToleratesMissingServerRecord(t *testing.T) {
	api := newFakeAPI()
	r := grantedRegistrar(api)

	_, err := r.Subscribe(context.Background())
	require.NoError(t, err)

	api.unregisterErr = cerr.NewError(cerr.NotFound, "push subscription not found", nil)
	_, err = r.Unsubscribe(context.Background())
	require.NoError(t, err)

	after, err := r.Status(context.Background())
	require.NoError(t, err)
	assert.False(t, after.Subscribed, "channel is released even when the record is already gone")
}

func TestUnsubscribeKeepsChannelWhenServerFails(t *testing.T) {
	api := newFakeAPI()
	r := grantedRegistrar(api)

	_, err := r.Subscribe(context.Background())
	require.NoError(t, err)

	api.unregisterErr = cerr.NewError(cerr.Internal, "server error", nil)
	_, err = r.Unsubscribe(context.Background())
	require.Error(t, err)

	after, err := r.Status(context.Background())
	require.NoError(t, err)
	assert.True(t, after.Subscribed, "failed removal must leave the channel for a retry")
}

func TestStatusReportsPermission(t *testing.T) {
	platform := &StaticPlatform{IsSupported: true, Perm: PermissionDefault}
	r := New(platform, pushtransport.NewLocalTransport("https://push.example/devices"), newFakeAPI(), "u1")

	status, err := r.Status(context.Background())
	require.NoError(t, err)
	assert.True(t, status.Supported)
	assert.Equal(t, PermissionDefault, status.Permission)
	assert.False(t, status.Subscribed)
}
