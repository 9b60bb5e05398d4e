package pushnotification

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/famnews/famnews/internal/eventbus"
	"github.com/famnews/famnews/internal/pushsubscription"
	"github.com/famnews/famnews/pkg/cerr"
)

func newTestRouter(repo pushsubscription.Repository, pusher Pusher) (*chi.Mux, *eventbus.Bus) {
	bus := eventbus.New()
	vapidEnv := testVAPIDEnv()
	dispatcher := NewDispatcher(vapidEnv, repo, pusher, bus)
	srv := NewServer(vapidEnv, repo, dispatcher, bus)

	r := chi.NewRouter()
	r.Use(cerr.NewJSONResponseChiMiddleware())
	srv.Routes(r)
	return r, bus
}

func doJSON(t *testing.T, r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestHandleGetKey(t *testing.T) {
	r, _ := newTestRouter(&fakeRepo{}, &fakePusher{})

	rec := doJSON(t, r, http.MethodGet, "/push/key", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp keyResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "test-public-key", resp.PublicKey)
}

func TestHandleRegisterIsIdempotent(t *testing.T) {
	repo := &fakeRepo{}
	r, _ := newTestRouter(repo, &fakePusher{})

	body := `{"userId":"u1","endpoint":"https://push.example/e1","p256dh":"pk","auth":"as"}`
	rec := doJSON(t, r, http.MethodPost, "/push/subscriptions", body)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, r, http.MethodPost, "/push/subscriptions", body)
	require.Equal(t, http.StatusOK, rec.Code)

	subs, err := repo.List(context.Background())
	require.NoError(t, err)
	assert.Len(t, subs, 1, "re-registering the same device must not create a second record")
}

func TestHandleRegisterRejectsIncompleteBody(t *testing.T) {
	r, _ := newTestRouter(&fakeRepo{}, &fakePusher{})

	for name, body := range map[string]string{
		"missing userId":   `{"endpoint":"https://push.example/e1","p256dh":"pk","auth":"as"}`,
		"missing endpoint": `{"userId":"u1","p256dh":"pk","auth":"as"}`,
		"missing keys":     `{"userId":"u1","endpoint":"https://push.example/e1"}`,
		"not json":         `not json`,
	} {
		rec := doJSON(t, r, http.MethodPost, "/push/subscriptions", body)
		assert.Equal(t, http.StatusBadRequest, rec.Code, name)
	}
}

func TestHandleUnregister(t *testing.T) {
	repo := threeUserRepo()
	r, _ := newTestRouter(repo, &fakePusher{})

	body := `{"userId":"u1","endpoint":"https://push.example/e1"}`
	rec := doJSON(t, r, http.MethodDelete, "/push/subscriptions", body)
	require.Equal(t, http.StatusOK, rec.Code)

	subs, err := repo.List(context.Background())
	require.NoError(t, err)
	assert.Len(t, subs, 2)

	// Same device again: the record is already gone.
	rec = doJSON(t, r, http.MethodDelete, "/push/subscriptions", body)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandleSendSummary(t *testing.T) {
	repo := threeUserRepo()
	pusher := &fakePusher{outcomes: map[string]Outcome{
		"https://push.example/e3": {Kind: OutcomeTransient, StatusCode: http.StatusBadGateway},
	}}
	r, _ := newTestRouter(repo, pusher)

	rec := doJSON(t, r, http.MethodPost, "/notifications/send", `{"title":"Hi","excludeUserId":"u1"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp sendResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "Notifications sent", resp.Message)
	assert.Equal(t, 1, resp.Sent)
	assert.Equal(t, 1, resp.Failed)
}

func TestHandleSendNoSubscriptions(t *testing.T) {
	r, _ := newTestRouter(&fakeRepo{}, &fakePusher{})

	rec := doJSON(t, r, http.MethodPost, "/notifications/send", `{}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp sendResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "No subscriptions to notify", resp.Message)
	assert.Equal(t, 0, resp.Sent)
	assert.Equal(t, 0, resp.Failed)
}

func TestHandleSendWrongVerbRejectedStructurally(t *testing.T) {
	repo := threeUserRepo()
	pusher := &fakePusher{}
	r, _ := newTestRouter(repo, pusher)

	rec := doJSON(t, r, http.MethodGet, "/notifications/send", "")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	assert.Empty(t, pusher.calls, "a wrong-verb request must not reach the transport")
}

func TestHandleTestQueuesEvent(t *testing.T) {
	r, bus := newTestRouter(&fakeRepo{}, &fakePusher{})
	subID, ch := bus.Subscribe(1)
	defer bus.Unsubscribe(subID)

	rec := doJSON(t, r, http.MethodPost, "/notifications/test", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp testResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "Test notification queued", resp.Message)

	select {
	case event := <-ch:
		assert.Equal(t, eventbus.EventTypeTestRequested, event.Type)
		assert.Equal(t, "Family News Test", event.Title)
	default:
		t.Fatal("expected a test event on the bus")
	}
}
