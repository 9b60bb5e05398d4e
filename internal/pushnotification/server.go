package pushnotification

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/famnews/famnews/internal/config"
	"github.com/famnews/famnews/internal/eventbus"
	"github.com/famnews/famnews/internal/pushsubscription"
	"github.com/famnews/famnews/pkg/cerr"
)

// Server exposes the push HTTP surface: the server signing key, device
// subscription registration, and the broadcast trigger.
type Server struct {
	vapidEnv   *config.VAPIDEnv
	repo       pushsubscription.Repository
	dispatcher *Dispatcher
	bus        *eventbus.Bus
}

func NewServer(vapidEnv *config.VAPIDEnv, repo pushsubscription.Repository, dispatcher *Dispatcher, bus *eventbus.Bus) *Server {
	return &Server{
		vapidEnv:   vapidEnv,
		repo:       repo,
		dispatcher: dispatcher,
		bus:        bus,
	}
}

// Routes mounts the handlers under the API router. Routing is verb-exact, so
// a wrong-verb call is rejected before any store or transport access.
func (s *Server) Routes(r chi.Router) {
	r.Get("/push/key", s.handleGetKey)
	r.Post("/push/subscriptions", s.handleRegister)
	r.Delete("/push/subscriptions", s.handleUnregister)
	r.Post("/notifications/send", s.handleSend)
	r.Post("/notifications/test", s.handleTest)
}

type keyResponse struct {
	PublicKey string `json:"publicKey"`
}

func (s *Server) handleGetKey(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if s.vapidEnv.VAPIDPublicKey == "" {
		cerr.SetNewJSONError(ctx, cerr.FailedPrecondition, "push notifications not configured", nil)
		return
	}
	cerr.SetJSONResponse(ctx, keyResponse{PublicKey: s.vapidEnv.VAPIDPublicKey})
}

type registerRequest struct {
	UserID   string `json:"userId"`
	Endpoint string `json:"endpoint"`
	P256dh   string `json:"p256dh"`
	Auth     string `json:"auth"`
}

type registerResponse struct {
	ID string `json:"id"`
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		cerr.SetNewJSONError(ctx, cerr.InvalidArgument, "invalid request body", err)
		return
	}
	if req.UserID == "" {
		cerr.SetNewJSONError(ctx, cerr.InvalidArgument, "userId is required", nil)
		return
	}
	if req.Endpoint == "" {
		cerr.SetNewJSONError(ctx, cerr.InvalidArgument, "endpoint is required", nil)
		return
	}
	if req.P256dh == "" || req.Auth == "" {
		cerr.SetNewJSONError(ctx, cerr.InvalidArgument, "p256dh and auth are required", nil)
		return
	}

	sub := &pushsubscription.Subscription{
		UserID:    req.UserID,
		Endpoint:  req.Endpoint,
		P256dhKey: req.P256dh,
		AuthKey:   req.Auth,
	}
	if err := s.repo.Upsert(ctx, sub); err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	cerr.SetJSONResponse(ctx, registerResponse{ID: sub.ID})
}

type unregisterRequest struct {
	UserID   string `json:"userId"`
	Endpoint string `json:"endpoint"`
}

func (s *Server) handleUnregister(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req unregisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		cerr.SetNewJSONError(ctx, cerr.InvalidArgument, "invalid request body", err)
		return
	}
	if req.UserID == "" || req.Endpoint == "" {
		cerr.SetNewJSONError(ctx, cerr.InvalidArgument, "userId and endpoint are required", nil)
		return
	}
	if err := s.repo.DeleteByUserAndEndpoint(ctx, req.UserID, req.Endpoint); err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	cerr.SetJSONResponse(ctx, struct{}{})
}

type sendRequest struct {
	Title         string `json:"title"`
	Body          string `json:"body"`
	URL           string `json:"url"`
	ExcludeUserID string `json:"excludeUserId"`
}

type sendResponse struct {
	Message string `json:"message"`
	Sent    int    `json:"sent"`
	Failed  int    `json:"failed"`
}

func (s *Server) handleSend(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req sendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		cerr.SetNewJSONError(ctx, cerr.InvalidArgument, "invalid request body", err)
		return
	}

	summary, err := s.dispatcher.Broadcast(ctx, &Request{
		Title:         req.Title,
		Body:          req.Body,
		URL:           req.URL,
		ExcludeUserID: req.ExcludeUserID,
	})
	if err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}

	resp := sendResponse{Message: "Notifications sent", Sent: summary.Sent, Failed: summary.Failed}
	if summary.Sent == 0 && summary.Failed == 0 {
		resp.Message = "No subscriptions to notify"
	}
	cerr.SetJSONResponse(ctx, resp)
}

type testResponse struct {
	Message string `json:"message"`
}

// handleTest queues a test notification on the event bus and returns
// immediately; delivery happens on the dispatcher's fire-and-forget path.
func (s *Server) handleTest(w http.ResponseWriter, r *http.Request) {
	s.bus.PublishNew(eventbus.EventTypeTestRequested, "", "Family News Test", "Push notifications are working!", "/")
	cerr.SetJSONResponse(r.Context(), testResponse{Message: "Test notification queued"})
}
