package pushnotification

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/kazz187/taskcadence/internal/config"
	"github.com/kazz187/taskcadence/internal/pushsubscription"
	"github.com/kazz187/taskcadence/pkg/cerr"
)

type Server struct {
	vapidEnv *config.VAPIDEnv
	repo     pushsubscription.Repository
}

func NewServer(vapidEnv *config.VAPIDEnv, repo pushsubscription.Repository) *Server {
	return &Server{
		vapidEnv: vapidEnv,
		repo:     repo,
	}
}

func (s *Server) Mount(r chi.Router) {
	r.Get("/push/vapid-public-key", s.GetVapidPublicKey)
	r.Post("/push/subscriptions", s.RegisterPushSubscription)
	r.Delete("/push/subscriptions", s.UnregisterPushSubscription)
}

func (s *Server) GetVapidPublicKey(w http.ResponseWriter, r *http.Request) {
	if s.vapidEnv.VAPIDPublicKey == "" {
		cerr.SetNewJSONError(r.Context(), cerr.FailedPrecondition, "VAPID keys not configured", nil)
		return
	}
	cerr.SetJSONResponse(r.Context(), map[string]string{"publicKey": s.vapidEnv.VAPIDPublicKey})
}

type registerRequest struct {
	UserID    string `json:"userId"`
	Endpoint  string `json:"endpoint"`
	P256dhKey string `json:"p256dhKey"`
	AuthKey   string `json:"authKey"`
}

func (s *Server) RegisterPushSubscription(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		cerr.SetNewJSONError(ctx, cerr.InvalidArgument, "invalid request body", err)
		return
	}
	verr := cerr.NewError(cerr.InvalidArgument, "invalid push subscription", nil)
	for field, v := range map[string]string{"userId": req.UserID, "endpoint": req.Endpoint, "p256dhKey": req.P256dhKey, "authKey": req.AuthKey} {
		if v == "" {
			verr.AddFieldViolation(field, field+" is required")
		}
	}
	if len(verr.Details) > 0 {
		cerr.SetJSONError(ctx, verr)
		return
	}

	sub := &pushsubscription.Subscription{
		UserID:    req.UserID,
		Endpoint:  req.Endpoint,
		P256dhKey: req.P256dhKey,
		AuthKey:   req.AuthKey,
		CreatedAt: time.Now(),
	}
	if err := s.repo.Save(ctx, sub); err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	cerr.SetJSONResponseWithStatus(ctx, http.StatusCreated, map[string]string{"id": sub.ID})
}

func (s *Server) UnregisterPushSubscription(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	endpoint := r.URL.Query().Get("endpoint")
	if endpoint == "" {
		cerr.SetNewJSONError(ctx, cerr.InvalidArgument, "endpoint is required", nil)
		return
	}
	sub, err := s.repo.FindByEndpoint(ctx, endpoint)
	if err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	if err := s.repo.Delete(ctx, sub.ID); err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	cerr.SetJSONResponse(ctx, map[string]bool{"deleted": true})
}
