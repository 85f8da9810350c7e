package notification

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/kazz187/taskcadence/pkg/cerr"
)

type Server struct {
	repo Repository
}

func NewServer(repo Repository) *Server {
	return &Server{repo: repo}
}

func (s *Server) Mount(r chi.Router) {
	r.Get("/notifications", s.ListNotifications)
}

type listResponse struct {
	Notifications []*Notification `json:"notifications"`
}

func (s *Server) ListNotifications(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := r.URL.Query().Get("userId")
	if userID == "" {
		cerr.SetJSONError(ctx, cerr.NewError(cerr.InvalidArgument, "userId is required", nil).
			AddFieldViolation("userId", "must not be empty"))
		return
	}
	ns, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	if ns == nil {
		ns = []*Notification{}
	}
	cerr.SetJSONResponse(ctx, listResponse{Notifications: ns})
}
