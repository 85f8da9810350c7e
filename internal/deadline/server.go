package deadline

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/kazz187/taskcadence/pkg/cerr"
)

// Server exposes a manual trigger for the batch scan.
type Server struct {
	scanner BatchScanner
}

func NewServer(scanner BatchScanner) *Server {
	return &Server{scanner: scanner}
}

func (s *Server) Mount(r chi.Router) {
	r.Post("/notifications/check-deadlines", s.CheckDeadlines)
}

type checkResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
	*Summary
}

func (s *Server) CheckDeadlines(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sum, err := s.scanner.ScanAll(ctx)
	if err != nil {
		cerr.SetJSONResponseWithStatus(ctx, http.StatusInternalServerError, checkResponse{Error: err.Error()})
		return
	}
	cerr.SetJSONResponse(ctx, checkResponse{
		Success: true,
		Message: "Deadline check completed",
		Summary: &sum,
	})
}
