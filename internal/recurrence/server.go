package recurrence

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/kazz187/taskcadence/internal/duedate"
	"github.com/kazz187/taskcadence/pkg/cerr"
)

// Server exposes the evaluator for client-side previews.
type Server struct {
	now func() time.Time
}

func NewServer(now func() time.Time) *Server {
	if now == nil {
		now = time.Now
	}
	return &Server{now: now}
}

func (s *Server) Mount(r chi.Router) {
	r.Post("/validate-pattern", s.ValidatePattern)
	r.Post("/preview-next-date", s.PreviewNextDate)
}

type validateRequest struct {
	RecurrencePattern any `json:"recurrencePattern"`
}

type validateResponse struct {
	Valid bool   `json:"valid"`
	Error string `json:"error,omitempty"`
}

func (s *Server) ValidatePattern(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req validateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		cerr.SetJSONResponseWithStatus(ctx, http.StatusBadRequest, validateResponse{Error: "invalid request body"})
		return
	}
	if _, err := ParsePattern(req.RecurrencePattern); err != nil {
		cerr.SetJSONResponseWithStatus(ctx, http.StatusBadRequest, validateResponse{Error: err.Error()})
		return
	}
	cerr.SetJSONResponse(ctx, validateResponse{Valid: true})
}

type previewRequest struct {
	CurrentDueDate    duedate.Field `json:"currentDueDate"`
	RecurrencePattern any           `json:"recurrencePattern"`
}

type previewResponse struct {
	CurrentDueDate duedate.Field `json:"currentDueDate"`
	NextDueDate    string        `json:"nextDueDate"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) PreviewNextDate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req previewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		cerr.SetJSONResponseWithStatus(ctx, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}
	p, err := ParsePattern(req.RecurrencePattern)
	if err != nil {
		cerr.SetJSONResponseWithStatus(ctx, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	next, err := NextDueDate(req.CurrentDueDate.Value, p, s.now())
	if err != nil {
		cerr.SetJSONResponseWithStatus(ctx, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	cerr.SetJSONResponse(ctx, previewResponse{
		CurrentDueDate: req.CurrentDueDate,
		NextDueDate:    string(duedate.Format(next)),
	})
}
