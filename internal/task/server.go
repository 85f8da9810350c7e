package task

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/kazz187/taskcadence/pkg/cerr"
)

// DeadlineChecker runs the immediate deadline check for one task and
// returns the number of notifications it created.
type DeadlineChecker interface {
	CheckTask(ctx context.Context, projectID, taskID string, t *Task, projectName string) (int, error)
}

// SpawnResult is the outcome of completing a recurring task.
type SpawnResult struct {
	NewTaskID string   `json:"newTaskId,omitempty"`
	Reason    string   `json:"reason,omitempty"`
	Warnings  []string `json:"warnings,omitempty"`
}

type InstanceSpawner interface {
	CreateNextInstance(ctx context.Context, projectID, taskID string, completed *Task) (SpawnResult, error)
}

// Server is the minimal task CRUD surface. Its job here is to run the
// deadline check after every write and the spawner when a recurring task is
// completed.
type Server struct {
	repo    Repository
	checker DeadlineChecker
	spawner InstanceSpawner
	now     func() time.Time
}

func NewServer(repo Repository, checker DeadlineChecker, spawner InstanceSpawner, now func() time.Time) *Server {
	if now == nil {
		now = time.Now
	}
	return &Server{repo: repo, checker: checker, spawner: spawner, now: now}
}

func (s *Server) Mount(r chi.Router) {
	for _, prefix := range []string{"/tasks", "/projects/{projectID}/tasks"} {
		r.Route(prefix, func(r chi.Router) {
			r.Post("/", s.CreateTask)
			r.Get("/{taskID}", s.GetTask)
			r.Patch("/{taskID}", s.UpdateTask)
			r.Put("/{taskID}", s.UpdateTask)
			r.Get("/{taskID}/subtasks", s.ListSubtasks)
			r.Post("/{taskID}/subtasks", s.CreateSubtask)
		})
	}
}

type taskResponse struct {
	ID                    string       `json:"id"`
	ProjectID             string       `json:"projectId,omitempty"`
	Task                  *Task        `json:"task"`
	DeadlineNotifications int          `json:"deadlineNotifications"`
	NextInstance          *SpawnResult `json:"nextInstance,omitempty"`
	Warnings              []string     `json:"warnings,omitempty"`
}

func (s *Server) CreateTask(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	projectID := chi.URLParam(r, "projectID")

	var t Task
	if err := json.NewDecoder(r.Body).Decode(&t); err != nil {
		cerr.SetNewJSONError(ctx, cerr.InvalidArgument, "invalid request body", err)
		return
	}
	now := s.now()
	t.ID = ""
	t.PreviousInstanceID = ""
	t.RecurringInstanceCount = 0
	t.CreatedAt = now
	t.UpdatedAt = now
	t.ApplyDefaults()
	if err := t.Validate(); err != nil {
		cerr.SetJSONError(ctx, cerr.NewError(cerr.InvalidArgument, err.Error(), err))
		return
	}
	if err := s.repo.Create(ctx, projectID, &t); err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}

	resp := taskResponse{ID: t.ID, ProjectID: projectID, Task: &t}
	s.checkDeadline(ctx, &t, &resp)
	cerr.SetJSONResponseWithStatus(ctx, http.StatusCreated, resp)
}

func (s *Server) GetTask(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	projectID := chi.URLParam(r, "projectID")
	t, err := s.repo.Get(ctx, projectID, chi.URLParam(r, "taskID"))
	if err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	cerr.SetJSONResponse(ctx, taskResponse{ID: t.ID, ProjectID: projectID, Task: t})
}

// UpdateTask overlays the request body on the stored task.
func (s *Server) UpdateTask(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	projectID := chi.URLParam(r, "projectID")

	t, err := s.repo.Get(ctx, projectID, chi.URLParam(r, "taskID"))
	if err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	wasCompleted := t.Status.IsCompleted()
	prevStatus, prevUpdatedAt := t.Status, t.UpdatedAt
	id, createdAt := t.ID, t.CreatedAt

	if err := json.NewDecoder(r.Body).Decode(t); err != nil {
		cerr.SetNewJSONError(ctx, cerr.InvalidArgument, "invalid request body", err)
		return
	}
	t.ID, t.ProjectID, t.CreatedAt = id, projectID, createdAt
	t.UpdatedAt = s.now()
	t.ApplyDefaults()
	if err := t.Validate(); err != nil {
		cerr.SetJSONError(ctx, cerr.NewError(cerr.InvalidArgument, err.Error(), err))
		return
	}
	if err := s.repo.Update(ctx, t); err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}

	resp := taskResponse{ID: t.ID, ProjectID: projectID, Task: t}
	if !wasCompleted && t.Status.IsCompleted() && t.IsRecurring && s.spawner != nil {
		res, err := s.spawner.CreateNextInstance(ctx, projectID, t.ID, t)
		if err != nil {
			// Reopen the task so that completing it again retries the spawn.
			t.Status, t.UpdatedAt = prevStatus, prevUpdatedAt
			if rerr := s.repo.Update(ctx, t); rerr != nil {
				slog.ErrorContext(ctx, "failed to reopen task after spawn failure", "task_id", t.ID, "error", rerr)
			}
			cerr.SetJSONError(ctx, err)
			return
		}
		resp.NextInstance = &res
	}
	s.checkDeadline(ctx, t, &resp)
	if resp.NextInstance != nil && resp.NextInstance.NewTaskID != "" {
		s.checkNextInstance(ctx, projectID, resp.NextInstance.NewTaskID, &resp)
	}
	cerr.SetJSONResponse(ctx, resp)
}

// checkNextInstance runs the immediate check for a freshly spawned instance,
// as for any other created task.
func (s *Server) checkNextInstance(ctx context.Context, projectID, id string, resp *taskResponse) {
	if s.checker == nil {
		return
	}
	next, err := s.repo.Get(ctx, projectID, id)
	if err != nil {
		slog.WarnContext(ctx, "failed to load next instance for deadline check", "task_id", id, "error", err)
		return
	}
	n, err := s.checker.CheckTask(ctx, projectID, id, next, "")
	if err != nil {
		resp.Warnings = append(resp.Warnings, "deadline check of next instance failed: "+err.Error())
		return
	}
	resp.DeadlineNotifications += n
}

// checkDeadline runs the immediate check. Its failure never fails the write.
func (s *Server) checkDeadline(ctx context.Context, t *Task, resp *taskResponse) {
	if s.checker == nil {
		return
	}
	n, err := s.checker.CheckTask(ctx, t.ProjectID, t.ID, t, "")
	if err != nil {
		slog.WarnContext(ctx, "immediate deadline check failed", "task_id", t.ID, "error", err)
		resp.Warnings = append(resp.Warnings, "deadline check failed: "+err.Error())
		return
	}
	resp.DeadlineNotifications = n
}

type subtaskResponse struct {
	ID      string   `json:"id"`
	Subtask *Subtask `json:"subtask"`
}

type subtasksResponse struct {
	Subtasks []subtaskResponse `json:"subtasks"`
}

func (s *Server) ListSubtasks(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	subs, err := s.repo.ListSubtasks(ctx, chi.URLParam(r, "projectID"), chi.URLParam(r, "taskID"))
	if err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	resp := subtasksResponse{Subtasks: make([]subtaskResponse, 0, len(subs))}
	for _, sub := range subs {
		resp.Subtasks = append(resp.Subtasks, subtaskResponse{ID: sub.ID, Subtask: sub})
	}
	cerr.SetJSONResponse(ctx, resp)
}

func (s *Server) CreateSubtask(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	projectID, taskID := chi.URLParam(r, "projectID"), chi.URLParam(r, "taskID")

	if _, err := s.repo.Get(ctx, projectID, taskID); err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	var sub Subtask
	if err := json.NewDecoder(r.Body).Decode(&sub); err != nil {
		cerr.SetNewJSONError(ctx, cerr.InvalidArgument, "invalid request body", err)
		return
	}
	now := s.now()
	sub.CreatedAt, sub.UpdatedAt = now, now
	sub.ApplyDefaults()
	if !sub.Status.Valid() {
		cerr.SetJSONError(ctx, cerr.NewError(cerr.InvalidArgument, "invalid status", nil).AddFieldViolation("status", string(sub.Status)))
		return
	}
	if err := s.repo.CreateSubtask(ctx, projectID, taskID, &sub); err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	cerr.SetJSONResponseWithStatus(ctx, http.StatusCreated, subtaskResponse{ID: sub.ID, Subtask: &sub})
}
