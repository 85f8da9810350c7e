package task_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kazz187/taskcadence/internal/task"
	"github.com/kazz187/taskcadence/internal/task/repositoryimpl"
	"github.com/kazz187/taskcadence/pkg/cerr"
	"github.com/kazz187/taskcadence/pkg/docstore"
	"github.com/kazz187/taskcadence/pkg/docstore/yamlstore"
	"github.com/kazz187/taskcadence/pkg/storage"
)

type fakeChecker struct {
	checked []string
	err     error
}

func (f *fakeChecker) CheckTask(_ context.Context, projectID, taskID string, _ *task.Task, _ string) (int, error) {
	f.checked = append(f.checked, projectID+"/"+taskID)
	if f.err != nil {
		return 0, f.err
	}
	return 2, nil
}

type fakeSpawner struct {
	repo  task.Repository
	calls []string
	err   error
}

func (f *fakeSpawner) CreateNextInstance(ctx context.Context, projectID, taskID string, completed *task.Task) (task.SpawnResult, error) {
	f.calls = append(f.calls, projectID+"/"+taskID+"/"+string(completed.Status))
	if f.err != nil {
		return task.SpawnResult{}, f.err
	}
	next := &task.Task{Title: completed.Title, Status: task.StatusToDo, Priority: completed.Priority, PreviousInstanceID: taskID}
	if err := f.repo.Create(ctx, projectID, next); err != nil {
		return task.SpawnResult{}, err
	}
	return task.SpawnResult{NewTaskID: next.ID}, nil
}

type fixture struct {
	router  chi.Router
	checker *fakeChecker
	spawner *fakeSpawner
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	s, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	repo := repositoryimpl.NewDocstoreRepository(docstore.New(yamlstore.New(s)))

	f := &fixture{checker: &fakeChecker{}, spawner: &fakeSpawner{repo: repo}}
	now := func() time.Time { return time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC) }
	r := chi.NewRouter()
	r.Use(cerr.NewConvertErrorChiMiddleware())
	task.NewServer(repo, f.checker, f.spawner, now).Mount(r)
	f.router = r
	return f
}

func (f *fixture) do(method, path, body string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, httptest.NewRequest(method, path, strings.NewReader(body)))
	return rec
}

type response struct {
	ID                    string            `json:"id"`
	Task                  map[string]any    `json:"task"`
	DeadlineNotifications int               `json:"deadlineNotifications"`
	NextInstance          *task.SpawnResult `json:"nextInstance"`
	Warnings              []string          `json:"warnings"`
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) response {
	t.Helper()
	var resp response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp), rec.Body.String())
	return resp
}

func TestCreateTaskRunsDeadlineCheck(t *testing.T) {
	f := newFixture(t)

	rec := f.do(http.MethodPost, "/projects/p1/tasks", `{"title":"Report","assigneeId":"u1","dueDate":"2025-06-02"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	resp := decode(t, rec)

	assert.NotEmpty(t, resp.ID)
	assert.Equal(t, 2, resp.DeadlineNotifications)
	assert.Equal(t, []string{"p1/" + resp.ID}, f.checker.checked)
	assert.Equal(t, "to-do", resp.Task["status"])
	assert.EqualValues(t, 5, resp.Task["priority"])

	rec = f.do(http.MethodGet, "/projects/p1/tasks/"+resp.ID, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Report", decode(t, rec).Task["title"])
}

func TestCreateTaskRejectsInvalidPattern(t *testing.T) {
	f := newFixture(t)

	rec := f.do(http.MethodPost, "/tasks", `{"title":"x","isRecurring":true,"recurrencePattern":{"frequency":"hourly","interval":1,"endCondition":"never"}}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "Invalid frequency")
	assert.Empty(t, f.checker.checked)
}

func TestDeadlineCheckFailureIsAWarning(t *testing.T) {
	f := newFixture(t)
	f.checker.err = errors.New("store unavailable")

	rec := f.do(http.MethodPost, "/tasks", `{"title":"Standalone","dueDate":"2025-06-01"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	resp := decode(t, rec)
	assert.Zero(t, resp.DeadlineNotifications)
	assert.Equal(t, []string{"deadline check failed: store unavailable"}, resp.Warnings)
}

func TestCompletingRecurringTaskSpawnsOnce(t *testing.T) {
	f := newFixture(t)

	rec := f.do(http.MethodPost, "/projects/p1/tasks", `{"title":"Standup","dueDate":"2025-06-01","isRecurring":true,"recurrencePattern":{"frequency":"daily","interval":1,"endCondition":"never"}}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	id := decode(t, rec).ID

	rec = f.do(http.MethodPatch, "/projects/p1/tasks/"+id, `{"status":"in progress"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Nil(t, decode(t, rec).NextInstance)

	rec = f.do(http.MethodPatch, "/projects/p1/tasks/"+id, `{"status":"completed"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	resp := decode(t, rec)
	require.NotNil(t, resp.NextInstance)
	nextID := resp.NextInstance.NewTaskID
	require.NotEmpty(t, nextID)
	assert.NotEqual(t, id, nextID)
	assert.Equal(t, 4, resp.DeadlineNotifications, "completed task and next instance are both checked")

	// Already completed: saving again must not spawn another instance.
	rec = f.do(http.MethodPatch, "/projects/p1/tasks/"+id, `{"description":"done"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Nil(t, decode(t, rec).NextInstance)

	assert.Equal(t, []string{"p1/" + id + "/completed"}, f.spawner.calls)
	assert.Equal(t, []string{"p1/" + id, "p1/" + id, "p1/" + id, "p1/" + nextID, "p1/" + id}, f.checker.checked)
}

func TestSubtasks(t *testing.T) {
	f := newFixture(t)

	rec := f.do(http.MethodPost, "/projects/p1/tasks", `{"title":"Parent"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	id := decode(t, rec).ID

	rec = f.do(http.MethodPost, "/projects/p1/tasks/"+id+"/subtasks", `{"title":"Child"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = f.do(http.MethodPost, "/projects/p1/tasks/missing/subtasks", `{"title":"Orphan"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = f.do(http.MethodGet, "/projects/p1/tasks/"+id+"/subtasks", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var list struct {
		Subtasks []struct {
			ID      string         `json:"id"`
			Subtask map[string]any `json:"subtask"`
		} `json:"subtasks"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list.Subtasks, 1)
	assert.Equal(t, "Child", list.Subtasks[0].Subtask["title"])
	assert.Equal(t, "to-do", list.Subtasks[0].Subtask["status"])
}

func TestCreateTaskRejectsMalformedDueDate(t *testing.T) {
	f := newFixture(t)

	rec := f.do(http.MethodPost, "/tasks", `{"title":"x","dueDate":"next tuesday"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "invalid dueDate")
	assert.Empty(t, f.checker.checked)
}

func TestFailedSpawnReopensTask(t *testing.T) {
	f := newFixture(t)

	rec := f.do(http.MethodPost, "/projects/p1/tasks", `{"title":"Standup","status":"in progress","dueDate":"2025-06-01","isRecurring":true,"recurrencePattern":{"frequency":"daily","interval":1,"endCondition":"never"}}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	id := decode(t, rec).ID

	f.spawner.err = cerr.NewError(cerr.Internal, "store unavailable", nil)
	rec = f.do(http.MethodPatch, "/projects/p1/tasks/"+id, `{"status":"completed"}`)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)

	rec = f.do(http.MethodGet, "/projects/p1/tasks/"+id, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "in progress", decode(t, rec).Task["status"])

	f.spawner.err = nil
	rec = f.do(http.MethodPatch, "/projects/p1/tasks/"+id, `{"status":"completed"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.NotNil(t, decode(t, rec).NextInstance)
	assert.Len(t, f.spawner.calls, 2)
}
