package repositoryimpl

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/kazz187/taskcadence/internal/task"
	"github.com/kazz187/taskcadence/pkg/cerr"
	"github.com/kazz187/taskcadence/pkg/docstore"
)

type DocstoreRepository struct {
	db *docstore.Client
}

func NewDocstoreRepository(db *docstore.Client) *DocstoreRepository {
	return &DocstoreRepository{db: db}
}

func (r *DocstoreRepository) tasks(projectID string) *docstore.CollectionRef {
	return r.db.Collection(task.CollectionPath(projectID))
}

func (r *DocstoreRepository) Create(ctx context.Context, projectID string, t *task.Task) error {
	t.ProjectID = projectID
	if t.ID != "" {
		if err := r.tasks(projectID).Doc(t.ID).Set(ctx, t); err != nil {
			return cerr.WrapStorageWriteError("task", err)
		}
		return nil
	}
	ref, err := r.tasks(projectID).Add(ctx, t)
	if err != nil {
		return cerr.WrapStorageWriteError("task", err)
	}
	t.ID = ref.ID()
	return nil
}

func (r *DocstoreRepository) Get(ctx context.Context, projectID, id string) (*task.Task, error) {
	snap, err := r.tasks(projectID).Doc(id).Get(ctx)
	if err != nil {
		return nil, cerr.WrapStorageReadError("task", err)
	}
	if !snap.Exists() {
		return nil, cerr.NewError(cerr.NotFound, "task not found", nil)
	}
	return decodeTask(projectID, snap)
}

func (r *DocstoreRepository) Update(ctx context.Context, t *task.Task) error {
	ref := r.tasks(t.ProjectID).Doc(t.ID)
	snap, err := ref.Get(ctx)
	if err != nil {
		return cerr.WrapStorageReadError("task", err)
	}
	if !snap.Exists() {
		return cerr.NewError(cerr.NotFound, "task not found", nil)
	}
	if err := ref.Set(ctx, t); err != nil {
		return cerr.WrapStorageWriteError("task", err)
	}
	return nil
}

// List returns the tasks of a project in store order. Documents that fail to
// decode are logged and left out.
func (r *DocstoreRepository) List(ctx context.Context, projectID string) ([]*task.Task, error) {
	var tasks []*task.Task
	for snap, err := range r.tasks(projectID).Stream(ctx) {
		if err != nil {
			return nil, cerr.WrapStorageReadError("tasks", err)
		}
		t, err := decodeTask(projectID, snap)
		if err != nil {
			slog.WarnContext(ctx, "skipping undecodable task", "project_id", projectID, "task_id", snap.ID(), "error", err)
			continue
		}
		tasks = append(tasks, t)
	}
	return tasks, nil
}

func (r *DocstoreRepository) ListSubtasks(ctx context.Context, projectID, taskID string) ([]*task.Subtask, error) {
	var subtasks []*task.Subtask
	for snap, err := range r.db.Collection(task.SubtaskCollectionPath(projectID, taskID)).Stream(ctx) {
		if err != nil {
			return nil, cerr.WrapStorageReadError("subtasks", err)
		}
		var s task.Subtask
		if err := snap.DataTo(&s); err != nil {
			slog.WarnContext(ctx, "skipping undecodable subtask", "task_id", taskID, "subtask_id", snap.ID(), "error", err)
			continue
		}
		s.ID = snap.ID()
		subtasks = append(subtasks, &s)
	}
	return subtasks, nil
}

func (r *DocstoreRepository) CreateSubtask(ctx context.Context, projectID, taskID string, s *task.Subtask) error {
	s.ParentTaskID = taskID
	ref, err := r.db.Collection(task.SubtaskCollectionPath(projectID, taskID)).Add(ctx, s)
	if err != nil {
		return cerr.WrapStorageWriteError("subtask", err)
	}
	s.ID = ref.ID()
	return nil
}

func (r *DocstoreRepository) PreviousInstance(ctx context.Context, t *task.Task) (*task.Task, error) {
	if t.PreviousInstanceID == "" {
		return nil, nil
	}
	prev, err := r.Get(ctx, t.ProjectID, t.PreviousInstanceID)
	if cerr.IsCode(err, cerr.NotFound) {
		return nil, nil
	}
	return prev, err
}

func decodeTask(projectID string, snap *docstore.DocumentSnapshot) (*task.Task, error) {
	var t task.Task
	if err := snap.DataTo(&t); err != nil {
		return nil, cerr.NewError(cerr.Internal, "server error", fmt.Errorf("failed to decode task: %w", err))
	}
	t.ID = snap.ID()
	t.ProjectID = projectID
	return &t, nil
}
