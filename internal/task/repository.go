package task

import (
	"context"
	"strings"
)

// Repository stores tasks. An empty projectID addresses standalone tasks.
type Repository interface {
	Create(ctx context.Context, projectID string, t *Task) error
	Get(ctx context.Context, projectID, id string) (*Task, error)
	Update(ctx context.Context, t *Task) error
	List(ctx context.Context, projectID string) ([]*Task, error)
	ListSubtasks(ctx context.Context, projectID, taskID string) ([]*Subtask, error)
	CreateSubtask(ctx context.Context, projectID, taskID string, s *Subtask) error
	// PreviousInstance follows PreviousInstanceID. It returns nil for the
	// first instance of a chain or when the predecessor was deleted.
	PreviousInstance(ctx context.Context, t *Task) (*Task, error)
}

const (
	projectsCollection = "projects"
	tasksCollection    = "tasks"
	subtasksCollection = "subtasks"
)

// CollectionPath returns the document collection holding the tasks of
// projectID.
func CollectionPath(projectID string) string {
	if projectID == "" {
		return tasksCollection
	}
	return projectsCollection + "/" + projectID + "/" + tasksCollection
}

// SubtaskCollectionPath returns the collection holding the subtasks of a task.
func SubtaskCollectionPath(projectID, taskID string) string {
	return CollectionPath(projectID) + "/" + taskID + "/" + subtasksCollection
}

// ProjectFromCollection reverses CollectionPath. ok is false for paths that
// are not task collections.
func ProjectFromCollection(collection string) (projectID string, ok bool) {
	parts := strings.Split(strings.Trim(collection, "/"), "/")
	switch {
	case len(parts) == 1 && parts[0] == tasksCollection:
		return "", true
	case len(parts) == 3 && parts[0] == projectsCollection && parts[1] != "" && parts[2] == tasksCollection:
		return parts[1], true
	}
	return "", false
}
