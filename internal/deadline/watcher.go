package deadline

import (
	"context"
	"log/slog"

	"github.com/kazz187/taskcadence/internal/task"
	"github.com/kazz187/taskcadence/pkg/docstore/yamlstore"
)

// DocumentWatcher reports documents written to the store by any writer.
type DocumentWatcher interface {
	Watch(ctx context.Context, fn func(path string)) error
}

type TaskChecker interface {
	CheckTask(ctx context.Context, projectID, taskID string, t *task.Task, projectName string) (int, error)
}

// Watcher runs the immediate check for task documents changed outside the
// HTTP API, such as files edited by hand in a local store.
type Watcher struct {
	docs    DocumentWatcher
	tasks   task.Repository
	checker TaskChecker
}

func NewWatcher(docs DocumentWatcher, tasks task.Repository, checker TaskChecker) *Watcher {
	return &Watcher{docs: docs, tasks: tasks, checker: checker}
}

// Run blocks until ctx is done.
func (w *Watcher) Run(ctx context.Context) error {
	slog.InfoContext(ctx, "task document watcher started")
	return w.docs.Watch(ctx, func(path string) {
		w.handle(ctx, path)
	})
}

func (w *Watcher) handle(ctx context.Context, path string) {
	collection, id, ok := yamlstore.SplitDocumentPath(path)
	if !ok {
		return
	}
	projectID, ok := task.ProjectFromCollection(collection)
	if !ok {
		return
	}
	t, err := w.tasks.Get(ctx, projectID, id)
	if err != nil {
		slog.WarnContext(ctx, "watcher failed to load task", "path", path, "error", err)
		return
	}
	n, err := w.checker.CheckTask(ctx, projectID, id, t, "")
	if err != nil {
		slog.WarnContext(ctx, "watcher deadline check failed", "path", path, "error", err)
		return
	}
	if n > 0 {
		slog.InfoContext(ctx, "watcher created deadline notifications", "path", path, "count", n)
	}
}
