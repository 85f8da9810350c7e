package deadline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/kazz187/taskcadence/internal/duedate"
	"github.com/kazz187/taskcadence/internal/eventbus"
	"github.com/kazz187/taskcadence/internal/notification"
	"github.com/kazz187/taskcadence/internal/project"
	"github.com/kazz187/taskcadence/internal/task"
	"github.com/kazz187/taskcadence/pkg/clog"
	"github.com/kazz187/taskcadence/pkg/panicerr"
)

const jobName = "deadline_scan"

type Notifier interface {
	Add(ctx context.Context, payload notification.Payload, projectName string) (*notification.Notification, error)
}

// Summary counts what one scan did.
type Summary struct {
	RunID                string `json:"runId,omitempty"`
	ProjectsScanned      int    `json:"projectsScanned"`
	TasksScanned         int    `json:"tasksScanned"`
	TasksSkipped         int    `json:"tasksSkipped"`
	NotificationsCreated int    `json:"notificationsCreated"`
	Errors               int    `json:"errors"`
}

type Scanner struct {
	projects      project.Repository
	tasks         task.Repository
	notifications notification.Repository
	notifier      Notifier
	eventBus      *eventbus.Bus
	now           func() time.Time
	locks         *keyLock
}

func NewScanner(
	projects project.Repository,
	tasks task.Repository,
	notifications notification.Repository,
	notifier Notifier,
	eventBus *eventbus.Bus,
	now func() time.Time,
) *Scanner {
	if now == nil {
		now = time.Now
	}
	return &Scanner{
		projects:      projects,
		tasks:         tasks,
		notifications: notifications,
		notifier:      notifier,
		eventBus:      eventBus,
		now:           now,
		locks:         newKeyLock(),
	}
}

// ScanAll checks every task of every project, then the standalone tasks.
// Failures of single tasks are counted and logged; only failing to list the
// projects aborts the scan.
func (s *Scanner) ScanAll(ctx context.Context) (Summary, error) {
	ctx, runID := clog.ContextWithJob(ctx, jobName)
	start := s.now()
	d := daysAt(start)
	sum := Summary{RunID: runID}
	slog.InfoContext(ctx, "deadline scan started", "today", d.today.Format(time.DateOnly))

	projects, err := s.projects.List(ctx)
	if err != nil {
		slog.ErrorContext(ctx, "deadline scan failed to list projects", "error", err)
		return sum, err
	}
	for _, p := range projects {
		sum.ProjectsScanned++
		name := p.Name
		if name == "" {
			name = project.UnknownName
		}
		s.scanCollection(ctx, d, p.ID, name, &sum)
	}
	s.scanCollection(ctx, d, "", project.PersonalName, &sum)

	slog.InfoContext(ctx, "deadline scan finished",
		"projects_scanned", sum.ProjectsScanned,
		"tasks_scanned", sum.TasksScanned,
		"tasks_skipped", sum.TasksSkipped,
		"notifications_created", sum.NotificationsCreated,
		"errors", sum.Errors,
		"duration", s.now().Sub(start),
	)
	if s.eventBus != nil {
		s.eventBus.PublishNew(eventbus.DeadlineScanned, runID, "", map[string]string{
			"notificationsCreated": strconv.Itoa(sum.NotificationsCreated),
		})
	}
	return sum, nil
}

func (s *Scanner) scanCollection(ctx context.Context, d days, projectID, projectName string, sum *Summary) {
	tasks, err := s.tasks.List(ctx, projectID)
	if err != nil {
		slog.ErrorContext(ctx, "failed to list tasks", "project_id", projectID, "error", err)
		sum.Errors++
		return
	}
	for _, t := range tasks {
		sum.TasksScanned++
		n, err := s.safeCheck(ctx, d, projectID, t, projectName)
		sum.NotificationsCreated += n
		switch {
		case err == nil:
		case errors.Is(err, duedate.ErrInvalid):
			sum.TasksSkipped++
		default:
			sum.Errors++
		}
	}
}

// CheckTask runs the scan rule for one task right after it was written.
// projectName is looked up when empty. An unparseable due date is logged
// and reported as zero notifications.
func (s *Scanner) CheckTask(ctx context.Context, projectID, taskID string, t *task.Task, projectName string) (int, error) {
	if projectName == "" {
		projectName = s.projects.Name(ctx, projectID)
	}
	tc := *t
	tc.ID, tc.ProjectID = taskID, projectID
	n, err := s.safeCheck(ctx, daysAt(s.now()), projectID, &tc, projectName)
	if errors.Is(err, duedate.ErrInvalid) {
		return n, nil
	}
	return n, err
}

func (s *Scanner) safeCheck(ctx context.Context, d days, projectID string, t *task.Task, projectName string) (int, error) {
	var created int
	err := panicerr.Run(func() error {
		var err error
		created, err = s.check(ctx, d, projectID, t, projectName)
		return err
	})
	if err != nil {
		var taskID string
		if t != nil {
			taskID = t.ID
		}
		level := slog.LevelError
		if errors.Is(err, duedate.ErrInvalid) {
			level = slog.LevelWarn
		}
		slog.Log(ctx, level, "deadline check failed, skipping task", "project_id", projectID, "task_id", taskID, "error", err)
	}
	return created, err
}

func (s *Scanner) check(ctx context.Context, d days, projectID string, t *task.Task, projectName string) (int, error) {
	if t.Status.IsCompleted() || t.DueDate.IsZero() {
		return 0, nil
	}
	due, err := duedate.Resolve(t.DueDate.Value)
	if err != nil {
		return 0, err
	}
	b := d.classify(due)
	if b == NoBoundary {
		return 0, nil
	}
	return s.fanOut(ctx, projectID, projectName, t, b)
}

// fanOut notifies each recipient that has no notification of this boundary
// type for the task yet. The existence check and the write run under a per
// key lock, which serializes callers in this process only.
func (s *Scanner) fanOut(ctx context.Context, projectID, projectName string, t *task.Task, b Boundary) (int, error) {
	typ := b.NotificationType()
	created := 0
	var errs []error
	for _, userID := range t.Recipients() {
		ok, err := s.notifyOnce(ctx, projectID, projectName, t, b, userID)
		if err != nil {
			errs = append(errs, fmt.Errorf("notify %s: %w", userID, err))
			continue
		}
		if ok {
			created++
			slog.InfoContext(ctx, "deadline notification created", "task_id", t.ID, "user_id", userID, "type", typ)
		}
	}
	return created, errors.Join(errs...)
}

func (s *Scanner) notifyOnce(ctx context.Context, projectID, projectName string, t *task.Task, b Boundary, userID string) (bool, error) {
	typ := b.NotificationType()
	unlock := s.locks.Lock(dedupKey(t.ID, userID, typ))
	defer unlock()

	exists, err := s.notifications.Exists(ctx, t.ID, userID, typ)
	if err != nil {
		return false, err
	}
	if exists {
		return false, nil
	}
	payload := notification.Payload{
		"userId":      userID,
		"taskId":      t.ID,
		"type":        typ,
		"title":       t.Title,
		"description": t.Description,
		"dueDate":     t.DueDate,
		"priority":    t.Priority,
		"status":      t.Status,
		"message":     b.Message(t.Title),
		"icon":        "calendar",
	}
	if projectID != "" {
		payload["projectId"] = projectID
	}
	if _, err := s.notifier.Add(ctx, payload, projectName); err != nil {
		return false, err
	}
	return true, nil
}
