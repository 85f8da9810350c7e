// Package spawner creates the successor of a completed recurring task.
package spawner

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/kazz187/taskcadence/internal/duedate"
	"github.com/kazz187/taskcadence/internal/eventbus"
	"github.com/kazz187/taskcadence/internal/notification"
	"github.com/kazz187/taskcadence/internal/project"
	"github.com/kazz187/taskcadence/internal/recurrence"
	"github.com/kazz187/taskcadence/internal/task"
)

// Result is the outcome of CreateNextInstance. Exactly one of NewTaskID and
// Reason is set. Warnings lists best-effort steps that failed.
type Result = task.SpawnResult

const ReasonNotRecurring = "Task is not recurring"

type Notifier interface {
	Add(ctx context.Context, payload notification.Payload, projectName string) (*notification.Notification, error)
}

type Spawner struct {
	tasks    task.Repository
	projects project.Repository
	notifier Notifier
	eventBus *eventbus.Bus
	now      func() time.Time
}

func New(tasks task.Repository, projects project.Repository, notifier Notifier, eventBus *eventbus.Bus, now func() time.Time) *Spawner {
	if now == nil {
		now = time.Now
	}
	return &Spawner{
		tasks:    tasks,
		projects: projects,
		notifier: notifier,
		eventBus: eventBus,
		now:      now,
	}
}

// CreateNextInstance builds the successor of completed, which was stored as
// taskID under projectID (empty for standalone tasks). Failing to store the
// successor is returned as is; subtask copies and the creator notification
// only add warnings.
func (s *Spawner) CreateNextInstance(ctx context.Context, projectID, taskID string, completed *task.Task) (Result, error) {
	if !completed.IsRecurring || completed.RecurrencePattern == nil {
		return Result{Reason: ReasonNotRecurring}, nil
	}
	pattern := *completed.RecurrencePattern
	now := s.now()

	decision, err := recurrence.ShouldCreateNext(pattern, completed.RecurringInstanceCount, completed.DueDate.Value, now)
	if err != nil {
		return Result{}, err
	}
	if !decision.Create {
		slog.InfoContext(ctx, "recurring task chain ended", "project_id", projectID, "task_id", taskID, "reason", decision.Reason)
		return Result{Reason: decision.Reason}, nil
	}

	nextDue, err := recurrence.NextDueDate(completed.DueDate.Value, pattern, now)
	if err != nil {
		return Result{}, err
	}

	next := successor(completed, taskID, nextDue, now)
	if err := s.tasks.Create(ctx, projectID, next); err != nil {
		return Result{}, err
	}
	res := Result{NewTaskID: next.ID}
	slog.InfoContext(ctx, "recurring task instance created",
		"project_id", projectID,
		"task_id", taskID,
		"new_task_id", next.ID,
		"instance", next.RecurringInstanceCount,
		"due_date", nextDue,
	)

	res.Warnings = append(res.Warnings, s.copySubtasks(ctx, projectID, taskID, next.ID, now)...)
	if w := s.notifyCreator(ctx, projectID, next); w != "" {
		res.Warnings = append(res.Warnings, w)
	}

	if s.eventBus != nil {
		s.eventBus.PublishNew(eventbus.TaskSpawned, next.ID, taskID, map[string]string{"projectId": projectID})
	}
	return res, nil
}

func successor(completed *task.Task, taskID string, nextDue, now time.Time) *task.Task {
	priority := completed.Priority
	if priority == 0 {
		priority = task.DefaultPriority
	}
	pattern := *completed.RecurrencePattern
	return &task.Task{
		Title:                  completed.Title,
		Description:            completed.Description,
		AssigneeID:             completed.AssigneeID,
		OwnerID:                completed.OwnerID,
		Status:                 task.StatusToDo,
		Priority:               priority,
		CollaboratorsIDs:       append([]string(nil), completed.CollaboratorsIDs...),
		Tags:                   append([]string(nil), completed.Tags...),
		DueDate:                duedate.Of(duedate.Format(nextDue)),
		IsRecurring:            true,
		RecurrencePattern:      &pattern,
		RecurringInstanceCount: completed.RecurringInstanceCount + 1,
		PreviousInstanceID:     taskID,
		CreatedAt:              now,
		UpdatedAt:              now,
		CreatedBy:              completed.CreatedBy,
	}
}

func (s *Spawner) copySubtasks(ctx context.Context, projectID, fromTaskID, toTaskID string, now time.Time) []string {
	subtasks, err := s.tasks.ListSubtasks(ctx, projectID, fromTaskID)
	if err != nil {
		slog.WarnContext(ctx, "failed to list subtasks for recurring copy", "task_id", fromTaskID, "error", err)
		return []string{fmt.Sprintf("failed to list subtasks: %v", err)}
	}
	var warnings []string
	for _, src := range subtasks {
		dst := &task.Subtask{
			Title:       src.Title,
			Description: src.Description,
			AssigneeID:  src.AssigneeID,
			OwnerID:     src.OwnerID,
			Status:      task.StatusToDo,
			Priority:    src.Priority,
			DueDate:     src.DueDate,
			CreatedAt:   now,
			UpdatedAt:   now,
			CreatedBy:   src.CreatedBy,
		}
		dst.ApplyDefaults()
		if err := s.tasks.CreateSubtask(ctx, projectID, toTaskID, dst); err != nil {
			slog.WarnContext(ctx, "failed to copy subtask", "task_id", toTaskID, "subtask_id", src.ID, "error", err)
			warnings = append(warnings, fmt.Sprintf("failed to copy subtask %s: %v", src.ID, err))
		}
	}
	return warnings
}

func (s *Spawner) notifyCreator(ctx context.Context, projectID string, next *task.Task) string {
	if next.CreatedBy == "" || s.notifier == nil {
		return ""
	}
	payload := notification.Payload{
		"userId":   next.CreatedBy,
		"taskId":   next.ID,
		"type":     notification.TypeRecurringCreated,
		"title":    next.Title,
		"message":  fmt.Sprintf("Next instance of recurring task '%s' has been created", next.Title),
		"icon":     "repeat",
		"dueDate":  next.DueDate,
		"priority": next.Priority,
		"status":   next.Status,
	}
	if projectID != "" {
		payload["projectId"] = projectID
	}
	if _, err := s.notifier.Add(ctx, payload, s.projects.Name(ctx, projectID)); err != nil {
		slog.WarnContext(ctx, "failed to notify creator of recurring task", "task_id", next.ID, "user_id", next.CreatedBy, "error", err)
		return fmt.Sprintf("failed to notify creator: %v", err)
	}
	return ""
}
