package task

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/kazz187/taskcadence/internal/duedate"
	"github.com/kazz187/taskcadence/internal/recurrence"
)

type Status string

const (
	StatusToDo       Status = "to-do"
	StatusInProgress Status = "in progress"
	StatusCompleted  Status = "completed"
	StatusBlocked    Status = "blocked"
)

// IsCompleted matches "completed" in any letter case.
func (s Status) IsCompleted() bool {
	return strings.EqualFold(string(s), string(StatusCompleted))
}

func (s Status) Valid() bool {
	switch Status(strings.ToLower(string(s))) {
	case StatusToDo, StatusInProgress, StatusCompleted, StatusBlocked:
		return true
	}
	return false
}

const (
	DefaultTitle    = "Untitled task"
	DefaultPriority = 5
	MinPriority     = 1
	MaxPriority     = 10
)

// Task lives either under a project (projects/{projectID}/tasks) or in the
// top-level tasks collection when ProjectID is empty. ID and ProjectID come
// from the document location and are not stored.
type Task struct {
	ID                     string              `json:"-"`
	ProjectID              string              `json:"-"`
	Title                  string              `json:"title"`
	Description            string              `json:"description,omitempty"`
	AssigneeID             string              `json:"assigneeId,omitempty"`
	OwnerID                string              `json:"ownerId,omitempty"`
	Status                 Status              `json:"status"`
	Priority               int                 `json:"priority"`
	CollaboratorsIDs       []string            `json:"collaboratorsIds,omitempty"`
	Tags                   []string            `json:"tags,omitempty"`
	DueDate                duedate.Field       `json:"dueDate,omitzero"`
	IsRecurring            bool                `json:"isRecurring"`
	RecurrencePattern      *recurrence.Pattern `json:"recurrencePattern,omitempty"`
	RecurringInstanceCount int                 `json:"recurringInstanceCount"`
	// PreviousInstanceID is a lookup link to the task this one replaced.
	PreviousInstanceID string    `json:"previousInstanceId,omitempty"`
	CreatedAt          time.Time `json:"createdAt"`
	UpdatedAt          time.Time `json:"updatedAt"`
	CreatedBy          string    `json:"createdBy,omitempty"`
}

// ApplyDefaults fills the defaults for fields a client may leave empty.
func (t *Task) ApplyDefaults() {
	if strings.TrimSpace(t.Title) == "" {
		t.Title = DefaultTitle
	}
	if t.Status == "" {
		t.Status = StatusToDo
	}
	if t.Priority == 0 {
		t.Priority = DefaultPriority
	}
	if len(t.CollaboratorsIDs) > 0 {
		ids := slices.Clone(t.CollaboratorsIDs)
		slices.Sort(ids)
		t.CollaboratorsIDs = slices.Compact(ids)
	}
	if !t.IsRecurring {
		t.RecurrencePattern = nil
	}
}

// Validate checks a task after ApplyDefaults.
func (t *Task) Validate() error {
	if !t.Status.Valid() {
		return fmt.Errorf("invalid status %q", t.Status)
	}
	if t.Priority < MinPriority || t.Priority > MaxPriority {
		return fmt.Errorf("priority must be between %d and %d", MinPriority, MaxPriority)
	}
	if t.RecurringInstanceCount < 0 {
		return fmt.Errorf("recurringInstanceCount must not be negative")
	}
	// Only a malformed ISO string fails here; a missing due date counts from
	// the completion time.
	if _, err := duedate.Normalize(t.DueDate.Value, time.Time{}); err != nil {
		return fmt.Errorf("invalid dueDate: %w", err)
	}
	if t.IsRecurring {
		if t.RecurrencePattern == nil {
			return fmt.Errorf("recurrencePattern is required for recurring tasks")
		}
		p, err := recurrence.ParsePattern(*t.RecurrencePattern)
		if err != nil {
			return err
		}
		if p.EndCondition == recurrence.OnDate {
			if _, err := duedate.ParseISO(p.EndDate); err != nil {
				return fmt.Errorf("invalid endDate: %w", err)
			}
		}
		t.RecurrencePattern = &p
	}
	return nil
}

// Recipients returns the users notified about the task: the assignee and
// every collaborator, without empty ids or repeats.
func (t *Task) Recipients() []string {
	var out []string
	for _, id := range append([]string{t.AssigneeID}, t.CollaboratorsIDs...) {
		if id == "" || slices.Contains(out, id) {
			continue
		}
		out = append(out, id)
	}
	return out
}

// Subtask is owned by its parent task and stored beneath it.
type Subtask struct {
	ID           string        `json:"-"`
	ParentTaskID string        `json:"parentTaskId"`
	Title        string        `json:"title"`
	Description  string        `json:"description,omitempty"`
	AssigneeID   string        `json:"assigneeId,omitempty"`
	OwnerID      string        `json:"ownerId,omitempty"`
	Status       Status        `json:"status"`
	Priority     int           `json:"priority"`
	DueDate      duedate.Field `json:"dueDate,omitzero"`
	CreatedAt    time.Time     `json:"createdAt"`
	UpdatedAt    time.Time     `json:"updatedAt"`
	CreatedBy    string        `json:"createdBy,omitempty"`
}

func (s *Subtask) ApplyDefaults() {
	if strings.TrimSpace(s.Title) == "" {
		s.Title = DefaultTitle
	}
	if s.Status == "" {
		s.Status = StatusToDo
	}
	if s.Priority == 0 {
		s.Priority = DefaultPriority
	}
}
