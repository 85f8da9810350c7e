package notification

import (
	"time"

	"github.com/kazz187/taskcadence/internal/duedate"
)

const (
	TypeDeadlineReminder = "deadline_reminder"
	TypeDeadlineToday    = "deadline_today"
	TypeRecurringCreated = "recurring_task_created"

	DefaultIcon = "bell"
)

type Notification struct {
	ID          string        `json:"-"`
	UserID      string        `json:"userId"`
	ProjectID   string        `json:"projectId,omitempty"`
	TaskID      string        `json:"taskId,omitempty"`
	Type        string        `json:"type"`
	Title       string        `json:"title,omitempty"`
	Description string        `json:"description,omitempty"`
	DueDate     duedate.Field `json:"dueDate,omitzero"`
	Priority    int           `json:"priority,omitempty"`
	Status      string        `json:"status,omitempty"`
	Message     string        `json:"message,omitempty"`
	Icon        string        `json:"icon"`
	ProjectName string        `json:"projectName,omitempty"`
	Tags        []string      `json:"tags"`
	IsRead      bool          `json:"isRead"`
	CreatedAt   time.Time     `json:"createdAt"`
}

// Payload is the loosely typed input of Sink.Add. Keys follow the stored
// field names; nil values are dropped.
type Payload map[string]any
