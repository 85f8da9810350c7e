// Package deadline finds tasks whose due date falls on today or tomorrow in
// Singapore time and notifies their assignee and collaborators once per
// boundary.
package deadline

import (
	"fmt"
	"time"

	"github.com/kazz187/taskcadence/internal/duedate"
	"github.com/kazz187/taskcadence/internal/notification"
)

type Boundary int

const (
	NoBoundary Boundary = iota
	DueTomorrow
	DueToday
)

func (b Boundary) String() string {
	switch b {
	case DueTomorrow:
		return "due_tomorrow"
	case DueToday:
		return "due_today"
	}
	return "none"
}

// NotificationType is the dedup type recorded for the boundary.
func (b Boundary) NotificationType() string {
	switch b {
	case DueTomorrow:
		return notification.TypeDeadlineReminder
	case DueToday:
		return notification.TypeDeadlineToday
	}
	return ""
}

func (b Boundary) Message(title string) string {
	switch b {
	case DueTomorrow:
		return fmt.Sprintf("Task '%s' is due tomorrow", title)
	case DueToday:
		return fmt.Sprintf("Task '%s' is due today", title)
	}
	return ""
}

// days is the pair of SGT calendar days a scan compares against. It is
// computed once per scan.
type days struct {
	today    time.Time
	tomorrow time.Time
}

func daysAt(now time.Time) days {
	today := duedate.CalendarDay(now)
	return days{today: today, tomorrow: today.AddDate(0, 0, 1)}
}

func (d days) classify(due time.Time) Boundary {
	day := duedate.CalendarDay(due)
	switch {
	case day.Equal(d.tomorrow):
		return DueTomorrow
	case day.Equal(d.today):
		return DueToday
	}
	return NoBoundary
}

// Classify resolves due and compares its SGT calendar day with now's.
func Classify(due duedate.DueDate, now time.Time) (Boundary, error) {
	t, err := duedate.Resolve(due)
	if err != nil {
		return NoBoundary, err
	}
	return daysAt(now).classify(t), nil
}
