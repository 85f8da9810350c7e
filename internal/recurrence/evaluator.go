package recurrence

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/kazz187/taskcadence/internal/duedate"
)

// MaxYear is the last year a due date can be stored in and read back from
// its ISO 8601 form.
const MaxYear = 9999

var ErrOutOfRange = errors.New("next due date is out of range")

// NextDueDate advances current by one period of p. Missing or unrecognized
// due dates count from now. Steps are calendar days, so they never overflow
// a time.Duration.
func NextDueDate(current duedate.DueDate, p Pattern, now time.Time) (time.Time, error) {
	t, err := duedate.Normalize(current, now)
	if err != nil {
		return time.Time{}, err
	}
	n := p.interval()
	var next time.Time
	switch Frequency(strings.ToLower(string(p.Frequency))) {
	case Daily:
		next = t.AddDate(0, 0, n)
	case Weekly:
		next = t.AddDate(0, 0, 7*n)
	case Monthly:
		next = addMonths(t, n)
	case Yearly:
		next = addYears(t, n)
	default:
		return time.Time{}, fmt.Errorf("unsupported frequency %q", p.Frequency)
	}
	if next.Year() > MaxYear || !next.After(t) {
		return time.Time{}, fmt.Errorf("%w: %s plus %d %s", ErrOutOfRange, duedate.Format(t), n, p.Frequency)
	}
	return next, nil
}

// addMonths moves t forward n months, clamping the day to the last day of
// the target month.
func addMonths(t time.Time, n int) time.Time {
	m := int(t.Month()) - 1 + n
	year := t.Year() + m/12
	month := time.Month(m%12 + 1)
	day := min(t.Day(), daysIn(year, month))
	return time.Date(year, month, day, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
}

// addYears moves t forward n years. Feb 29 lands on Feb 28 in common years.
func addYears(t time.Time, n int) time.Time {
	year := t.Year() + n
	day := min(t.Day(), daysIn(year, t.Month()))
	return time.Date(year, t.Month(), day, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
}

func daysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

type Decision struct {
	Create bool
	Reason string
}

const (
	ReasonMaxInstances = "Maximum instances reached"
	ReasonEndDate      = "End date reached"
)

// ShouldCreateNext decides whether a just completed instance gets a
// successor. instanceCount is the completed task's recurringInstanceCount.
// Unknown end conditions allow creation.
func ShouldCreateNext(p Pattern, instanceCount int, currentDue duedate.DueDate, now time.Time) (Decision, error) {
	switch p.EndCondition {
	case AfterCount:
		if instanceCount >= p.MaxCount {
			return Decision{Reason: ReasonMaxInstances}, nil
		}
	case OnDate:
		next, err := NextDueDate(currentDue, p, now)
		if err != nil {
			return Decision{}, err
		}
		end, err := duedate.ParseISO(p.EndDate)
		if err != nil {
			return Decision{}, fmt.Errorf("invalid end date: %w", err)
		}
		if next.After(end) {
			return Decision{Reason: ReasonEndDate}, nil
		}
	}
	return Decision{Create: true}, nil
}
