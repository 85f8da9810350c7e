// Package recurrence validates recurrence patterns and does the calendar
// arithmetic for recurring tasks.
package recurrence

import (
	"fmt"
	"math"
	"strings"
)

type Frequency string

const (
	Daily   Frequency = "daily"
	Weekly  Frequency = "weekly"
	Monthly Frequency = "monthly"
	Yearly  Frequency = "yearly"
)

type EndCondition string

const (
	Never      EndCondition = "never"
	AfterCount EndCondition = "after_count"
	OnDate     EndCondition = "on_date"
)

var (
	frequencies   = []Frequency{Daily, Weekly, Monthly, Yearly}
	endConditions = []EndCondition{Never, AfterCount, OnDate}
)

type Pattern struct {
	Frequency    Frequency    `json:"frequency"`
	Interval     int          `json:"interval"`
	EndCondition EndCondition `json:"endCondition"`
	MaxCount     int          `json:"maxCount,omitempty"`
	EndDate      string       `json:"endDate,omitempty"`
}

// interval treats a stored zero interval as 1.
func (p Pattern) interval() int {
	if p.Interval < 1 {
		return 1
	}
	return p.Interval
}

type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func invalid(field, msg string) *ValidationError {
	return &ValidationError{Field: field, Message: msg}
}

// ParsePattern validates a decoded recurrence pattern and returns it with
// defaults applied. raw is usually a map decoded from JSON; a Pattern value
// is validated as is.
func ParsePattern(raw any) (Pattern, error) {
	var m map[string]any
	switch v := raw.(type) {
	case map[string]any:
		m = v
	case Pattern:
		m = v.toMap()
	case *Pattern:
		if v == nil {
			return Pattern{}, invalid("", "Recurrence pattern must be an object")
		}
		m = v.toMap()
	default:
		return Pattern{}, invalid("", "Recurrence pattern must be an object")
	}

	var p Pattern

	freq, _ := m["frequency"].(string)
	p.Frequency = Frequency(strings.ToLower(freq))
	if !oneOf(p.Frequency, frequencies) {
		return Pattern{}, invalid("frequency", fmt.Sprintf("Invalid frequency. Must be one of: %s", join(frequencies)))
	}

	p.Interval = 1
	if v, ok := m["interval"]; ok && v != nil {
		n, ok := positiveInt(v)
		if !ok {
			return Pattern{}, invalid("interval", "Interval must be a positive integer")
		}
		p.Interval = n
	}

	p.EndCondition = Never
	if v, ok := m["endCondition"]; ok && v != nil {
		s, _ := v.(string)
		p.EndCondition = EndCondition(s)
	}
	if !oneOf(p.EndCondition, endConditions) {
		return Pattern{}, invalid("endCondition", fmt.Sprintf("Invalid end condition. Must be one of: %s", join(endConditions)))
	}

	switch p.EndCondition {
	case AfterCount:
		n, ok := positiveInt(m["maxCount"])
		if !ok {
			return Pattern{}, invalid("maxCount", "Max count must be a positive integer for after_count end condition")
		}
		p.MaxCount = n
	case OnDate:
		s, _ := m["endDate"].(string)
		if s == "" {
			return Pattern{}, invalid("endDate", "End date is required for on_date end condition")
		}
		p.EndDate = s
	}
	return p, nil
}

// Validate reports whether p would be accepted by ParsePattern.
func (p Pattern) Validate() error {
	_, err := ParsePattern(p)
	return err
}

func (p Pattern) toMap() map[string]any {
	m := map[string]any{
		"frequency":    string(p.Frequency),
		"endCondition": string(p.EndCondition),
	}
	if p.Interval != 0 {
		m["interval"] = p.Interval
	}
	if p.EndCondition == "" {
		delete(m, "endCondition")
	}
	if p.MaxCount != 0 {
		m["maxCount"] = p.MaxCount
	}
	if p.EndDate != "" {
		m["endDate"] = p.EndDate
	}
	return m
}

// positiveInt accepts integers and integral JSON numbers that are >= 1.
func positiveInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, n >= 1
	case int32:
		return int(n), n >= 1
	case int64:
		return int(n), n >= 1
	case float64:
		if n != math.Trunc(n) || n < 1 || n > math.MaxInt32 {
			return 0, false
		}
		return int(n), true
	}
	return 0, false
}

func oneOf[T comparable](v T, allowed []T) bool {
	for _, a := range allowed {
		if v == a {
			return true
		}
	}
	return false
}

func join[T ~string](vs []T) string {
	ss := make([]string, len(vs))
	for i, v := range vs {
		ss[i] = string(v)
	}
	return strings.Join(ss, ", ")
}
