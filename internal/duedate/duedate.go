// Package duedate models the shapes a task due date is stored in and
// normalizes them to instants.
package duedate

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// DueDate is one of ISOString, ExternalTimestamp or Instant. A nil DueDate
// means the task has no due date.
type DueDate interface {
	isDueDate()
}

// ISOString is an ISO-8601 date or date-time as written by clients.
type ISOString string

// ExternalTimestamp is a seconds/nanos pair as produced by document
// databases that store native timestamps.
type ExternalTimestamp struct {
	Seconds int64 `json:"seconds"`
	Nanos   int32 `json:"nanos"`
}

// Instant is an already resolved point in time.
type Instant time.Time

// Unparsed holds a stored value of an unrecognized shape.
type Unparsed struct {
	Raw json.RawMessage
}

func (ISOString) isDueDate()         {}
func (ExternalTimestamp) isDueDate() {}
func (Instant) isDueDate()           {}
func (Unparsed) isDueDate()          {}

var ErrInvalid = errors.New("invalid due date")

// Time returns the timestamp as a UTC instant.
func (t ExternalTimestamp) Time() time.Time {
	return time.Unix(t.Seconds, int64(t.Nanos)).UTC()
}

var isoLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
	time.DateOnly,
}

// ParseISO parses an ISO-8601 string. A trailing Z is read as +00:00 and
// values without an offset are taken as UTC.
func ParseISO(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if strings.HasSuffix(s, "Z") {
		s = strings.TrimSuffix(s, "Z") + "+00:00"
	}
	for _, layout := range isoLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: %q is not an ISO-8601 date", ErrInvalid, s)
}

// Resolve converts d into an instant. Missing and unrecognized values are
// errors.
func Resolve(d DueDate) (time.Time, error) {
	switch v := d.(type) {
	case ISOString:
		if v == "" {
			return time.Time{}, fmt.Errorf("%w: empty", ErrInvalid)
		}
		return ParseISO(string(v))
	case ExternalTimestamp:
		return v.Time(), nil
	case Instant:
		return time.Time(v), nil
	case nil:
		return time.Time{}, fmt.Errorf("%w: missing", ErrInvalid)
	default:
		return time.Time{}, fmt.Errorf("%w: unsupported value %T", ErrInvalid, d)
	}
}

// Normalize is Resolve with a fallback to now for missing or unrecognized
// values. Malformed ISO strings are still errors.
func Normalize(d DueDate, now time.Time) (time.Time, error) {
	switch v := d.(type) {
	case ISOString:
		if v == "" {
			return now, nil
		}
	case ExternalTimestamp, Instant:
	default:
		return now, nil
	}
	return Resolve(d)
}

// Format renders t the way successor due dates are stored.
func Format(t time.Time) ISOString {
	return ISOString(t.Format(time.RFC3339))
}

// Field stores a DueDate inside a document, keeping its shape.
type Field struct {
	Value DueDate
}

func Of(d DueDate) Field {
	return Field{Value: d}
}

// IsZero reports a missing or empty due date.
func (f Field) IsZero() bool {
	switch v := f.Value.(type) {
	case nil:
		return true
	case ISOString:
		return v == ""
	}
	return false
}

func (f Field) MarshalJSON() ([]byte, error) {
	switch v := f.Value.(type) {
	case nil:
		return []byte("null"), nil
	case ISOString:
		return json.Marshal(string(v))
	case ExternalTimestamp:
		return json.Marshal(v)
	case Instant:
		return json.Marshal(time.Time(v).Format(time.RFC3339Nano))
	case Unparsed:
		if len(v.Raw) == 0 {
			return []byte("null"), nil
		}
		return v.Raw, nil
	default:
		return nil, fmt.Errorf("%w: unsupported value %T", ErrInvalid, f.Value)
	}
}

func (f *Field) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case bytes.Equal(data, []byte("null")):
		f.Value = nil
		return nil
	case len(data) > 0 && data[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		if s == "" {
			f.Value = nil
			return nil
		}
		f.Value = ISOString(s)
		return nil
	case len(data) > 0 && data[0] == '{':
		var ts struct {
			Seconds     *int64 `json:"seconds"`
			Nanos       int32  `json:"nanos"`
			LegacySecs  *int64 `json:"_seconds"`
			LegacyNanos int32  `json:"_nanoseconds"`
		}
		if err := json.Unmarshal(data, &ts); err == nil {
			switch {
			case ts.Seconds != nil:
				f.Value = ExternalTimestamp{Seconds: *ts.Seconds, Nanos: ts.Nanos}
				return nil
			case ts.LegacySecs != nil:
				f.Value = ExternalTimestamp{Seconds: *ts.LegacySecs, Nanos: ts.LegacyNanos}
				return nil
			}
		}
	}
	f.Value = Unparsed{Raw: append(json.RawMessage(nil), data...)}
	return nil
}
