package recurrence

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decode(t *testing.T, raw string) any {
	t.Helper()
	var v any
	require.NoError(t, json.Unmarshal([]byte(raw), &v))
	return v
}

func TestParsePatternDefaults(t *testing.T) {
	p, err := ParsePattern(decode(t, `{"frequency":"WEEKLY"}`))
	require.NoError(t, err)
	assert.Equal(t, Pattern{Frequency: Weekly, Interval: 1, EndCondition: Never}, p)
}

func TestParsePatternAcceptsAllValues(t *testing.T) {
	for _, f := range []string{"daily", "Weekly", "MONTHLY", "yearly"} {
		_, err := ParsePattern(map[string]any{"frequency": f})
		assert.NoError(t, err, f)
	}
	valid := []string{
		`{"frequency":"daily","endCondition":"never"}`,
		`{"frequency":"daily","endCondition":"after_count","maxCount":2}`,
		`{"frequency":"daily","endCondition":"on_date","endDate":"2025-12-31"}`,
	}
	for _, raw := range valid {
		_, err := ParsePattern(decode(t, raw))
		assert.NoError(t, err, raw)
	}
}

func TestParsePatternErrors(t *testing.T) {
	tests := []struct {
		raw   string
		field string
		msg   string
	}{
		{`"daily"`, "", "Recurrence pattern must be an object"},
		{`{}`, "frequency", "Invalid frequency. Must be one of: daily, weekly, monthly, yearly"},
		{`{"frequency":"hourly"}`, "frequency", "Invalid frequency. Must be one of: daily, weekly, monthly, yearly"},
		{`{"frequency":"daily","interval":0}`, "interval", "Interval must be a positive integer"},
		{`{"frequency":"daily","interval":1.5}`, "interval", "Interval must be a positive integer"},
		{`{"frequency":"daily","interval":"2"}`, "interval", "Interval must be a positive integer"},
		{`{"frequency":"daily","endCondition":"NEVER"}`, "endCondition", "Invalid end condition. Must be one of: never, after_count, on_date"},
		{`{"frequency":"daily","endCondition":"after_count"}`, "maxCount", "Max count must be a positive integer for after_count end condition"},
		{`{"frequency":"daily","endCondition":"after_count","maxCount":-1}`, "maxCount", "Max count must be a positive integer for after_count end condition"},
		{`{"frequency":"daily","endCondition":"on_date","endDate":""}`, "endDate", "End date is required for on_date end condition"},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			_, err := ParsePattern(decode(t, tt.raw))
			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tt.field, verr.Field)
			assert.Equal(t, tt.msg, verr.Message)
		})
	}
}

func TestParsePatternDoesNotCheckEndDateFormat(t *testing.T) {
	p, err := ParsePattern(decode(t, `{"frequency":"daily","endCondition":"on_date","endDate":"whenever"}`))
	require.NoError(t, err)
	assert.Equal(t, "whenever", p.EndDate)
}

func TestPatternValidate(t *testing.T) {
	assert.NoError(t, Pattern{Frequency: Monthly, Interval: 2}.Validate())
	assert.Error(t, Pattern{Frequency: Monthly, Interval: -1}.Validate())
	assert.Error(t, Pattern{Frequency: Monthly, EndCondition: AfterCount}.Validate())
}
