package duedate

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseISO(t *testing.T) {
	tests := []struct {
		in   string
		want time.Time
	}{
		{"2025-01-31", time.Date(2025, 1, 31, 0, 0, 0, 0, time.UTC)},
		{"2025-01-31T10:00:00Z", time.Date(2025, 1, 31, 10, 0, 0, 0, time.UTC)},
		{"2025-01-31T10:00:00.000Z", time.Date(2025, 1, 31, 10, 0, 0, 0, time.UTC)},
		{"2025-01-31T10:00:00", time.Date(2025, 1, 31, 10, 0, 0, 0, time.UTC)},
		{"2025-01-31T18:00:00+08:00", time.Date(2025, 1, 31, 10, 0, 0, 0, time.UTC)},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseISO(tt.in)
			require.NoError(t, err)
			assert.True(t, tt.want.Equal(got), "got %s", got)
		})
	}

	_, err := ParseISO("next tuesday")
	assert.ErrorIs(t, err, ErrInvalid)
}

func TestNormalize(t *testing.T) {
	now := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)

	got, err := Normalize(nil, now)
	require.NoError(t, err)
	assert.Equal(t, now, got)

	got, err = Normalize(Unparsed{Raw: json.RawMessage("42")}, now)
	require.NoError(t, err)
	assert.Equal(t, now, got)

	got, err = Normalize(ExternalTimestamp{Seconds: 1735689600}, now)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC), got)

	_, err = Normalize(ISOString("garbage"), now)
	assert.Error(t, err)
}

func TestResolveRejectsMissing(t *testing.T) {
	_, err := Resolve(nil)
	assert.ErrorIs(t, err, ErrInvalid)
	_, err = Resolve(Unparsed{Raw: json.RawMessage("true")})
	assert.ErrorIs(t, err, ErrInvalid)
}

func TestFieldKeepsShape(t *testing.T) {
	var doc struct {
		A Field `json:"a"`
		B Field `json:"b"`
		C Field `json:"c"`
		D Field `json:"d"`
		E Field `json:"e"`
	}
	raw := `{"a":"2025-01-31","b":{"seconds":10,"nanos":5},"c":{"_seconds":20,"_nanoseconds":0},"d":null,"e":7}`
	require.NoError(t, json.Unmarshal([]byte(raw), &doc))

	assert.Equal(t, ISOString("2025-01-31"), doc.A.Value)
	assert.Equal(t, ExternalTimestamp{Seconds: 10, Nanos: 5}, doc.B.Value)
	assert.Equal(t, ExternalTimestamp{Seconds: 20}, doc.C.Value)
	assert.Nil(t, doc.D.Value)
	assert.True(t, doc.D.IsZero())
	assert.IsType(t, Unparsed{}, doc.E.Value)

	out, err := json.Marshal(doc)
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":"2025-01-31","b":{"seconds":10,"nanos":5},"c":{"seconds":20,"nanos":0},"d":null,"e":7}`, string(out))
}

func TestCalendarDay(t *testing.T) {
	// 17:00 UTC is already the next day in Singapore.
	got := CalendarDay(time.Date(2025, 6, 1, 17, 0, 0, 0, time.UTC))
	assert.Equal(t, time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC), got)

	got = CalendarDay(time.Date(2025, 6, 1, 15, 59, 0, 0, time.UTC))
	assert.Equal(t, time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC), got)

	got = CalendarDay(time.Date(2025, 6, 2, 1, 0, 0, 0, SGT))
	assert.Equal(t, time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC), got)
}
