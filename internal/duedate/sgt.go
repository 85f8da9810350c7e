package duedate

import "time"

// SGT is Singapore time as a fixed UTC+8 offset.
var SGT = time.FixedZone("SGT", 8*60*60)

// CalendarDay returns midnight of the SGT calendar day containing t, as a
// naive UTC value so days compare with ==.
func CalendarDay(t time.Time) time.Time {
	s := t.UTC().Add(8 * time.Hour)
	return time.Date(s.Year(), s.Month(), s.Day(), 0, 0, 0, 0, time.UTC)
}
