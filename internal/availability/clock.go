package availability

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// DateLayout is the calendar-day format used on the wire.
const DateLayout = "2006-01-02"

// TimeOfDay is a minute offset from midnight, rendered as "HH:MM".
type TimeOfDay int

const minutesPerDay = 24 * 60

// ParseTimeOfDay parses a zero-padded "HH:MM" string.
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	s = strings.TrimSpace(s)
	if len(s) != 5 || s[2] != ':' {
		return 0, fmt.Errorf("availability: invalid time %q: want HH:MM", s)
	}
	h, errH := strconv.Atoi(s[:2])
	m, errM := strconv.Atoi(s[3:])
	if errH != nil || errM != nil || h < 0 || h > 23 || m < 0 || m > 59 {
		return 0, fmt.Errorf("availability: invalid time %q: want HH:MM", s)
	}
	return TimeOfDay(h*60 + m), nil
}

// MustTimeOfDay is ParseTimeOfDay for constants; it panics on bad input.
func MustTimeOfDay(s string) TimeOfDay {
	t, err := ParseTimeOfDay(s)
	if err != nil {
		panic(err)
	}
	return t
}

// Minutes returns the offset from midnight.
func (t TimeOfDay) Minutes() int { return int(t) }

// Valid reports whether t falls within a single day. 24:00 is allowed as a window end.
func (t TimeOfDay) Valid() bool { return t >= 0 && t <= minutesPerDay }

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", int(t)/60, int(t)%60)
}

// Add returns t shifted by the given number of minutes.
func (t TimeOfDay) Add(minutes int) TimeOfDay { return t + TimeOfDay(minutes) }

func (t TimeOfDay) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

func (t *TimeOfDay) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("availability: time must be a string: %w", err)
	}
	parsed, err := ParseTimeOfDay(s)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// ParseDate parses "YYYY-MM-DD" into a calendar day (midnight UTC).
func ParseDate(s string) (time.Time, error) {
	d, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, fmt.Errorf("availability: invalid date %q: want YYYY-MM-DD", s)
	}
	return d, nil
}

// FormatDate renders a calendar day as "YYYY-MM-DD".
func FormatDate(d time.Time) string { return d.Format(DateLayout) }

// DateOf returns the calendar day of t as observed in loc.
func DateOf(t time.Time, loc *time.Location) time.Time {
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// At combines a calendar day and a time of day into an instant in loc.
func At(date time.Time, tod TimeOfDay, loc *time.Location) time.Time {
	return time.Date(date.Year(), date.Month(), date.Day(), int(tod)/60, int(tod)%60, 0, 0, loc)
}

// TimeOfDayIn returns the minute-of-day of t as observed in loc.
func TimeOfDayIn(t time.Time, loc *time.Location) TimeOfDay {
	local := t.In(loc)
	return TimeOfDay(local.Hour()*60 + local.Minute())
}

// MonthRange returns the first and last calendar day of a month.
func MonthRange(year int, month time.Month) (time.Time, time.Time) {
	first := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	return first, first.AddDate(0, 1, -1)
}
