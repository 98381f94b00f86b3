package availability

// Interval is a half-open [Start, End) range of minutes within one day.
type Interval struct {
	Start TimeOfDay
	End   TimeOfDay
}

// SessionAt returns the session interval starting at start.
func SessionAt(start TimeOfDay) Interval {
	return Interval{Start: start, End: start.Add(SessionMinutes)}
}

// Overlaps reports whether a and b share any minute. Back-to-back intervals
// do not overlap.
func Overlaps(a, b Interval) bool {
	return a.Start < b.End && a.End > b.Start
}

// IsAvailable reports whether candidate conflicts with none of the booked
// appointments and none of the blocked intervals.
func IsAvailable(candidate Interval, booked, blocked []Interval) bool {
	for _, b := range booked {
		if Overlaps(candidate, b) {
			return false
		}
	}
	for _, b := range blocked {
		if Overlaps(candidate, b) {
			return false
		}
	}
	return true
}
