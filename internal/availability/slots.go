package availability

const (
	// SessionMinutes is the fixed length of every session.
	SessionMinutes = 120
	// GapMinutes separates consecutive sessions inside a window.
	GapMinutes = 10
	// StepMinutes is the distance between consecutive slot starts.
	StepMinutes = SessionMinutes + GapMinutes
)

// GenerateSlots returns the session start times that fit in [start, end).
// A window shorter than a session yields no slots; a trailing remainder
// shorter than a session is left unused.
func GenerateSlots(start, end TimeOfDay) []TimeOfDay {
	var slots []TimeOfDay
	for cur := start; cur.Add(SessionMinutes) <= end; cur = cur.Add(StepMinutes) {
		slots = append(slots, cur)
	}
	return slots
}
