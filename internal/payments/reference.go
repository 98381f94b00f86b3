package payments

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

const referencePrefix = "appt_"

// FormatReference builds the external reference attached to a charge.
func FormatReference(appointmentID uuid.UUID, leg Leg) string {
	return fmt.Sprintf("%s%s_%s", referencePrefix, appointmentID, leg)
}

// ParseReference splits an external reference into appointment id and leg.
func ParseReference(ref string) (uuid.UUID, Leg, error) {
	ref = strings.TrimSpace(ref)
	if !strings.HasPrefix(ref, referencePrefix) {
		return uuid.Nil, "", fmt.Errorf("payments: unknown reference %q", ref)
	}
	rest := strings.TrimPrefix(ref, referencePrefix)
	idx := strings.LastIndex(rest, "_")
	if idx <= 0 {
		return uuid.Nil, "", fmt.Errorf("payments: malformed reference %q", ref)
	}
	id, err := uuid.Parse(rest[:idx])
	if err != nil {
		return uuid.Nil, "", fmt.Errorf("payments: malformed reference %q: %w", ref, err)
	}
	leg, err := ParseLeg(rest[idx+1:])
	if err != nil {
		return uuid.Nil, "", fmt.Errorf("payments: malformed reference %q: %w", ref, err)
	}
	return id, leg, nil
}
