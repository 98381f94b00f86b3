package events

import (
	"encoding/json"
	"time"
)

// NotificationRequestedType is the outbox type of NotificationRequestedV1.
const NotificationRequestedType = "notification.requested.v1"

// NotificationRequestedV1 asks the notification pipeline to send one email.
// Data carries the appointment snapshot as encoded by the notify package.
type NotificationRequestedV1 struct {
	EventID       string          `json:"event_id"`
	Kind          string          `json:"kind"`
	AppointmentID string          `json:"appointment_id"`
	RequestedAt   time.Time       `json:"requested_at"`
	Data          json.RawMessage `json:"data"`
}

func (NotificationRequestedV1) EventType() string { return NotificationRequestedType }
