package meet

import (
	"context"
	"errors"
	"time"
)

// ErrNotConfigured is returned by linkers without credentials.
var ErrNotConfigured = errors.New("meet: linker not configured")

// MeetingRequest describes the session a video link is created for.
type MeetingRequest struct {
	Title         string
	Description   string
	Start         time.Time
	End           time.Time
	AttendeeEmail string
	// RequestID makes conference creation idempotent on the provider side.
	RequestID string
}

// Meeting is a created calendar event with its video link.
type Meeting struct {
	EventID string
	URL     string
}

// Linker creates and removes video meetings.
type Linker interface {
	CreateMeeting(ctx context.Context, req MeetingRequest) (*Meeting, error)
	CancelMeeting(ctx context.Context, eventID string) error
}

// NoopLinker is used when no calendar is configured.
type NoopLinker struct{}

func (NoopLinker) CreateMeeting(context.Context, MeetingRequest) (*Meeting, error) {
	return nil, ErrNotConfigured
}

func (NoopLinker) CancelMeeting(context.Context, string) error { return nil }
