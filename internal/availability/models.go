package availability

import (
	"time"

	"github.com/google/uuid"
)

// Window is an administrator-defined open interval on one calendar day.
type Window struct {
	ID        uuid.UUID
	Date      time.Time
	Start     TimeOfDay
	End       TimeOfDay
	Active    bool
	CreatedAt time.Time
}

// Block removes availability on a day regardless of windows.
type Block struct {
	ID        uuid.UUID
	Date      time.Time
	Start     TimeOfDay
	End       TimeOfDay
	Reason    string
	CreatedAt time.Time
}

// Booking is a non-cancelled appointment occupying the practitioner's time.
type Booking struct {
	AppointmentID uuid.UUID
	Date          time.Time
	StartTime     time.Time
	EndTime       time.Time
}

// Slot is a candidate session with its availability flag.
type Slot struct {
	Start     TimeOfDay `json:"startTime"`
	End       TimeOfDay `json:"endTime"`
	Available bool      `json:"available"`
}

// GenerateRequest describes weekday-based window generation.
type GenerateRequest struct {
	StartDate time.Time
	EndDate   time.Time
	Start     TimeOfDay
	End       TimeOfDay
	Weekdays  []time.Weekday
}

var (
	defaultGenerateStart    = MustTimeOfDay("09:00")
	defaultGenerateEnd      = MustTimeOfDay("17:00")
	defaultGenerateWeekdays = []time.Weekday{time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday}
)

// maxGenerateDays caps the span a single generation request may cover.
const maxGenerateDays = 366
