package models

import (
	"time"

	"github.com/google/uuid"
)

// Event represents an organizer-owned event that guests can register for.
type Event struct {
	ID                 int64      `json:"id"`
	Title              string     `json:"title"`
	Description        string     `json:"description"`
	Location           string     `json:"location"`
	StartsAt           time.Time  `json:"starts_at"`
	EndsAt             *time.Time `json:"ends_at,omitempty"`
	MaxAttendees       int        `json:"max_attendees"`
	IsPublic           bool       `json:"is_public"`
	IsRegistrationOpen bool       `json:"is_registration_open"`
	IsCancelled        bool       `json:"is_cancelled"`
	OrganizerID        uuid.UUID  `json:"organizer_id"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
}
