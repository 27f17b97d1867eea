package models

import "time"

// CheckIn records that a registration's holder was admitted to an event.
// At most one row ever exists per registration (unique constraint); rows
// are never updated or deleted.
type CheckIn struct {
	ID             int64     `json:"id"`
	RegistrationID int64     `json:"registration_id"`
	EventID        int64     `json:"event_id"`
	CheckInTime    time.Time `json:"check_in_time"`
}
