package models

import (
	"time"

	"github.com/google/uuid"
)

// Notification is a persisted message for a user, shown in their inbox in
// addition to any live delivery over the hub.
type Notification struct {
	ID             int64     `json:"id"`
	UserID         uuid.UUID `json:"user_id"`
	Type           string    `json:"type"`
	Message        string    `json:"message"`
	RegistrationID *int64    `json:"registration_id,omitempty"`
	EventID        *int64    `json:"event_id,omitempty"`
	IsRead         bool      `json:"is_read"`
	CreatedAt      time.Time `json:"created_at"`
}
