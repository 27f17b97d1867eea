package models

import (
	"time"

	"github.com/google/uuid"
)

// Registration is a guest's sign-up for an event. QRToken holds the signed
// check-in credential issued at registration time.
type Registration struct {
	ID                 int64      `json:"id"`
	EventID            int64      `json:"event_id"`
	UserID             uuid.UUID  `json:"user_id"`
	FullName           string     `json:"full_name"`
	Email              string     `json:"email"`
	PhoneNumber        string     `json:"phone_number,omitempty"`
	QRToken            string     `json:"-"`
	CancellationReason *string    `json:"cancellation_reason,omitempty"`
	CancelledAt        *time.Time `json:"cancelled_at,omitempty"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
}

// IsCancelled reports whether the registration has been cancelled.
// A cancelled registration can never be checked in.
func (r *Registration) IsCancelled() bool {
	return r.CancelledAt != nil
}
