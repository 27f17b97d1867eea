// Package checkin implements the door check-in state machine: credential
// validation, authorization, idempotency and the notification side effects
// of a successful scan.
package checkin

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/quickevent/backend/internal/credential"
	"github.com/quickevent/backend/internal/models"
)

// Code distinguishes the expected outcomes of a check-in attempt. Callers
// branch on the code; only unexpected storage failures surface as errors.
type Code string

const (
	CodeOK                    Code = "ok"
	CodeInvalidCredential     Code = "invalid_credential"
	CodeCredentialMismatch    Code = "credential_mismatch"
	CodeRegistrationNotFound  Code = "registration_not_found"
	CodeRegistrationCancelled Code = "registration_cancelled"
	CodeAlreadyCheckedIn      Code = "already_checked_in"
	CodeUnauthorized          Code = "unauthorized"
)

// AlreadyCheckedInError is returned by CheckInStore.Insert when a check-in
// for the registration already exists. It carries the winner's timestamp so
// a losing concurrent scan can report when admission actually happened.
type AlreadyCheckedInError struct {
	CheckedInAt time.Time
}

func (e *AlreadyCheckedInError) Error() string {
	return fmt.Sprintf("already checked in at %s", e.CheckedInAt.Format(time.RFC3339))
}

// Participant is the denormalized display data a scanning client shows.
type Participant struct {
	RegistrationID int64     `json:"registration_id"`
	FullName       string    `json:"full_name"`
	Email          string    `json:"email"`
	PhoneNumber    string    `json:"phone_number,omitempty"`
	EventTitle     string    `json:"event_title"`
	CheckInTime    time.Time `json:"check_in_time"`
}

// Result is the typed outcome of a check-in attempt.
type Result struct {
	Code        Code
	CheckIn     *models.CheckIn // set when Code is CodeOK
	Participant *Participant    // set when Code is CodeOK or CodeAlreadyCheckedIn
	CheckedInAt time.Time       // set when Code is CodeAlreadyCheckedIn; the original admission time
}

// RegistrationStore resolves registrations. Lookups return (nil, nil) when
// no row exists; errors are reserved for storage failures.
type RegistrationStore interface {
	GetByID(ctx context.Context, id int64) (*models.Registration, error)
	// GetByToken finds a registration whose stored credential equals token
	// verbatim. Legacy support for tokens issued before signing existed.
	GetByToken(ctx context.Context, token string) (*models.Registration, error)
}

// EventStore resolves events for the ownership check.
type EventStore interface {
	GetByID(ctx context.Context, id int64) (*models.Event, error)
}

// CheckInStore persists check-ins with insert-once semantics per
// registration, enforced at the storage boundary.
type CheckInStore interface {
	Insert(ctx context.Context, registrationID, eventID int64) (*models.CheckIn, error)
}

// Notifier delivers the side effects of a successful check-in.
type Notifier interface {
	NotifyCheckIn(organizerID, guestID string, eventID int64, participantName string, checkInData interface{})
}

// Coordinator runs the check-in state machine. Per registration the states
// are no-check-in -> checked-in (terminal), with cancellation absorbing: a
// cancelled registration can never acquire a check-in.
type Coordinator struct {
	credentials   *credential.Service
	registrations RegistrationStore
	events        EventStore
	checkIns      CheckInStore
	notifier      Notifier
	logger        *zap.Logger
}

// NewCoordinator creates a check-in coordinator.
func NewCoordinator(credentials *credential.Service, registrations RegistrationStore, events EventStore, checkIns CheckInStore, notifier Notifier, logger *zap.Logger) *Coordinator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Coordinator{
		credentials:   credentials,
		registrations: registrations,
		events:        events,
		checkIns:      checkIns,
		notifier:      notifier,
		logger:        logger,
	}
}

// CheckIn processes one scan of rawToken by the acting organizer. Expected
// rejections come back as coded Results; an error means the attempt could
// not be decided and must not be treated as success.
func (co *Coordinator) CheckIn(ctx context.Context, rawToken string, organizerID uuid.UUID) (*Result, error) {
	reg, mismatch, signed, err := co.resolve(ctx, rawToken)
	if err != nil {
		return nil, err
	}
	if mismatch {
		return &Result{Code: CodeCredentialMismatch}, nil
	}
	if reg == nil {
		if signed {
			// The credential verified but its registration is gone.
			return &Result{Code: CodeRegistrationNotFound}, nil
		}
		return &Result{Code: CodeInvalidCredential}, nil
	}

	event, err := co.events.GetByID(ctx, reg.EventID)
	if err != nil {
		return nil, fmt.Errorf("load event %d: %w", reg.EventID, err)
	}
	if event == nil {
		return nil, fmt.Errorf("registration %d references missing event %d", reg.ID, reg.EventID)
	}
	if event.OrganizerID != organizerID {
		return &Result{Code: CodeUnauthorized}, nil
	}
	if reg.IsCancelled() {
		return &Result{Code: CodeRegistrationCancelled}, nil
	}

	ci, err := co.checkIns.Insert(ctx, reg.ID, reg.EventID)
	if err != nil {
		var already *AlreadyCheckedInError
		if errors.As(err, &already) {
			return &Result{
				Code:        CodeAlreadyCheckedIn,
				CheckedInAt: already.CheckedInAt,
				Participant: participant(reg, event.Title, already.CheckedInAt),
			}, nil
		}
		return nil, fmt.Errorf("persist check-in for registration %d: %w", reg.ID, err)
	}

	p := participant(reg, event.Title, ci.CheckInTime)

	// Side effects are best effort and must never block or fail the scan.
	if co.notifier != nil {
		go co.notify(event.OrganizerID.String(), reg.UserID.String(), reg.EventID, reg.FullName, p)
	}

	return &Result{Code: CodeOK, CheckIn: ci, Participant: p}, nil
}

// resolve finds the registration the scan refers to. A validated credential
// resolves by ID (with a cross-event reuse check); an unvalidatable token
// falls back to a verbatim match against stored tokens.
func (co *Coordinator) resolve(ctx context.Context, rawToken string) (reg *models.Registration, mismatch, signed bool, err error) {
	valid, registrationID, eventID := co.credentials.Validate(rawToken)
	if valid && registrationID > 0 {
		reg, err = co.registrations.GetByID(ctx, registrationID)
		if err != nil {
			return nil, false, true, fmt.Errorf("load registration %d: %w", registrationID, err)
		}
		if reg != nil && reg.EventID != eventID {
			return nil, true, true, nil
		}
		return reg, false, true, nil
	}

	reg, err = co.registrations.GetByToken(ctx, rawToken)
	if err != nil {
		return nil, false, false, fmt.Errorf("lookup registration by token: %w", err)
	}
	return reg, false, false, nil
}

func (co *Coordinator) notify(organizerID, guestID string, eventID int64, participantName string, data *Participant) {
	defer func() {
		if r := recover(); r != nil {
			co.logger.Error("check-in notification panicked", zap.Any("panic", r))
		}
	}()
	co.notifier.NotifyCheckIn(organizerID, guestID, eventID, participantName, data)
}

func participant(reg *models.Registration, eventTitle string, checkInTime time.Time) *Participant {
	return &Participant{
		RegistrationID: reg.ID,
		FullName:       reg.FullName,
		Email:          reg.Email,
		PhoneNumber:    reg.PhoneNumber,
		EventTitle:     eventTitle,
		CheckInTime:    checkInTime,
	}
}
