package checkin

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/quickevent/backend/internal/models"
)

// Repository handles check-in persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a check-in repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Insert persists exactly one check-in per registration. The uniqueness
// constraint on registration_id carries the invariant: under concurrent
// scans of the same credential one insert wins and the rest observe the
// winner's row. Losers get AlreadyCheckedInError with the winner's time.
func (r *Repository) Insert(ctx context.Context, registrationID, eventID int64) (*models.CheckIn, error) {
	const q = `INSERT INTO check_ins (registration_id, event_id, check_in_time)
		VALUES ($1, $2, NOW())
		ON CONFLICT (registration_id) DO NOTHING
		RETURNING id, registration_id, event_id, check_in_time`
	var ci models.CheckIn
	err := r.pool.QueryRow(ctx, q, registrationID, eventID).
		Scan(&ci.ID, &ci.RegistrationID, &ci.EventID, &ci.CheckInTime)
	if err == nil {
		return &ci, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, err
	}

	existing, err := r.GetByRegistration(ctx, registrationID)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		return nil, fmt.Errorf("check-in insert conflicted but no row exists for registration %d", registrationID)
	}
	return nil, &AlreadyCheckedInError{CheckedInAt: existing.CheckInTime}
}

// GetByRegistration returns the check-in for a registration, or nil if none.
func (r *Repository) GetByRegistration(ctx context.Context, registrationID int64) (*models.CheckIn, error) {
	const q = `SELECT id, registration_id, event_id, check_in_time FROM check_ins WHERE registration_id = $1`
	var ci models.CheckIn
	err := r.pool.QueryRow(ctx, q, registrationID).Scan(&ci.ID, &ci.RegistrationID, &ci.EventID, &ci.CheckInTime)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &ci, nil
}

// ListByEvent returns check-ins for an event, excluding those whose
// registration has since been cancelled.
func (r *Repository) ListByEvent(ctx context.Context, eventID int64) ([]models.CheckIn, error) {
	const q = `SELECT c.id, c.registration_id, c.event_id, c.check_in_time
		FROM check_ins c
		JOIN registrations r ON r.id = c.registration_id
		WHERE c.event_id = $1 AND r.cancelled_at IS NULL
		ORDER BY c.check_in_time DESC`
	rows, err := r.pool.Query(ctx, q, eventID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.CheckIn
	for rows.Next() {
		var ci models.CheckIn
		if err := rows.Scan(&ci.ID, &ci.RegistrationID, &ci.EventID, &ci.CheckInTime); err != nil {
			return nil, err
		}
		list = append(list, ci)
	}
	return list, rows.Err()
}

// CountByEvent returns the number of check-ins for an event.
func (r *Repository) CountByEvent(ctx context.Context, eventID int64) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM check_ins WHERE event_id = $1`, eventID).Scan(&count)
	return count, err
}
