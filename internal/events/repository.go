package events

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/quickevent/backend/internal/models"
)

// Repository handles event persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates an event repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const eventColumns = `id, title, description, location, starts_at, ends_at, max_attendees,
	is_public, is_registration_open, is_cancelled, organizer_id, created_at, updated_at`

func scanEvent(row pgx.Row) (*models.Event, error) {
	var e models.Event
	err := row.Scan(&e.ID, &e.Title, &e.Description, &e.Location, &e.StartsAt, &e.EndsAt, &e.MaxAttendees,
		&e.IsPublic, &e.IsRegistrationOpen, &e.IsCancelled, &e.OrganizerID, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// Create inserts a new event.
func (r *Repository) Create(ctx context.Context, e *models.Event) error {
	const q = `INSERT INTO events (title, description, location, starts_at, ends_at, max_attendees, is_public, organizer_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, is_registration_open, is_cancelled, created_at, updated_at`
	return r.pool.QueryRow(ctx, q, e.Title, e.Description, e.Location, e.StartsAt, e.EndsAt, e.MaxAttendees, e.IsPublic, e.OrganizerID).
		Scan(&e.ID, &e.IsRegistrationOpen, &e.IsCancelled, &e.CreatedAt, &e.UpdatedAt)
}

// GetByID returns an event by ID, or nil if it does not exist.
func (r *Repository) GetByID(ctx context.Context, id int64) (*models.Event, error) {
	e, err := scanEvent(r.pool.QueryRow(ctx, `SELECT `+eventColumns+` FROM events WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return e, err
}

// ListPublic returns public, non-cancelled events.
func (r *Repository) ListPublic(ctx context.Context) ([]models.Event, error) {
	return r.list(ctx, `SELECT `+eventColumns+` FROM events WHERE is_public AND NOT is_cancelled ORDER BY starts_at`)
}

// ListByOrganizer returns all events owned by the organizer.
func (r *Repository) ListByOrganizer(ctx context.Context, organizerID uuid.UUID) ([]models.Event, error) {
	return r.list(ctx, `SELECT `+eventColumns+` FROM events WHERE organizer_id = $1 ORDER BY starts_at DESC`, organizerID)
}

func (r *Repository) list(ctx context.Context, q string, args ...interface{}) ([]models.Event, error) {
	rows, err := r.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.Event
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, *e)
	}
	return list, rows.Err()
}

// Update updates editable event fields.
func (r *Repository) Update(ctx context.Context, e *models.Event) error {
	const q = `UPDATE events SET title = $1, description = $2, location = $3, starts_at = $4, ends_at = $5,
		max_attendees = $6, is_public = $7, is_registration_open = $8, updated_at = NOW()
		WHERE id = $9 RETURNING updated_at`
	return r.pool.QueryRow(ctx, q, e.Title, e.Description, e.Location, e.StartsAt, e.EndsAt,
		e.MaxAttendees, e.IsPublic, e.IsRegistrationOpen, e.ID).Scan(&e.UpdatedAt)
}

// CloseExpired marks registration closed for events whose end date passed.
func (r *Repository) CloseExpired(ctx context.Context, now time.Time) error {
	const q = `UPDATE events SET is_registration_open = FALSE, updated_at = NOW()
		WHERE ends_at IS NOT NULL AND ends_at < $1 AND is_registration_open`
	_, err := r.pool.Exec(ctx, q, now)
	return err
}

// Cancel marks an event cancelled and closes registration.
func (r *Repository) Cancel(ctx context.Context, id int64) error {
	const q = `UPDATE events SET is_cancelled = TRUE, is_registration_open = FALSE, updated_at = NOW() WHERE id = $1`
	_, err := r.pool.Exec(ctx, q, id)
	return err
}

// Delete removes an event.
func (r *Repository) Delete(ctx context.Context, id int64) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM events WHERE id = $1`, id)
	return err
}
