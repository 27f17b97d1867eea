package registrations

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/quickevent/backend/internal/models"
)

// Repository handles registration persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a registrations repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const regColumns = `id, event_id, user_id, full_name, email, COALESCE(phone_number,''),
	COALESCE(qr_token,''), cancellation_reason, cancelled_at, created_at, updated_at`

func scanRegistration(row pgx.Row) (*models.Registration, error) {
	var reg models.Registration
	err := row.Scan(&reg.ID, &reg.EventID, &reg.UserID, &reg.FullName, &reg.Email, &reg.PhoneNumber,
		&reg.QRToken, &reg.CancellationReason, &reg.CancelledAt, &reg.CreatedAt, &reg.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &reg, nil
}

// Create inserts a registration (unique per event+user among active rows).
func (r *Repository) Create(ctx context.Context, reg *models.Registration) error {
	const q = `INSERT INTO registrations (event_id, user_id, full_name, email, phone_number)
		VALUES ($1, $2, $3, $4, NULLIF($5,''))
		RETURNING id, created_at, updated_at`
	return r.pool.QueryRow(ctx, q, reg.EventID, reg.UserID, reg.FullName, reg.Email, reg.PhoneNumber).
		Scan(&reg.ID, &reg.CreatedAt, &reg.UpdatedAt)
}

// SetToken stores the issued check-in credential on the registration.
func (r *Repository) SetToken(ctx context.Context, id int64, token string) error {
	_, err := r.pool.Exec(ctx, `UPDATE registrations SET qr_token = $1, updated_at = NOW() WHERE id = $2`, token, id)
	return err
}

// GetByID returns a registration by ID, or nil if it does not exist.
func (r *Repository) GetByID(ctx context.Context, id int64) (*models.Registration, error) {
	reg, err := scanRegistration(r.pool.QueryRow(ctx, `SELECT `+regColumns+` FROM registrations WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return reg, err
}

// GetByToken returns the registration whose stored credential equals token
// verbatim, or nil. Lookup path for tokens issued before signing existed.
func (r *Repository) GetByToken(ctx context.Context, token string) (*models.Registration, error) {
	reg, err := scanRegistration(r.pool.QueryRow(ctx, `SELECT `+regColumns+` FROM registrations WHERE qr_token = $1`, token))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return reg, err
}

// GetActiveByEventAndUser returns the user's non-cancelled registration for
// an event, or nil.
func (r *Repository) GetActiveByEventAndUser(ctx context.Context, eventID int64, userID uuid.UUID) (*models.Registration, error) {
	reg, err := scanRegistration(r.pool.QueryRow(ctx,
		`SELECT `+regColumns+` FROM registrations WHERE event_id = $1 AND user_id = $2 AND cancelled_at IS NULL`, eventID, userID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return reg, err
}

// ListByEvent returns all registrations for an event, newest first.
func (r *Repository) ListByEvent(ctx context.Context, eventID int64) ([]models.Registration, error) {
	return r.list(ctx, `SELECT `+regColumns+` FROM registrations WHERE event_id = $1 ORDER BY created_at DESC`, eventID)
}

// ListByUser returns all of a user's registrations, newest first.
func (r *Repository) ListByUser(ctx context.Context, userID uuid.UUID) ([]models.Registration, error) {
	return r.list(ctx, `SELECT `+regColumns+` FROM registrations WHERE user_id = $1 ORDER BY created_at DESC`, userID)
}

func (r *Repository) list(ctx context.Context, q string, args ...interface{}) ([]models.Registration, error) {
	rows, err := r.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.Registration
	for rows.Next() {
		reg, err := scanRegistration(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, *reg)
	}
	return list, rows.Err()
}

// CountActiveByEvent returns the number of non-cancelled registrations.
func (r *Repository) CountActiveByEvent(ctx context.Context, eventID int64) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM registrations WHERE event_id = $1 AND cancelled_at IS NULL`, eventID).Scan(&count)
	return count, err
}

// Cancel marks a registration cancelled with the guest's reason. No-op if
// already cancelled.
func (r *Repository) Cancel(ctx context.Context, id int64, reason string) error {
	const q = `UPDATE registrations SET cancelled_at = NOW(), cancellation_reason = $1, updated_at = NOW()
		WHERE id = $2 AND cancelled_at IS NULL`
	_, err := r.pool.Exec(ctx, q, reason, id)
	return err
}
