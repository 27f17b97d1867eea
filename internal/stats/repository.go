package stats

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Summary holds live attendance counters for one event.
type Summary struct {
	EventID             int64   `json:"event_id"`
	TotalRegistrations  int     `json:"total_registrations"`
	ActiveRegistrations int     `json:"active_registrations"`
	Cancelled           int     `json:"cancelled"`
	CheckedIn           int     `json:"checked_in"`
	AttendanceRate      float64 `json:"attendance_rate"`
}

// Repository computes event statistics from registrations and check-ins.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a stats repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Summarize computes the current counters for an event in one round trip.
func (r *Repository) Summarize(ctx context.Context, eventID int64) (*Summary, error) {
	const q = `SELECT
		COUNT(*),
		COUNT(*) FILTER (WHERE r.cancelled_at IS NULL),
		COUNT(*) FILTER (WHERE r.cancelled_at IS NOT NULL),
		COUNT(c.id)
	FROM registrations r
	LEFT JOIN check_ins c ON c.registration_id = r.id
	WHERE r.event_id = $1`

	s := Summary{EventID: eventID}
	err := r.pool.QueryRow(ctx, q, eventID).
		Scan(&s.TotalRegistrations, &s.ActiveRegistrations, &s.Cancelled, &s.CheckedIn)
	if err != nil {
		return nil, err
	}
	if s.ActiveRegistrations > 0 {
		s.AttendanceRate = float64(s.CheckedIn) / float64(s.ActiveRegistrations)
	}
	return &s, nil
}
