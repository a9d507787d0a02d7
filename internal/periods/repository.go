package periods

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/primanota/primanota/internal/platform/db"
)

// ErrNotFound indicates a missing period row.
var ErrNotFound = errors.New("periods: period not found")

// Repository provides access to the periods table.
type Repository struct {
	store *db.Store
}

// NewRepository constructs a Repository over the shared store.
func NewRepository(store *db.Store) *Repository {
	return &Repository{store: store}
}

// IsOpenOnDate reports whether a date may receive postings. Openness is
// defined by absence: a date is open unless some closed or finalized
// period covers it.
func (r *Repository) IsOpenOnDate(ctx context.Context, isoDate string) (bool, error) {
	var one int
	err := r.store.DB().QueryRowContext(ctx, `
		SELECT 1 FROM periods
		WHERE status IN ('closed', 'finalized')
		  AND date(?) BETWEEN start_date AND end_date
		LIMIT 1`, isoDate).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return true, nil
	}
	if err != nil {
		return false, fmt.Errorf("periods: is open %s: %w", isoDate, err)
	}
	return false, nil
}

// Get loads the period for (year, month); month empty selects the annual
// row.
func (r *Repository) Get(ctx context.Context, year, month string) (Period, error) {
	var p Period
	var m sql.NullString
	err := r.store.DB().QueryRowContext(ctx, `
		SELECT year, month, start_date, end_date, status
		FROM periods
		WHERE year = ? AND COALESCE(month, '') = ?`, year, month).
		Scan(&p.Year, &m, &p.StartDate, &p.EndDate, &p.Status)
	if errors.Is(err, sql.ErrNoRows) {
		return Period{}, ErrNotFound
	}
	if err != nil {
		return Period{}, fmt.Errorf("periods: get %s-%s: %w", year, month, err)
	}
	p.Month = m.String
	return p, nil
}

// EnsureYearOpen inserts the annual row for year as open if absent.
func (r *Repository) EnsureYearOpen(ctx context.Context, year string) error {
	_, err := r.store.DB().ExecContext(ctx, `
		INSERT OR IGNORE INTO periods (year, month, start_date, end_date, status)
		VALUES (?, NULL, ? || '-01-01', ? || '-12-31', 'open')`, year, year, year)
	if err != nil {
		return fmt.Errorf("periods: ensure year %s: %w", year, err)
	}
	return nil
}

// InsertMonth adds a monthly period row.
func (r *Repository) InsertMonth(ctx context.Context, p Period) error {
	if p.Month == "" {
		return fmt.Errorf("periods: insert month: month required")
	}
	_, err := r.store.DB().ExecContext(ctx, `
		INSERT INTO periods (year, month, start_date, end_date, status)
		VALUES (?, ?, ?, ?, ?)`,
		p.Year, p.Month, p.StartDate, p.EndDate, p.Status)
	if err != nil {
		return fmt.Errorf("periods: insert %s-%s: %w", p.Year, p.Month, err)
	}
	return nil
}

// SetStatus updates the status for (year, month) inside the caller's
// transaction. Month empty targets the annual row.
func (r *Repository) SetStatus(ctx context.Context, q db.Queryer, year, month string, status Status) error {
	res, err := q.ExecContext(ctx, `
		UPDATE periods SET status = ?
		WHERE year = ? AND COALESCE(month, '') = ?`, status, year, month)
	if err != nil {
		return fmt.Errorf("periods: set status %s-%s: %w", year, month, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// MonthStatuses returns the status of every monthly row for year.
func (r *Repository) MonthStatuses(ctx context.Context, year string) ([]Status, error) {
	rows, err := r.store.DB().QueryContext(ctx,
		`SELECT status FROM periods WHERE year = ? AND month IS NOT NULL`, year)
	if err != nil {
		return nil, fmt.Errorf("periods: month statuses %s: %w", year, err)
	}
	defer rows.Close()

	var out []Status
	for rows.Next() {
		var s Status
		if err := rows.Scan(&s); err != nil {
			return nil, fmt.Errorf("periods: month statuses scan: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
