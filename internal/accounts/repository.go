package accounts

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/primanota/primanota/internal/platform/db"
)

// ErrNotFound indicates a missing account code.
var ErrNotFound = errors.New("accounts: account not found")

// Repository provides access to the accounts table.
type Repository struct {
	store *db.Store
}

// NewRepository constructs a Repository over the shared store.
func NewRepository(store *db.Store) *Repository {
	return &Repository{store: store}
}

// AccountExists reports whether the code resolves to a chart row.
func (r *Repository) AccountExists(ctx context.Context, code string) (bool, error) {
	var one int
	err := r.store.DB().QueryRowContext(ctx,
		`SELECT 1 FROM accounts WHERE code = ? LIMIT 1`, code).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("accounts: exists %s: %w", code, err)
	}
	return true, nil
}

// Get loads one account by code.
func (r *Repository) Get(ctx context.Context, code string) (Account, error) {
	var a Account
	err := r.store.DB().QueryRowContext(ctx,
		`SELECT code, name, nature, statement_type FROM accounts WHERE code = ?`, code).
		Scan(&a.Code, &a.Name, &a.Nature, &a.StatementType)
	if errors.Is(err, sql.ErrNoRows) {
		return Account{}, ErrNotFound
	}
	if err != nil {
		return Account{}, fmt.Errorf("accounts: get %s: %w", code, err)
	}
	return a, nil
}

// Insert adds an account, failing on duplicate code.
func (r *Repository) Insert(ctx context.Context, a Account) error {
	_, err := r.store.DB().ExecContext(ctx,
		`INSERT INTO accounts (code, name, nature, statement_type) VALUES (?, ?, ?, ?)`,
		a.Code, a.Name, a.Nature, a.StatementType)
	if err != nil {
		return fmt.Errorf("accounts: insert %s: %w", a.Code, err)
	}
	return nil
}

// List returns the full chart ordered by code.
func (r *Repository) List(ctx context.Context) ([]Account, error) {
	rows, err := r.store.DB().QueryContext(ctx,
		`SELECT code, name, nature, statement_type FROM accounts ORDER BY code`)
	if err != nil {
		return nil, fmt.Errorf("accounts: list: %w", err)
	}
	defer rows.Close()

	var out []Account
	for rows.Next() {
		var a Account
		if err := rows.Scan(&a.Code, &a.Name, &a.Nature, &a.StatementType); err != nil {
			return nil, fmt.Errorf("accounts: list scan: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}
