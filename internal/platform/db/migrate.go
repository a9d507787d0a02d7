package db

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
)

const schema = `
CREATE TABLE IF NOT EXISTS accounts (
	code TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	nature TEXT NOT NULL,
	statement_type TEXT NOT NULL CHECK (statement_type IN ('ASSET','LIABILITY','EQUITY','REVENUE','EXPENSE'))
);

CREATE TABLE IF NOT EXISTS periods (
	year TEXT NOT NULL,
	month TEXT,
	start_date TEXT NOT NULL,
	end_date TEXT NOT NULL,
	status TEXT NOT NULL DEFAULT 'open' CHECK (status IN ('open','closed','finalized'))
);
CREATE UNIQUE INDEX IF NOT EXISTS idx_periods_year_month ON periods(year, COALESCE(month, ''));

CREATE TABLE IF NOT EXISTS entries (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	date TEXT NOT NULL,
	year TEXT NOT NULL,
	protocol TEXT NOT NULL,
	protocol_series TEXT NOT NULL,
	protocol_no INTEGER NOT NULL,
	document TEXT,
	document_date TEXT,
	party TEXT,
	description TEXT NOT NULL,
	created_by TEXT NOT NULL,
	reversal_of INTEGER REFERENCES entries(id),
	client_reference_id TEXT,
	taxable_amount TEXT,
	vat_rate TEXT,
	vat_amount TEXT,
	created_at TEXT NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS entry_lines (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	entry_id INTEGER NOT NULL REFERENCES entries(id),
	account_code TEXT NOT NULL REFERENCES accounts(code),
	dare_cents INTEGER NOT NULL DEFAULT 0 CHECK (dare_cents >= 0),
	avere_cents INTEGER NOT NULL DEFAULT 0 CHECK (avere_cents >= 0)
);

CREATE TABLE IF NOT EXISTS protocol_counters (
	year TEXT NOT NULL,
	series TEXT NOT NULL,
	counter INTEGER NOT NULL DEFAULT 0,
	PRIMARY KEY (year, series)
);

CREATE TABLE IF NOT EXISTS idempotence (
	key TEXT PRIMARY KEY,
	payload_hash TEXT NOT NULL,
	entry_id INTEGER NOT NULL,
	protocol TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS audit_log (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	entry_id INTEGER,
	action TEXT NOT NULL,
	user_id TEXT NOT NULL,
	payload TEXT NOT NULL,
	prev_hash TEXT,
	curr_hash TEXT NOT NULL,
	created_at TEXT NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS entry_reversals (
	entry_id INTEGER NOT NULL REFERENCES entries(id),
	reversal_of INTEGER NOT NULL UNIQUE REFERENCES entries(id)
);
CREATE INDEX IF NOT EXISTS idx_entry_reversals_entry ON entry_reversals(entry_id);

CREATE TABLE IF NOT EXISTS schema_migrations (
	version INTEGER PRIMARY KEY,
	applied_at TEXT NOT NULL DEFAULT (datetime('now')),
	description TEXT
);
`

type migration struct {
	Version     int
	Description string
	Script      string
}

var migrations = []migration{
	{1, "add index on entries(protocol)",
		`CREATE INDEX IF NOT EXISTS idx_entries_protocol ON entries(protocol);`},
	{2, "add index on entry_lines(entry_id)",
		`CREATE INDEX IF NOT EXISTS idx_entry_lines_entry ON entry_lines(entry_id);`},
	{3, "add index on audit_log(entry_id)",
		`CREATE INDEX IF NOT EXISTS idx_audit_log_entry ON audit_log(entry_id);`},
}

// Init creates the schema and applies pending migrations. It is safe to run
// on every startup.
func (s *Store) Init(ctx context.Context) error {
	if err := s.ExecScript(ctx, schema); err != nil {
		return err
	}
	return s.migrate(ctx)
}

func (s *Store) migrate(ctx context.Context) error {
	current, err := s.currentVersion(ctx)
	if err != nil {
		return err
	}
	sorted := make([]migration, len(migrations))
	copy(sorted, migrations)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Version < sorted[j].Version })

	for _, m := range sorted {
		if m.Version <= current {
			continue
		}
		m := m
		err := s.WithTx(ctx, func(tx *sql.Tx) error {
			if _, err := tx.ExecContext(ctx, m.Script); err != nil {
				return fmt.Errorf("db: migration %d: %w", m.Version, err)
			}
			_, err := tx.ExecContext(ctx,
				`INSERT INTO schema_migrations (version, description) VALUES (?, ?)`,
				m.Version, m.Description)
			return err
		})
		if err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) currentVersion(ctx context.Context) (int, error) {
	var v sql.NullInt64
	err := s.db.QueryRowContext(ctx, `SELECT MAX(version) FROM schema_migrations`).Scan(&v)
	if err != nil {
		return 0, fmt.Errorf("db: current migration version: %w", err)
	}
	return int(v.Int64), nil
}
