package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/primanota/primanota/internal/platform/db"
)

// ErrNotFound indicates a missing journal entry.
var ErrNotFound = errors.New("ledger: entry not found")

// DefaultProtocolSeries is used when the caller does not name a series.
const DefaultProtocolSeries = "GEN"

// IdempotenceRecord is a prior posting recorded under an idempotence key.
type IdempotenceRecord struct {
	Key         string
	PayloadHash string
	EntryID     int64
	Protocol    string
}

// Repository owns journal persistence. Write methods take a db.Queryer so
// the engine can run them inside its posting transaction; read methods go
// through the shared store.
type Repository struct {
	store *db.Store
}

// NewRepository constructs a Repository over the shared store.
func NewRepository(store *db.Store) *Repository {
	return &Repository{store: store}
}

// Store exposes the underlying store for transaction control.
func (r *Repository) Store() *db.Store {
	return r.store
}

// NormalizeSeries uppercases a series name, defaulting empty to GEN.
func NormalizeSeries(series string) string {
	s := strings.ToUpper(strings.TrimSpace(series))
	if s == "" {
		return DefaultProtocolSeries
	}
	return s
}

// FormatProtocol renders the canonical protocol string for a counter value.
func FormatProtocol(year, series string, n int64) string {
	return fmt.Sprintf("%s/%s/%06d", year, series, n)
}

// NextProtocol increments the (year, series) counter and returns the
// allocated number. Must run inside the posting transaction: a later
// rollback returns the number to the sequence, keeping it gapless.
func (r *Repository) NextProtocol(ctx context.Context, q db.Queryer, year, series string) (string, int64, error) {
	_, err := q.ExecContext(ctx, `
		INSERT INTO protocol_counters (year, series, counter) VALUES (?, ?, 1)
		ON CONFLICT(year, series) DO UPDATE SET counter = counter + 1`,
		year, series)
	if err != nil {
		return "", 0, fmt.Errorf("ledger: bump protocol counter %s/%s: %w", year, series, err)
	}
	var n int64
	err = q.QueryRowContext(ctx,
		`SELECT counter FROM protocol_counters WHERE year = ? AND series = ?`,
		year, series).Scan(&n)
	if err != nil {
		return "", 0, fmt.Errorf("ledger: read protocol counter %s/%s: %w", year, series, err)
	}
	return FormatProtocol(year, series, n), n, nil
}

// InsertEntry writes the entry header and returns its id.
func (r *Repository) InsertEntry(ctx context.Context, q db.Queryer, e Entry, userID, year, protocol, series string, protocolNo int64) (int64, error) {
	res, err := q.ExecContext(ctx, `
		INSERT INTO entries (date, year, protocol, protocol_series, protocol_no,
			document, document_date, party, description, created_by,
			reversal_of, client_reference_id, taxable_amount, vat_rate, vat_amount)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.Date, year, protocol, series, protocolNo,
		nullable(e.Document), nullable(e.DocumentDate), nullable(e.Party),
		e.Description, userID,
		nullableID(e.ReversalOf), nullable(e.ClientReferenceID),
		fixed2(e.TaxableAmount), fixed2(e.VATRate), fixed2(e.VATAmount))
	if err != nil {
		return 0, fmt.Errorf("ledger: insert entry: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("ledger: insert entry id: %w", err)
	}
	return id, nil
}

// InsertLines writes the entry legs as integer cents.
func (r *Repository) InsertLines(ctx context.Context, q db.Queryer, entryID int64, lines []Line) error {
	for _, l := range lines {
		_, err := q.ExecContext(ctx, `
			INSERT INTO entry_lines (entry_id, account_code, dare_cents, avere_cents)
			VALUES (?, ?, ?, ?)`,
			entryID, l.AccountCode, Cents(l.Dare), Cents(l.Avere))
		if err != nil {
			return fmt.Errorf("ledger: insert line %s for entry %d: %w", l.AccountCode, entryID, err)
		}
	}
	return nil
}

// LinkReversal records that entryID reverses originalID. The unique
// constraint on reversal_of makes the second reversal of the same original
// fail inside its transaction.
func (r *Repository) LinkReversal(ctx context.Context, q db.Queryer, entryID, originalID int64) error {
	_, err := q.ExecContext(ctx,
		`INSERT INTO entry_reversals (entry_id, reversal_of) VALUES (?, ?)`,
		entryID, originalID)
	if err != nil {
		return fmt.Errorf("ledger: link reversal %d -> %d: %w", entryID, originalID, err)
	}
	return nil
}

// GetIdempotence loads the record for a key, or (nil, nil) when absent.
func (r *Repository) GetIdempotence(ctx context.Context, q db.Queryer, key string) (*IdempotenceRecord, error) {
	var rec IdempotenceRecord
	err := q.QueryRowContext(ctx,
		`SELECT key, payload_hash, entry_id, protocol FROM idempotence WHERE key = ?`, key).
		Scan(&rec.Key, &rec.PayloadHash, &rec.EntryID, &rec.Protocol)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("ledger: get idempotence %q: %w", key, err)
	}
	return &rec, nil
}

// InsertIdempotence records the posting outcome under its key.
func (r *Repository) InsertIdempotence(ctx context.Context, q db.Queryer, rec IdempotenceRecord) error {
	_, err := q.ExecContext(ctx,
		`INSERT INTO idempotence (key, payload_hash, entry_id, protocol) VALUES (?, ?, ?, ?)`,
		rec.Key, rec.PayloadHash, rec.EntryID, rec.Protocol)
	if err != nil {
		return fmt.Errorf("ledger: insert idempotence %q: %w", rec.Key, err)
	}
	return nil
}

// EntryExists reports whether an entry id is present.
func (r *Repository) EntryExists(ctx context.Context, id int64) (bool, error) {
	var one int
	err := r.store.DB().QueryRowContext(ctx,
		`SELECT 1 FROM entries WHERE id = ? LIMIT 1`, id).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("ledger: entry exists %d: %w", id, err)
	}
	return true, nil
}

// HasReversal reports whether an entry has already been reversed.
func (r *Repository) HasReversal(ctx context.Context, originalID int64) (bool, error) {
	var one int
	err := r.store.DB().QueryRowContext(ctx,
		`SELECT 1 FROM entry_reversals WHERE reversal_of = ? LIMIT 1`, originalID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("ledger: has reversal %d: %w", originalID, err)
	}
	return true, nil
}
