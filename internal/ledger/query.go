package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/primanota/primanota/internal/platform/db"
)

// StoredEntry is a posted journal entry as read back from storage.
type StoredEntry struct {
	ID             int64
	Date           string
	Year           string
	Protocol       string
	ProtocolSeries string
	ProtocolNo     int64

	Document     string
	DocumentDate string
	Party        string
	Description  string
	CreatedBy    string

	ReversalOf        int64
	ClientReferenceID string

	TaxableAmount *decimal.Decimal
	VATRate       *decimal.Decimal
	VATAmount     *decimal.Decimal

	CreatedAt string
	Lines     []Line
}

// ListFilter narrows List results. Zero values mean "no constraint".
type ListFilter struct {
	FromDate string
	ToDate   string
	Party    string
	Series   string
	Limit    int
}

// Query is the read-only side of the journal: snapshots for reporting and
// the source material for reversals.
type Query struct {
	store *db.Store
	now   func() time.Time
}

// NewQuery constructs a Query over the shared store.
func NewQuery(store *db.Store) *Query {
	return &Query{store: store, now: time.Now}
}

// WithNow overrides the clock used to date reversals, for tests.
func (q *Query) WithNow(now func() time.Time) *Query {
	q.now = now
	return q
}

const entryColumns = `id, date, year, protocol, protocol_series, protocol_no,
	COALESCE(document, ''), COALESCE(document_date, ''), COALESCE(party, ''),
	description, created_by, COALESCE(reversal_of, 0), COALESCE(client_reference_id, ''),
	taxable_amount, vat_rate, vat_amount, created_at`

func scanEntry(row interface{ Scan(...any) error }) (StoredEntry, error) {
	var e StoredEntry
	var taxable, rate, vat sql.NullString
	err := row.Scan(&e.ID, &e.Date, &e.Year, &e.Protocol, &e.ProtocolSeries, &e.ProtocolNo,
		&e.Document, &e.DocumentDate, &e.Party,
		&e.Description, &e.CreatedBy, &e.ReversalOf, &e.ClientReferenceID,
		&taxable, &rate, &vat, &e.CreatedAt)
	if err != nil {
		return StoredEntry{}, err
	}
	if e.TaxableAmount, err = parseNullAmount(taxable); err != nil {
		return StoredEntry{}, err
	}
	if e.VATRate, err = parseNullAmount(rate); err != nil {
		return StoredEntry{}, err
	}
	if e.VATAmount, err = parseNullAmount(vat); err != nil {
		return StoredEntry{}, err
	}
	return e, nil
}

func parseNullAmount(v sql.NullString) (*decimal.Decimal, error) {
	if !v.Valid {
		return nil, nil
	}
	d, err := decimal.NewFromString(v.String)
	if err != nil {
		return nil, fmt.Errorf("ledger: parse stored amount %q: %w", v.String, err)
	}
	return &d, nil
}

// GetEntry loads one entry with its lines.
func (q *Query) GetEntry(ctx context.Context, id int64) (StoredEntry, error) {
	row := q.store.DB().QueryRowContext(ctx,
		`SELECT `+entryColumns+` FROM entries WHERE id = ?`, id)
	e, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return StoredEntry{}, ErrNotFound
	}
	if err != nil {
		return StoredEntry{}, fmt.Errorf("ledger: get entry %d: %w", id, err)
	}
	if e.Lines, err = q.GetLines(ctx, id); err != nil {
		return StoredEntry{}, err
	}
	return e, nil
}

// GetLines loads the legs of one entry in insertion order.
func (q *Query) GetLines(ctx context.Context, entryID int64) ([]Line, error) {
	rows, err := q.store.DB().QueryContext(ctx,
		`SELECT account_code, dare_cents, avere_cents FROM entry_lines WHERE entry_id = ? ORDER BY id`,
		entryID)
	if err != nil {
		return nil, fmt.Errorf("ledger: lines for entry %d: %w", entryID, err)
	}
	defer rows.Close()

	var out []Line
	for rows.Next() {
		var code string
		var dare, avere int64
		if err := rows.Scan(&code, &dare, &avere); err != nil {
			return nil, fmt.Errorf("ledger: lines scan: %w", err)
		}
		out = append(out, Line{AccountCode: code, Dare: FromCents(dare), Avere: FromCents(avere)})
	}
	return out, rows.Err()
}

// FindByProtocol resolves a protocol string to its entry.
func (q *Query) FindByProtocol(ctx context.Context, protocol string) (StoredEntry, error) {
	row := q.store.DB().QueryRowContext(ctx,
		`SELECT `+entryColumns+` FROM entries WHERE protocol = ?`, protocol)
	e, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return StoredEntry{}, ErrNotFound
	}
	if err != nil {
		return StoredEntry{}, fmt.Errorf("ledger: find by protocol %q: %w", protocol, err)
	}
	if e.Lines, err = q.GetLines(ctx, e.ID); err != nil {
		return StoredEntry{}, err
	}
	return e, nil
}

// List returns entry headers matching the filter, newest first.
func (q *Query) List(ctx context.Context, f ListFilter) ([]StoredEntry, error) {
	query := `SELECT ` + entryColumns + ` FROM entries WHERE 1=1`
	var args []any
	if f.FromDate != "" {
		query += ` AND date >= ?`
		args = append(args, f.FromDate)
	}
	if f.ToDate != "" {
		query += ` AND date <= ?`
		args = append(args, f.ToDate)
	}
	if f.Party != "" {
		query += ` AND party = ?`
		args = append(args, f.Party)
	}
	if f.Series != "" {
		query += ` AND protocol_series = ?`
		args = append(args, NormalizeSeries(f.Series))
	}
	query += ` ORDER BY id DESC`
	if f.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, f.Limit)
	}

	rows, err := q.store.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("ledger: list entries: %w", err)
	}
	defer rows.Close()

	var out []StoredEntry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("ledger: list scan: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// BuildReversal snapshots an entry and returns its mirror image: every
// line's dare and avere swapped, dated today, linked back through
// ReversalOf. Document, party, and VAT fields carry over unchanged.
func (q *Query) BuildReversal(ctx context.Context, originalID int64, description string) (Entry, error) {
	orig, err := q.GetEntry(ctx, originalID)
	if err != nil {
		return Entry{}, err
	}

	lines := make([]Line, 0, len(orig.Lines))
	for _, l := range orig.Lines {
		lines = append(lines, Line{AccountCode: l.AccountCode, Dare: l.Avere, Avere: l.Dare})
	}

	return Entry{
		Date:          q.now().Format("2006-01-02"),
		Description:   description,
		Lines:         lines,
		Document:      orig.Document,
		DocumentDate:  orig.DocumentDate,
		Party:         orig.Party,
		ReversalOf:    originalID,
		TaxableAmount: orig.TaxableAmount,
		VATRate:       orig.VATRate,
		VATAmount:     orig.VATAmount,
	}, nil
}
