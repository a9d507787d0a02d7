// Package audit maintains a tamper-evident log: every row carries the
// SHA-256 of its canonical payload and the hash of the previous row for
// the same entry, forming a per-entry hash chain.
package audit

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/primanota/primanota/internal/platform/db"
)

// Actions recorded by the posting engine and the closures workflow.
const (
	ActionPostEntry    = "POST_ENTRY"
	ActionClosePeriod  = "CLOSE_PERIOD"
	ActionFinalizeYear = "FINALIZE_YEAR"
	ActionOpenPeriod   = "OPEN_PERIOD"
)

// Record is one row of the audit log.
type Record struct {
	ID        int64
	EntryID   int64
	Action    string
	UserID    string
	Payload   string
	PrevHash  string
	CurrHash  string
	CreatedAt string
}

// Service appends to and verifies the audit chain.
type Service struct {
	store *db.Store
	now   func() time.Time
}

// NewService constructs a Service over the shared store.
func NewService(store *db.Store) *Service {
	return &Service{store: store, now: time.Now}
}

// WithNow overrides the clock, for tests.
func (s *Service) WithNow(now func() time.Time) *Service {
	s.now = now
	return s
}

// canonical serializes a payload with sorted keys and no insignificant
// whitespace, the form the chain hashes are computed over.
func canonical(payload map[string]any) ([]byte, error) {
	return json.Marshal(payload)
}

func hashBytes(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

// Append writes one chained record through q, which may be a transaction:
// when called inside a posting transaction a failed append rolls the whole
// posting back. The payload gains a UTC timestamp before hashing, so the
// stored payload text is exactly the hashed bytes. A zero entryID records
// an entry-less action: entry_id is stored as NULL and the record starts
// its own chain with a null prev_hash.
func (s *Service) Append(ctx context.Context, q db.Queryer, entryID int64, action, userID string, payload map[string]any) error {
	enriched := make(map[string]any, len(payload)+1)
	for k, v := range payload {
		enriched[k] = v
	}
	enriched["timestamp"] = s.now().UTC().Format(time.RFC3339)

	b, err := canonical(enriched)
	if err != nil {
		return fmt.Errorf("audit: marshal payload: %w", err)
	}
	curr := hashBytes(b)

	var prev sql.NullString
	if entryID != 0 {
		err = q.QueryRowContext(ctx, `
			SELECT curr_hash FROM audit_log
			WHERE entry_id = ?
			ORDER BY id DESC LIMIT 1`, entryID).Scan(&prev)
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("audit: read chain head for entry %d: %w", entryID, err)
		}
	}

	_, err = q.ExecContext(ctx, `
		INSERT INTO audit_log (entry_id, action, user_id, payload, prev_hash, curr_hash)
		VALUES (?, ?, ?, ?, ?, ?)`,
		nullableID(entryID), action, userID, string(b), prev, curr)
	if err != nil {
		return fmt.Errorf("audit: append %s for entry %d: %w", action, entryID, err)
	}
	return nil
}

func nullableID(id int64) any {
	if id == 0 {
		return nil
	}
	return id
}

// VerifyChain recomputes the chain for one entry. It returns false when any
// stored hash does not match its payload or a prev link is broken.
func (s *Service) VerifyChain(ctx context.Context, entryID int64) (bool, error) {
	records, err := s.Records(ctx, entryID)
	if err != nil {
		return false, err
	}

	var prev string
	for _, rec := range records {
		if hashBytes([]byte(rec.Payload)) != rec.CurrHash {
			return false, nil
		}
		if rec.PrevHash != prev {
			return false, nil
		}
		prev = rec.CurrHash
	}
	return true, nil
}

// Records returns the chain for one entry in append order.
func (s *Service) Records(ctx context.Context, entryID int64) ([]Record, error) {
	rows, err := s.store.DB().QueryContext(ctx, `
		SELECT id, entry_id, action, user_id, payload, COALESCE(prev_hash, ''), curr_hash, created_at
		FROM audit_log
		WHERE entry_id = ?
		ORDER BY id`, entryID)
	if err != nil {
		return nil, fmt.Errorf("audit: records for entry %d: %w", entryID, err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var rec Record
		if err := rows.Scan(&rec.ID, &rec.EntryID, &rec.Action, &rec.UserID,
			&rec.Payload, &rec.PrevHash, &rec.CurrHash, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("audit: records scan: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}
