package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/primanota/primanota/internal/audit"
	"github.com/primanota/primanota/internal/platform/db"
)

// PostOptions carries per-call posting knobs.
type PostOptions struct {
	// ProtocolSeries overrides the entry's series; empty falls back to the
	// entry, then to the engine default.
	ProtocolSeries string

	// IdempotenceKey enables replay protection. Empty disables it.
	IdempotenceKey string
}

// Engine is the single write path into the journal. Validation runs first
// and reports every failure at once; the write itself is one immediate
// transaction covering protocol allocation, entry, lines, reversal link,
// idempotence record, and audit append.
type Engine struct {
	repo     *Repository
	audit    *audit.Service
	accounts AccountReader
	periods  PeriodReader

	defaultSeries string
	now           func() time.Time
}

// NewEngine wires the posting engine.
func NewEngine(repo *Repository, auditSvc *audit.Service, accounts AccountReader, periods PeriodReader) *Engine {
	return &Engine{
		repo:          repo,
		audit:         auditSvc,
		accounts:      accounts,
		periods:       periods,
		defaultSeries: DefaultProtocolSeries,
		now:           time.Now,
	}
}

// WithDefaultSeries overrides the fallback protocol series.
func (en *Engine) WithDefaultSeries(series string) *Engine {
	en.defaultSeries = NormalizeSeries(series)
	return en
}

// WithNow overrides the clock, for tests.
func (en *Engine) WithNow(now func() time.Time) *Engine {
	en.now = now
	return en
}

// errIdempotenceConflict signals a key replay with a different payload. It
// crosses WithTx so the commit is skipped, then maps to a structured error.
type errIdempotenceConflict struct {
	key string
}

func (e errIdempotenceConflict) Error() string {
	return fmt.Sprintf("idempotence key %q already used with a different payload", e.key)
}

// Post validates and persists one entry. It never returns a Go error:
// every failure mode is carried in the Result so callers branch on
// Success, not on err.
func (en *Engine) Post(ctx context.Context, e Entry, userID string, opts PostOptions) Result {
	if userID == "" {
		return Failed(Error{Kind: KindInvalidInput, Message: "user_id is required"})
	}

	verrs, err := Validate(ctx, e, en.accounts, en.periods, en.repo)
	if err != nil {
		return Failed(dbError(err))
	}
	if len(verrs) > 0 {
		return Failed(verrs...)
	}

	series := NormalizeSeries(opts.ProtocolSeries)
	if opts.ProtocolSeries == "" {
		series = NormalizeSeries(e.ProtocolSeries)
		if e.ProtocolSeries == "" {
			series = en.defaultSeries
		}
	}
	year := e.Date[:4]

	var (
		entryID  int64
		protocol string
	)
	txErr := en.repo.Store().WithTx(ctx, func(tx *sql.Tx) error {
		if opts.IdempotenceKey != "" {
			hash, err := PayloadHash(IdempotencePayload(e, userID))
			if err != nil {
				return fmt.Errorf("ledger: hash idempotence payload: %w", err)
			}
			rec, err := en.repo.GetIdempotence(ctx, tx, opts.IdempotenceKey)
			if err != nil {
				return err
			}
			if rec != nil {
				if rec.PayloadHash != hash {
					return errIdempotenceConflict{key: opts.IdempotenceKey}
				}
				entryID, protocol = rec.EntryID, rec.Protocol
				return nil
			}

			// The key doubles as the client reference when none was given.
			// The default is applied after hashing, so a retry that omits
			// the reference still replays.
			if e.ClientReferenceID == "" {
				e.ClientReferenceID = opts.IdempotenceKey
			}

			id, proto, err := en.insertAll(ctx, tx, e, userID, year, series)
			if err != nil {
				return err
			}
			if err := en.repo.InsertIdempotence(ctx, tx, IdempotenceRecord{
				Key:         opts.IdempotenceKey,
				PayloadHash: hash,
				EntryID:     id,
				Protocol:    proto,
			}); err != nil {
				return err
			}
			entryID, protocol = id, proto
			return nil
		}

		id, proto, err := en.insertAll(ctx, tx, e, userID, year, series)
		if err != nil {
			return err
		}
		entryID, protocol = id, proto
		return nil
	})

	if txErr == nil {
		return Succeeded(entryID, protocol)
	}
	var conflict errIdempotenceConflict
	if errors.As(txErr, &conflict) {
		return Failed(Error{
			Kind:    KindIdempotenceConflict,
			Message: conflict.Error(),
			Details: map[string]any{"idempotence_key": conflict.key},
		})
	}
	return Failed(dbError(txErr))
}

// insertAll writes the entry, its lines, the reversal link, and the audit
// record inside the caller's transaction.
func (en *Engine) insertAll(ctx context.Context, tx *sql.Tx, e Entry, userID, year, series string) (int64, string, error) {
	protocol, protocolNo, err := en.repo.NextProtocol(ctx, tx, year, series)
	if err != nil {
		return 0, "", err
	}
	id, err := en.repo.InsertEntry(ctx, tx, e, userID, year, protocol, series, protocolNo)
	if err != nil {
		return 0, "", err
	}
	if err := en.repo.InsertLines(ctx, tx, id, e.Lines); err != nil {
		return 0, "", err
	}
	if e.ReversalOf != 0 {
		if err := en.repo.LinkReversal(ctx, tx, id, e.ReversalOf); err != nil {
			// Two reversals can validate concurrently; the unique index on
			// reversal_of decides the loser.
			if db.IsUniqueViolation(err) {
				return 0, "", Error{
					Kind:    KindAlreadyReversed,
					Message: fmt.Sprintf("entry %d already reversed", e.ReversalOf),
				}
			}
			return 0, "", err
		}
	}
	if err := en.audit.Append(ctx, tx, id, audit.ActionPostEntry, userID, AuditPayload(e, userID, protocol)); err != nil {
		return 0, "", err
	}
	return id, protocol, nil
}

// dbError wraps a storage failure in the stable DB_ERROR kind. The message
// keeps the concrete error type so operators can tell lock contention from
// constraint violations.
func dbError(err error) Error {
	var structured Error
	if errors.As(err, &structured) {
		return structured
	}
	return Error{
		Kind:    KindDBError,
		Message: fmt.Sprintf("%T: %v", err, err),
	}
}
