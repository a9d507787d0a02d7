// Package ledger implements the double-entry posting engine: value types,
// validation, canonical hashing, and the transactional posting path that is
// the single write route into the journal.
package ledger

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// ErrorKind tags a validation or posting failure with a stable string.
type ErrorKind string

const (
	KindUnbalanced          ErrorKind = "UNBALANCED"
	KindNegativeAmount      ErrorKind = "NEGATIVE_AMOUNT"
	KindInvalidAccount      ErrorKind = "INVALID_ACCOUNT"
	KindPeriodClosed        ErrorKind = "PERIOD_CLOSED"
	KindPeriodOpen          ErrorKind = "PERIOD_OPEN"
	KindAlreadyReversed     ErrorKind = "ALREADY_REVERSED"
	KindAmbiguousLine       ErrorKind = "AMBIGUOUS_LINE"
	KindEmptyLines          ErrorKind = "EMPTY_LINES"
	KindDBError             ErrorKind = "DB_ERROR"
	KindIdempotenceConflict ErrorKind = "IDEMPOTENCE_CONFLICT"
	KindProtocolError       ErrorKind = "PROTOCOL_ERROR"
	KindInvalidDate         ErrorKind = "INVALID_DATE"
	KindNotFound            ErrorKind = "NOT_FOUND"
	KindVATMismatch         ErrorKind = "VAT_MISMATCH"
	KindInvalidInput        ErrorKind = "INVALID_INPUT"
)

// Error is a structured posting failure: kind, message, optional details.
type Error struct {
	Kind    ErrorKind      `json:"kind"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

func (e Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Line is one debit-or-credit leg of an entry. Exactly one of Dare and
// Avere must be positive on a well-formed line.
type Line struct {
	AccountCode string
	Dare        decimal.Decimal
	Avere       decimal.Decimal
}

// Entry is a journal entry before posting. Immutable once stored; the
// engine never mutates the value it receives.
type Entry struct {
	Date        string // ISO YYYY-MM-DD
	Description string
	Lines       []Line

	Document     string
	DocumentDate string
	Party        string

	// ReversalOf points at the entry this one reverses; zero means none.
	ReversalOf int64

	ClientReferenceID string
	ProtocolSeries    string

	TaxableAmount *decimal.Decimal
	VATRate       *decimal.Decimal
	VATAmount     *decimal.Decimal
}

// Result is the outcome of a posting operation. No error ever crosses the
// engine boundary: failures are carried here as structured errors plus a
// parallel list of human-readable messages.
type Result struct {
	Success      bool      `json:"success"`
	EntryID      int64     `json:"entry_id,omitempty"`
	Protocol     string    `json:"protocol,omitempty"`
	ErrorDetails []Error   `json:"error_details,omitempty"`
	Errors       []string  `json:"errors,omitempty"`
	Timestamp    time.Time `json:"timestamp"`
}

// Succeeded builds a success result.
func Succeeded(entryID int64, protocol string) Result {
	return Result{
		Success:   true,
		EntryID:   entryID,
		Protocol:  protocol,
		Timestamp: time.Now().UTC(),
	}
}

// Failed builds a failure result from structured errors, deriving the flat
// message list.
func Failed(errs ...Error) Result {
	msgs := make([]string, 0, len(errs))
	for _, e := range errs {
		msgs = append(msgs, e.Message)
	}
	return Result{
		Success:      false,
		ErrorDetails: errs,
		Errors:       msgs,
		Timestamp:    time.Now().UTC(),
	}
}
