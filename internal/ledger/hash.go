package ledger

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"

	"github.com/shopspring/decimal"
)

// CanonicalJSON serializes a payload with sorted keys and no insignificant
// whitespace. Go's encoding/json emits map keys in sorted order, which is
// exactly the canonical form the hash chain depends on.
func CanonicalJSON(payload map[string]any) ([]byte, error) {
	return json.Marshal(payload)
}

// PayloadHash is the hex SHA-256 of the canonical serialization.
func PayloadHash(payload map[string]any) (string, error) {
	b, err := CanonicalJSON(payload)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:]), nil
}

// fixed2 renders an optional amount as a fixed two-decimal string; nil
// stays nil so absent VAT fields hash as JSON null.
func fixed2(v *decimal.Decimal) any {
	if v == nil {
		return nil
	}
	return Q2(*v).StringFixed(2)
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullableID(id int64) any {
	if id == 0 {
		return nil
	}
	return id
}

func entryContent(e Entry) map[string]any {
	lines := make([]any, 0, len(e.Lines))
	for _, l := range e.Lines {
		lines = append(lines, map[string]any{
			"account_code": l.AccountCode,
			"dare_cents":   Cents(l.Dare),
			"avere_cents":  Cents(l.Avere),
		})
	}
	return map[string]any{
		"date":                e.Date,
		"descrizione":         e.Description,
		"documento":           nullable(e.Document),
		"document_date":       nullable(e.DocumentDate),
		"cliente_fornitore":   nullable(e.Party),
		"reversal_of":         nullableID(e.ReversalOf),
		"client_reference_id": nullable(e.ClientReferenceID),
		"taxable_amount":      fixed2(e.TaxableAmount),
		"vat_rate":            fixed2(e.VATRate),
		"vat_amount":          fixed2(e.VATAmount),
		"lines":               lines,
	}
}

// IdempotencePayload is the content payload compared on replay. Protocol
// and timestamps are excluded so the same business fact hashes identically
// before and after allocation.
func IdempotencePayload(e Entry, userID string) map[string]any {
	return map[string]any{
		"entry": entryContent(e),
		"user":  userID,
	}
}

// AuditPayload is the full payload written to the audit chain: the
// idempotence content plus the allocated protocol. The audit service
// attaches the timestamp before hashing.
func AuditPayload(e Entry, userID, protocol string) map[string]any {
	return map[string]any{
		"entry":    entryContent(e),
		"protocol": protocol,
		"user":     userID,
	}
}
