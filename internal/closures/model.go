// Package closures drives the period close workflow: adjustment entries,
// the income closing entry against equity, year finalization, and the
// opening entry that carries balance-sheet amounts into a new year.
package closures

import "github.com/shopspring/decimal"

// Protocol series reserved for the close workflow.
const (
	SeriesAdjustment = "ADJ"
	SeriesClosing    = "CLOSE"
	SeriesOpening    = "OPEN"
)

// DefaultEquityAccount receives the period result when no other code is
// configured.
const DefaultEquityAccount = "9999"

// AccrualItem posts an expense accrued in the period without a document:
// dare expense, avere payable.
type AccrualItem struct {
	Description    string
	Date           string
	ExpenseAccount string
	PayableAccount string
	Amount         decimal.Decimal
}

// DeferralItem defers an already-booked cost to the next period:
// dare prepaid, avere expense.
type DeferralItem struct {
	Description    string
	Date           string
	PrepaidAccount string
	ExpenseAccount string
	Amount         decimal.Decimal
}

// AmortizationItem books a depreciation quota:
// dare amortization expense, avere asset.
type AmortizationItem struct {
	Description    string
	Date           string
	AssetAccount   string
	ExpenseAccount string
	Amount         decimal.Decimal
}

// Adjustments bundles the explicit end-of-period corrections. Nothing is
// inferred: every item is caller input.
type Adjustments struct {
	Accruals      []AccrualItem
	Deferrals     []DeferralItem
	Amortizations []AmortizationItem
}
