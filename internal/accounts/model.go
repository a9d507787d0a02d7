// Package accounts manages the chart of accounts: the reference data every
// journal line must resolve against.
package accounts

// StatementType classifies an account by financial statement nature.
type StatementType string

const (
	StatementAsset     StatementType = "ASSET"
	StatementLiability StatementType = "LIABILITY"
	StatementEquity    StatementType = "EQUITY"
	StatementRevenue   StatementType = "REVENUE"
	StatementExpense   StatementType = "EXPENSE"
)

// Nature is the natural balance side of an account.
type Nature string

const (
	NatureDebit  Nature = "DEBIT"
	NatureCredit Nature = "CREDIT"
)

// NaturalSide returns the natural balance side for a statement type:
// assets and expenses carry debit balances, everything else credit.
func NaturalSide(st StatementType) Nature {
	switch st {
	case StatementAsset, StatementExpense:
		return NatureDebit
	default:
		return NatureCredit
	}
}

// Account is one row of the chart of accounts.
type Account struct {
	Code          string
	Name          string
	Nature        Nature
	StatementType StatementType
}
