package closures

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/primanota/primanota/internal/accounts"
	"github.com/primanota/primanota/internal/ledger"
	"github.com/primanota/primanota/internal/platform/db"
)

// Balance is one account's position over a date window, expressed on its
// prevailing side: a debit-natured account with more avere than dare shows
// up with Side CREDIT and a positive amount.
type Balance struct {
	AccountCode   string                 `json:"account_code"`
	AccountName   string                 `json:"account_name"`
	StatementType accounts.StatementType `json:"statement_type"`
	Side          accounts.Nature        `json:"side"`
	Amount        decimal.Decimal        `json:"amount"`
}

// TrialBalance aggregates posted lines per account over [startDate, endDate]
// in code order. Accounts with no movement are omitted.
func TrialBalance(ctx context.Context, store *db.Store, startDate, endDate string) ([]Balance, error) {
	rows, err := store.DB().QueryContext(ctx, `
		SELECT a.code, a.name, a.statement_type,
		       COALESCE(SUM(el.dare_cents), 0), COALESCE(SUM(el.avere_cents), 0)
		FROM accounts a
		JOIN entry_lines el ON el.account_code = a.code
		JOIN entries e ON e.id = el.entry_id
		WHERE e.date BETWEEN ? AND ?
		GROUP BY a.code, a.name, a.statement_type
		ORDER BY a.code`, startDate, endDate)
	if err != nil {
		return nil, fmt.Errorf("closures: trial balance %s..%s: %w", startDate, endDate, err)
	}
	defer rows.Close()

	var out []Balance
	for rows.Next() {
		var b Balance
		var dareCents, avereCents int64
		if err := rows.Scan(&b.AccountCode, &b.AccountName, &b.StatementType, &dareCents, &avereCents); err != nil {
			return nil, fmt.Errorf("closures: trial balance scan: %w", err)
		}
		dare := ledger.FromCents(dareCents)
		avere := ledger.FromCents(avereCents)

		if accounts.NaturalSide(b.StatementType) == accounts.NatureDebit {
			net := dare.Sub(avere)
			if net.Sign() >= 0 {
				b.Side, b.Amount = accounts.NatureDebit, net
			} else {
				b.Side, b.Amount = accounts.NatureCredit, net.Neg()
			}
		} else {
			net := avere.Sub(dare)
			if net.Sign() >= 0 {
				b.Side, b.Amount = accounts.NatureCredit, net
			} else {
				b.Side, b.Amount = accounts.NatureDebit, net.Neg()
			}
		}
		out = append(out, b)
	}
	return out, rows.Err()
}
