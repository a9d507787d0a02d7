package accounts

import (
	"context"
	"fmt"
)

// seedChart is the baseline chart required by the posting engine and the
// builders. Codes are configuration; deployments extend the chart through
// Insert or their own migrations.
var seedChart = []Account{
	{Code: "1000", Name: "Cassa e disponibilità", Nature: NatureDebit, StatementType: StatementAsset},
	{Code: "1410", Name: "Crediti verso clienti", Nature: NatureDebit, StatementType: StatementAsset},
	{Code: "1411", Name: "IVA a credito", Nature: NatureDebit, StatementType: StatementAsset},
	{Code: "1431", Name: "Cassa contanti", Nature: NatureDebit, StatementType: StatementAsset},
	{Code: "1432", Name: "Banca c/c", Nature: NatureDebit, StatementType: StatementAsset},
	{Code: "2000", Name: "Debiti correnti", Nature: NatureCredit, StatementType: StatementLiability},
	{Code: "2310", Name: "Debiti verso fornitori", Nature: NatureCredit, StatementType: StatementLiability},
	{Code: "2321", Name: "IVA a debito", Nature: NatureCredit, StatementType: StatementLiability},
	{Code: "3000", Name: "Costi generali", Nature: NatureDebit, StatementType: StatementExpense},
	{Code: "3200", Name: "Costi per servizi", Nature: NatureDebit, StatementType: StatementExpense},
	{Code: "3500", Name: "Oneri finanziari", Nature: NatureDebit, StatementType: StatementExpense},
	{Code: "4000", Name: "Ricavi generali", Nature: NatureCredit, StatementType: StatementRevenue},
	{Code: "4100", Name: "Vendite e prestazioni", Nature: NatureCredit, StatementType: StatementRevenue},
	{Code: "9999", Name: "Utile/perdita d'esercizio", Nature: NatureCredit, StatementType: StatementEquity},
}

// EnsureSeed inserts any missing baseline code. Existing rows are left
// untouched, so running it on every init is safe.
func (r *Repository) EnsureSeed(ctx context.Context) error {
	for _, a := range seedChart {
		_, err := r.store.DB().ExecContext(ctx,
			`INSERT OR IGNORE INTO accounts (code, name, nature, statement_type) VALUES (?, ?, ?, ?)`,
			a.Code, a.Name, a.Nature, a.StatementType)
		if err != nil {
			return fmt.Errorf("accounts: seed %s: %w", a.Code, err)
		}
	}
	return nil
}
