package closures

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/primanota/primanota/internal/accounts"
	"github.com/primanota/primanota/internal/audit"
	"github.com/primanota/primanota/internal/ledger"
	"github.com/primanota/primanota/internal/periods"
	"github.com/primanota/primanota/internal/platform/db"
)

type fixture struct {
	store   *db.Store
	engine  *ledger.Engine
	periods *periods.Repository
	audit   *audit.Service
	svc     *Service
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	ctx := context.Background()

	store, err := db.Open(db.Config{
		Path: "file:" + uuid.NewString() + "?mode=memory&cache=shared",
	})
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	require.NoError(t, store.Init(ctx))

	accountsRepo := accounts.NewRepository(store)
	require.NoError(t, accountsRepo.EnsureSeed(ctx))

	periodsRepo := periods.NewRepository(store)
	require.NoError(t, periodsRepo.EnsureYearOpen(ctx, "2025"))

	auditSvc := audit.NewService(store)
	engine := ledger.NewEngine(ledger.NewRepository(store), auditSvc, accountsRepo, periodsRepo)
	svc := NewService(store, engine, periodsRepo, auditSvc, "")

	return fixture{store: store, engine: engine, periods: periodsRepo, audit: auditSvc, svc: svc}
}

func dec(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	v, err := decimal.NewFromString(s)
	require.NoError(t, err)
	return v
}

func (f fixture) post(t *testing.T, date, description, dareAcc, avereAcc, amount string) {
	t.Helper()
	res := f.engine.Post(context.Background(), ledger.Entry{
		Date:        date,
		Description: description,
		Lines: []ledger.Line{
			{AccountCode: dareAcc, Dare: dec(t, amount)},
			{AccountCode: avereAcc, Avere: dec(t, amount)},
		},
	}, "mario", ledger.PostOptions{})
	require.True(t, res.Success, "errors: %v", res.Errors)
}

// seedMovements posts 100.00 of revenue and 40.00 of expense into 2025.
func (f fixture) seedMovements(t *testing.T) {
	f.post(t, "2025-03-10", "Fattura vendita", "1410", "4100", "100.00")
	f.post(t, "2025-04-02", "Fattura acquisto", "3200", "2310", "40.00")
}

func balanceFor(balances []Balance, code string) (Balance, bool) {
	for _, b := range balances {
		if b.AccountCode == code {
			return b, true
		}
	}
	return Balance{}, false
}

func TestTrialBalance(t *testing.T) {
	f := newFixture(t)
	f.seedMovements(t)

	balances, err := f.svc.TrialBalance(context.Background(), "2025-01-01", "2025-12-31")
	require.NoError(t, err)
	require.Len(t, balances, 4)

	rec, ok := balanceFor(balances, "1410")
	require.True(t, ok)
	assert.Equal(t, accounts.NatureDebit, rec.Side)
	assert.Equal(t, "100.00", rec.Amount.StringFixed(2))

	rev, ok := balanceFor(balances, "4100")
	require.True(t, ok)
	assert.Equal(t, accounts.NatureCredit, rev.Side)
	assert.Equal(t, "100.00", rev.Amount.StringFixed(2))

	// A window with no movement yields nothing.
	empty, err := f.svc.TrialBalance(context.Background(), "2024-01-01", "2024-12-31")
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestTrialBalanceFlipsSideOnContraBalance(t *testing.T) {
	f := newFixture(t)
	// Credit a debit-natured account beyond its balance.
	f.post(t, "2025-03-10", "Anomalia", "3200", "1410", "25.00")

	balances, err := f.svc.TrialBalance(context.Background(), "2025-01-01", "2025-12-31")
	require.NoError(t, err)

	rec, ok := balanceFor(balances, "1410")
	require.True(t, ok)
	assert.Equal(t, accounts.NatureCredit, rec.Side, "receivables pushed negative show on credit side")
	assert.Equal(t, "25.00", rec.Amount.StringFixed(2))
}

func TestClosePeriodPostsClosingEntry(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seedMovements(t)

	res := f.svc.ClosePeriod(ctx, "2025", "", "mario", "", Adjustments{})
	require.True(t, res.Success, "errors: %v", res.Errors)
	assert.Equal(t, "2025/CLOSE/000001", res.Protocol)

	p, err := f.periods.Get(ctx, "2025", "")
	require.NoError(t, err)
	assert.Equal(t, periods.StatusClosed, p.Status)

	// Income accounts are zeroed; the 60.00 profit lands on equity.
	balances, err := f.svc.TrialBalance(ctx, "2025-01-01", "2025-12-31")
	require.NoError(t, err)
	rev, ok := balanceFor(balances, "4100")
	require.True(t, ok)
	assert.True(t, rev.Amount.IsZero())
	exp, ok := balanceFor(balances, "3200")
	require.True(t, ok)
	assert.True(t, exp.Amount.IsZero())
	eq, ok := balanceFor(balances, "9999")
	require.True(t, ok)
	assert.Equal(t, accounts.NatureCredit, eq.Side)
	assert.Equal(t, "60.00", eq.Amount.StringFixed(2))

	records, err := f.audit.Records(ctx, res.EntryID)
	require.NoError(t, err)
	var actions []string
	for _, r := range records {
		actions = append(actions, r.Action)
	}
	assert.Contains(t, actions, audit.ActionClosePeriod)
}

func TestClosePeriodBlocksFurtherPostings(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seedMovements(t)

	res := f.svc.ClosePeriod(ctx, "2025", "", "mario", "", Adjustments{})
	require.True(t, res.Success)

	post := f.engine.Post(ctx, ledger.Entry{
		Date:        "2025-07-01",
		Description: "troppo tardi",
		Lines: []ledger.Line{
			{AccountCode: "1410", Dare: dec(t, "10.00")},
			{AccountCode: "4100", Avere: dec(t, "10.00")},
		},
	}, "mario", ledger.PostOptions{})
	assert.False(t, post.Success)

	again := f.svc.ClosePeriod(ctx, "2025", "", "mario", "", Adjustments{})
	assert.False(t, again.Success)
}

func TestClosePeriodWithAdjustments(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seedMovements(t)

	adj := Adjustments{
		Accruals: []AccrualItem{{
			Description:    "Rateo utenze dicembre",
			Date:           "2025-12-31",
			ExpenseAccount: "3000",
			PayableAccount: "2000",
			Amount:         dec(t, "15.00"),
		}},
	}
	res := f.svc.ClosePeriod(ctx, "2025", "", "mario", "", adj)
	require.True(t, res.Success, "errors: %v", res.Errors)

	// The accrual shifts the result: 100 - 40 - 15 = 45 profit.
	balances, err := f.svc.TrialBalance(ctx, "2025-01-01", "2025-12-31")
	require.NoError(t, err)
	eq, ok := balanceFor(balances, "9999")
	require.True(t, ok)
	assert.Equal(t, "45.00", eq.Amount.StringFixed(2))
}

func TestClosePeriodRejectsBadAdjustment(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seedMovements(t)

	adj := Adjustments{
		Accruals: []AccrualItem{{
			Description:    "Conto inesistente",
			Date:           "2025-12-31",
			ExpenseAccount: "0001",
			PayableAccount: "2000",
			Amount:         dec(t, "15.00"),
		}},
	}
	res := f.svc.ClosePeriod(ctx, "2025", "", "mario", "", adj)
	assert.False(t, res.Success)

	// The failure stopped the workflow before the flip.
	p, err := f.periods.Get(ctx, "2025", "")
	require.NoError(t, err)
	assert.Equal(t, periods.StatusOpen, p.Status)
}

func TestClosePeriodMissing(t *testing.T) {
	f := newFixture(t)
	res := f.svc.ClosePeriod(context.Background(), "1999", "", "mario", "", Adjustments{})
	assert.False(t, res.Success)
}

func TestFinalizeYear(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.periods.InsertMonth(ctx, periods.Period{
		Year: "2025", Month: "01",
		StartDate: "2025-01-01", EndDate: "2025-01-31",
		Status: periods.StatusOpen,
	}))

	res := f.svc.FinalizeYear(ctx, "2025", "mario", "")
	assert.False(t, res.Success, "open months block finalization")

	closeMonth := f.svc.ClosePeriod(ctx, "2025", "01", "mario", "", Adjustments{})
	require.True(t, closeMonth.Success, "errors: %v", closeMonth.Errors)

	res = f.svc.FinalizeYear(ctx, "2025", "mario", "")
	require.True(t, res.Success, "errors: %v", res.Errors)

	p, err := f.periods.Get(ctx, "2025", "")
	require.NoError(t, err)
	assert.Equal(t, periods.StatusFinalized, p.Status)
}

func TestOpenNewPeriodCarriesBalances(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seedMovements(t)

	require.True(t, f.svc.ClosePeriod(ctx, "2025", "", "mario", "", Adjustments{}).Success)
	require.True(t, f.svc.FinalizeYear(ctx, "2025", "mario", "").Success)

	res := f.svc.OpenNewPeriod(ctx, "2026", "mario", "")
	require.True(t, res.Success, "errors: %v", res.Errors)
	assert.Equal(t, "2026/OPEN/000001", res.Protocol)

	balances, err := f.svc.TrialBalance(ctx, "2026-01-01", "2026-12-31")
	require.NoError(t, err)

	rec, ok := balanceFor(balances, "1410")
	require.True(t, ok)
	assert.Equal(t, "100.00", rec.Amount.StringFixed(2))
	pay, ok := balanceFor(balances, "2310")
	require.True(t, ok)
	assert.Equal(t, "40.00", pay.Amount.StringFixed(2))
	eq, ok := balanceFor(balances, "9999")
	require.True(t, ok)
	assert.Equal(t, "60.00", eq.Amount.StringFixed(2))

	// Only balance-sheet accounts carry over.
	_, ok = balanceFor(balances, "4100")
	assert.False(t, ok)
}

func TestOpenNewPeriodRequiresFinalizedPrevious(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res := f.svc.OpenNewPeriod(ctx, "2026", "mario", "")
	assert.False(t, res.Success, "2025 is still open")

	res = f.svc.OpenNewPeriod(ctx, "2030", "mario", "")
	assert.False(t, res.Success, "2029 has no period row")
}
