package closures

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"

	"github.com/shopspring/decimal"

	"github.com/primanota/primanota/internal/accounts"
	"github.com/primanota/primanota/internal/audit"
	"github.com/primanota/primanota/internal/ledger"
	"github.com/primanota/primanota/internal/periods"
	"github.com/primanota/primanota/internal/platform/db"
)

// Service runs the close workflow. Each posted entry is atomic on its own;
// the workflow as a whole is a sequence of postings plus a status flip, and
// a failure stops it before the flip so the period stays open.
type Service struct {
	store   *db.Store
	engine  *ledger.Engine
	periods *periods.Repository
	audit   *audit.Service
	equity  string
}

// NewService wires the closures service. equityAccount empty falls back to
// the default equity code.
func NewService(store *db.Store, engine *ledger.Engine, periodsRepo *periods.Repository, auditSvc *audit.Service, equityAccount string) *Service {
	if equityAccount == "" {
		equityAccount = DefaultEquityAccount
	}
	return &Service{
		store:   store,
		engine:  engine,
		periods: periodsRepo,
		audit:   auditSvc,
		equity:  equityAccount,
	}
}

// ClosePeriod closes (year, month); month empty closes the annual period.
// Adjustments and the income closing entry post while the period is still
// open, then the status flips to closed, then the action is audited.
func (s *Service) ClosePeriod(ctx context.Context, year, month, userID, description string, adj Adjustments) ledger.Result {
	if description == "" {
		description = "Chiusura periodo"
	}

	p, err := s.periods.Get(ctx, year, month)
	if errors.Is(err, periods.ErrNotFound) {
		return ledger.Failed(ledger.Error{
			Kind:    ledger.KindNotFound,
			Message: fmt.Sprintf("period %s-%s does not exist", year, month),
		})
	}
	if err != nil {
		return failedDB(err)
	}
	switch p.Status {
	case periods.StatusClosed:
		return ledger.Failed(ledger.Error{
			Kind:    ledger.KindPeriodClosed,
			Message: fmt.Sprintf("period %s-%s already closed", year, month),
		})
	case periods.StatusFinalized:
		return ledger.Failed(ledger.Error{
			Kind:    ledger.KindPeriodClosed,
			Message: fmt.Sprintf("period %s-%s already finalized", year, month),
		})
	}

	if res := s.postAdjustments(ctx, userID, adj); !res.Success {
		return res
	}

	closing := s.postIncomeClosing(ctx, p, userID, description)
	if !closing.Success {
		return closing
	}

	err = s.store.WithTx(ctx, func(tx *sql.Tx) error {
		return s.periods.SetStatus(ctx, tx, year, month, periods.StatusClosed)
	})
	if err != nil {
		return failedDB(err)
	}

	payload := map[string]any{
		"year":         year,
		"month":        nullableStr(month),
		"descrizione":  description,
		"period_start": p.StartDate,
		"period_end":   p.EndDate,
	}
	if err := s.audit.Append(ctx, s.store.DB(), closing.EntryID, audit.ActionClosePeriod, userID, payload); err != nil {
		return failedDB(err)
	}
	return closing
}

// FinalizeYear flips the annual period to finalized once every monthly
// period is closed. It posts nothing.
func (s *Service) FinalizeYear(ctx context.Context, year, userID, description string) ledger.Result {
	if description == "" {
		description = "Finalizzazione anno"
	}

	statuses, err := s.periods.MonthStatuses(ctx, year)
	if err != nil {
		return failedDB(err)
	}
	for _, st := range statuses {
		if st != periods.StatusClosed {
			return ledger.Failed(ledger.Error{
				Kind:    ledger.KindPeriodOpen,
				Message: fmt.Sprintf("year %s has months not yet closed", year),
			})
		}
	}

	err = s.store.WithTx(ctx, func(tx *sql.Tx) error {
		return s.periods.SetStatus(ctx, tx, year, "", periods.StatusFinalized)
	})
	if errors.Is(err, periods.ErrNotFound) {
		return ledger.Failed(ledger.Error{
			Kind:    ledger.KindNotFound,
			Message: fmt.Sprintf("year %s does not exist", year),
		})
	}
	if err != nil {
		return failedDB(err)
	}

	payload := map[string]any{"year": year, "descrizione": description}
	if err := s.audit.Append(ctx, s.store.DB(), 0, audit.ActionFinalizeYear, userID, payload); err != nil {
		return failedDB(err)
	}
	return ledger.Succeeded(0, "")
}

// OpenNewPeriod opens the annual period for year and posts the opening
// entry carrying the previous finalized year's balance-sheet amounts.
func (s *Service) OpenNewPeriod(ctx context.Context, year, userID, description string) ledger.Result {
	if description == "" {
		description = "Apertura nuovo esercizio"
	}

	y, err := strconv.Atoi(year)
	if err != nil {
		return ledger.Failed(ledger.Error{
			Kind:    ledger.KindInvalidInput,
			Message: fmt.Sprintf("invalid year: %q", year),
		})
	}
	prevYear := strconv.Itoa(y - 1)

	if err := s.periods.EnsureYearOpen(ctx, year); err != nil {
		return failedDB(err)
	}

	prev, err := s.periods.Get(ctx, prevYear, "")
	if errors.Is(err, periods.ErrNotFound) {
		return ledger.Failed(ledger.Error{
			Kind:    ledger.KindNotFound,
			Message: fmt.Sprintf("previous year %s not found", prevYear),
		})
	}
	if err != nil {
		return failedDB(err)
	}
	if prev.Status != periods.StatusFinalized {
		return ledger.Failed(ledger.Error{
			Kind:    ledger.KindPeriodOpen,
			Message: fmt.Sprintf("previous year %s not finalized", prevYear),
		})
	}

	opening := s.postOpeningBalance(ctx, prev, year, userID, description)
	if !opening.Success {
		return opening
	}

	payload := map[string]any{"year": year, "descrizione": description}
	if err := s.audit.Append(ctx, s.store.DB(), opening.EntryID, audit.ActionOpenPeriod, userID, payload); err != nil {
		return failedDB(err)
	}
	return opening
}

// TrialBalance exposes the period aggregation for reporting.
func (s *Service) TrialBalance(ctx context.Context, startDate, endDate string) ([]Balance, error) {
	return TrialBalance(ctx, s.store, startDate, endDate)
}

func (s *Service) postAdjustments(ctx context.Context, userID string, adj Adjustments) ledger.Result {
	opts := ledger.PostOptions{ProtocolSeries: SeriesAdjustment}

	for _, item := range adj.Accruals {
		res := s.engine.Post(ctx, ledger.Entry{
			Date:        item.Date,
			Description: item.Description,
			Lines: []ledger.Line{
				{AccountCode: item.ExpenseAccount, Dare: item.Amount},
				{AccountCode: item.PayableAccount, Avere: item.Amount},
			},
		}, userID, opts)
		if !res.Success {
			return res
		}
	}
	for _, item := range adj.Deferrals {
		res := s.engine.Post(ctx, ledger.Entry{
			Date:        item.Date,
			Description: item.Description,
			Lines: []ledger.Line{
				{AccountCode: item.PrepaidAccount, Dare: item.Amount},
				{AccountCode: item.ExpenseAccount, Avere: item.Amount},
			},
		}, userID, opts)
		if !res.Success {
			return res
		}
	}
	for _, item := range adj.Amortizations {
		res := s.engine.Post(ctx, ledger.Entry{
			Date:        item.Date,
			Description: item.Description,
			Lines: []ledger.Line{
				{AccountCode: item.ExpenseAccount, Dare: item.Amount},
				{AccountCode: item.AssetAccount, Avere: item.Amount},
			},
		}, userID, opts)
		if !res.Success {
			return res
		}
	}
	return ledger.Succeeded(0, "")
}

// postIncomeClosing zeroes every income-statement balance against equity.
// A period with no income movement succeeds with no entry.
func (s *Service) postIncomeClosing(ctx context.Context, p periods.Period, userID, description string) ledger.Result {
	balances, err := TrialBalance(ctx, s.store, p.StartDate, p.EndDate)
	if err != nil {
		return failedDB(err)
	}

	var lines []ledger.Line
	debitTotal := decimal.Zero
	creditTotal := decimal.Zero

	for _, b := range balances {
		if b.StatementType != accounts.StatementRevenue && b.StatementType != accounts.StatementExpense {
			continue
		}
		if b.Amount.IsZero() {
			continue
		}
		// Zeroing posts the opposite side of the prevailing balance.
		if b.Side == accounts.NatureCredit {
			lines = append(lines, ledger.Line{AccountCode: b.AccountCode, Dare: b.Amount})
			debitTotal = debitTotal.Add(b.Amount)
		} else {
			lines = append(lines, ledger.Line{AccountCode: b.AccountCode, Avere: b.Amount})
			creditTotal = creditTotal.Add(b.Amount)
		}
	}

	switch debitTotal.Cmp(creditTotal) {
	case 1:
		// Revenue exceeded expense: the profit credits equity.
		lines = append(lines, ledger.Line{AccountCode: s.equity, Avere: debitTotal.Sub(creditTotal)})
	case -1:
		lines = append(lines, ledger.Line{AccountCode: s.equity, Dare: creditTotal.Sub(debitTotal)})
	}

	if len(lines) == 0 {
		return ledger.Succeeded(0, "")
	}

	return s.engine.Post(ctx, ledger.Entry{
		Date:        p.EndDate,
		Description: description,
		Lines:       lines,
	}, userID, ledger.PostOptions{ProtocolSeries: SeriesClosing})
}

func (s *Service) postOpeningBalance(ctx context.Context, prev periods.Period, year, userID, description string) ledger.Result {
	balances, err := TrialBalance(ctx, s.store, prev.StartDate, prev.EndDate)
	if err != nil {
		return failedDB(err)
	}

	var lines []ledger.Line
	debitTotal := decimal.Zero
	creditTotal := decimal.Zero

	for _, b := range balances {
		switch b.StatementType {
		case accounts.StatementAsset, accounts.StatementLiability, accounts.StatementEquity:
		default:
			// Income accounts must already be closed to equity.
			continue
		}
		if b.Amount.IsZero() {
			continue
		}
		if b.Side == accounts.NatureDebit {
			lines = append(lines, ledger.Line{AccountCode: b.AccountCode, Dare: b.Amount})
			debitTotal = debitTotal.Add(b.Amount)
		} else {
			lines = append(lines, ledger.Line{AccountCode: b.AccountCode, Avere: b.Amount})
			creditTotal = creditTotal.Add(b.Amount)
		}
	}

	if !debitTotal.Equal(creditTotal) {
		return ledger.Failed(ledger.Error{
			Kind: ledger.KindUnbalanced,
			Message: fmt.Sprintf("opening entry not balanced: dare=%s avere=%s",
				debitTotal.StringFixed(2), creditTotal.StringFixed(2)),
		})
	}
	if len(lines) == 0 {
		return ledger.Succeeded(0, "")
	}

	return s.engine.Post(ctx, ledger.Entry{
		Date:        year + "-01-01",
		Description: description,
		Lines:       lines,
	}, userID, ledger.PostOptions{ProtocolSeries: SeriesOpening})
}

func failedDB(err error) ledger.Result {
	return ledger.Failed(ledger.Error{
		Kind:    ledger.KindDBError,
		Message: fmt.Sprintf("%T: %v", err, err),
	})
}

func nullableStr(s string) any {
	if s == "" {
		return nil
	}
	return s
}
