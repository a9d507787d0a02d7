package ledger

import (
	"context"
	"fmt"
	"regexp"

	"github.com/shopspring/decimal"
)

// AccountReader answers account existence checks for validation.
type AccountReader interface {
	AccountExists(ctx context.Context, code string) (bool, error)
}

// PeriodReader answers period openness checks for validation. A date is
// open when no closed or finalized period covers it.
type PeriodReader interface {
	IsOpenOnDate(ctx context.Context, isoDate string) (bool, error)
}

// EntryReader answers entry existence and reversal checks for validation.
type EntryReader interface {
	EntryExists(ctx context.Context, id int64) (bool, error)
	HasReversal(ctx context.Context, originalID int64) (bool, error)
}

var isoDateRE = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

// Validate runs every rule against the entry and returns all applicable
// errors in one pass; it never writes. The returned error is reserved for
// repository failures, which the engine maps to DB_ERROR.
func Validate(ctx context.Context, e Entry, accounts AccountReader, periods PeriodReader, entries EntryReader) ([]Error, error) {
	var errs []Error

	if len(e.Lines) == 0 {
		errs = append(errs, Error{Kind: KindEmptyLines, Message: "entry has no lines"})
	}

	errs = append(errs, validateBalanced(e)...)
	errs = append(errs, validateLineSigns(e)...)

	accErrs, err := validateAccountsExist(ctx, e, accounts)
	if err != nil {
		return nil, err
	}
	errs = append(errs, accErrs...)

	perErrs, err := validatePeriodOpen(ctx, e, periods)
	if err != nil {
		return nil, err
	}
	errs = append(errs, perErrs...)

	revErrs, err := validateReversalLegal(ctx, e, entries)
	if err != nil {
		return nil, err
	}
	errs = append(errs, revErrs...)

	errs = append(errs, validateVATConsistency(e)...)
	return errs, nil
}

func validateBalanced(e Entry) []Error {
	totalDare := decimal.Zero
	totalAvere := decimal.Zero
	for _, l := range e.Lines {
		totalDare = totalDare.Add(Q2(l.Dare))
		totalAvere = totalAvere.Add(Q2(l.Avere))
	}
	if !totalDare.Equal(totalAvere) {
		return []Error{{
			Kind:    KindUnbalanced,
			Message: fmt.Sprintf("entry not balanced: dare=%s avere=%s", totalDare.StringFixed(2), totalAvere.StringFixed(2)),
		}}
	}
	return nil
}

func validateLineSigns(e Entry) []Error {
	var errs []Error
	for _, l := range e.Lines {
		if l.Dare.IsNegative() || l.Avere.IsNegative() {
			errs = append(errs, Error{
				Kind:    KindNegativeAmount,
				Message: fmt.Sprintf("negative amount on account %s", l.AccountCode),
			})
		}
		if l.Dare.IsPositive() && l.Avere.IsPositive() {
			errs = append(errs, Error{
				Kind:    KindAmbiguousLine,
				Message: fmt.Sprintf("ambiguous line on account %s: dare and avere both positive", l.AccountCode),
			})
		}
		if l.Dare.IsZero() && l.Avere.IsZero() {
			errs = append(errs, Error{
				Kind:    KindEmptyLines,
				Message: fmt.Sprintf("empty line on account %s: dare and avere both zero", l.AccountCode),
			})
		}
	}
	return errs
}

func validateAccountsExist(ctx context.Context, e Entry, accounts AccountReader) ([]Error, error) {
	var errs []Error
	for _, l := range e.Lines {
		ok, err := accounts.AccountExists(ctx, l.AccountCode)
		if err != nil {
			return nil, err
		}
		if !ok {
			errs = append(errs, Error{
				Kind:    KindInvalidAccount,
				Message: fmt.Sprintf("account %s does not exist", l.AccountCode),
			})
		}
	}
	return errs, nil
}

func validatePeriodOpen(ctx context.Context, e Entry, periods PeriodReader) ([]Error, error) {
	if !isoDateRE.MatchString(e.Date) {
		return []Error{{
			Kind:    KindInvalidDate,
			Message: fmt.Sprintf("invalid date: %q", e.Date),
		}}, nil
	}
	open, err := periods.IsOpenOnDate(ctx, e.Date)
	if err != nil {
		return nil, err
	}
	if !open {
		return []Error{{
			Kind:    KindPeriodClosed,
			Message: fmt.Sprintf("period closed for date %s", e.Date),
		}}, nil
	}
	return nil, nil
}

func validateReversalLegal(ctx context.Context, e Entry, entries EntryReader) ([]Error, error) {
	if e.ReversalOf == 0 {
		return nil, nil
	}
	exists, err := entries.EntryExists(ctx, e.ReversalOf)
	if err != nil {
		return nil, err
	}
	if !exists {
		return []Error{{
			Kind:    KindNotFound,
			Message: fmt.Sprintf("entry %d does not exist", e.ReversalOf),
		}}, nil
	}
	reversed, err := entries.HasReversal(ctx, e.ReversalOf)
	if err != nil {
		return nil, err
	}
	if reversed {
		return []Error{{
			Kind:    KindAlreadyReversed,
			Message: fmt.Sprintf("entry %d has already been reversed", e.ReversalOf),
		}}, nil
	}
	return nil, nil
}

func validateVATConsistency(e Entry) []Error {
	if e.TaxableAmount == nil || e.VATRate == nil || e.VATAmount == nil {
		return nil
	}
	expected := Q2(Q2(*e.TaxableAmount).Mul(Q2(*e.VATRate)))
	actual := Q2(*e.VATAmount)
	if !expected.Equal(actual) {
		return []Error{{
			Kind:    KindVATMismatch,
			Message: fmt.Sprintf("inconsistent VAT: expected=%s found=%s", expected.StringFixed(2), actual.StringFixed(2)),
		}}
	}
	return nil
}
