package ledger

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubAccounts struct {
	codes map[string]bool
	err   error
}

func (s stubAccounts) AccountExists(ctx context.Context, code string) (bool, error) {
	return s.codes[code], s.err
}

type stubPeriods struct {
	closedDates map[string]bool
}

func (s stubPeriods) IsOpenOnDate(ctx context.Context, isoDate string) (bool, error) {
	return !s.closedDates[isoDate], nil
}

type stubEntries struct {
	existing map[int64]bool
	reversed map[int64]bool
}

func (s stubEntries) EntryExists(ctx context.Context, id int64) (bool, error) {
	return s.existing[id], nil
}

func (s stubEntries) HasReversal(ctx context.Context, originalID int64) (bool, error) {
	return s.reversed[originalID], nil
}

func validationFixtures() (stubAccounts, stubPeriods, stubEntries) {
	accounts := stubAccounts{codes: map[string]bool{
		"1000": true, "2000": true, "3000": true, "4000": true,
	}}
	periods := stubPeriods{closedDates: map[string]bool{"2024-12-31": true}}
	entries := stubEntries{
		existing: map[int64]bool{7: true, 8: true},
		reversed: map[int64]bool{8: true},
	}
	return accounts, periods, entries
}

func kinds(errs []Error) []ErrorKind {
	out := make([]ErrorKind, 0, len(errs))
	for _, e := range errs {
		out = append(out, e.Kind)
	}
	return out
}

func balancedEntry(t *testing.T) Entry {
	t.Helper()
	return Entry{
		Date:        "2025-02-01",
		Description: "test",
		Lines: []Line{
			{AccountCode: "1000", Dare: dec(t, "50.00")},
			{AccountCode: "4000", Avere: dec(t, "50.00")},
		},
	}
}

func TestValidateAccepts(t *testing.T) {
	accounts, periods, entries := validationFixtures()
	errs, err := Validate(context.Background(), balancedEntry(t), accounts, periods, entries)
	require.NoError(t, err)
	assert.Empty(t, errs)
}

func TestValidateUnbalanced(t *testing.T) {
	accounts, periods, entries := validationFixtures()
	e := balancedEntry(t)
	e.Lines[1].Avere = dec(t, "49.99")

	errs, err := Validate(context.Background(), e, accounts, periods, entries)
	require.NoError(t, err)
	assert.Contains(t, kinds(errs), KindUnbalanced)
}

func TestValidateLineSigns(t *testing.T) {
	accounts, periods, entries := validationFixtures()

	e := balancedEntry(t)
	e.Lines[0].Dare = dec(t, "-50.00")
	e.Lines[1].Avere = dec(t, "-50.00")
	errs, err := Validate(context.Background(), e, accounts, periods, entries)
	require.NoError(t, err)
	assert.Contains(t, kinds(errs), KindNegativeAmount)

	e = balancedEntry(t)
	e.Lines[0].Avere = dec(t, "50.00")
	errs, err = Validate(context.Background(), e, accounts, periods, entries)
	require.NoError(t, err)
	assert.Contains(t, kinds(errs), KindAmbiguousLine)

	e = balancedEntry(t)
	e.Lines = append(e.Lines, Line{AccountCode: "3000"})
	errs, err = Validate(context.Background(), e, accounts, periods, entries)
	require.NoError(t, err)
	assert.Contains(t, kinds(errs), KindEmptyLines)
}

func TestValidateNoLines(t *testing.T) {
	accounts, periods, entries := validationFixtures()
	e := Entry{Date: "2025-02-01", Description: "empty"}
	errs, err := Validate(context.Background(), e, accounts, periods, entries)
	require.NoError(t, err)
	assert.Contains(t, kinds(errs), KindEmptyLines)
}

func TestValidateUnknownAccount(t *testing.T) {
	accounts, periods, entries := validationFixtures()
	e := balancedEntry(t)
	e.Lines[0].AccountCode = "9898"

	errs, err := Validate(context.Background(), e, accounts, periods, entries)
	require.NoError(t, err)
	assert.Contains(t, kinds(errs), KindInvalidAccount)
}

func TestValidateDateAndPeriod(t *testing.T) {
	accounts, periods, entries := validationFixtures()

	e := balancedEntry(t)
	e.Date = "01/02/2025"
	errs, err := Validate(context.Background(), e, accounts, periods, entries)
	require.NoError(t, err)
	assert.Contains(t, kinds(errs), KindInvalidDate)

	e = balancedEntry(t)
	e.Date = "2024-12-31"
	errs, err = Validate(context.Background(), e, accounts, periods, entries)
	require.NoError(t, err)
	assert.Contains(t, kinds(errs), KindPeriodClosed)
}

func TestValidateReversal(t *testing.T) {
	accounts, periods, entries := validationFixtures()

	e := balancedEntry(t)
	e.ReversalOf = 99
	errs, err := Validate(context.Background(), e, accounts, periods, entries)
	require.NoError(t, err)
	assert.Contains(t, kinds(errs), KindNotFound)

	e = balancedEntry(t)
	e.ReversalOf = 8
	errs, err = Validate(context.Background(), e, accounts, periods, entries)
	require.NoError(t, err)
	assert.Contains(t, kinds(errs), KindAlreadyReversed)

	e = balancedEntry(t)
	e.ReversalOf = 7
	errs, err = Validate(context.Background(), e, accounts, periods, entries)
	require.NoError(t, err)
	assert.Empty(t, errs)
}

func TestValidateVATConsistency(t *testing.T) {
	accounts, periods, entries := validationFixtures()

	net := dec(t, "100.00")
	rate := dec(t, "0.22")
	wrong := dec(t, "21.00")
	e := balancedEntry(t)
	e.TaxableAmount, e.VATRate, e.VATAmount = &net, &rate, &wrong

	errs, err := Validate(context.Background(), e, accounts, periods, entries)
	require.NoError(t, err)
	assert.Contains(t, kinds(errs), KindVATMismatch)

	right := dec(t, "22.00")
	e.VATAmount = &right
	errs, err = Validate(context.Background(), e, accounts, periods, entries)
	require.NoError(t, err)
	assert.Empty(t, errs)

	// Partial VAT data skips the check.
	e.VATAmount = nil
	errs, err = Validate(context.Background(), e, accounts, periods, entries)
	require.NoError(t, err)
	assert.Empty(t, errs)
}

func TestValidateCollectsAllErrors(t *testing.T) {
	accounts, periods, entries := validationFixtures()
	e := Entry{
		Date:        "2024-12-31",
		Description: "everything wrong",
		Lines: []Line{
			{AccountCode: "9898", Dare: dec(t, "10.00")},
			{AccountCode: "4000", Avere: dec(t, "-5.00")},
		},
	}
	errs, err := Validate(context.Background(), e, accounts, periods, entries)
	require.NoError(t, err)

	got := kinds(errs)
	assert.Contains(t, got, KindUnbalanced)
	assert.Contains(t, got, KindNegativeAmount)
	assert.Contains(t, got, KindInvalidAccount)
	assert.Contains(t, got, KindPeriodClosed)
}

func TestValidateRepoFailureSurfaces(t *testing.T) {
	_, periods, entries := validationFixtures()
	broken := stubAccounts{err: errors.New("disk gone")}

	_, err := Validate(context.Background(), balancedEntry(t), broken, periods, entries)
	assert.Error(t, err)
}
