package ledger

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dec(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	v, err := decimal.NewFromString(s)
	require.NoError(t, err)
	return v
}

func TestQ2RoundsHalfUp(t *testing.T) {
	cases := map[string]string{
		"1.005":  "1.01",
		"1.004":  "1.00",
		"2.675":  "2.68",
		"-1.005": "-1.01",
		"0.125":  "0.13",
		"10":     "10.00",
	}
	for in, want := range cases {
		assert.Equal(t, want, Q2(dec(t, in)).StringFixed(2), "Q2(%s)", in)
	}
}

func TestCentsRoundTrip(t *testing.T) {
	assert.Equal(t, int64(12345), Cents(dec(t, "123.45")))
	assert.Equal(t, int64(101), Cents(dec(t, "1.005")))
	assert.Equal(t, int64(0), Cents(decimal.Zero))

	assert.True(t, FromCents(12345).Equal(dec(t, "123.45")))
	assert.True(t, FromCents(Cents(dec(t, "99.99"))).Equal(dec(t, "99.99")))
}

func TestQ2PtrNilStaysNil(t *testing.T) {
	assert.Nil(t, Q2Ptr(nil))
	v := dec(t, "1.005")
	got := Q2Ptr(&v)
	require.NotNil(t, got)
	assert.Equal(t, "1.01", got.StringFixed(2))
}

func TestParseAmount(t *testing.T) {
	v, err := ParseAmount("42.50")
	require.NoError(t, err)
	assert.True(t, v.Equal(dec(t, "42.5")))

	_, err = ParseAmount("not-a-number")
	assert.Error(t, err)
}
