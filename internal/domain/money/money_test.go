package money

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromStringRoundsHalfUp(t *testing.T) {
	cases := map[string]int64{
		"10.005": 1001, // half-up, not banker's rounding
		"10.004": 1000,
		"100":    10000,
		"0.00":   0,
	}
	for in, want := range cases {
		got, err := FromString(in)
		require.NoError(t, err)
		assert.Equal(t, want, got.Cents(), "input %s", in)
	}
}

func TestPercentOfMatchesScenarioS2(t *testing.T) {
	fee := FromCents(50000) // 500.00
	share := fee.PercentOf(big.NewRat(12, 1))
	assert.Equal(t, "60.00", share.String())

	half := share.Half()
	assert.Equal(t, "30.00", half.String())

	remaining := fee.Sub(share)
	assert.Equal(t, "440.00", remaining.String())
}

func TestStringRoundTrip(t *testing.T) {
	a := MustFromString("9500.00")
	assert.Equal(t, "9500.00", a.String())
}

func TestClamp(t *testing.T) {
	lo := FromCents(100)
	hi := FromCents(1000)
	assert.Equal(t, lo, Clamp(FromCents(50), &lo, &hi))
	assert.Equal(t, hi, Clamp(FromCents(2000), &lo, &hi))
	assert.Equal(t, FromCents(500), Clamp(FromCents(500), &lo, &hi))
}

func TestMarshalJSON(t *testing.T) {
	a := MustFromString("95.50")
	b, err := a.MarshalJSON()
	require.NoError(t, err)
	assert.Equal(t, `"95.50"`, string(b))

	var parsed Amount
	require.NoError(t, parsed.UnmarshalJSON(b))
	assert.Equal(t, a, parsed)
}
