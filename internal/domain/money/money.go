// Package money implements the fixed-point, scale-2 decimal arithmetic the
// ledger requires: amounts are always quantized to 0.01 with HALF_UP
// rounding, never floated.
package money

import (
	"fmt"
	"math/big"
)

// Amount is a non-negative-by-convention fixed-point decimal at scale 2,
// represented as an integer number of cents. Negative amounts are rejected
// by the constructors used on the write path (Transaction.amount,
// Wallet.balance); intermediate arithmetic (e.g. fee - referral_share) may
// transiently go through Amount values that callers must validate.
type Amount struct {
	cents int64
}

// Zero is the additive identity.
var Zero = Amount{}

// FromCents builds an Amount directly from an integer cent count.
func FromCents(cents int64) Amount { return Amount{cents: cents} }

// Cents returns the underlying integer cent count.
func (a Amount) Cents() int64 { return a.cents }

// FromString parses a decimal string like "100.00" or "100" into an Amount,
// quantizing to 0.01 with HALF_UP rounding if more than two fraction digits
// are present.
func FromString(s string) (Amount, error) {
	r, ok := new(big.Rat).SetString(s)
	if !ok {
		return Amount{}, fmt.Errorf("money: invalid decimal %q", s)
	}
	return fromRat(r), nil
}

// MustFromString panics on parse failure; intended for tests and literals.
func MustFromString(s string) Amount {
	a, err := FromString(s)
	if err != nil {
		panic(err)
	}
	return a
}

func fromRat(r *big.Rat) Amount {
	scaled := new(big.Rat).Mul(r, big.NewRat(100, 1))
	return Amount{cents: halfUpRatToInt(scaled)}
}

// halfUpRatToInt rounds a rational number to the nearest integer, ties away
// from zero (HALF_UP), matching Python's Decimal ROUND_HALF_UP semantics.
func halfUpRatToInt(r *big.Rat) int64 {
	num := r.Num()
	den := r.Denom()

	neg := num.Sign() < 0
	n := new(big.Int).Abs(num)
	d := new(big.Int).Abs(den)

	quo, rem := new(big.Int).QuoRem(n, d, new(big.Int))
	twice := new(big.Int).Mul(rem, big.NewInt(2))
	if twice.Cmp(d) >= 0 {
		quo.Add(quo, big.NewInt(1))
	}
	if neg {
		quo.Neg(quo)
	}
	return quo.Int64()
}

// String renders the amount as a fixed-point decimal string, e.g. "95.00".
func (a Amount) String() string {
	neg := a.cents < 0
	c := a.cents
	if neg {
		c = -c
	}
	sign := ""
	if neg {
		sign = "-"
	}
	return fmt.Sprintf("%s%d.%02d", sign, c/100, c%100)
}

// MarshalJSON encodes the amount as a JSON string, per spec §6 ("decimal
// fields serialized as strings").
func (a Amount) MarshalJSON() ([]byte, error) {
	return []byte(`"` + a.String() + `"`), nil
}

// UnmarshalJSON decodes a JSON string (or bare number) into an Amount.
func (a *Amount) UnmarshalJSON(data []byte) error {
	s := string(data)
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		s = s[1 : len(s)-1]
	}
	parsed, err := FromString(s)
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

// IsPositive reports whether the amount is strictly greater than zero.
func (a Amount) IsPositive() bool { return a.cents > 0 }

// IsZero reports whether the amount is exactly zero.
func (a Amount) IsZero() bool { return a.cents == 0 }

// IsNegative reports whether the amount is strictly less than zero.
func (a Amount) IsNegative() bool { return a.cents < 0 }

// Add returns a + b.
func (a Amount) Add(b Amount) Amount { return Amount{cents: a.cents + b.cents} }

// Sub returns a - b.
func (a Amount) Sub(b Amount) Amount { return Amount{cents: a.cents - b.cents} }

// Cmp returns -1, 0 or 1 as a is less than, equal to, or greater than b.
func (a Amount) Cmp(b Amount) int {
	switch {
	case a.cents < b.cents:
		return -1
	case a.cents > b.cents:
		return 1
	default:
		return 0
	}
}

// GreaterThanOrEqual reports whether a >= b.
func (a Amount) GreaterThanOrEqual(b Amount) bool { return a.cents >= b.cents }

// LessThanOrEqual reports whether a <= b.
func (a Amount) LessThanOrEqual(b Amount) bool { return a.cents <= b.cents }

// PercentOf returns quantize(a * rate / 100, 0.01, HALF_UP), the charge
// schedule evaluator's core computation (spec §4.2).
func (a Amount) PercentOf(ratePercent *big.Rat) Amount {
	cents := big.NewRat(a.cents, 1)
	scaled := new(big.Rat).Mul(cents, ratePercent)
	scaled.Quo(scaled, big.NewRat(100, 1))
	return Amount{cents: halfUpRatToInt(scaled)}
}

// Half returns quantize(a / 2, 0.01, HALF_UP).
func (a Amount) Half() Amount {
	r := big.NewRat(a.cents, 2)
	return Amount{cents: halfUpRatToInt(r)}
}

// Clamp returns min(max(a, lo), hi) when lo/hi are both set, matching the
// charge evaluator's min_charge/max_charge capping.
func Clamp(a Amount, lo, hi *Amount) Amount {
	out := a
	if lo != nil && out.Cmp(*lo) < 0 {
		out = *lo
	}
	if hi != nil && out.Cmp(*hi) > 0 {
		out = *hi
	}
	return out
}
