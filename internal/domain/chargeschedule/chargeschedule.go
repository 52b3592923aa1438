// Package chargeschedule implements the Charge Schedule Evaluator: a pure
// function over a time-sliced, tiered fee schedule (spec §3
// ChargeSetting/ChargeSettingVersion, §4.2).
package chargeschedule

import (
	"math/big"
	"time"

	"github.com/cyphera/settlement-engine/internal/apperror"
	"github.com/cyphera/settlement-engine/internal/domain/money"
)

// Tier is one row of a version's ordered, non-overlapping, gap-free fee
// table. Both MinPrice and MaxPrice are inclusive bounds (spec §9 Open
// Question resolution, documented in DESIGN.md).
type Tier struct {
	Name           string
	MinPrice       money.Amount
	MaxPrice       *money.Amount // nil => open-ended top tier
	PercentageRate *big.Rat
	MinCharge      *money.Amount
	MaxCharge      *money.Amount
}

// AppliesTo reports whether base falls within this tier's inclusive range.
func (t Tier) AppliesTo(base money.Amount) bool {
	if base.Cmp(t.MinPrice) < 0 {
		return false
	}
	if t.MaxPrice != nil && base.Cmp(*t.MaxPrice) > 0 {
		return false
	}
	return true
}

// Version is one time-sliced, immutable activation of a ChargeSetting's
// tier table (spec §3, grounded in original_source's
// charge_setting_version repository/model).
type Version struct {
	VersionID      string
	VersionNumber  int
	Tiers          []Tier
	EffectiveFrom  time.Time
	EffectiveUntil *time.Time
}

// ActiveAt reports whether this version is the one in force at t: spec §4.2
// "effective_from <= t and (effective_until is null or effective_until > t)".
func (v Version) ActiveAt(t time.Time) bool {
	if t.Before(v.EffectiveFrom) {
		return false
	}
	if v.EffectiveUntil != nil && !t.Before(*v.EffectiveUntil) {
		return false
	}
	return true
}

// Breakdown is the full result of evaluating a schedule against an amount,
// used both as the charge outcome and as the payload bound into a signed
// charge token (spec §4.2, §4.3).
type Breakdown struct {
	ChargeSettingID  string
	VersionID        string
	VersionNumber    int
	TierName         string
	PercentageRate   *big.Rat
	BaseAmount       money.Amount
	CalculatedCharge money.Amount
	MinCapApplied    bool
	MaxCapApplied    bool
}

// Evaluate finds the tier covering baseAmount in the version active at t
// and computes the clamped, HALF_UP-rounded charge (spec §4.2).
func Evaluate(chargeSettingID string, versions []Version, baseAmount money.Amount, t time.Time) (Breakdown, error) {
	var active *Version
	for i := range versions {
		if versions[i].ActiveAt(t) {
			active = &versions[i]
			break
		}
	}
	if active == nil {
		return Breakdown{}, apperror.NotFound("no active charge schedule version at the requested time")
	}

	var tier *Tier
	for i := range active.Tiers {
		if active.Tiers[i].AppliesTo(baseAmount) {
			tier = &active.Tiers[i]
			break
		}
	}
	if tier == nil {
		return Breakdown{}, apperror.NotFound("no tier covers the requested amount")
	}

	raw := baseAmount.PercentOf(tier.PercentageRate)
	clamped := money.Clamp(raw, tier.MinCharge, tier.MaxCharge)

	if !clamped.IsPositive() {
		return Breakdown{}, apperror.InvalidInput("calculated charge must be greater than zero")
	}

	return Breakdown{
		ChargeSettingID:  chargeSettingID,
		VersionID:        active.VersionID,
		VersionNumber:    active.VersionNumber,
		TierName:         tier.Name,
		PercentageRate:   tier.PercentageRate,
		BaseAmount:       baseAmount,
		CalculatedCharge: clamped,
		MinCapApplied:    tier.MinCharge != nil && raw.Cmp(*tier.MinCharge) < 0,
		MaxCapApplied:    tier.MaxCharge != nil && raw.Cmp(*tier.MaxCharge) > 0,
	}, nil
}

// ValidateNoGapsOrOverlaps checks that a version's tiers are ordered,
// contiguous and non-overlapping under the same inclusive-both-ends rule
// applied by AppliesTo (spec §9 Open Question resolution). A gap-free table
// requires tier[i+1].MinPrice == tier[i].MaxPrice + 0.01.
func ValidateNoGapsOrOverlaps(tiers []Tier) error {
	for i := 0; i < len(tiers)-1; i++ {
		cur, next := tiers[i], tiers[i+1]
		if cur.MaxPrice == nil {
			return apperror.InvalidInput("only the last tier may be open-ended")
		}
		expectedNextMin := cur.MaxPrice.Add(money.FromCents(1))
		if next.MinPrice.Cmp(expectedNextMin) != 0 {
			return apperror.InvalidInput("tiers must be contiguous with no gap or overlap")
		}
	}
	return nil
}
