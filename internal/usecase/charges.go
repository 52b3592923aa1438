package usecase

import (
	"context"
	"time"

	"github.com/cyphera/settlement-engine/internal/apperror"
	"github.com/cyphera/settlement-engine/internal/domain/chargeschedule"
	"github.com/cyphera/settlement-engine/internal/domain/money"
	"github.com/google/uuid"
)

const (
	chargeSettingTicketPurchase    = "ticket_purchase"
	chargeSettingInstantWithdrawal = "instant_withdrawal"
)

// ChargeQuote is the signed-token response shared by both charge endpoints
// (spec §6 "GET /v1/charges/...").
type ChargeQuote struct {
	BaseAmount       money.Amount
	ChargeSettingID  string
	VersionID        string
	VersionNumber    int
	CalculatedCharge money.Amount
	Signature        string
}

// RequestTicketPurchaseCharge quotes the fee for a ticket purchase and
// signs it so the client cannot downgrade the fee before checkout
// (spec §4.2, §4.3, §6). CreateTicketPurchaseCheckout re-verifies this
// quote signature and then re-signs the full checkout metadata itself, so
// base_amount is deliberately left out of this payload.
func (s *Services) RequestTicketPurchaseCharge(ctx context.Context, userID uuid.UUID, baseAmount money.Amount) (ChargeQuote, error) {
	return s.requestCharge(ctx, chargeSettingTicketPurchase, userID, baseAmount, false)
}

// RequestInstantWithdrawalCharge quotes the fee for an instant withdrawal.
// SubmitWithdrawal verifies this signature over a payload that includes
// base_amount (spec §4.6 step 2), so it must be signed here too.
func (s *Services) RequestInstantWithdrawalCharge(ctx context.Context, userID uuid.UUID, baseAmount money.Amount) (ChargeQuote, error) {
	return s.requestCharge(ctx, chargeSettingInstantWithdrawal, userID, baseAmount, true)
}

func (s *Services) requestCharge(ctx context.Context, chargeSettingID string, userID uuid.UUID, baseAmount money.Amount, signBaseAmount bool) (ChargeQuote, error) {
	if !baseAmount.IsPositive() {
		return ChargeQuote{}, apperror.InvalidInput("amount must be greater than zero")
	}

	now := time.Now().UTC()
	versions, err := s.ChargeSchedule.GetVersionsAt(ctx, chargeSettingID, now)
	if err != nil {
		return ChargeQuote{}, err
	}

	breakdown, err := chargeschedule.Evaluate(chargeSettingID, versions, baseAmount, now)
	if err != nil {
		return ChargeQuote{}, err
	}

	payload := map[string]any{
		"charge_setting_id": breakdown.ChargeSettingID,
		"version_id":        breakdown.VersionID,
		"version_number":    breakdown.VersionNumber,
		"calculated_charge": breakdown.CalculatedCharge.String(),
		"user":              userID.String(),
	}
	if signBaseAmount {
		payload["base_amount"] = baseAmount.String()
	}
	signature, err := s.ChargeSigner.Sign(payload)
	if err != nil {
		return ChargeQuote{}, err
	}

	return ChargeQuote{
		BaseAmount:       baseAmount,
		ChargeSettingID:  breakdown.ChargeSettingID,
		VersionID:        breakdown.VersionID,
		VersionNumber:    breakdown.VersionNumber,
		CalculatedCharge: breakdown.CalculatedCharge,
		Signature:        signature,
	}, nil
}
