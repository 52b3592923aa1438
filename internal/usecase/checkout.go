package usecase

import (
	"context"

	"github.com/cyphera/settlement-engine/internal/apperror"
	"github.com/cyphera/settlement-engine/internal/domain/money"
	"github.com/google/uuid"
)

// CreateTicketPurchaseCheckoutInput is the POST /v1/checkout/ticket-purchase
// body (spec §6). ChargeSettingID/VersionID/VersionNumber/CalculatedCharge
// and Signature come from a previously-issued ChargeQuote; the quote
// signature is checked here and then replaced with a fresh signature over
// the full checkout metadata so VerifyTicketPurchase can recompute it later
// (spec §4.4 step 3).
type CreateTicketPurchaseCheckoutInput struct {
	UserID           uuid.UUID
	Email            string
	Slug             string
	BaseAmount       money.Amount
	ChargeSettingID  string
	VersionID        string
	VersionNumber    int
	CalculatedCharge money.Amount
	Signature        string
	CallbackURL      string
	Referrer         *uuid.UUID
}

// CheckoutLink is the provider-hosted payment page plus the reference the
// client must echo back to verify-ticket-purchase once redirected.
type CheckoutLink struct {
	Link      string
	Reference uuid.UUID
}

// CreateTicketPurchaseCheckout issues a checkout link against the payment
// provider, embedding the signed charge quote in its metadata so the fee
// cannot be altered client-side (spec §2 "Payment Adapter").
func (s *Services) CreateTicketPurchaseCheckout(ctx context.Context, in CreateTicketPurchaseCheckoutInput) (CheckoutLink, error) {
	if !in.BaseAmount.IsPositive() {
		return CheckoutLink{}, apperror.InvalidInput("amount must be greater than zero")
	}

	quotePayload := map[string]any{
		"charge_setting_id": in.ChargeSettingID,
		"version_id":        in.VersionID,
		"version_number":    in.VersionNumber,
		"calculated_charge": in.CalculatedCharge.String(),
		"user":              in.UserID.String(),
	}
	ok, err := s.ChargeSigner.Verify(quotePayload, in.Signature)
	if err != nil || !ok {
		return CheckoutLink{}, apperror.InvalidInput("charge quote signature is invalid")
	}

	metadata := map[string]any{
		"user":              in.UserID.String(),
		"slug":              in.Slug,
		"charge_setting_id": in.ChargeSettingID,
		"version_id":        in.VersionID,
		"version_number":    in.VersionNumber,
		"calculated_charge": in.CalculatedCharge.String(),
	}

	// Re-sign over the full checkout metadata rather than forwarding the
	// quote signature verbatim: VerifyTicketPurchase recomputes the HMAC
	// over every provider metadata field except signature and referrer, and
	// the quote above never carried slug, so the two signatures cover
	// different field sets.
	metadataSignature, err := s.ChargeSigner.Sign(metadata)
	if err != nil {
		return CheckoutLink{}, err
	}
	metadata["signature"] = metadataSignature

	if in.Referrer != nil {
		metadata["referrer"] = in.Referrer.String()
	}

	reference := uuid.New()
	link, err := s.Payment.InitializeTransaction(ctx, in.Email, in.BaseAmount, reference, in.CallbackURL, metadata)
	if err != nil {
		return CheckoutLink{}, apperror.UpstreamUnavailable("failed to initialize checkout", err)
	}
	return CheckoutLink{Link: link, Reference: reference}, nil
}
