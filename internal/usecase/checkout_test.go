package usecase

import (
	"context"
	"math/big"
	"testing"

	"github.com/cyphera/settlement-engine/internal/domain/money"
	"github.com/cyphera/settlement-engine/internal/signing"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

// checkoutInputFromQuote builds a CreateTicketPurchaseCheckoutInput carrying
// a real quote signature, the way the HTTP handler assembles one from a
// previously-issued ChargeQuote plus the rest of the checkout form.
func checkoutInputFromQuote(quote ChargeQuote, userID uuid.UUID, slug, email, callbackURL string) CreateTicketPurchaseCheckoutInput {
	return CreateTicketPurchaseCheckoutInput{
		UserID: userID, Email: email, Slug: slug,
		BaseAmount:       quote.BaseAmount,
		ChargeSettingID:  quote.ChargeSettingID,
		VersionID:        quote.VersionID,
		VersionNumber:    quote.VersionNumber,
		CalculatedCharge: quote.CalculatedCharge,
		Signature:        quote.Signature,
		CallbackURL:      callbackURL,
	}
}

func TestCreateTicketPurchaseCheckoutEmbedsSignedMetadata(t *testing.T) {
	schedule := flatRateSchedule(big.NewRat(5, 100))
	chargeSigner := signing.New("charge-key")
	payment := &fakePaymentAdapter{checkoutLink: "https://pay.example/abc"}
	svc := NewServices(newFakeTxnRepo(), newFakeWalletRepo(), schedule, &fakeBus{}, payment,
		&fakeTickets{}, &fakeUsers{}, chargeSigner, signing.New("account-key"), false, 0)

	userID := uuid.New()
	quote, err := svc.RequestTicketPurchaseCharge(context.Background(), userID, money.MustFromString("100.00"))
	require.NoError(t, err)

	link, err := svc.CreateTicketPurchaseCheckout(context.Background(),
		checkoutInputFromQuote(quote, userID, "my-event", "jane@example.com", "https://app.example/callback"))
	require.NoError(t, err)
	require.Equal(t, "https://pay.example/abc", link.Link)
	require.NotEqual(t, uuid.Nil, link.Reference)

	require.Equal(t, "my-event", payment.lastMetadata["slug"])
	require.Equal(t, userID.String(), payment.lastMetadata["user"])
	require.NotEqual(t, quote.Signature, payment.lastMetadata["signature"],
		"checkout must re-sign over the full metadata set, not forward the quote signature")

	// VerifyTicketPurchase's own recomputation must accept what got embedded.
	toVerify := make(map[string]any, len(payment.lastMetadata))
	for k, v := range payment.lastMetadata {
		if k != "signature" && k != "referrer" {
			toVerify[k] = v
		}
	}
	ok, err := chargeSigner.Verify(toVerify, payment.lastMetadata["signature"].(string))
	require.NoError(t, err)
	require.True(t, ok)
}

func TestCreateTicketPurchaseCheckoutRejectsTamperedQuote(t *testing.T) {
	schedule := flatRateSchedule(big.NewRat(5, 100))
	chargeSigner := signing.New("charge-key")
	payment := &fakePaymentAdapter{checkoutLink: "https://pay.example/abc"}
	svc := NewServices(newFakeTxnRepo(), newFakeWalletRepo(), schedule, &fakeBus{}, payment,
		&fakeTickets{}, &fakeUsers{}, chargeSigner, signing.New("account-key"), false, 0)

	userID := uuid.New()
	quote, err := svc.RequestTicketPurchaseCharge(context.Background(), userID, money.MustFromString("100.00"))
	require.NoError(t, err)
	quote.CalculatedCharge = money.MustFromString("0.01") // downgrade the fee after quoting

	_, err = svc.CreateTicketPurchaseCheckout(context.Background(),
		checkoutInputFromQuote(quote, userID, "my-event", "jane@example.com", "https://app.example/callback"))
	require.Error(t, err)
}

func TestCreateTicketPurchaseCheckoutRejectsNonPositiveAmount(t *testing.T) {
	payment := &fakePaymentAdapter{}
	svc := NewServices(newFakeTxnRepo(), newFakeWalletRepo(), fakeChargeSchedule{}, &fakeBus{}, payment,
		&fakeTickets{}, &fakeUsers{}, signing.New("charge-key"), signing.New("account-key"), false, 0)

	_, err := svc.CreateTicketPurchaseCheckout(context.Background(), CreateTicketPurchaseCheckoutInput{
		UserID: uuid.New(), BaseAmount: money.FromCents(0),
	})
	require.Error(t, err)
}
