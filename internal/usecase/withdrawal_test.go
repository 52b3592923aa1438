package usecase

import (
	"context"
	"math/big"
	"testing"

	"github.com/cyphera/settlement-engine/internal/domain/money"
	"github.com/cyphera/settlement-engine/internal/domain/transaction"
	"github.com/cyphera/settlement-engine/internal/domain/wallet"
	"github.com/cyphera/settlement-engine/internal/signing"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func newWithdrawalTestServices(autoWithdrawal bool) (*Services, *fakeTxnRepo, *fakeWalletRepo, *fakeBus) {
	txns := newFakeTxnRepo()
	wallets := newFakeWalletRepo()
	bus := &fakeBus{}

	svc := NewServices(
		txns, wallets, fakeChargeSchedule{}, bus, nil,
		&fakeTickets{}, &fakeUsers{},
		signing.New("charge-key"), signing.New("account-key"),
		autoWithdrawal, 0,
	)
	return svc, txns, wallets, bus
}

func TestSubmitWithdrawalManualModeMatchesScenarioS4(t *testing.T) {
	userID := uuid.New()
	svc, txns, wallets, bus := newWithdrawalTestServices(false)

	w, err := wallets.GetByUserOrCreate(context.Background(), userID, false)
	require.NoError(t, err)
	require.NoError(t, w.Deposit(money.MustFromString("50.00")))
	w.SetBankDetails(wallet.BankDetails{AccountName: "Jane Doe", AccountNumber: "0123456789", BankName: "Test Bank", BankCode: "001"})
	require.NoError(t, wallets.Save(context.Background(), w))

	amount := money.MustFromString("10.00")
	charge := money.MustFromString("0.50")
	signer := signing.New("charge-key")
	signature, err := signer.Sign(map[string]any{
		"base_amount":       amount.String(),
		"charge_setting_id": "instant_withdrawal",
		"version_id":        "v1",
		"version_number":    1,
		"calculated_charge": charge.String(),
		"user":              userID.String(),
	})
	require.NoError(t, err)

	txn, err := svc.SubmitWithdrawal(context.Background(), SubmitWithdrawalInput{
		UserID:           userID,
		ChargeSettingID:  "instant_withdrawal",
		VersionID:        "v1",
		VersionNumber:    1,
		Amount:           amount,
		CalculatedCharge: charge,
		Signature:        signature,
	})
	require.NoError(t, err)

	saved := wallets.byUser[userID]
	require.Equal(t, "39.50", saved.Balance.String())

	require.NoError(t, svc.DispatchWithdrawal(context.Background(), txn.Reference))

	dispatched := txns.byReference[txn.Reference]
	require.Equal(t, "manual", dispatched.Metadata["mode"])
	require.NotEmpty(t, dispatched.Metadata["dest"])

	notifications := 0
	for _, ev := range bus.published {
		if ev.EventType == "notification.requested" {
			notifications++
		}
	}
	require.Equal(t, 2, notifications)
}

func TestSubmitWithdrawalAcceptsARealChargeQuote(t *testing.T) {
	userID := uuid.New()
	schedule := flatRateSchedule(big.NewRat(5, 100))
	txns := newFakeTxnRepo()
	wallets := newFakeWalletRepo()
	svc := NewServices(txns, wallets, schedule, &fakeBus{}, nil,
		&fakeTickets{}, &fakeUsers{}, signing.New("charge-key"), signing.New("account-key"), false, 0)

	w, err := wallets.GetByUserOrCreate(context.Background(), userID, false)
	require.NoError(t, err)
	require.NoError(t, w.Deposit(money.MustFromString("50.00")))
	require.NoError(t, wallets.Save(context.Background(), w))

	amount := money.MustFromString("10.00")
	quote, err := svc.RequestInstantWithdrawalCharge(context.Background(), userID, amount)
	require.NoError(t, err)

	txn, err := svc.SubmitWithdrawal(context.Background(), SubmitWithdrawalInput{
		UserID:           userID,
		ChargeSettingID:  quote.ChargeSettingID,
		VersionID:        quote.VersionID,
		VersionNumber:    quote.VersionNumber,
		Amount:           amount,
		CalculatedCharge: quote.CalculatedCharge,
		Signature:        quote.Signature,
	})
	require.NoError(t, err)
	require.Equal(t, transaction.StatusPending, txn.SettlementStatus)
}

func TestSubmitWithdrawalRejectsTamperedSignature(t *testing.T) {
	userID := uuid.New()
	svc, _, wallets, _ := newWithdrawalTestServices(false)

	w, err := wallets.GetByUserOrCreate(context.Background(), userID, false)
	require.NoError(t, err)
	require.NoError(t, w.Deposit(money.MustFromString("50.00")))
	require.NoError(t, wallets.Save(context.Background(), w))

	_, err = svc.SubmitWithdrawal(context.Background(), SubmitWithdrawalInput{
		UserID:           userID,
		ChargeSettingID:  "instant_withdrawal",
		VersionID:        "v1",
		VersionNumber:    1,
		Amount:           money.MustFromString("10.00"),
		CalculatedCharge: money.MustFromString("0.50"),
		Signature:        "not-a-real-signature",
	})
	require.Error(t, err)
}

func TestSubmitWithdrawalRejectsInsufficientBalance(t *testing.T) {
	userID := uuid.New()
	svc, _, _, _ := newWithdrawalTestServices(false)

	amount := money.MustFromString("10.00")
	charge := money.MustFromString("0.50")
	signer := signing.New("charge-key")
	signature, err := signer.Sign(map[string]any{
		"base_amount":       amount.String(),
		"charge_setting_id": "instant_withdrawal",
		"version_id":        "v1",
		"version_number":    1,
		"calculated_charge": charge.String(),
		"user":              userID.String(),
	})
	require.NoError(t, err)

	_, err = svc.SubmitWithdrawal(context.Background(), SubmitWithdrawalInput{
		UserID: userID, ChargeSettingID: "instant_withdrawal", VersionID: "v1", VersionNumber: 1,
		Amount: amount, CalculatedCharge: charge, Signature: signature,
	})
	require.Error(t, err)
}
