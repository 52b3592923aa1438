package usecase

import (
	"context"
	"testing"

	"github.com/cyphera/settlement-engine/internal/domain/money"
	"github.com/cyphera/settlement-engine/internal/ports"
	"github.com/cyphera/settlement-engine/internal/signing"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

// fakePaymentAdapter is an in-memory stand-in for ports.PaymentAdapter,
// canned per test rather than hitting a real provider.
type fakePaymentAdapter struct {
	banks    []ports.BankAccount
	resolved ports.ResolvedAccount

	checkoutLink string
	externalTxn  ports.ExternalTransaction
	lastMetadata map[string]any
}

func (f *fakePaymentAdapter) InitializeTransaction(ctx context.Context, email string, amount money.Amount, reference uuid.UUID, callbackURL string, metadata map[string]any) (string, error) {
	f.lastMetadata = metadata
	return f.checkoutLink, nil
}
func (f *fakePaymentAdapter) GetValidTransaction(ctx context.Context, reference uuid.UUID) (ports.ExternalTransaction, error) {
	return f.externalTxn, nil
}
func (f *fakePaymentAdapter) ListBanks(ctx context.Context) ([]ports.BankAccount, error) {
	return f.banks, nil
}
func (f *fakePaymentAdapter) ResolveAccount(ctx context.Context, accountNumber, bankCode string) (ports.ResolvedAccount, error) {
	return f.resolved, nil
}
func (f *fakePaymentAdapter) AddRecipient(ctx context.Context, accountNumber, accountName, bankCode string) (string, error) {
	return "", nil
}
func (f *fakePaymentAdapter) Withdraw(ctx context.Context, amount money.Amount, recipientID, reference, reason string) error {
	return nil
}

func newWalletQueryTestServices(payment *fakePaymentAdapter) (*Services, *fakeWalletRepo) {
	wallets := newFakeWalletRepo()
	svc := NewServices(
		newFakeTxnRepo(), wallets, fakeChargeSchedule{}, &fakeBus{}, payment,
		&fakeTickets{}, &fakeUsers{},
		signing.New("charge-key"), signing.New("account-key"), false, 0,
	)
	return svc, wallets
}

func TestListBanksProxiesProvider(t *testing.T) {
	payment := &fakePaymentAdapter{banks: []ports.BankAccount{{Name: "Test Bank", Code: "001"}}}
	svc, _ := newWalletQueryTestServices(payment)

	banks, err := svc.ListBanks(context.Background())
	require.NoError(t, err)
	require.Equal(t, []BankAccount{{Name: "Test Bank", Code: "001"}}, banks)
}

func TestResolvePersonalAccountSignsResult(t *testing.T) {
	payment := &fakePaymentAdapter{resolved: ports.ResolvedAccount{
		AccountNumber: "0123456789", AccountName: "Jane Doe", BankCode: "001",
	}}
	svc, _ := newWalletQueryTestServices(payment)

	resolved, err := svc.ResolvePersonalAccount(context.Background(), "0123456789", "001")
	require.NoError(t, err)
	require.Equal(t, "Jane Doe", resolved.AccountName)
	require.NotEmpty(t, resolved.Signature)

	ok, err := svc.AccountValidationSigner.Verify(map[string]any{
		"account_number": resolved.AccountNumber,
		"account_name":   resolved.AccountName,
		"bank_code":      resolved.BankCode,
	}, resolved.Signature)
	require.NoError(t, err)
	require.True(t, ok)
}

func TestSaveBankDetailsRejectsTamperedSignature(t *testing.T) {
	svc, _ := newWalletQueryTestServices(nil)

	err := svc.SaveBankDetails(context.Background(), SaveBankDetailsInput{
		UserID: uuid.New(), AccountNumber: "0123456789", AccountName: "Jane Doe",
		BankName: "Test Bank", BankCode: "001", Signature: "not-a-real-signature",
	})
	require.Error(t, err)
}

func TestSaveBankDetailsBindsResolvedAccount(t *testing.T) {
	svc, wallets := newWalletQueryTestServices(nil)
	userID := uuid.New()

	signature, err := svc.AccountValidationSigner.Sign(map[string]any{
		"account_number": "0123456789",
		"account_name":   "Jane Doe",
		"bank_code":      "001",
	})
	require.NoError(t, err)

	err = svc.SaveBankDetails(context.Background(), SaveBankDetailsInput{
		UserID: userID, AccountNumber: "0123456789", AccountName: "Jane Doe",
		BankName: "Test Bank", BankCode: "001", Signature: signature,
	})
	require.NoError(t, err)

	saved := wallets.byUser[userID]
	require.NotNil(t, saved.BankDetails)
	require.Equal(t, "0123456789", saved.BankDetails.AccountNumber)
}

func TestSetTransactionPinThenChangeTransactionPin(t *testing.T) {
	svc, wallets := newWalletQueryTestServices(nil)
	userID := uuid.New()

	require.NoError(t, svc.SetTransactionPin(context.Background(), userID, "1234"))
	require.True(t, wallets.byUser[userID].HasPIN())

	require.Error(t, svc.SetTransactionPin(context.Background(), userID, "5678"))

	require.Error(t, svc.ChangeTransactionPin(context.Background(), userID, "0000", "5678"))
	require.NoError(t, svc.ChangeTransactionPin(context.Background(), userID, "1234", "5678"))
	require.True(t, wallets.byUser[userID].VerifyPIN("5678"))
}

func TestGetBalanceReflectsWalletState(t *testing.T) {
	svc, wallets := newWalletQueryTestServices(nil)
	userID := uuid.New()

	w, err := wallets.GetByUserOrCreate(context.Background(), userID, false)
	require.NoError(t, err)
	require.NoError(t, w.Deposit(money.MustFromString("100.00")))
	require.NoError(t, w.HoldFunds(money.MustFromString("25.00")))
	require.NoError(t, wallets.Save(context.Background(), w))

	balance, err := svc.GetBalance(context.Background(), userID)
	require.NoError(t, err)
	require.Equal(t, "75.00", balance.Available.String())
	require.Equal(t, "25.00", balance.Pending.String())
	require.False(t, balance.HasPIN)
}
