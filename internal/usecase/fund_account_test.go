package usecase

import (
	"context"
	"testing"
	"time"

	"github.com/cyphera/settlement-engine/internal/domain/money"
	"github.com/cyphera/settlement-engine/internal/domain/transaction"
	"github.com/cyphera/settlement-engine/internal/signing"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestFundAccountFromTxnCreditsWalletAndCompletesTransaction(t *testing.T) {
	txns := newFakeTxnRepo()
	wallets := newFakeWalletRepo()
	bus := &fakeBus{}
	svc := NewServices(txns, wallets, fakeChargeSchedule{}, bus, nil, &fakeTickets{}, &fakeUsers{},
		signing.New("charge-key"), signing.New("account-key"), false, 0)

	recipient := uuid.New()
	child, err := transaction.Create(transaction.CreateParams{
		Amount: money.MustFromString("30.00"), OccurredOn: time.Now().UTC(), Reference: uuid.New(),
		Resource: "commission", Source: transaction.SourceWallet, TransactionType: transaction.TypeCommission,
		UserID: recipient,
	})
	require.NoError(t, err)
	child.DrainEvents()
	require.NoError(t, txns.Save(context.Background(), child))

	require.NoError(t, svc.FundAccountFromTxn(context.Background(), child.Reference))

	saved := txns.byReference[child.Reference]
	require.Equal(t, transaction.StatusCompleted, saved.SettlementStatus)

	w := wallets.byUser[recipient]
	require.Equal(t, "30.00", w.Balance.String())

	funded := false
	for _, ev := range bus.published {
		if ev.EventType == "wallet.funded" {
			funded = true
		}
	}
	require.True(t, funded)
}

func TestFundAccountFromTxnReplayIsNoOp(t *testing.T) {
	txns := newFakeTxnRepo()
	wallets := newFakeWalletRepo()
	bus := &fakeBus{}
	svc := NewServices(txns, wallets, fakeChargeSchedule{}, bus, nil, &fakeTickets{}, &fakeUsers{},
		signing.New("charge-key"), signing.New("account-key"), false, 0)

	recipient := uuid.New()
	child, err := transaction.Create(transaction.CreateParams{
		Amount: money.MustFromString("30.00"), OccurredOn: time.Now().UTC(), Reference: uuid.New(),
		Resource: "commission", Source: transaction.SourceWallet, TransactionType: transaction.TypeCommission,
		UserID: recipient,
	})
	require.NoError(t, err)
	child.DrainEvents()
	require.NoError(t, txns.Save(context.Background(), child))

	require.NoError(t, svc.FundAccountFromTxn(context.Background(), child.Reference))
	balanceAfterFirst := wallets.byUser[recipient].Balance.String()

	require.NoError(t, svc.FundAccountFromTxn(context.Background(), child.Reference))
	require.Equal(t, balanceAfterFirst, wallets.byUser[recipient].Balance.String())
}
