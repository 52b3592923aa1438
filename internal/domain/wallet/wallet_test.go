package wallet

import (
	"testing"

	"github.com/cyphera/settlement-engine/internal/domain/money"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDepositWithdrawKeepsBalanceNonNegative(t *testing.T) {
	w := New(uuid.New())
	require.NoError(t, w.Deposit(money.MustFromString("100.00")))
	assert.True(t, w.Balance.GreaterThanOrEqual(money.Zero))

	err := w.Withdraw(money.MustFromString("150.00"))
	require.Error(t, err)
	assert.Equal(t, "100.00", w.Balance.String())

	require.NoError(t, w.Withdraw(money.MustFromString("40.00")))
	assert.Equal(t, "60.00", w.Balance.String())
}

func TestHoldAndReleaseFunds(t *testing.T) {
	w := New(uuid.New())
	require.NoError(t, w.Deposit(money.MustFromString("100.00")))
	require.NoError(t, w.HoldFunds(money.MustFromString("30.00")))
	assert.Equal(t, "70.00", w.Balance.String())
	assert.Equal(t, "30.00", w.PendingBalance.String())

	require.NoError(t, w.ReleaseHold(money.MustFromString("30.00")))
	assert.Equal(t, "100.00", w.Balance.String())
	assert.True(t, w.PendingBalance.IsZero())
}

func TestSetPINRequiresFourDigits(t *testing.T) {
	w := New(uuid.New())
	require.Error(t, w.SetPIN("12"))
	require.Error(t, w.SetPIN("abcd"))
	require.NoError(t, w.SetPIN("1234"))
	assert.True(t, w.HasPIN())
	assert.True(t, w.VerifyPIN("1234"))
	assert.False(t, w.VerifyPIN("4321"))
}

func TestChangePINRejectsWrongOldPIN(t *testing.T) {
	w := New(uuid.New())
	require.NoError(t, w.SetPIN("1111"))

	err := w.ChangePIN("9999", "2222")
	require.Error(t, err)
	assert.True(t, w.VerifyPIN("1111"))

	require.NoError(t, w.ChangePIN("1111", "2222"))
	assert.True(t, w.VerifyPIN("2222"))
}

func TestCanWithdrawIgnoresPendingBalance(t *testing.T) {
	w := New(uuid.New())
	require.NoError(t, w.Deposit(money.MustFromString("100.00")))
	require.NoError(t, w.HoldFunds(money.MustFromString("100.00")))
	assert.False(t, w.CanWithdraw(money.MustFromString("1.00")))
}
