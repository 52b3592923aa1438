// Package wallet implements the Wallet aggregate: balance, pending hold,
// PIN and bank-binding invariants (spec §3, §4 Wallet Aggregate).
package wallet

import (
	"time"

	"github.com/cyphera/settlement-engine/internal/apperror"
	"github.com/cyphera/settlement-engine/internal/domain/money"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// BankDetails binds a wallet to an external bank account for withdrawal.
type BankDetails struct {
	AccountName   string
	AccountNumber string
	BankName      string
	BankCode      string
	UpdatedAt     time.Time
}

// BuildDest renders a short human-readable destination string, used in
// manual-mode withdrawal metadata and notifications.
func (b BankDetails) BuildDest() string {
	return b.BankName + " •••• " + lastFour(b.AccountNumber)
}

func lastFour(accountNumber string) string {
	if len(accountNumber) <= 4 {
		return accountNumber
	}
	return accountNumber[len(accountNumber)-4:]
}

// Wallet is the per-user balance holder (spec §3 Wallet).
type Wallet struct {
	ID             uuid.UUID
	UserID         uuid.UUID
	Balance        money.Amount
	PendingBalance money.Amount
	PINHash        string // bcrypt hash, empty when unset
	PINUpdatedAt   *time.Time
	BankDetails    *BankDetails
}

// New creates a zero-balance wallet for a user (get-or-create semantics
// live in the repository, spec §4 Wallet Repository).
func New(userID uuid.UUID) *Wallet {
	return &Wallet{
		ID:     uuid.New(),
		UserID: userID,
	}
}

// HasPIN reports whether a transaction PIN has been set.
func (w *Wallet) HasPIN() bool { return w.PINHash != "" }

// CanWithdraw reports whether the available (non-pending) balance covers x.
func (w *Wallet) CanWithdraw(x money.Amount) bool {
	return w.Balance.GreaterThanOrEqual(x)
}

// Deposit credits the wallet balance. Amount must be positive.
func (w *Wallet) Deposit(x money.Amount) error {
	if !x.IsPositive() {
		return apperror.InvalidInput("deposit amount must be positive")
	}
	w.Balance = w.Balance.Add(x)
	return nil
}

// Withdraw debits the wallet balance, failing if it would go negative
// (spec §3 Wallet invariants).
func (w *Wallet) Withdraw(x money.Amount) error {
	if !x.IsPositive() {
		return apperror.InvalidInput("withdraw amount must be positive")
	}
	if !w.CanWithdraw(x) {
		return apperror.InvalidInput("insufficient balance")
	}
	w.Balance = w.Balance.Sub(x)
	return nil
}

// HoldFunds atomically moves x from balance to pending_balance.
func (w *Wallet) HoldFunds(x money.Amount) error {
	if !x.IsPositive() {
		return apperror.InvalidInput("hold amount must be positive")
	}
	if !w.CanWithdraw(x) {
		return apperror.InvalidInput("insufficient balance to hold")
	}
	w.Balance = w.Balance.Sub(x)
	w.PendingBalance = w.PendingBalance.Add(x)
	return nil
}

// ReleaseHold atomically moves x from pending_balance back to balance.
func (w *Wallet) ReleaseHold(x money.Amount) error {
	if !x.IsPositive() {
		return apperror.InvalidInput("release amount must be positive")
	}
	if w.PendingBalance.Cmp(x) < 0 {
		return apperror.Conflict("release amount exceeds pending balance")
	}
	w.PendingBalance = w.PendingBalance.Sub(x)
	w.Balance = w.Balance.Add(x)
	return nil
}

// SetPIN hashes and stores a new 4-digit transaction PIN.
func (w *Wallet) SetPIN(plain string) error {
	if len(plain) != 4 || !isAllDigits(plain) {
		return apperror.InvalidInput("pin must be exactly 4 digits")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(plain), bcrypt.DefaultCost)
	if err != nil {
		return apperror.InvalidInput("failed to hash pin")
	}
	w.PINHash = string(hash)
	now := time.Now().UTC()
	w.PINUpdatedAt = &now
	return nil
}

// VerifyPIN reports whether plain matches the stored hash.
func (w *Wallet) VerifyPIN(plain string) bool {
	if w.PINHash == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(w.PINHash), []byte(plain)) == nil
}

// ChangePIN verifies oldPIN before accepting newPIN (recovered from
// original_source wallet entity — not cut by any spec Non-goal).
func (w *Wallet) ChangePIN(oldPIN, newPIN string) error {
	if !w.VerifyPIN(oldPIN) {
		return apperror.InvalidInput("current pin is incorrect")
	}
	return w.SetPIN(newPIN)
}

// SetBankDetails binds external bank account details to the wallet.
func (w *Wallet) SetBankDetails(d BankDetails) {
	d.UpdatedAt = time.Now().UTC()
	w.BankDetails = &d
}

func isAllDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
