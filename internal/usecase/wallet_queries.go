package usecase

import (
	"context"

	"github.com/cyphera/settlement-engine/internal/apperror"
	"github.com/cyphera/settlement-engine/internal/domain/money"
	"github.com/cyphera/settlement-engine/internal/domain/transaction"
	"github.com/cyphera/settlement-engine/internal/domain/wallet"
	"github.com/google/uuid"
)

// WalletBalance is the GET /v1/wallet/balance response shape (spec §6).
type WalletBalance struct {
	Available   money.Amount
	Pending     money.Amount
	HasPIN      bool
	BankDetails *wallet.BankDetails
}

// GetBalance returns the caller's wallet summary.
func (s *Services) GetBalance(ctx context.Context, userID uuid.UUID) (WalletBalance, error) {
	w, err := s.Wallets.GetByUserOrCreate(ctx, userID, false)
	if err != nil {
		return WalletBalance{}, err
	}
	return WalletBalance{
		Available:   w.Balance,
		Pending:     w.PendingBalance,
		HasPIN:      w.HasPIN(),
		BankDetails: w.BankDetails,
	}, nil
}

// ListTransactions paginates the caller's ledger entries
// (spec §6 "GET /v1/wallet/transactions").
func (s *Services) ListTransactions(ctx context.Context, userID uuid.UUID, page, pageSize int) ([]*transaction.Transaction, int, error) {
	return s.Transactions.ListForUser(ctx, userID, page, pageSize)
}

// ListBanks proxies the provider's bank catalog (spec §6 "GET /v1/wallet/banks").
func (s *Services) ListBanks(ctx context.Context) ([]BankAccount, error) {
	banks, err := s.Payment.ListBanks(ctx)
	if err != nil {
		return nil, apperror.UpstreamUnavailable("failed to list banks", err)
	}
	out := make([]BankAccount, len(banks))
	for i, b := range banks {
		out[i] = BankAccount{Name: b.Name, Code: b.Code}
	}
	return out, nil
}

// BankAccount mirrors ports.BankAccount at the use-case boundary so callers
// do not need to import the ports package directly.
type BankAccount struct {
	Name string
	Code string
}

// ResolvedAccount is the account-resolution response, signed with the
// account-validation key so the client cannot tamper with the resolved
// name before binding it (spec §4.3, §6).
type ResolvedAccount struct {
	AccountNumber string
	AccountName   string
	BankCode      string
	Signature     string
}

// ResolvePersonalAccount resolves and signs an account number + bank code
// pair (spec §6 "GET /v1/wallet/resolve-personal-account").
func (s *Services) ResolvePersonalAccount(ctx context.Context, accountNumber, bankCode string) (ResolvedAccount, error) {
	resolved, err := s.Payment.ResolveAccount(ctx, accountNumber, bankCode)
	if err != nil {
		return ResolvedAccount{}, apperror.UpstreamUnavailable("failed to resolve account", err)
	}

	payload := map[string]any{
		"account_number": resolved.AccountNumber,
		"account_name":   resolved.AccountName,
		"bank_code":      resolved.BankCode,
	}
	signature, err := s.AccountValidationSigner.Sign(payload)
	if err != nil {
		return ResolvedAccount{}, err
	}

	return ResolvedAccount{
		AccountNumber: resolved.AccountNumber,
		AccountName:   resolved.AccountName,
		BankCode:      resolved.BankCode,
		Signature:     signature,
	}, nil
}

// SaveBankDetailsInput is the POST /v1/wallet/update-bank body, verified
// against the signed account-resolution response so a client cannot bind
// an unresolved account (spec §4.3 "account_validation_key").
type SaveBankDetailsInput struct {
	UserID        uuid.UUID
	AccountNumber string
	AccountName   string
	BankName      string
	BankCode      string
	Signature     string
}

// SaveBankDetails verifies the resolution signature and binds the account
// to the caller's wallet.
func (s *Services) SaveBankDetails(ctx context.Context, in SaveBankDetailsInput) error {
	payload := map[string]any{
		"account_number": in.AccountNumber,
		"account_name":   in.AccountName,
		"bank_code":      in.BankCode,
	}
	ok, err := s.AccountValidationSigner.Verify(payload, in.Signature)
	if err != nil || !ok {
		return apperror.InvalidInput("account resolution signature is invalid")
	}

	w, err := s.Wallets.GetByUserOrCreate(ctx, in.UserID, true)
	if err != nil {
		return err
	}
	w.SetBankDetails(wallet.BankDetails{
		AccountName:   in.AccountName,
		AccountNumber: in.AccountNumber,
		BankName:      in.BankName,
		BankCode:      in.BankCode,
	})
	return s.Wallets.Save(ctx, w)
}

// SetTransactionPin sets a wallet's 4-digit transaction PIN for the first
// time (spec §3 Wallet "pin length policy on set").
func (s *Services) SetTransactionPin(ctx context.Context, userID uuid.UUID, pin string) error {
	w, err := s.Wallets.GetByUserOrCreate(ctx, userID, true)
	if err != nil {
		return err
	}
	if w.HasPIN() {
		return apperror.Conflict("transaction pin is already set; use change instead")
	}
	if err := w.SetPIN(pin); err != nil {
		return err
	}
	return s.Wallets.Save(ctx, w)
}

// ChangeTransactionPin rotates a previously-set PIN.
func (s *Services) ChangeTransactionPin(ctx context.Context, userID uuid.UUID, oldPIN, newPIN string) error {
	w, err := s.Wallets.GetByUserOrCreate(ctx, userID, true)
	if err != nil {
		return err
	}
	if err := w.ChangePIN(oldPIN, newPIN); err != nil {
		return err
	}
	return s.Wallets.Save(ctx, w)
}
