package usecase

import (
	"context"

	"github.com/cyphera/settlement-engine/internal/apperror"
	"github.com/cyphera/settlement-engine/internal/domain/events"
	"github.com/cyphera/settlement-engine/internal/domain/transaction"
	"github.com/google/uuid"
)

// FundAccountFromTxn credits a settlement child's recipient wallet and
// marks the child completed (spec §4.9). The terminal status is
// `completed`, resolving the open question in spec §9 in favor of the
// "funds have moved" rule.
func (s *Services) FundAccountFromTxn(ctx context.Context, reference uuid.UUID) error {
	txn, err := s.Transactions.GetByReference(ctx, reference, true)
	if err != nil {
		return err
	}
	if txn == nil {
		return apperror.NotFound("transaction not found")
	}
	if txn.SettlementStatus != transaction.StatusPending {
		return nil // already funded; replay is a no-op
	}

	switch txn.TransactionType {
	case transaction.TypeSale, transaction.TypeCommission, transaction.TypeWalletFunding:
	default:
		return apperror.Conflict("fund_account_from_txn is only valid for sale, commission or wallet_funding transactions")
	}

	w, err := s.Wallets.GetByUserOrCreate(ctx, txn.UserID, true)
	if err != nil {
		return err
	}
	if err := w.Deposit(txn.Amount); err != nil {
		return err
	}
	if err := txn.CompleteSettlement(); err != nil {
		return err
	}

	if err := s.Wallets.Save(ctx, w); err != nil {
		return err
	}
	if err := s.Transactions.Save(ctx, txn); err != nil {
		return err
	}

	walletFunded := events.New(events.GroupWallet, events.NameWalletFunded, txn.Reference.String(), events.WalletFundedPayload{
		UserID:    txn.UserID.String(),
		Reference: txn.Reference.String(),
		Amount:    txn.Amount.String(),
	})

	s.publish(ctx, txn.DrainEvents(), []events.Event{walletFunded})
	return nil
}
