package usecase

import (
	"context"
	"math/big"
	"time"

	"github.com/cyphera/settlement-engine/internal/apperror"
	"github.com/cyphera/settlement-engine/internal/domain/transaction"
	"github.com/google/uuid"
)

var referralSharePercent = big.NewRat(12, 1)

// SettleTicketPurchase runs the split computation for a pending ticket
// purchase (spec §4.5). It is idempotent: a transaction already out of
// `pending` is a silent no-op (spec §8 invariant 6, scenario S6).
func (s *Services) SettleTicketPurchase(ctx context.Context, reference uuid.UUID) error {
	txn, err := s.Transactions.GetByReference(ctx, reference, true)
	if err != nil {
		return err
	}
	if txn == nil {
		return apperror.NotFound("transaction not found")
	}
	if txn.SettlementStatus != transaction.StatusPending {
		return nil // already handled; replay is a no-op
	}

	if s.SettlementDelayHours > 0 {
		until := time.Now().UTC().Add(time.Duration(s.SettlementDelayHours) * time.Hour)
		if err := txn.Schedule(until); err != nil {
			return err
		}
		if err := s.Transactions.Save(ctx, txn); err != nil {
			return err
		}
		s.publish(ctx, txn.DrainEvents())
		return nil
	}

	if txn.ChargeData == nil {
		return apperror.Conflict("purchase transaction is missing charge data")
	}
	if txn.ChargeData.Sponsored {
		return apperror.NotImplemented("sponsored charge settlement is not implemented")
	}

	if err := s.Tickets.MarkReservationAsPaid(ctx, txn.Reference); err != nil {
		return err
	}

	slug := txn.Metadata["slug"]
	if slug == "" {
		return apperror.Conflict("purchase transaction is missing slug metadata")
	}

	organizerID, err := s.Tickets.GetEventOrganizer(ctx, slug)
	if err != nil {
		return err
	}
	systemUserID, err := s.Users.GetSystemUserID(ctx)
	if err != nil {
		return err
	}
	organizerReferrer, err := s.Users.GetReferralInfo(ctx, organizerID)
	if err != nil {
		return err
	}
	buyerReferrer, err := s.Users.GetReferralInfo(ctx, txn.UserID)
	if err != nil {
		return err
	}

	fee := txn.ChargeData.ChargeAmount
	amountPaid := txn.Amount

	if err := txn.AddSettlement(transaction.SettlementData{
		Amount:          amountPaid.Sub(fee),
		RecipientUserID: organizerID,
		TransactionType: transaction.TypeSale,
		Role:            transaction.RoleOrganizer,
	}); err != nil {
		return err
	}

	switch {
	case buyerReferrer != nil && organizerReferrer != nil:
		referralShare := fee.PercentOf(referralSharePercent)
		fee = fee.Sub(referralShare)
		half := referralShare.Half()
		if err := txn.AddSettlement(transaction.SettlementData{
			Amount: half, RecipientUserID: *buyerReferrer,
			TransactionType: transaction.TypeCommission, Role: transaction.RoleReferrer,
		}); err != nil {
			return err
		}
		if err := txn.AddSettlement(transaction.SettlementData{
			Amount: half, RecipientUserID: *organizerReferrer,
			TransactionType: transaction.TypeCommission, Role: transaction.RoleReferrer,
		}); err != nil {
			return err
		}
	case buyerReferrer != nil:
		referralShare := fee.PercentOf(referralSharePercent)
		fee = fee.Sub(referralShare)
		if err := txn.AddSettlement(transaction.SettlementData{
			Amount: referralShare, RecipientUserID: *buyerReferrer,
			TransactionType: transaction.TypeCommission, Role: transaction.RoleReferrer,
		}); err != nil {
			return err
		}
	case organizerReferrer != nil:
		referralShare := fee.PercentOf(referralSharePercent)
		fee = fee.Sub(referralShare)
		if err := txn.AddSettlement(transaction.SettlementData{
			Amount: referralShare, RecipientUserID: *organizerReferrer,
			TransactionType: transaction.TypeCommission, Role: transaction.RoleReferrer,
		}); err != nil {
			return err
		}
	}

	if err := txn.AddSettlement(transaction.SettlementData{
		Amount:          fee,
		RecipientUserID: systemUserID,
		TransactionType: transaction.TypeCommission,
		Role:            transaction.RoleSystemAdmin,
	}); err != nil {
		return err
	}

	children, err := txn.CreateSettlementTransactions()
	if err != nil {
		return err
	}
	if err := txn.CompleteSettlement(); err != nil {
		return err
	}

	if err := s.Transactions.Save(ctx, txn); err != nil {
		return err
	}
	parentEvents := txn.DrainEvents()

	for _, child := range children {
		if err := s.Transactions.Save(ctx, child); err != nil {
			return err
		}
	}

	s.publish(ctx, parentEvents)
	for _, child := range children {
		s.publish(ctx, child.DrainEvents())
	}
	return nil
}
