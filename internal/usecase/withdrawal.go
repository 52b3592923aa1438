package usecase

import (
	"context"
	"time"

	"github.com/cyphera/settlement-engine/internal/apperror"
	"github.com/cyphera/settlement-engine/internal/domain/events"
	"github.com/cyphera/settlement-engine/internal/domain/money"
	"github.com/cyphera/settlement-engine/internal/domain/transaction"
	"github.com/google/uuid"
)

// SubmitWithdrawalInput is the signed-charge-token request body (spec §4.6).
type SubmitWithdrawalInput struct {
	UserID          uuid.UUID
	ChargeSettingID string
	VersionID       string
	VersionNumber   int
	Amount          money.Amount
	CalculatedCharge money.Amount
	Signature       string
}

// SubmitWithdrawal verifies the signed charge token, debits the wallet and
// records a pending withdrawal transaction (spec §4.6 steps 1-4).
func (s *Services) SubmitWithdrawal(ctx context.Context, in SubmitWithdrawalInput) (*transaction.Transaction, error) {
	w, err := s.Wallets.GetByUserOrCreate(ctx, in.UserID, true)
	if err != nil {
		return nil, err
	}

	total := in.Amount.Add(in.CalculatedCharge)
	if !w.CanWithdraw(total) {
		return nil, apperror.InvalidInput("insufficient balance")
	}

	payload := map[string]any{
		"base_amount":       in.Amount.String(),
		"charge_setting_id": in.ChargeSettingID,
		"version_id":        in.VersionID,
		"version_number":    in.VersionNumber,
		"calculated_charge": in.CalculatedCharge.String(),
		"user":              in.UserID.String(),
	}
	ok, err := s.ChargeSigner.Verify(payload, in.Signature)
	if err != nil || !ok {
		return nil, apperror.InvalidInput("withdrawal charge signature is invalid")
	}

	txn, err := transaction.Create(transaction.CreateParams{
		Amount:   in.Amount,
		Reference: uuid.New(),
		ChargeData: &transaction.ChargeData{
			ChargeSettingID: in.ChargeSettingID,
			VersionID:       in.VersionID,
			VersionNumber:   in.VersionNumber,
			ChargeAmount:    in.CalculatedCharge,
		},
		OccurredOn:      time.Now().UTC(),
		Resource:        "withdrawal",
		ResourceID:      uuid.Nil,
		Source:          transaction.SourceWallet,
		TransactionType: transaction.TypeWithdrawal,
		UserID:          in.UserID,
	})
	if err != nil {
		return nil, err
	}

	if err := w.Withdraw(total); err != nil {
		return nil, err
	}

	if err := s.Transactions.Save(ctx, txn); err != nil {
		return nil, err
	}
	if err := s.Wallets.Save(ctx, w); err != nil {
		return nil, err
	}

	s.publish(ctx, txn.DrainEvents())
	return txn, nil
}

// DispatchWithdrawal routes a freshly-created withdrawal transaction to
// either manual-mode operator handling or the external transfer provider
// (spec §4.6, "Handler routes the resulting TransactionCreated").
func (s *Services) DispatchWithdrawal(ctx context.Context, reference uuid.UUID) error {
	txn, err := s.Transactions.GetByReference(ctx, reference, true)
	if err != nil {
		return err
	}
	if txn == nil {
		return apperror.NotFound("transaction not found")
	}
	if txn.SettlementStatus != transaction.StatusPending {
		return nil
	}

	w, err := s.Wallets.GetByUserOrCreate(ctx, txn.UserID, false)
	if err != nil {
		return err
	}
	if w.BankDetails == nil {
		return apperror.Conflict("wallet has no bank details on file")
	}

	if txn.Metadata == nil {
		txn.Metadata = map[string]string{}
	}

	if !s.AutoWithdrawalEnabled {
		txn.Metadata["mode"] = "manual"
		txn.Metadata["dest"] = w.BankDetails.BuildDest()

		if err := s.Transactions.Save(ctx, txn); err != nil {
			return err
		}

		adminNotice := events.New(events.GroupNotification, events.NameNotificationRequested, txn.Reference.String(), events.NotificationPayload{
			Channel: "system", Template: "withdrawal_pending_manual_review", UserID: txn.UserID.String(),
			Data: map[string]any{"reference": txn.Reference.String(), "amount": txn.Amount.String()},
		})
		userNotice := events.New(events.GroupNotification, events.NameNotificationRequested, txn.Reference.String(), events.NotificationPayload{
			Channel: "user", Template: "withdrawal_submitted", UserID: txn.UserID.String(),
			Data: map[string]any{"reference": txn.Reference.String(), "amount": txn.Amount.String()},
		})
		s.publish(ctx, []events.Event{adminNotice, userNotice})
		return nil
	}

	recipientID, err := s.Payment.AddRecipient(ctx, w.BankDetails.AccountNumber, w.BankDetails.AccountName, w.BankDetails.BankCode)
	if err != nil {
		return apperror.UpstreamUnavailable("failed to register withdrawal recipient", err)
	}
	if err := s.Payment.Withdraw(ctx, txn.Amount, recipientID, txn.Reference.String(), "wallet withdrawal"); err != nil {
		return apperror.UpstreamUnavailable("failed to dispatch withdrawal transfer", err)
	}

	txn.Metadata["recipient_id"] = recipientID
	if err := txn.BeginProcessing(); err != nil {
		return err
	}
	if err := s.Transactions.Save(ctx, txn); err != nil {
		return err
	}
	return nil
}

// CompleteWithdraw marks a dispatched withdrawal completed on provider
// confirmation (spec §4.7).
func (s *Services) CompleteWithdraw(ctx context.Context, payload events.CompleteWithdrawPayload) error {
	ref, err := uuid.Parse(payload.Reference)
	if err != nil {
		return apperror.InvalidInput("complete_withdraw payload has an invalid reference")
	}

	txn, err := s.Transactions.GetByReference(ctx, ref, true)
	if err != nil {
		return err
	}
	if txn == nil {
		return apperror.NotFound("transaction not found")
	}
	if txn.TransactionType != transaction.TypeWithdrawal {
		return apperror.Conflict("complete_withdraw is only valid for withdrawal transactions")
	}
	if txn.SettlementStatus != transaction.StatusPending && txn.SettlementStatus != transaction.StatusProcessing {
		return nil // already completed; replay is a no-op
	}

	amount, err := money.FromString(payload.Amount)
	if err != nil {
		return apperror.InvalidInput("complete_withdraw payload has an invalid amount")
	}
	if amount.Cmp(txn.Amount) != 0 {
		return apperror.InvalidInput("complete_withdraw amount does not match the withdrawal amount")
	}

	if txn.Metadata == nil {
		txn.Metadata = map[string]string{}
	}
	txn.Metadata["dest"] = payload.Dest
	txn.Metadata["completed_at"] = payload.Date

	if err := txn.CompleteSettlement(); err != nil {
		return err
	}
	if err := s.Transactions.Save(ctx, txn); err != nil {
		return err
	}
	s.publish(ctx, txn.DrainEvents())
	return nil
}

// UpdateTransactionStatusInput is the admin-operator manual-mode request
// (spec §4.8).
type UpdateTransactionStatusInput struct {
	Reference uuid.UUID
	Status    transaction.Status
	Reason    string
}

// UpdateTransactionStatus applies one of the two whitelisted manual-mode
// transitions, rejecting everything else (spec §4.8, §7 "UpdateTransactionStatus
// explicitly rejects any request that does not match one of its two
// whitelisted transitions").
func (s *Services) UpdateTransactionStatus(ctx context.Context, in UpdateTransactionStatusInput) error {
	txn, err := s.Transactions.GetByReference(ctx, in.Reference, true)
	if err != nil {
		return err
	}
	if txn == nil {
		return apperror.NotFound("transaction not found")
	}
	if txn.TransactionType != transaction.TypeWithdrawal || txn.SettlementStatus != transaction.StatusPending || txn.Metadata["mode"] != "manual" {
		return apperror.InvalidInput("transaction is not a pending manual-mode withdrawal")
	}

	switch in.Status {
	case transaction.StatusFailed:
		refundable, err := txn.MarkAsFailed(in.Reason)
		if err != nil {
			return err
		}
		w, err := s.Wallets.GetByUserOrCreate(ctx, txn.UserID, true)
		if err != nil {
			return err
		}
		if err := w.Deposit(refundable); err != nil {
			return err
		}
		if err := s.Wallets.Save(ctx, w); err != nil {
			return err
		}
		if err := s.Transactions.Save(ctx, txn); err != nil {
			return err
		}
		s.publish(ctx, txn.DrainEvents())
		return nil

	case transaction.StatusCompleted:
		if txn.Metadata == nil {
			txn.Metadata = map[string]string{}
		}
		txn.Metadata["completed_at"] = time.Now().UTC().Format(time.RFC3339)
		if err := txn.CompleteSettlement(); err != nil {
			return err
		}
		if err := s.Transactions.Save(ctx, txn); err != nil {
			return err
		}
		s.publish(ctx, txn.DrainEvents())
		return nil

	default:
		return apperror.InvalidInput("unsupported status transition")
	}
}
