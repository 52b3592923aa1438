// Package transaction implements the Transaction aggregate: ledger
// identity, settlement state machine, settlement children and the
// transient domain-event outbox (spec §3, §4.1).
package transaction

import (
	"time"

	"github.com/cyphera/settlement-engine/internal/apperror"
	"github.com/cyphera/settlement-engine/internal/domain/events"
	"github.com/cyphera/settlement-engine/internal/domain/money"
	"github.com/google/uuid"
)

// Source identifies where a transaction originated.
type Source string

const (
	SourceWallet         Source = "wallet"
	SourcePaymentProvider Source = "payment_provider"
)

// Type is the closed set of transaction kinds.
type Type string

const (
	TypePurchase      Type = "purchase"
	TypeWalletFunding Type = "wallet_funding"
	TypeSale          Type = "sale"
	TypeCommission    Type = "commission"
	TypeWithdrawal    Type = "withdrawal"
)

// Direction is derived from Type unless explicitly overridden.
type Direction string

const (
	DirectionCredit Direction = "credit"
	DirectionDebit  Direction = "debit"
)

// defaultDirection implements the mapping in spec §4.1.
func defaultDirection(t Type) Direction {
	switch t {
	case TypePurchase, TypeWithdrawal:
		return DirectionDebit
	default:
		return DirectionCredit
	}
}

// Status is the settlement state machine (spec §4.1).
type Status string

const (
	StatusPending       Status = "pending"
	StatusScheduled     Status = "scheduled"
	StatusProcessing    Status = "processing"
	StatusCompleted     Status = "completed"
	StatusFailed        Status = "failed"
	StatusNotApplicable Status = "not_applicable"
)

// Role identifies a settlement recipient's role.
type Role string

const (
	RoleOrganizer   Role = "organizer"
	RoleReferrer    Role = "referrer"
	RoleSystemAdmin Role = "system_admin"
)

// ChargeData is the fee breakdown recorded against a transaction at
// verification time (spec §4.3/§4.4).
type ChargeData struct {
	ChargeSettingID string
	VersionID       string
	VersionNumber   int
	ChargeAmount    money.Amount
	Sponsored       bool
}

// SettlementData is a planned recipient split appended to a parent
// transaction while it is still pending (spec §4.1, §4.5).
type SettlementData struct {
	Amount          money.Amount
	RecipientUserID uuid.UUID
	TransactionType Type
	Role            Role
}

// Transaction is the aggregate root. Mutating methods may append to the
// transient `events` outbox; callers must call DrainEvents after a
// successful persist to flush it.
type Transaction struct {
	ID                     uuid.UUID
	Reference              uuid.UUID
	Amount                 money.Amount
	UserID                 uuid.UUID
	Resource               string
	ResourceID             uuid.UUID
	Source                 Source
	TransactionType        Type
	Direction              Direction
	SettlementStatus       Status
	ChargeData             *ChargeData
	SettlementData         []SettlementData
	Metadata               map[string]string
	ParentID               *uuid.UUID
	OccurredOn             time.Time
	CreatedAt              time.Time
	DelayedSettlementUntil *time.Time

	outbox []events.Event
}

// CreateParams are the fields needed to mint a new root transaction.
type CreateParams struct {
	Amount          money.Amount
	ChargeData      *ChargeData
	OccurredOn      time.Time
	Reference       uuid.UUID
	Resource        string
	ResourceID      uuid.UUID
	Source          Source
	TransactionType Type
	Direction       *Direction // nil => derive from TransactionType
	Metadata        map[string]string
	UserID          uuid.UUID
}

// Create mints a new pending transaction and enqueues its TransactionCreated
// event. Callers must validate Amount > 0 before calling (enforced here).
func Create(p CreateParams) (*Transaction, error) {
	if !p.Amount.IsPositive() {
		return nil, apperror.InvalidInput("transaction amount must be greater than zero")
	}

	dir := defaultDirection(p.TransactionType)
	if p.Direction != nil {
		dir = *p.Direction
	}

	now := time.Now().UTC()
	t := &Transaction{
		ID:               uuid.New(),
		Reference:        p.Reference,
		Amount:           p.Amount,
		UserID:           p.UserID,
		Resource:         p.Resource,
		ResourceID:       p.ResourceID,
		Source:           p.Source,
		TransactionType:  p.TransactionType,
		Direction:        dir,
		SettlementStatus: StatusPending,
		ChargeData:       p.ChargeData,
		Metadata:         p.Metadata,
		OccurredOn:       p.OccurredOn,
		CreatedAt:        now,
	}

	t.emit(events.GroupTransaction, events.NameTransactionCreated, events.TransactionCreatedPayload{
		Reference: t.Reference.String(),
		Amount:    t.Amount.String(),
	})

	return t, nil
}

func (t *Transaction) emit(group, name string, payload any) {
	t.outbox = append(t.outbox, events.New(group, name, t.Reference.String(), payload))
}

// DrainEvents returns and clears the transient outbox. This is the explicit
// replacement for the source's finalizer-timed event buffer (spec §9).
func (t *Transaction) DrainEvents() []events.Event {
	out := t.outbox
	t.outbox = nil
	return out
}

// PendingEvents peeks at the outbox without clearing it.
func (t *Transaction) PendingEvents() []events.Event {
	return t.outbox
}

// AddSettlement appends a planned split. Only legal while pending (spec §4.1
// Operations, §8 invariant 5).
func (t *Transaction) AddSettlement(d SettlementData) error {
	if t.SettlementStatus != StatusPending {
		return apperror.Conflict("cannot add settlement data unless transaction is pending")
	}
	t.SettlementData = append(t.SettlementData, d)
	return nil
}

// Schedule transitions pending -> scheduled, recording the future settlement
// time (spec §4.1 transition table).
func (t *Transaction) Schedule(until time.Time) error {
	if t.SettlementStatus != StatusPending {
		return apperror.Conflict("can only schedule a pending transaction")
	}
	if !until.After(time.Now().UTC()) {
		return apperror.InvalidInput("delayed_settlement_until must be in the future")
	}
	t.SettlementStatus = StatusScheduled
	t.DelayedSettlementUntil = &until
	return nil
}

// BeginProcessing transitions pending -> processing, used when a withdrawal
// is dispatched to the external payment provider.
func (t *Transaction) BeginProcessing() error {
	if t.SettlementStatus != StatusPending {
		return apperror.Conflict("can only begin processing a pending transaction")
	}
	t.SettlementStatus = StatusProcessing
	return nil
}

// CreateSettlementTransactions returns one new pending child transaction per
// appended SettlementData, each emitting its own TransactionCreated event
// (spec §4.1 Operations).
func (t *Transaction) CreateSettlementTransactions() ([]*Transaction, error) {
	children := make([]*Transaction, 0, len(t.SettlementData))
	for _, sd := range t.SettlementData {
		child, err := Create(CreateParams{
			Amount:          sd.Amount,
			OccurredOn:      t.OccurredOn,
			Reference:       uuid.New(),
			Resource:        string(t.TransactionType),
			ResourceID:      t.ID,
			Source:          SourceWallet,
			TransactionType: sd.TransactionType,
			UserID:          sd.RecipientUserID,
		})
		if err != nil {
			return nil, err
		}
		child.ParentID = &t.ID
		children = append(children, child)
	}
	return children, nil
}

// CompleteSettlement transitions the current status to completed and emits
// the appropriate terminal event (spec §4.1 Operations, invariant 5/6).
func (t *Transaction) CompleteSettlement() error {
	switch t.SettlementStatus {
	case StatusPending, StatusScheduled, StatusProcessing:
	default:
		return apperror.Conflict("cannot complete settlement from status " + string(t.SettlementStatus))
	}
	t.SettlementStatus = StatusCompleted

	if t.TransactionType == TypeWithdrawal {
		t.emit(events.GroupTransaction, events.NameTransactionWithdrawSuccess, events.WithdrawSuccessPayload{
			Reference: t.Reference.String(),
			Amount:    t.Amount.String(),
		})
		t.emit(events.GroupNotification, events.NameNotificationRequested, events.NotificationPayload{
			Channel:  "user",
			Template: "withdrawal_complete",
			UserID:   t.UserID.String(),
			Data:     map[string]any{"reference": t.Reference.String(), "amount": t.Amount.String()},
		})
	} else {
		t.emit(events.GroupTransaction, events.NameTransactionPurchased, events.PurchaseSettledPayload{
			Reference:         t.Reference.String(),
			SettlementChildren: len(t.SettlementData),
		})
	}
	return nil
}

// MarkAsFailed transitions pending|processing -> failed. Only permitted for
// manual-mode withdrawals (spec §4.1). Returns the refundable amount
// (amount + charge_amount) that the caller must credit back to the wallet.
func (t *Transaction) MarkAsFailed(reason string) (money.Amount, error) {
	if t.TransactionType != TypeWithdrawal {
		return money.Zero, apperror.Conflict("mark_as_failed is only valid for withdrawals")
	}
	if t.SettlementStatus != StatusPending && t.SettlementStatus != StatusProcessing {
		return money.Zero, apperror.Conflict("cannot fail settlement from status " + string(t.SettlementStatus))
	}
	if t.Metadata == nil || t.Metadata["mode"] != "manual" {
		return money.Zero, apperror.InvalidInput("mark_as_failed requires manual withdrawal mode")
	}

	refundable := t.Amount
	if t.ChargeData != nil {
		refundable = refundable.Add(t.ChargeData.ChargeAmount)
	}

	t.SettlementStatus = StatusFailed
	if t.Metadata == nil {
		t.Metadata = map[string]string{}
	}
	t.Metadata["failure_reason"] = reason

	t.emit(events.GroupNotification, events.NameNotificationRequested, events.NotificationPayload{
		Channel:  "system",
		Template: "withdrawal_failed",
		UserID:   t.UserID.String(),
		Data:     map[string]any{"reference": t.Reference.String(), "reason": reason},
	})

	return refundable, nil
}

// IsMutable reports whether this aggregate may still be mutated (spec §3
// lifecycle note: "only ever mutated in states pending or scheduled or
// processing").
func (t *Transaction) IsMutable() bool {
	switch t.SettlementStatus {
	case StatusPending, StatusScheduled, StatusProcessing:
		return true
	default:
		return false
	}
}
