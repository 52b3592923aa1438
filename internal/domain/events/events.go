// Package events defines the domain-event envelope shared by every
// aggregate's transient outbox and the event bus's wire format.
package events

import (
	"time"

	"github.com/google/uuid"
)

// Type groups (spec §6 "Event topics").
const (
	GroupTransaction  = "transaction"
	GroupWallet       = "wallet"
	GroupNotification = "notification"
)

// Event names within each group.
const (
	NameTransactionCreated         = "created"
	NameTransactionPurchased       = "purchased"
	NameTransactionWithdrawSuccess = "withdraw_successful"
	NameWalletFunded               = "funded"
	NameNotificationRequested      = "requested"
)

// Event is the immutable envelope published on the bus. Payload is kept as
// plain data (never the aggregate type) to avoid the entity/event import
// cycle the source exhibits (spec §9).
type Event struct {
	EventID     uuid.UUID `json:"event_id"`
	AggregateID string    `json:"aggregate_id"`
	OccurredOn  time.Time `json:"occurred_on"`
	Version     int       `json:"version"`
	EventType   string    `json:"event_type"` // "<group>.<name>"
	Payload     any       `json:"payload"`
}

// New builds an Event with a fresh id and the current timestamp.
func New(group, name, aggregateID string, payload any) Event {
	return Event{
		EventID:     uuid.New(),
		AggregateID: aggregateID,
		OccurredOn:  time.Now().UTC(),
		Version:     1,
		EventType:   group + "." + name,
		Payload:     payload,
	}
}

// TransactionCreatedPayload is published whenever a transaction (parent or
// settlement child) is recorded in `pending` status.
type TransactionCreatedPayload struct {
	Reference string `json:"reference"`
	Amount    string `json:"amount"`
}

// PurchaseSettledPayload is published once a ticket purchase's splits have
// been persisted and the parent marked completed.
type PurchaseSettledPayload struct {
	Reference        string `json:"reference"`
	SettlementChildren int  `json:"settlement_children"`
}

// WithdrawSuccessPayload is published when a withdrawal reaches `completed`.
type WithdrawSuccessPayload struct {
	Reference string `json:"reference"`
	Amount    string `json:"amount"`
}

// WalletFundedPayload is published when a recipient wallet is credited from
// a settlement child / sale / commission / wallet_funding transaction.
type WalletFundedPayload struct {
	UserID    string `json:"user_id"`
	Reference string `json:"reference"`
	Amount    string `json:"amount"`
}

// NotificationPayload carries a channel/template/data notification request,
// built by the notification event factory.
type NotificationPayload struct {
	Channel  string         `json:"channel"`
	Template string         `json:"template"`
	UserID   string         `json:"user_id"`
	Data     map[string]any `json:"data"`
}

// CompleteWithdrawPayload is the translated Paystack transfer.success
// payload passed directly into Services.CompleteWithdraw (spec §4.7); it
// never travels over the event bus.
type CompleteWithdrawPayload struct {
	Reference string `json:"reference"`
	Amount    string `json:"amount"`
	Dest      string `json:"dest"`
	Date      string `json:"date"`
}
