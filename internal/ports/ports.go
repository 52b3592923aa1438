// Package ports declares the external-collaborator interfaces the
// settlement engine depends on (spec §1 "Out of scope... treated as
// external collaborators with named contracts in §6"). Concrete adapters
// live under internal/repository, internal/eventbus, internal/paymentadapter
// and internal/rpc.
package ports

import (
	"context"
	"time"

	"github.com/cyphera/settlement-engine/internal/domain/chargeschedule"
	"github.com/cyphera/settlement-engine/internal/domain/events"
	"github.com/cyphera/settlement-engine/internal/domain/money"
	"github.com/cyphera/settlement-engine/internal/domain/transaction"
	"github.com/cyphera/settlement-engine/internal/domain/wallet"
	"github.com/google/uuid"
)

// TransactionRepository persists and retrieves Transaction aggregates
// (spec §2 Transaction Repository).
type TransactionRepository interface {
	GetByID(ctx context.Context, id uuid.UUID, lockForUpdate bool) (*transaction.Transaction, error)
	GetByReference(ctx context.Context, reference uuid.UUID, lockForUpdate bool) (*transaction.Transaction, error)
	Save(ctx context.Context, t *transaction.Transaction) error
	FindDueScheduled(ctx context.Context, now time.Time, limit int) ([]*transaction.Transaction, error)
	ListForUser(ctx context.Context, userID uuid.UUID, page, pageSize int) ([]*transaction.Transaction, int, error)
}

// WalletRepository persists and retrieves Wallet aggregates (spec §2 Wallet
// Repository).
type WalletRepository interface {
	GetByUserOrCreate(ctx context.Context, userID uuid.UUID, lockForUpdate bool) (*wallet.Wallet, error)
	Save(ctx context.Context, w *wallet.Wallet) error
}

// ChargeScheduleRepository resolves the tiered fee schedule used by the
// Charge Schedule Evaluator (spec §3 ChargeSetting/ChargeSettingVersion).
type ChargeScheduleRepository interface {
	GetVersionsAt(ctx context.Context, chargeSettingID string, at time.Time) ([]chargeschedule.Version, error)
	CreateVersion(ctx context.Context, chargeSettingID string, tiers []chargeschedule.Tier, reason string) (chargeschedule.Version, error)
}

// EventBus is the at-least-once pub/sub contract (spec §2, §4.10).
type EventBus interface {
	Publish(ctx context.Context, ev events.Event) error
	Subscribe(eventType string, handler EventHandlerFunc)
	Run(ctx context.Context) error
}

// EventHandlerFunc processes one event; a non-nil error aborts the commit
// for at-least-once redelivery (spec §4.10).
type EventHandlerFunc func(ctx context.Context, ev events.Event) error

// ExternalTransaction is the payment provider's view of a verified purchase
// (spec §4.4 step 2).
type ExternalTransaction struct {
	Reference  uuid.UUID
	Amount     money.Amount
	OccurredOn time.Time
	Metadata   map[string]any
}

// BankAccount is one entry of the provider's bank catalog (spec §6
// "GET /bank").
type BankAccount struct {
	Name string
	Code string
}

// ResolvedAccount is the provider's account-name lookup result (spec §6
// "GET /bank/resolve").
type ResolvedAccount struct {
	AccountNumber string
	AccountName   string
	BankCode      string
}

// PaymentAdapter is the HTTP port to the external payment provider
// (spec §2 Payment Adapter, §6 Outbound provider HTTP).
type PaymentAdapter interface {
	InitializeTransaction(ctx context.Context, email string, amount money.Amount, reference uuid.UUID, callbackURL string, metadata map[string]any) (checkoutLink string, err error)
	GetValidTransaction(ctx context.Context, reference uuid.UUID) (ExternalTransaction, error)
	ListBanks(ctx context.Context) ([]BankAccount, error)
	ResolveAccount(ctx context.Context, accountNumber, bankCode string) (ResolvedAccount, error)
	AddRecipient(ctx context.Context, accountNumber, accountName, bankCode string) (recipientID string, err error)
	Withdraw(ctx context.Context, amount money.Amount, recipientID, reference, reason string) error
}

// TicketService is the external ticketing collaborator (spec §4.5).
type TicketService interface {
	MarkReservationAsPaid(ctx context.Context, reference uuid.UUID) error
	GetEventOrganizer(ctx context.Context, slug string) (uuid.UUID, error)
}

// UserService is the external identity/referral collaborator (spec §4.5).
type UserService interface {
	GetSystemUserID(ctx context.Context) (uuid.UUID, error)
	GetReferralInfo(ctx context.Context, userID uuid.UUID) (referrerID *uuid.UUID, err error)
}
