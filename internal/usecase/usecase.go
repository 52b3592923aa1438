// Package usecase implements the settlement engine's application layer:
// the seven use cases named in spec §2 plus the checkout/wallet-query
// operations layered on top of them. Each method is the single logical
// session described in spec §5 ("open session -> lock rows -> read
// aggregate -> mutate -> persist -> publish events -> commit").
package usecase

import (
	"context"

	"github.com/cyphera/settlement-engine/internal/domain/events"
	"github.com/cyphera/settlement-engine/internal/logger"
	"github.com/cyphera/settlement-engine/internal/ports"
	"github.com/cyphera/settlement-engine/internal/signing"
	"go.uber.org/zap"
)

// Services is a plain struct of already-wired collaborators — the
// worker's DI container the source resolved via context-manager globals
// (spec §9 "Global mutable singletons"), replaced here by explicit
// constructor injection.
type Services struct {
	Transactions   ports.TransactionRepository
	Wallets        ports.WalletRepository
	ChargeSchedule ports.ChargeScheduleRepository
	Bus            ports.EventBus
	Payment        ports.PaymentAdapter
	Tickets        ports.TicketService
	Users          ports.UserService

	ChargeSigner            *signing.Signer
	AccountValidationSigner *signing.Signer

	AutoWithdrawalEnabled bool
	SettlementDelayHours  int
}

// NewServices wires every collaborator explicitly; nothing here is
// resolved lazily at call sites (spec §9).
func NewServices(
	transactions ports.TransactionRepository,
	wallets ports.WalletRepository,
	chargeSchedule ports.ChargeScheduleRepository,
	bus ports.EventBus,
	payment ports.PaymentAdapter,
	tickets ports.TicketService,
	users ports.UserService,
	chargeSigner, accountValidationSigner *signing.Signer,
	autoWithdrawalEnabled bool,
	settlementDelayHours int,
) *Services {
	return &Services{
		Transactions:            transactions,
		Wallets:                 wallets,
		ChargeSchedule:          chargeSchedule,
		Bus:                     bus,
		Payment:                 payment,
		Tickets:                 tickets,
		Users:                   users,
		ChargeSigner:            chargeSigner,
		AccountValidationSigner: accountValidationSigner,
		AutoWithdrawalEnabled:   autoWithdrawalEnabled,
		SettlementDelayHours:    settlementDelayHours,
	}
}

// publish drains ev and publishes each event, logging (not failing) any
// single publish error — publishing happens after persistence succeeds,
// so a publish failure must not roll back work already committed (spec
// §5 "publishing before commit is acceptable because handlers are
// idempotent").
func (s *Services) publish(ctx context.Context, drained ...[]events.Event) {
	for _, batch := range drained {
		for _, ev := range batch {
			if err := s.Bus.Publish(ctx, ev); err != nil {
				logger.Error("usecase: failed to publish event",
					zap.String("event_type", ev.EventType),
					zap.String("aggregate_id", ev.AggregateID),
					zap.Error(err))
			}
		}
	}
}
