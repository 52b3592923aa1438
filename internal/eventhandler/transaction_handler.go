// Package eventhandler wires published domain events back to the use cases
// that react to them (spec §2 "Event Handler").
package eventhandler

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/cyphera/settlement-engine/internal/apperror"
	"github.com/cyphera/settlement-engine/internal/domain/events"
	"github.com/cyphera/settlement-engine/internal/domain/transaction"
	"github.com/cyphera/settlement-engine/internal/logger"
	"github.com/cyphera/settlement-engine/internal/ports"
	"github.com/cyphera/settlement-engine/internal/usecase"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// TransactionHandler subscribes to transaction.created and dispatches it to
// the use case that owns the transaction's settlement path (spec §4:
// "Handler opens a session, acquires row-lock on the txn, runs the matching
// use case"). Withdrawal completion arrives over the Paystack webhook
// (internal/webhook), not the event bus — spec §6 does not list
// complete_withdraw among the published topics, so there is nothing to
// subscribe to here.
type TransactionHandler struct {
	services *usecase.Services
}

// New builds a TransactionHandler bound to the given use-case services.
func New(services *usecase.Services) *TransactionHandler {
	return &TransactionHandler{services: services}
}

// Register subscribes the handler's methods to the bus (spec §6 event
// topics: transaction.created).
func (h *TransactionHandler) Register(bus ports.EventBus) {
	bus.Subscribe(events.GroupTransaction+"."+events.NameTransactionCreated, h.handleCreated)
}

func (h *TransactionHandler) handleCreated(ctx context.Context, ev events.Event) error {
	var payload events.TransactionCreatedPayload
	if err := decodePayload(ev.Payload, &payload); err != nil {
		return apperror.Malformed("transaction.created payload is not well-formed")
	}

	reference, err := uuid.Parse(payload.Reference)
	if err != nil {
		return apperror.Malformed("transaction.created payload has an invalid reference")
	}

	txn, err := h.services.Transactions.GetByReference(ctx, reference, true)
	if err != nil {
		return err
	}
	if txn == nil {
		return apperror.NotFound(fmt.Sprintf("transaction %s not found", reference))
	}
	if txn.SettlementStatus != transaction.StatusPending {
		logger.Log.Debug("transaction no longer pending, skipping",
			zap.String("reference", reference.String()),
			zap.String("status", string(txn.SettlementStatus)))
		return nil
	}

	switch txn.TransactionType {
	case transaction.TypePurchase:
		if txn.Resource != "ticket" {
			return apperror.NotImplemented(fmt.Sprintf("settlement for resource %q is not implemented", txn.Resource))
		}
		return h.services.SettleTicketPurchase(ctx, reference)
	case transaction.TypeSale, transaction.TypeCommission, transaction.TypeWalletFunding:
		return h.services.FundAccountFromTxn(ctx, reference)
	case transaction.TypeWithdrawal:
		return h.services.DispatchWithdrawal(ctx, reference)
	default:
		return apperror.NotImplemented(fmt.Sprintf("transaction type %q is not implemented", txn.TransactionType))
	}
}

// decodePayload round-trips through JSON so callers that hand the handler a
// concrete struct (tests) and callers coming off the wire (a map[string]any
// decoded by the bus transport) both land on the typed payload.
func decodePayload(raw any, out any) error {
	data, err := json.Marshal(raw)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, out)
}
