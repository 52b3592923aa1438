package usecase

import (
	"context"
	"time"

	"github.com/cyphera/settlement-engine/internal/logger"
	"go.uber.org/zap"
)

// dueSettlementBatchSize bounds one scan of the scheduled-settlement worker
// (spec §4.11 "fetch up to 20 transactions").
const dueSettlementBatchSize = 20

// ProcessDueSettlements scans for transactions whose delay window elapsed
// and re-runs SettleTicketPurchase on each, now taking the non-delayed
// branch (spec §4.11). Per-item errors are logged and do not abort the
// batch.
func (s *Services) ProcessDueSettlements(ctx context.Context) (int, error) {
	due, err := s.Transactions.FindDueScheduled(ctx, time.Now().UTC(), dueSettlementBatchSize)
	if err != nil {
		return 0, err
	}

	processed := 0
	for _, txn := range due {
		if err := s.SettleTicketPurchase(ctx, txn.Reference); err != nil {
			logger.Error("process_due_settlements: settlement failed",
				zap.String("reference", txn.Reference.String()), zap.Error(err))
			continue
		}
		processed++
	}
	return processed, nil
}
