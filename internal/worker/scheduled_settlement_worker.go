// Package worker runs background processing loops for the settlement
// engine, independent of the HTTP API and the event-bus consumer.
package worker

import (
	"context"
	"sync"
	"time"

	"github.com/cyphera/settlement-engine/internal/logger"
	"github.com/cyphera/settlement-engine/internal/usecase"
	"go.uber.org/zap"
)

// ScheduledSettlementWorker periodically sweeps transactions whose
// settlement was delayed past settlement_delay_hours and processes any
// that have come due (spec §4.11 "Process Due Settlements").
type ScheduledSettlementWorker struct {
	services *usecase.Services
	interval time.Duration
	stopCh   chan struct{}
	wg       sync.WaitGroup
}

// New builds a worker that polls every interval.
func New(services *usecase.Services, interval time.Duration) *ScheduledSettlementWorker {
	return &ScheduledSettlementWorker{
		services: services,
		interval: interval,
		stopCh:   make(chan struct{}),
	}
}

// Start begins the polling loop in a background goroutine.
func (w *ScheduledSettlementWorker) Start() {
	w.wg.Add(1)
	go w.run()
	logger.Log.Info("scheduled settlement worker started", zap.Duration("interval", w.interval))
}

// Stop signals the loop to exit and waits for the in-flight run to finish.
func (w *ScheduledSettlementWorker) Stop() {
	logger.Log.Info("stopping scheduled settlement worker...")
	close(w.stopCh)
	w.wg.Wait()
	logger.Log.Info("scheduled settlement worker stopped")
}

func (w *ScheduledSettlementWorker) run() {
	defer w.wg.Done()

	w.processDue()

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			w.processDue()
		case <-w.stopCh:
			return
		}
	}
}

func (w *ScheduledSettlementWorker) processDue() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	start := time.Now()
	processed, err := w.services.ProcessDueSettlements(ctx)
	if err != nil {
		logger.Log.Error("scheduled settlement sweep failed", zap.Error(err))
		return
	}
	logger.Log.Info("scheduled settlement sweep complete",
		zap.Int("processed", processed),
		zap.Duration("duration", time.Since(start)))
}
