// Command settlement-worker consumes settlement events off the bus and
// sweeps scheduled settlements that have come due (spec §4.10, §4.5).
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cyphera/settlement-engine/internal/config"
	"github.com/cyphera/settlement-engine/internal/eventbus"
	"github.com/cyphera/settlement-engine/internal/eventhandler"
	"github.com/cyphera/settlement-engine/internal/logger"
	"github.com/cyphera/settlement-engine/internal/paymentadapter"
	"github.com/cyphera/settlement-engine/internal/repository/postgres"
	"github.com/cyphera/settlement-engine/internal/rpc"
	"github.com/cyphera/settlement-engine/internal/signing"
	"github.com/cyphera/settlement-engine/internal/usecase"
	"github.com/cyphera/settlement-engine/internal/worker"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

const settlementSweepInterval = 5 * time.Minute

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load configuration: " + err.Error())
	}

	logger.Init(cfg.Stage)
	defer logger.Log.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	dbURL, err := cfg.ResolveDatabaseURL(ctx)
	if err != nil {
		logger.Log.Fatal("unable to resolve database url", zap.Error(err))
	}
	pool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		logger.Log.Fatal("unable to create database pool", zap.Error(err))
	}
	defer pool.Close()

	bus := eventbus.New(eventbus.Config{
		BootstrapServers: cfg.KafkaBootstrapServers,
		GroupID:          cfg.KafkaGroupID,
		AutoOffsetReset:  cfg.KafkaAutoOffsetReset,
		EnableAutoCommit: cfg.KafkaEnableAutoCommit,
	})

	ticketClient, err := rpc.NewTicketServiceClient(cfg.GRPCTicketSvcTarget)
	if err != nil {
		logger.Log.Fatal("unable to dial ticket service", zap.Error(err))
	}
	userClient, err := rpc.NewUserServiceClient(cfg.GRPCUserSvcTarget)
	if err != nil {
		logger.Log.Fatal("unable to dial user service", zap.Error(err))
	}

	payment := paymentadapter.New(cfg.PaystackURL, cfg.PaystackSecretKey)

	services := usecase.NewServices(
		postgres.NewTransactionRepository(pool),
		postgres.NewWalletRepository(pool),
		postgres.NewChargeSettingRepository(pool),
		bus,
		payment,
		ticketClient,
		userClient,
		signing.New(cfg.ChargeReqKey),
		signing.New(cfg.AccountValidationKey),
		cfg.AutoWithdrawalEnabled,
		cfg.SettlementDelayHours,
	)

	eventhandler.New(services).Register(bus)

	settlementWorker := worker.New(services, settlementSweepInterval)
	settlementWorker.Start()

	go func() {
		logger.Log.Info("settlement worker consuming events")
		if err := bus.Run(ctx); err != nil && ctx.Err() == nil {
			logger.Log.Error("event bus stopped unexpectedly", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Log.Info("shutting down settlement worker...")

	cancel()
	settlementWorker.Stop()
	logger.Log.Info("settlement worker exiting")
}
