// Command api serves the HTTP surface of the settlement engine (spec §6).
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cyphera/settlement-engine/internal/config"
	"github.com/cyphera/settlement-engine/internal/eventbus"
	"github.com/cyphera/settlement-engine/internal/logger"
	"github.com/cyphera/settlement-engine/internal/paymentadapter"
	"github.com/cyphera/settlement-engine/internal/repository/postgres"
	"github.com/cyphera/settlement-engine/internal/rpc"
	"github.com/cyphera/settlement-engine/internal/server"
	"github.com/cyphera/settlement-engine/internal/signing"
	"github.com/cyphera/settlement-engine/internal/usecase"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// @title           Settlement Engine API
// @version         1.0
// @description     Fee computation, checkout and wallet API for ticket settlement.

// @host      localhost:8000
// @BasePath  /v1

// @securityDefinitions.apikey UserID
// @in header
// @name X-User-ID
func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load configuration: " + err.Error())
	}

	logger.Init(cfg.Stage)
	defer logger.Log.Sync()

	ctx := context.Background()

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

	router := server.New(services, cfg.PaystackSecretKey, cfg.AdminJWTSecret)

	port := os.Getenv("API_PORT")
	if port == "" {
		port = "8000"
	}

	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%s", port),
		Handler:           router,
		ReadHeaderTimeout: 20 * time.Second,
	}

	go func() {
		logger.Log.Info("api server starting", zap.String("port", port))
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Log.Fatal("failed to start api server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Log.Info("shutting down api server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Log.Fatal("api server forced to shutdown", zap.Error(err))
	}
	logger.Log.Info("api server exiting")
}
