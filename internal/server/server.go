// Package server wires the gin HTTP surface (spec §6). Route and CORS
// wiring follows the teacher's internal/server/server.go; wallet/charge/
// checkout DB wiring moves to cmd/ here since this package no longer owns
// its own pgxpool (the teacher's InitializeHandlers did, but settlement's
// repositories are built once and shared with the Kafka consumer process).
package server

import (
	"os"
	"strings"

	"github.com/cyphera/settlement-engine/internal/handlers"
	"github.com/cyphera/settlement-engine/internal/usecase"
	"github.com/cyphera/settlement-engine/internal/webhook"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

// New builds the gin engine for the API process, wiring every route named
// in spec §6 against services.
func New(services *usecase.Services, paystackSecretKey, adminJWTSecret string) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(configureCORS())
	router.Use(handlers.LogRequest())

	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	healthHandler := handlers.NewHealthHandler()
	router.GET("/healthz", healthHandler.Health)

	chargeHandler := handlers.NewChargeHandler(services)
	checkoutHandler := handlers.NewCheckoutHandler(services)
	walletHandler := handlers.NewWalletHandler(services)
	adminHandler := handlers.NewAdminHandler(services)
	paystackHandler := webhook.NewPaystackHandler(services, paystackSecretKey)

	router.POST("/v1/webhook/paystack", paystackHandler.Handle)

	admin := router.Group("/v1/admin")
	admin.Use(handlers.RequireAdmin(adminJWTSecret))
	{
		admin.POST("/transactions/:reference/status", adminHandler.UpdateTransactionStatus)
	}

	v1 := router.Group("/v1")
	v1.Use(handlers.RequireUser())
	{
		charges := v1.Group("/charges")
		{
			charges.GET("/ticket-purchase", chargeHandler.TicketPurchaseCharge)
			charges.GET("/instant-withdrawal", chargeHandler.InstantWithdrawalCharge)
		}

		checkout := v1.Group("/checkout")
		{
			checkout.POST("/ticket-purchase", checkoutHandler.CreateTicketPurchaseCheckout)
			checkout.POST("/verify-ticket-purchase", checkoutHandler.VerifyTicketPurchaseCheckout)
		}

		wallet := v1.Group("/wallet")
		{
			wallet.GET("/balance", walletHandler.Balance)
			wallet.GET("/transactions", walletHandler.Transactions)
			wallet.POST("/update-transaction-pin", walletHandler.UpdateTransactionPin)
			wallet.POST("/update-bank", walletHandler.UpdateBank)
			wallet.POST("/withdraw", walletHandler.Withdraw)
			wallet.GET("/resolve-personal-account", walletHandler.ResolvePersonalAccount)
			wallet.GET("/banks", walletHandler.Banks)
		}
	}

	return router
}

// configureCORS mirrors the teacher's env-driven CORS configuration.
func configureCORS() gin.HandlerFunc {
	corsConfig := cors.DefaultConfig()

	if origins := os.Getenv("CORS_ALLOWED_ORIGINS"); origins == "" {
		corsConfig.AllowOrigins = []string{"http://localhost:3000"}
	} else {
		corsConfig.AllowOrigins = splitAndTrim(origins)
	}

	if methods := os.Getenv("CORS_ALLOWED_METHODS"); methods == "" {
		corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	} else {
		corsConfig.AllowMethods = splitAndTrim(methods)
	}

	if headers := os.Getenv("CORS_ALLOWED_HEADERS"); headers == "" {
		corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Accept", "Authorization", "X-User-ID"}
	} else {
		corsConfig.AllowHeaders = splitAndTrim(headers)
	}

	corsConfig.AllowCredentials = os.Getenv("CORS_ALLOW_CREDENTIALS") == "true"

	return cors.New(corsConfig)
}

func splitAndTrim(s string) []string {
	parts := strings.Split(s, ",")
	for i, p := range parts {
		parts[i] = strings.TrimSpace(p)
	}
	return parts
}
