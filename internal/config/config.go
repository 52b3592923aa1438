// Package config loads and validates the engine's environment-variable
// configuration surface (spec §6 Configuration).
package config

import (
	"context"
	"fmt"
	"os"
	"strconv"

	awsclient "github.com/cyphera/settlement-engine/internal/client/aws"
	"github.com/cyphera/settlement-engine/internal/helpers"
	"github.com/joho/godotenv"
)

// Config is the fully-typed configuration surface. No package-level
// mutable globals beyond the logger hold configuration state.
type Config struct {
	Stage string // local | dev | prod

	ChargeReqKey         string
	AccountValidationKey string
	AdminJWTSecret       string

	AutoWithdrawalEnabled bool
	SettlementDelayHours  int
	MaxWalletBalance      string
	Debug                 bool

	DatabaseURL string

	KafkaBootstrapServers string
	KafkaGroupID          string
	KafkaAutoOffsetReset  string
	KafkaEnableAutoCommit bool

	GRPCTicketSvcTarget string
	GRPCUserSvcTarget   string

	PaystackURL                      string
	PaystackSecretKey                string
	PaystackTicketPurchaseCallback   string
	PaystackAttendeeDepositCallback  string
	PaystackOrganizerDepositCallback string
}

// Load reads environment variables (via .env in local/dev, the process
// environment in prod) and returns a validated Config.
func Load() (*Config, error) {
	stage := os.Getenv("STAGE")
	if stage == "" {
		stage = helpers.StageLocal
	}
	if stage != helpers.StageProd {
		_ = godotenv.Load()
	}

	autoWithdrawal, err := parseBoolFlag(os.Getenv("AUTO_WITHDRAWAL_ENABLED"), false)
	if err != nil {
		return nil, fmt.Errorf("AUTO_WITHDRAWAL_ENABLED: %w", err)
	}

	delayHours, err := parseIntDefault(os.Getenv("SETTLEMENT_DELAY_HOURS"), 0)
	if err != nil {
		return nil, fmt.Errorf("SETTLEMENT_DELAY_HOURS: %w", err)
	}

	autoCommit, err := parseBoolFlag(os.Getenv("KAFKA_ENABLE_AUTO_COMMIT"), false)
	if err != nil {
		return nil, fmt.Errorf("KAFKA_ENABLE_AUTO_COMMIT: %w", err)
	}

	offsetReset := os.Getenv("KAFKA_AUTO_OFFSET_RESET")
	if offsetReset == "" {
		offsetReset = "earliest"
	}

	c := &Config{
		Stage:                 stage,
		ChargeReqKey:          os.Getenv("CHARGE_REQ_KEY"),
		AccountValidationKey:  os.Getenv("ACCOUNT_VALIDATION_KEY"),
		AdminJWTSecret:        os.Getenv("ADMIN_JWT_SECRET"),
		AutoWithdrawalEnabled: autoWithdrawal,
		SettlementDelayHours:  delayHours,
		MaxWalletBalance:      os.Getenv("MAX_WALLET_BALANCE"),
		Debug:                 os.Getenv("DEBUG") == "1" || os.Getenv("DEBUG") == "true",
		DatabaseURL:           os.Getenv("DATABASE_URL"),

		KafkaBootstrapServers: os.Getenv("KAFKA_BOOTSTRAP_SERVERS"),
		KafkaGroupID:          os.Getenv("KAFKA_GROUP_ID"),
		KafkaAutoOffsetReset:  offsetReset,
		KafkaEnableAutoCommit: autoCommit,

		GRPCTicketSvcTarget: os.Getenv("GRPC_TICKET_SVC_TARGET"),
		GRPCUserSvcTarget:   os.Getenv("GRPC_USER_SVC_TARGET"),

		PaystackURL:                      os.Getenv("PAYSTACK_URL"),
		PaystackSecretKey:                os.Getenv("PAYSTACK_SECRET_KEY"),
		PaystackTicketPurchaseCallback:   os.Getenv("PAYSTACK_TICKET_PURCHASE_CALLBACK"),
		PaystackAttendeeDepositCallback:  os.Getenv("PAYSTACK_ATTENDEE_DEPOSIT_CALLBACK"),
		PaystackOrganizerDepositCallback: os.Getenv("PAYSTACK_ORGANIZER_DEPOSIT_CALLBACK"),
	}

	if err := c.validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Config) validate() error {
	if !helpers.IsValidStage(c.Stage) {
		return fmt.Errorf("STAGE must be one of %q, %q, %q", helpers.StageLocal, helpers.StageDev, helpers.StageProd)
	}
	if c.ChargeReqKey == "" {
		return fmt.Errorf("CHARGE_REQ_KEY is required")
	}
	if c.AccountValidationKey == "" {
		return fmt.Errorf("ACCOUNT_VALIDATION_KEY is required")
	}
	if c.AdminJWTSecret == "" {
		return fmt.Errorf("ADMIN_JWT_SECRET is required")
	}
	if c.DatabaseURL == "" && os.Getenv("DATABASE_URL_SECRET_ARN") == "" {
		return fmt.Errorf("DATABASE_URL or DATABASE_URL_SECRET_ARN is required")
	}
	return nil
}

// ResolveDatabaseURL returns the DSN to dial. In prod stage it prefers
// fetching the DSN from Secrets Manager (DATABASE_URL_SECRET_ARN), falling
// back to DatabaseURL; other stages always use DatabaseURL directly.
func (c *Config) ResolveDatabaseURL(ctx context.Context) (string, error) {
	if c.Stage != helpers.StageProd {
		return c.DatabaseURL, nil
	}

	client, err := awsclient.NewSecretsManagerClient(ctx)
	if err != nil {
		return "", fmt.Errorf("unable to build secrets manager client: %w", err)
	}
	return client.GetSecretString(ctx, "DATABASE_URL_SECRET_ARN", "DATABASE_URL")
}

func parseBoolFlag(raw string, def bool) (bool, error) {
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err == nil {
		return n != 0, nil
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		return false, err
	}
	return b, nil
}

func parseIntDefault(raw string, def int) (int, error) {
	if raw == "" {
		return def, nil
	}
	return strconv.Atoi(raw)
}
