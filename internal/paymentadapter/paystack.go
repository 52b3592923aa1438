// Package paymentadapter implements the Payment Adapter HTTP port against
// a Paystack-shaped external provider (spec §2 Payment Adapter, §6
// Outbound provider HTTP). Built directly on the teacher's retrying
// internal/client/http.HTTPClient rather than on stripe-go/v82 — Paystack's
// webhook scheme and REST surface don't fit the Stripe SDK's shapes
// (justified in DESIGN.md).
package paymentadapter

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	httpclient "github.com/cyphera/settlement-engine/internal/client/http"
	"github.com/cyphera/settlement-engine/internal/domain/money"
	"github.com/cyphera/settlement-engine/internal/ports"
	"github.com/google/uuid"
)

// PaystackAdapter implements ports.PaymentAdapter.
type PaystackAdapter struct {
	client *httpclient.HTTPClient
}

// New builds a PaystackAdapter pointed at baseURL, authenticating every
// request with secretKey as a bearer token (Paystack convention).
func New(baseURL, secretKey string) *PaystackAdapter {
	client := httpclient.NewHTTPClient(
		httpclient.WithBaseURL(baseURL),
		httpclient.WithTimeout(10*time.Second),
		httpclient.WithDefaultHeader("Authorization", "Bearer "+secretKey),
	)
	return &PaystackAdapter{client: client}
}

type initializeRequest struct {
	Email       string `json:"email"`
	AmountKobo  int64  `json:"amount"`
	Reference   string `json:"reference"`
	CallbackURL string `json:"callback_url"`
	Metadata    string `json:"metadata"`
}

type initializeResponse struct {
	Status bool `json:"status"`
	Data   struct {
		AuthorizationURL string `json:"authorization_url"`
	} `json:"data"`
}

// InitializeTransaction issues a checkout link (spec §6 "POST
// /transaction/initialize").
func (a *PaystackAdapter) InitializeTransaction(ctx context.Context, email string, amount money.Amount, reference uuid.UUID, callbackURL string, metadata map[string]any) (string, error) {
	metaJSON, err := json.Marshal(metadata)
	if err != nil {
		return "", err
	}

	resp, err := a.client.Post(ctx, "/transaction/initialize", initializeRequest{
		Email:       email,
		AmountKobo:  amount.Cents(),
		Reference:   reference.String(),
		CallbackURL: callbackURL,
		Metadata:    string(metaJSON),
	})
	if err != nil {
		return "", err
	}

	var out initializeResponse
	if err := a.client.ProcessJSONResponse(resp, &out); err != nil {
		return "", err
	}
	if !out.Status {
		return "", fmt.Errorf("paystack: initialize transaction reported failure")
	}
	return out.Data.AuthorizationURL, nil
}

type verifyResponse struct {
	Status bool `json:"status"`
	Data   struct {
		Reference string         `json:"reference"`
		Status    string         `json:"status"`
		Amount    int64          `json:"amount"`
		PaidAt    time.Time      `json:"paid_at"`
		Metadata  map[string]any `json:"metadata"`
	} `json:"data"`
}

// GetValidTransaction verifies a provider transaction and requires
// status=success (spec §4.4 step 2, §6 "GET /transaction/verify/{ref}").
func (a *PaystackAdapter) GetValidTransaction(ctx context.Context, reference uuid.UUID) (ports.ExternalTransaction, error) {
	resp, err := a.client.Get(ctx, "/transaction/verify/"+reference.String())
	if err != nil {
		return ports.ExternalTransaction{}, err
	}

	var out verifyResponse
	if err := a.client.ProcessJSONResponse(resp, &out); err != nil {
		return ports.ExternalTransaction{}, err
	}
	if !out.Status || out.Data.Status != "success" {
		return ports.ExternalTransaction{}, fmt.Errorf("paystack: transaction %s is not successful", reference)
	}

	ref, err := uuid.Parse(out.Data.Reference)
	if err != nil {
		return ports.ExternalTransaction{}, err
	}

	return ports.ExternalTransaction{
		Reference:  ref,
		Amount:     money.FromCents(out.Data.Amount),
		OccurredOn: out.Data.PaidAt,
		Metadata:   out.Data.Metadata,
	}, nil
}

type banksResponse struct {
	Data []struct {
		Name string `json:"name"`
		Code string `json:"code"`
	} `json:"data"`
}

// ListBanks returns the provider's bank catalog (spec §6 "GET /bank").
func (a *PaystackAdapter) ListBanks(ctx context.Context) ([]ports.BankAccount, error) {
	resp, err := a.client.Get(ctx, "/bank", httpclient.WithQueryParam("country", "nigeria"), httpclient.WithQueryParam("perPage", "100"))
	if err != nil {
		return nil, err
	}

	var out banksResponse
	if err := a.client.ProcessJSONResponse(resp, &out); err != nil {
		return nil, err
	}

	banks := make([]ports.BankAccount, 0, len(out.Data))
	for _, b := range out.Data {
		banks = append(banks, ports.BankAccount{Name: b.Name, Code: b.Code})
	}
	return banks, nil
}

type resolveResponse struct {
	Status bool `json:"status"`
	Data   struct {
		AccountNumber string `json:"account_number"`
		AccountName   string `json:"account_name"`
	} `json:"data"`
}

// ResolveAccount resolves an account number + bank code to an account name
// (spec §6 "GET /bank/resolve").
func (a *PaystackAdapter) ResolveAccount(ctx context.Context, accountNumber, bankCode string) (ports.ResolvedAccount, error) {
	resp, err := a.client.Get(ctx, "/bank/resolve",
		httpclient.WithQueryParam("account_number", accountNumber),
		httpclient.WithQueryParam("bank_code", bankCode))
	if err != nil {
		return ports.ResolvedAccount{}, err
	}

	var out resolveResponse
	if err := a.client.ProcessJSONResponse(resp, &out); err != nil {
		return ports.ResolvedAccount{}, err
	}
	if !out.Status {
		return ports.ResolvedAccount{}, fmt.Errorf("paystack: could not resolve account")
	}

	return ports.ResolvedAccount{
		AccountNumber: out.Data.AccountNumber,
		AccountName:   out.Data.AccountName,
		BankCode:      bankCode,
	}, nil
}

type recipientRequest struct {
	Type          string `json:"type"`
	Name          string `json:"name"`
	AccountNumber string `json:"account_number"`
	BankCode      string `json:"bank_code"`
	Currency      string `json:"currency"`
}

type recipientResponse struct {
	Status bool `json:"status"`
	Data   struct {
		RecipientCode string `json:"recipient_code"`
	} `json:"data"`
}

// AddRecipient registers a transfer recipient (spec §6 "POST
// /transferrecipient").
func (a *PaystackAdapter) AddRecipient(ctx context.Context, accountNumber, accountName, bankCode string) (string, error) {
	resp, err := a.client.Post(ctx, "/transferrecipient", recipientRequest{
		Type:          "nuban",
		Name:          accountName,
		AccountNumber: accountNumber,
		BankCode:      bankCode,
		Currency:      "NGN",
	})
	if err != nil {
		return "", err
	}

	var out recipientResponse
	if err := a.client.ProcessJSONResponse(resp, &out); err != nil {
		return "", err
	}
	if !out.Status {
		return "", fmt.Errorf("paystack: failed to register recipient")
	}
	return out.Data.RecipientCode, nil
}

type transferRequest struct {
	Source    string `json:"source"`
	AmountKobo int64  `json:"amount"`
	Recipient string `json:"recipient"`
	Reason    string `json:"reason"`
	Reference string `json:"reference"`
}

type transferResponse struct {
	Status bool `json:"status"`
}

// Withdraw dispatches a transfer to a previously-registered recipient
// (spec §6 "POST /transfer").
func (a *PaystackAdapter) Withdraw(ctx context.Context, amount money.Amount, recipientID, reference, reason string) error {
	resp, err := a.client.Post(ctx, "/transfer", transferRequest{
		Source:     "balance",
		AmountKobo: amount.Cents(),
		Recipient:  recipientID,
		Reason:     reason,
		Reference:  reference,
	})
	if err != nil {
		return err
	}

	var out transferResponse
	if err := a.client.ProcessJSONResponse(resp, &out); err != nil {
		return err
	}
	if !out.Status {
		return fmt.Errorf("paystack: transfer dispatch reported failure")
	}
	return nil
}

var _ ports.PaymentAdapter = (*PaystackAdapter)(nil)
