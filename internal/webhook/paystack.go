// Package webhook verifies and translates inbound Paystack webhooks
// (spec §6 "POST /v1/webhook/paystack", §4.7). Unlike the teacher's
// Stripe webhook receiver, which republishes every verified event onto
// SQS for asynchronous processing, this handler is a synchronous sink:
// the only event it needs to act on (transfer.success) maps directly to
// Services.CompleteWithdraw, and spec §6 does not list a webhook topic
// among the published events (justified in DESIGN.md).
package webhook

import (
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"

	"github.com/cyphera/settlement-engine/internal/apperror"
	"github.com/cyphera/settlement-engine/internal/domain/events"
	"github.com/cyphera/settlement-engine/internal/domain/money"
	"github.com/cyphera/settlement-engine/internal/logger"
	"github.com/cyphera/settlement-engine/internal/usecase"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// PaystackHandler verifies and dispatches Paystack webhook deliveries.
type PaystackHandler struct {
	services  *usecase.Services
	secretKey []byte
}

func NewPaystackHandler(services *usecase.Services, secretKey string) *PaystackHandler {
	return &PaystackHandler{services: services, secretKey: []byte(secretKey)}
}

type paystackEvent struct {
	Event string `json:"event"`
	Data  struct {
		Reference string `json:"reference"`
		Amount    int64  `json:"amount"`
		CreatedAt string `json:"createdAt"`
		Recipient struct {
			Details struct {
				AccountNumber string `json:"account_number"`
				BankName      string `json:"bank_name"`
			} `json:"details"`
		} `json:"recipient"`
	} `json:"data"`
}

// Handle godoc
// @Summary Receive a Paystack webhook delivery
// @Tags webhook
// @Accept json
// @Produce json
// @Success 200 {object} SuccessResponse
// @Failure 400 {object} ErrorResponse
// @Router /v1/webhook/paystack [post]
func (h *PaystackHandler) Handle(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "could not read request body"})
		return
	}

	signature := c.GetHeader("x-paystack-signature")
	if signature == "" || !h.verify(body, signature) {
		logger.Log.Warn("rejected paystack webhook with invalid signature",
			zap.String("path", c.Request.URL.Path))
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid signature"})
		return
	}

	var ev paystackEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "malformed webhook payload"})
		return
	}

	if ev.Event != "transfer.success" {
		c.JSON(http.StatusOK, gin.H{"message": "ignored"})
		return
	}

	payload := events.CompleteWithdrawPayload{
		Reference: ev.Data.Reference,
		Amount:    money.FromCents(ev.Data.Amount).String(),
		Dest:      ev.Data.Recipient.Details.AccountNumber,
		Date:      ev.Data.CreatedAt,
	}

	if err := h.services.CompleteWithdraw(c.Request.Context(), payload); err != nil {
		h.respondWithAppError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "processed"})
}

// verify checks the x-paystack-signature header, an HMAC-SHA512 of the raw
// request body keyed with the provider secret (Paystack convention).
func (h *PaystackHandler) verify(body []byte, signature string) bool {
	mac := hmac.New(sha512.New, h.secretKey)
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}

func (h *PaystackHandler) respondWithAppError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	message := err.Error()
	if appErr, ok := err.(*apperror.Error); ok {
		status = appErr.HTTPStatus()
		message = appErr.Error()
	}
	logger.Error("failed to process paystack webhook", zap.Error(err))
	c.JSON(status, gin.H{"error": message})
}
