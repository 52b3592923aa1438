package handlers

import (
	"net/http"

	"github.com/cyphera/settlement-engine/internal/domain/money"
	"github.com/cyphera/settlement-engine/internal/usecase"
	"github.com/gin-gonic/gin"
)

// ChargeHandler serves the signed charge-quote endpoints (spec §6).
type ChargeHandler struct {
	services *usecase.Services
}

func NewChargeHandler(services *usecase.Services) *ChargeHandler {
	return &ChargeHandler{services: services}
}

// chargeQuoteResponse is the wire shape shared by both charge endpoints.
type chargeQuoteResponse struct {
	BaseAmount       string `json:"base_amount"`
	ChargeSettingID  string `json:"charge_setting_id"`
	VersionID        string `json:"version_id"`
	VersionNumber    int    `json:"version_number"`
	CalculatedCharge string `json:"calculated_charge"`
	Signature        string `json:"signature"`
}

func toChargeQuoteResponse(q usecase.ChargeQuote) chargeQuoteResponse {
	return chargeQuoteResponse{
		BaseAmount:       q.BaseAmount.String(),
		ChargeSettingID:  q.ChargeSettingID,
		VersionID:        q.VersionID,
		VersionNumber:    q.VersionNumber,
		CalculatedCharge: q.CalculatedCharge.String(),
		Signature:        q.Signature,
	}
}

// TicketPurchaseCharge godoc
// @Summary Quote the fee for a ticket purchase
// @Tags charges
// @Produce json
// @Param ticket_type_id query string false "Ticket type id (not read; not bound into the signature)"
// @Param slug query string false "Event slug (not read; not bound into the signature)"
// @Param base_amount query string true "Base ticket price"
// @Success 200 {object} chargeQuoteResponse
// @Failure 400 {object} ErrorResponse
// @Router /v1/charges/ticket-purchase [get]
func (h *ChargeHandler) TicketPurchaseCharge(c *gin.Context) {
	userID := currentUser(c)

	amount, err := money.FromString(c.Query("base_amount"))
	if err != nil {
		sendError(c, http.StatusBadRequest, "base_amount is not a valid decimal amount", err)
		return
	}

	quote, err := h.services.RequestTicketPurchaseCharge(c.Request.Context(), userID, amount)
	if err != nil {
		handleUseCaseError(c, err)
		return
	}
	sendSuccess(c, http.StatusOK, toChargeQuoteResponse(quote))
}

// InstantWithdrawalCharge godoc
// @Summary Quote the fee for an instant withdrawal
// @Tags charges
// @Produce json
// @Param amount query string true "Withdrawal amount"
// @Success 200 {object} chargeQuoteResponse
// @Failure 400 {object} ErrorResponse
// @Router /v1/charges/instant-withdrawal [get]
func (h *ChargeHandler) InstantWithdrawalCharge(c *gin.Context) {
	userID := currentUser(c)

	amount, err := money.FromString(c.Query("amount"))
	if err != nil {
		sendError(c, http.StatusBadRequest, "amount is not a valid decimal amount", err)
		return
	}

	quote, err := h.services.RequestInstantWithdrawalCharge(c.Request.Context(), userID, amount)
	if err != nil {
		handleUseCaseError(c, err)
		return
	}
	sendSuccess(c, http.StatusOK, toChargeQuoteResponse(quote))
}
