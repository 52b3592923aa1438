package handlers

import (
	"net/http"

	"github.com/cyphera/settlement-engine/internal/domain/money"
	"github.com/cyphera/settlement-engine/internal/usecase"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// CheckoutHandler serves the checkout/verify endpoints (spec §6, §4.4).
type CheckoutHandler struct {
	services *usecase.Services
}

func NewCheckoutHandler(services *usecase.Services) *CheckoutHandler {
	return &CheckoutHandler{services: services}
}

type createCheckoutRequest struct {
	Email            string `json:"email" binding:"required"`
	Slug             string `json:"slug" binding:"required"`
	BaseAmount       string `json:"base_amount" binding:"required"`
	ChargeSettingID  string `json:"charge_setting_id" binding:"required"`
	VersionID        string `json:"version_id" binding:"required"`
	VersionNumber    int    `json:"version_number" binding:"required"`
	CalculatedCharge string `json:"calculated_charge" binding:"required"`
	Signature        string `json:"signature" binding:"required"`
	CallbackURL      string `json:"callback_url" binding:"required"`
	Referrer         string `json:"referrer"`
}

type checkoutLinkResponse struct {
	Link string `json:"link"`
}

// CreateTicketPurchaseCheckout godoc
// @Summary Issue a hosted checkout link for a ticket purchase
// @Tags checkout
// @Accept json
// @Produce json
// @Param body body createCheckoutRequest true "Checkout request"
// @Success 200 {object} checkoutLinkResponse
// @Failure 400 {object} ErrorResponse
// @Router /v1/checkout/ticket-purchase [post]
func (h *CheckoutHandler) CreateTicketPurchaseCheckout(c *gin.Context) {
	userID := currentUser(c)

	var req createCheckoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		sendError(c, http.StatusBadRequest, "invalid request body", err)
		return
	}

	baseAmount, err := money.FromString(req.BaseAmount)
	if err != nil {
		sendError(c, http.StatusBadRequest, "base_amount is not a valid decimal amount", err)
		return
	}
	calculatedCharge, err := money.FromString(req.CalculatedCharge)
	if err != nil {
		sendError(c, http.StatusBadRequest, "calculated_charge is not a valid decimal amount", err)
		return
	}

	var referrer *uuid.UUID
	if req.Referrer != "" {
		r, err := uuid.Parse(req.Referrer)
		if err != nil {
			sendError(c, http.StatusBadRequest, "referrer is not a valid identifier", err)
			return
		}
		referrer = &r
	}

	link, err := h.services.CreateTicketPurchaseCheckout(c.Request.Context(), usecase.CreateTicketPurchaseCheckoutInput{
		UserID:           userID,
		Email:            req.Email,
		Slug:             req.Slug,
		BaseAmount:       baseAmount,
		ChargeSettingID:  req.ChargeSettingID,
		VersionID:        req.VersionID,
		VersionNumber:    req.VersionNumber,
		CalculatedCharge: calculatedCharge,
		Signature:        req.Signature,
		CallbackURL:      req.CallbackURL,
		Referrer:         referrer,
	})
	if err != nil {
		handleUseCaseError(c, err)
		return
	}

	sendSuccess(c, http.StatusOK, checkoutLinkResponse{Link: link.Link})
}

type verifyCheckoutRequest struct {
	Reference string `json:"reference" binding:"required"`
}

type verifyCheckoutResponse struct {
	Success bool `json:"success"`
}

// VerifyTicketPurchaseCheckout godoc
// @Summary Verify a completed provider checkout and record the transaction
// @Tags checkout
// @Accept json
// @Produce json
// @Param body body verifyCheckoutRequest true "Verification request"
// @Success 200 {object} verifyCheckoutResponse
// @Failure 400 {object} ErrorResponse
// @Router /v1/checkout/verify-ticket-purchase [post]
func (h *CheckoutHandler) VerifyTicketPurchaseCheckout(c *gin.Context) {
	userID := currentUser(c)

	var req verifyCheckoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		sendError(c, http.StatusBadRequest, "invalid request body", err)
		return
	}

	reference, err := uuid.Parse(req.Reference)
	if err != nil {
		sendError(c, http.StatusBadRequest, "reference is not a valid identifier", err)
		return
	}

	if err := h.services.VerifyTicketPurchase(c.Request.Context(), usecase.VerifyTicketPurchaseInput{
		Reference:  reference,
		AuthUserID: userID,
	}); err != nil {
		handleUseCaseError(c, err)
		return
	}

	sendSuccess(c, http.StatusOK, verifyCheckoutResponse{Success: true})
}
