package handlers

import (
	"net/http"
	"strconv"

	"github.com/cyphera/settlement-engine/internal/domain/money"
	"github.com/cyphera/settlement-engine/internal/usecase"
	"github.com/gin-gonic/gin"
)

// WalletHandler serves the wallet endpoints (spec §6).
type WalletHandler struct {
	services *usecase.Services
}

func NewWalletHandler(services *usecase.Services) *WalletHandler {
	return &WalletHandler{services: services}
}

type walletBalanceResponse struct {
	Available   string `json:"available"`
	Pending     string `json:"pending"`
	HasPIN      bool   `json:"has_pin"`
	BankDetails any    `json:"bank_details,omitempty"`
}

// Balance godoc
// @Summary Get the caller's wallet balance
// @Tags wallet
// @Produce json
// @Success 200 {object} walletBalanceResponse
// @Failure 400 {object} ErrorResponse
// @Router /v1/wallet/balance [get]
func (h *WalletHandler) Balance(c *gin.Context) {
	userID := currentUser(c)

	balance, err := h.services.GetBalance(c.Request.Context(), userID)
	if err != nil {
		handleUseCaseError(c, err)
		return
	}

	resp := walletBalanceResponse{
		Available: balance.Available.String(),
		Pending:   balance.Pending.String(),
		HasPIN:    balance.HasPIN,
	}
	if balance.BankDetails != nil {
		resp.BankDetails = balance.BankDetails
	}
	sendSuccess(c, http.StatusOK, resp)
}

// Transactions godoc
// @Summary List the caller's ledger entries
// @Tags wallet
// @Produce json
// @Param page query int false "Page number" default(1)
// @Param page_size query int false "Page size" default(20)
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} ErrorResponse
// @Router /v1/wallet/transactions [get]
func (h *WalletHandler) Transactions(c *gin.Context) {
	userID := currentUser(c)

	page, err := strconv.Atoi(c.DefaultQuery("page", "1"))
	if err != nil || page < 1 {
		page = 1
	}
	pageSize, err := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	if err != nil || pageSize < 1 {
		pageSize = 20
	}

	txns, total, err := h.services.ListTransactions(c.Request.Context(), userID, page, pageSize)
	if err != nil {
		handleUseCaseError(c, err)
		return
	}
	sendPaginatedSuccess(c, http.StatusOK, txns, page, pageSize, total)
}

type updatePinRequest struct {
	PIN    string `json:"pin" binding:"required"`
	OldPIN string `json:"old_pin"`
}

// UpdateTransactionPin godoc
// @Summary Set or change the caller's transaction pin
// @Tags wallet
// @Accept json
// @Produce json
// @Param body body updatePinRequest true "Pin update"
// @Success 200 {object} SuccessResponse
// @Failure 400 {object} ErrorResponse
// @Router /v1/wallet/update-transaction-pin [post]
func (h *WalletHandler) UpdateTransactionPin(c *gin.Context) {
	userID := currentUser(c)

	var req updatePinRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		sendError(c, http.StatusBadRequest, "invalid request body", err)
		return
	}

	var err error
	if req.OldPIN == "" {
		err = h.services.SetTransactionPin(c.Request.Context(), userID, req.PIN)
	} else {
		err = h.services.ChangeTransactionPin(c.Request.Context(), userID, req.OldPIN, req.PIN)
	}
	if err != nil {
		handleUseCaseError(c, err)
		return
	}
	sendSuccess(c, http.StatusOK, SuccessResponse{Message: "transaction pin updated"})
}

type updateBankRequest struct {
	AccountNumber string `json:"account_number" binding:"required"`
	AccountName   string `json:"account_name" binding:"required"`
	BankName      string `json:"bank_name" binding:"required"`
	BankCode      string `json:"bank_code" binding:"required"`
	Signature     string `json:"signature" binding:"required"`
}

// UpdateBank godoc
// @Summary Bind a resolved bank account to the caller's wallet
// @Tags wallet
// @Accept json
// @Produce json
// @Param body body updateBankRequest true "Bank details"
// @Success 200 {object} SuccessResponse
// @Failure 400 {object} ErrorResponse
// @Router /v1/wallet/update-bank [post]
func (h *WalletHandler) UpdateBank(c *gin.Context) {
	userID := currentUser(c)

	var req updateBankRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		sendError(c, http.StatusBadRequest, "invalid request body", err)
		return
	}

	err := h.services.SaveBankDetails(c.Request.Context(), usecase.SaveBankDetailsInput{
		UserID:        userID,
		AccountNumber: req.AccountNumber,
		AccountName:   req.AccountName,
		BankName:      req.BankName,
		BankCode:      req.BankCode,
		Signature:     req.Signature,
	})
	if err != nil {
		handleUseCaseError(c, err)
		return
	}
	sendSuccess(c, http.StatusOK, SuccessResponse{Message: "bank details updated"})
}

type withdrawRequest struct {
	ChargeSettingID  string `json:"charge_setting_id" binding:"required"`
	VersionID        string `json:"version_id" binding:"required"`
	VersionNumber    int    `json:"version_number" binding:"required"`
	Amount           string `json:"amount" binding:"required"`
	CalculatedCharge string `json:"calculated_charge" binding:"required"`
	Signature        string `json:"signature" binding:"required"`
}

// Withdraw godoc
// @Summary Submit a withdrawal against a signed charge quote
// @Tags wallet
// @Accept json
// @Produce json
// @Param body body withdrawRequest true "Withdrawal request"
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} ErrorResponse
// @Router /v1/wallet/withdraw [post]
func (h *WalletHandler) Withdraw(c *gin.Context) {
	userID := currentUser(c)

	var req withdrawRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		sendError(c, http.StatusBadRequest, "invalid request body", err)
		return
	}

	amount, err := money.FromString(req.Amount)
	if err != nil {
		sendError(c, http.StatusBadRequest, "amount is not a valid decimal amount", err)
		return
	}
	calculatedCharge, err := money.FromString(req.CalculatedCharge)
	if err != nil {
		sendError(c, http.StatusBadRequest, "calculated_charge is not a valid decimal amount", err)
		return
	}

	txn, err := h.services.SubmitWithdrawal(c.Request.Context(), usecase.SubmitWithdrawalInput{
		UserID:           userID,
		ChargeSettingID:  req.ChargeSettingID,
		VersionID:        req.VersionID,
		VersionNumber:    req.VersionNumber,
		Amount:           amount,
		CalculatedCharge: calculatedCharge,
		Signature:        req.Signature,
	})
	if err != nil {
		handleUseCaseError(c, err)
		return
	}
	sendSuccess(c, http.StatusOK, gin.H{"reference": txn.Reference, "status": txn.SettlementStatus})
}

type resolveAccountResponse struct {
	AccountNumber string `json:"account_number"`
	AccountName   string `json:"account_name"`
	BankCode      string `json:"bank_code"`
	Signature     string `json:"signature"`
}

// ResolvePersonalAccount godoc
// @Summary Resolve a bank account number to its holder name
// @Tags wallet
// @Produce json
// @Param account_number query string true "Account number"
// @Param bank_code query string true "Bank code"
// @Success 200 {object} resolveAccountResponse
// @Failure 400 {object} ErrorResponse
// @Router /v1/wallet/resolve-personal-account [get]
func (h *WalletHandler) ResolvePersonalAccount(c *gin.Context) {
	accountNumber := c.Query("account_number")
	bankCode := c.Query("bank_code")
	if accountNumber == "" || bankCode == "" {
		sendError(c, http.StatusBadRequest, "account_number and bank_code are required", nil)
		return
	}

	resolved, err := h.services.ResolvePersonalAccount(c.Request.Context(), accountNumber, bankCode)
	if err != nil {
		handleUseCaseError(c, err)
		return
	}
	sendSuccess(c, http.StatusOK, resolveAccountResponse{
		AccountNumber: resolved.AccountNumber,
		AccountName:   resolved.AccountName,
		BankCode:      resolved.BankCode,
		Signature:     resolved.Signature,
	})
}

// Banks godoc
// @Summary List supported banks
// @Tags wallet
// @Produce json
// @Success 200 {array} usecase.BankAccount
// @Failure 500 {object} ErrorResponse
// @Router /v1/wallet/banks [get]
func (h *WalletHandler) Banks(c *gin.Context) {
	banks, err := h.services.ListBanks(c.Request.Context())
	if err != nil {
		handleUseCaseError(c, err)
		return
	}
	sendSuccess(c, http.StatusOK, banks)
}
