package handlers

import (
	"net/http"

	"github.com/cyphera/settlement-engine/internal/domain/transaction"
	"github.com/cyphera/settlement-engine/internal/usecase"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// AdminHandler serves the operator-facing manual-withdrawal resolution
// endpoint (spec §4.8 "UpdateTransactionStatus (admin)").
type AdminHandler struct {
	services *usecase.Services
}

func NewAdminHandler(services *usecase.Services) *AdminHandler {
	return &AdminHandler{services: services}
}

type updateTransactionStatusRequest struct {
	Status string `json:"status" binding:"required"`
	Reason string `json:"reason"`
}

// UpdateTransactionStatus godoc
// @Summary Resolve a pending manual-mode withdrawal
// @Tags admin
// @Accept json
// @Produce json
// @Param reference path string true "Transaction reference"
// @Param body body updateTransactionStatusRequest true "Status update"
// @Success 200 {object} SuccessResponse
// @Failure 400 {object} ErrorResponse
// @Router /v1/admin/transactions/{reference}/status [post]
func (h *AdminHandler) UpdateTransactionStatus(c *gin.Context) {
	reference, err := uuid.Parse(c.Param("reference"))
	if err != nil {
		sendError(c, http.StatusBadRequest, "reference is not a valid identifier", err)
		return
	}

	var req updateTransactionStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		sendError(c, http.StatusBadRequest, "invalid request body", err)
		return
	}

	status := transaction.Status(req.Status)
	if status != transaction.StatusCompleted && status != transaction.StatusFailed {
		sendError(c, http.StatusBadRequest, "status must be completed or failed", nil)
		return
	}

	err = h.services.UpdateTransactionStatus(c.Request.Context(), usecase.UpdateTransactionStatusInput{
		Reference: reference,
		Status:    status,
		Reason:    req.Reason,
	})
	if err != nil {
		handleUseCaseError(c, err)
		return
	}
	sendSuccess(c, http.StatusOK, SuccessResponse{Message: "transaction status updated"})
}
