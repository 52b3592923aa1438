package handlers

import (
	"net/http"

	"github.com/cyphera/settlement-engine/internal/apperror"
	"github.com/cyphera/settlement-engine/internal/logger"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// ErrorResponse is the standard JSON error body.
type ErrorResponse struct {
	Error string `json:"error"`
}

// SuccessResponse is a bare message body for operations with no payload.
type SuccessResponse struct {
	Message string `json:"message"`
}

// sendError logs and writes an error response. If err is an *apperror.Error
// its Kind determines the status code (spec §5 error taxonomy); any other
// error (or none) uses fallbackStatus.
func sendError(c *gin.Context, fallbackStatus int, message string, err error) {
	status := fallbackStatus
	if appErr, ok := err.(*apperror.Error); ok {
		status = appErr.HTTPStatus()
		message = appErr.Error()
	}
	logger.Error(message,
		zap.Error(err),
		zap.String("path", c.Request.URL.Path),
		zap.String("method", c.Request.Method),
	)
	c.JSON(status, ErrorResponse{Error: message})
}

// handleUseCaseError maps a use-case error straight to its apperror status,
// falling back to 500 for anything uncategorized (e.g. a repository error).
func handleUseCaseError(c *gin.Context, err error) {
	sendError(c, http.StatusInternalServerError, err.Error(), err)
}

// sendSuccess writes a success response.
func sendSuccess(c *gin.Context, statusCode int, data interface{}) {
	c.JSON(statusCode, data)
}

// sendPaginatedSuccess wraps a page of items with pagination metadata
// (spec §6 "GET /v1/wallet/transactions?page&page_size").
func sendPaginatedSuccess(c *gin.Context, statusCode int, data interface{}, page, pageSize, total int) {
	totalPages := 0
	if pageSize > 0 {
		totalPages = (total + pageSize - 1) / pageSize
	}
	c.JSON(statusCode, gin.H{
		"data": data,
		"pagination": gin.H{
			"current_page": page,
			"per_page":     pageSize,
			"total_items":  total,
			"total_pages":  totalPages,
		},
	})
}
