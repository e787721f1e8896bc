package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/paygrid-payments-engine/internal/api/middleware"
	"github.com/paygrid-payments-engine/internal/domain/refund"
	"github.com/paygrid-payments-engine/internal/domain/transaction"
	"github.com/paygrid-payments-engine/internal/ledger"
)

// Response represents a standard API response
type Response struct {
	Data          interface{} `json:"data,omitempty"`
	Error         *ErrorInfo  `json:"error,omitempty"`
	CorrelationID string      `json:"correlation_id,omitempty"`
	Meta          *MetaInfo   `json:"meta,omitempty"`
}

// ErrorInfo represents error information in a response
type ErrorInfo struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// MetaInfo represents pagination metadata in a response
type MetaInfo struct {
	Page       int   `json:"page,omitempty"`
	PerPage    int   `json:"per_page,omitempty"`
	TotalItems int64 `json:"total_items,omitempty"`
}

// RespondWithData sends a JSON response with data
func RespondWithData(c *gin.Context, statusCode int, data interface{}) {
	c.JSON(statusCode, &Response{
		Data:          data,
		CorrelationID: middleware.GetCorrelationID(c),
	})
}

// RespondWithError sends a JSON response with an error
func RespondWithError(c *gin.Context, statusCode int, code, message string) {
	c.JSON(statusCode, &Response{
		Error:         &ErrorInfo{Code: code, Message: message},
		CorrelationID: middleware.GetCorrelationID(c),
	})
}

// RespondWithPaginatedData sends a JSON response with paginated data
func RespondWithPaginatedData(c *gin.Context, data interface{}, page, perPage int, totalItems int64) {
	c.JSON(http.StatusOK, &Response{
		Data:          data,
		CorrelationID: middleware.GetCorrelationID(c),
		Meta: &MetaInfo{
			Page:       page,
			PerPage:    perPage,
			TotalItems: totalItems,
		},
	})
}

// RespondOK sends a 200 OK response with data
func RespondOK(c *gin.Context, data interface{}) {
	RespondWithData(c, http.StatusOK, data)
}

// RespondCreated sends a 201 Created response with data
func RespondCreated(c *gin.Context, data interface{}) {
	RespondWithData(c, http.StatusCreated, data)
}

// RespondBadRequest sends a 400 Bad Request response with an error
func RespondBadRequest(c *gin.Context, message string) {
	RespondWithError(c, http.StatusBadRequest, "BAD_REQUEST", message)
}

// RespondNotFound sends a 404 Not Found response with an error
func RespondNotFound(c *gin.Context, message string) {
	if message == "" {
		message = "Resource not found"
	}
	RespondWithError(c, http.StatusNotFound, "NOT_FOUND", message)
}

// RespondConflict sends a 409 Conflict response with an error
func RespondConflict(c *gin.Context, message string) {
	RespondWithError(c, http.StatusConflict, "CONFLICT", message)
}

// RespondInternalError sends a 500 Internal Server Error response
func RespondInternalError(c *gin.Context) {
	RespondWithError(c, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "An internal server error occurred")
}

// RespondServiceError maps a lifecycle error onto the API contract. The
// taxonomy is deliberate: validation and unknown references are the
// caller's fault, duplicates and consistency refusals are conflicts, and
// provider trouble is a gateway problem the caller may retry.
func RespondServiceError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, transaction.ErrNotFound{}), errors.Is(err, refund.ErrClaimNotFound{}):
		RespondNotFound(c, err.Error())
	case errors.Is(err, ledger.ErrValidation):
		RespondBadRequest(c, err.Error())
	case errors.Is(err, ledger.ErrDuplicate):
		RespondConflict(c, err.Error())
	case errors.Is(err, ledger.ErrConsistency):
		RespondWithError(c, http.StatusConflict, "CONSISTENCY_ERROR", err.Error())
	case errors.Is(err, ledger.ErrProvider):
		RespondWithError(c, http.StatusBadGateway, "PROVIDER_ERROR", err.Error())
	default:
		RespondInternalError(c)
	}
}
