package utils

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"health-records-platform/internal/rag"
)

// ErrorResponse represents a standardized error response
type ErrorResponse struct {
	ErrorCode string      `json:"error_code"`
	Message   string      `json:"message"`
	Details   interface{} `json:"details,omitempty"`
}

// RespondWithError sends a standardized error response
func RespondWithError(c *gin.Context, statusCode int, errorCode, message string, details interface{}) {
	c.JSON(statusCode, ErrorResponse{
		ErrorCode: errorCode,
		Message:   message,
		Details:   details,
	})
}

// RespondWithBadRequest sends a 400 Bad Request error
func RespondWithBadRequest(c *gin.Context, message string, details interface{}) {
	RespondWithError(c, http.StatusBadRequest, "bad_request", message, details)
}

// RespondWithUnauthorized sends a 401 Unauthorized error
func RespondWithUnauthorized(c *gin.Context, message string) {
	RespondWithError(c, http.StatusUnauthorized, "unauthorized", message, nil)
}

// RespondWithForbidden sends a 403 Forbidden error
func RespondWithForbidden(c *gin.Context, message string) {
	RespondWithError(c, http.StatusForbidden, "forbidden", message, nil)
}

// RespondWithNotFound sends a 404 Not Found error
func RespondWithNotFound(c *gin.Context, message string) {
	RespondWithError(c, http.StatusNotFound, "not_found", message, nil)
}

// RespondWithInternalError sends a 500 Internal Server Error
func RespondWithInternalError(c *gin.Context, message string, details interface{}) {
	RespondWithError(c, http.StatusInternalServerError, "internal_error", message, details)
}

// RespondWithDomainError maps a retrieval-core error to the standard
// response shape. The internal denial clause is stashed on the gin context
// for the audit middleware but never serialized to the caller.
func RespondWithDomainError(c *gin.Context, err error) {
	var domainErr *rag.Error
	if !errors.As(err, &domainErr) {
		RespondWithInternalError(c, "internal server error", nil)
		return
	}
	if clause := domainErr.Clause; clause != "" {
		c.Set("denial_clause", clause)
	}
	c.Set("error_code", domainErr.Code)
	RespondWithError(c, rag.HTTPStatus(err), domainErr.Code, domainErr.Message, nil)
}

