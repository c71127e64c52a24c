package handlers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mhrivnak/vcompute/pkg/compute"
	"github.com/mhrivnak/vcompute/pkg/naming"
	"github.com/mhrivnak/vcompute/pkg/retry"
	"github.com/mhrivnak/vcompute/pkg/tasks"
	"github.com/mhrivnak/vcompute/pkg/vcloud"
)

// APIError represents a structured API error response
type APIError struct {
	Code    int    `json:"code"`
	Type    string `json:"error"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

// Error implements the error interface
func (e *APIError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Type, e.Message, e.Details)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// NewAPIError creates a new API error response
func NewAPIError(code int, errorType string, message string, details ...string) *APIError {
	apiErr := &APIError{
		Code:    code,
		Type:    errorType,
		Message: message,
	}
	if len(details) > 0 {
		apiErr.Details = details[0]
	}
	return apiErr
}

// StatusFor maps a service error onto an HTTP status code
func StatusFor(err error) int {
	var taskErr *tasks.TaskFailedError
	var apiErr *vcloud.Error
	switch {
	case errors.Is(err, compute.ErrInvalidRequest), errors.Is(err, naming.ErrEmptyName):
		return http.StatusBadRequest
	case vcloud.IsNotFound(err):
		return http.StatusNotFound
	case vcloud.IsUnauthorized(err):
		return http.StatusForbidden
	case errors.Is(err, vcloud.ErrOperationNotSupported):
		return http.StatusNotImplemented
	case errors.Is(err, retry.ErrExhausted), vcloud.IsConflictState(err):
		return http.StatusConflict
	case errors.As(err, &taskErr):
		return http.StatusBadGateway
	case errors.As(err, &apiErr) && vcloud.IsTransient(err):
		return http.StatusBadGateway
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// respondError writes the error response for err. Server side failures are
// logged with the resource they concern.
func respondError(c *gin.Context, logger *slog.Logger, message string, err error, attrs ...any) {
	code := StatusFor(err)
	if code >= http.StatusInternalServerError {
		logger.Error(message, append(attrs, "error", err)...)
	}
	c.JSON(code, NewAPIError(code, http.StatusText(code), message, err.Error()))
}

func badRequest(c *gin.Context, message string, details ...string) {
	c.JSON(http.StatusBadRequest, NewAPIError(http.StatusBadRequest, "Bad Request", message, details...))
}
