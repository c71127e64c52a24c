package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// RequestIDHeader carries the id assigned to every request
const RequestIDHeader = "X-Request-ID"

// corsMiddleware handles Cross-Origin Resource Sharing (CORS)
func (s *Server) corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Content-Length, Accept-Encoding, Authorization, "+RequestIDHeader)
		c.Header("Access-Control-Expose-Headers", "Content-Length, "+RequestIDHeader)

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// requestIDMiddleware keeps a caller supplied request id or assigns a new one
func (s *Server) requestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(RequestIDHeader)
		if _, err := uuid.Parse(id); err != nil {
			id = uuid.NewString()
		}
		c.Set("requestID", id)
		c.Header(RequestIDHeader, id)
		c.Next()
	}
}

// requestLogger logs every completed request
func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Info("Handled request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"duration", time.Since(start),
			"requestID", c.GetString("requestID"))
	}
}

// timeoutMiddleware bounds the request context of long running operations.
// A zero timeout leaves the context untouched.
func timeoutMiddleware(timeout time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		if timeout <= 0 {
			c.Next()
			return
		}
		ctx, cancel := context.WithTimeout(c.Request.Context(), timeout)
		defer cancel()
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// errorHandlerMiddleware provides consistent error handling
func (s *Server) errorHandlerMiddleware() gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered interface{}) {
		s.logger.Error("Recovered from panic", "path", c.Request.URL.Path, "panic", recovered)
		if err, ok := recovered.(string); ok {
			SendError(c, NewAPIError(http.StatusInternalServerError, "Internal Server Error", "An unexpected error occurred", err))
		} else {
			SendError(c, NewAPIError(http.StatusInternalServerError, "Internal Server Error", "An unexpected error occurred"))
		}
		c.Abort()
	})
}

// APIError represents a structured API error response
type APIError struct {
	Code    int    `json:"code"`
	Error   string `json:"error"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

// NewAPIError creates a new API error response
func NewAPIError(code int, error string, message string, details ...string) *APIError {
	apiErr := &APIError{
		Code:    code,
		Error:   error,
		Message: message,
	}
	if len(details) > 0 {
		apiErr.Details = details[0]
	}
	return apiErr
}

// SendError sends a structured error response
func SendError(c *gin.Context, apiErr *APIError) {
	c.JSON(apiErr.Code, apiErr)
}

// SendSuccess sends a structured success response
func SendSuccess(c *gin.Context, code int, data interface{}) {
	c.JSON(code, gin.H{
		"success": true,
		"data":    data,
	})
}
