package handlers

import (
	"encoding/base64"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/mhrivnak/vcompute/pkg/auth"
)

// Authenticator exchanges operator credentials for a token
type Authenticator interface {
	Login(req *auth.LoginRequest) (*auth.LoginResponse, error)
}

// SessionHandlers issues API tokens
type SessionHandlers struct {
	authSvc Authenticator
	logger  *slog.Logger
}

// NewSessionHandlers creates session handlers
func NewSessionHandlers(authSvc Authenticator, logger *slog.Logger) *SessionHandlers {
	if logger == nil {
		logger = slog.Default()
	}
	return &SessionHandlers{authSvc: authSvc, logger: logger}
}

// CreateSession handles POST /api/v1/sessions. Credentials are taken from
// Basic authentication when present and from the JSON body otherwise.
func (h *SessionHandlers) CreateSession(c *gin.Context) {
	var req auth.LoginRequest
	if strings.HasPrefix(c.GetHeader(auth.AuthorizationHeader), "Basic ") {
		username, password, err := parseBasicAuth(c.GetHeader(auth.AuthorizationHeader))
		if err != nil {
			c.JSON(http.StatusUnauthorized, NewAPIError(http.StatusUnauthorized, "Unauthorized", err.Error()))
			return
		}
		req = auth.LoginRequest{Username: username, Password: password}
	} else if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body", err.Error())
		return
	}

	resp, err := h.authSvc.Login(&req)
	switch {
	case errors.Is(err, auth.ErrInvalidCredentials):
		c.JSON(http.StatusUnauthorized, NewAPIError(http.StatusUnauthorized, "Unauthorized", "Invalid username or password"))
		return
	case errors.Is(err, auth.ErrLoginDisabled):
		c.JSON(http.StatusServiceUnavailable, NewAPIError(http.StatusServiceUnavailable, "Service Unavailable", "Login is not configured"))
		return
	case err != nil:
		h.logger.Error("Failed to create session", "username", req.Username, "error", err)
		c.JSON(http.StatusInternalServerError, NewAPIError(http.StatusInternalServerError, "Internal Server Error", "Failed to create session"))
		return
	}

	c.Header(auth.AuthorizationHeader, auth.BearerPrefix+resp.Token)
	c.JSON(http.StatusOK, resp)
}

// parseBasicAuth extracts username and password from a Basic Authentication header
func parseBasicAuth(header string) (string, string, error) {
	decoded, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(header, "Basic "))
	if err != nil {
		return "", "", errors.New("invalid base64 encoding")
	}

	username, password, ok := strings.Cut(string(decoded), ":")
	if !ok {
		return "", "", errors.New("invalid credentials format")
	}
	return username, password, nil
}
