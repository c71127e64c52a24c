package handlers

import (
	"encoding/base64"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mhrivnak/vcompute/pkg/auth"
)

func setupSessionTest(t *testing.T, passwordHash string) (*gin.Engine, *auth.JWTManager) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	manager := auth.NewJWTManager("test-secret", time.Hour)
	handler := NewSessionHandlers(auth.NewService("admin", passwordHash, manager, slog.Default()), slog.Default())

	router := gin.New()
	router.POST("/api/v1/sessions", handler.CreateSession)
	return router, manager
}

func TestCreateSession(t *testing.T) {
	hash, err := auth.HashPassword("s3cret")
	require.NoError(t, err)
	router, manager := setupSessionTest(t, hash)

	t.Run("json body", func(t *testing.T) {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, jsonRequest(t, http.MethodPost, "/api/v1/sessions", gin.H{
			"username": "admin", "password": "s3cret",
		}))

		require.Equal(t, http.StatusOK, w.Code)
		token := decodeBody(t, w)["token"].(string)
		claims, err := manager.Verify(token)
		require.NoError(t, err)
		assert.Equal(t, "admin", claims.Username)
		assert.True(t, strings.HasPrefix(w.Header().Get("Authorization"), "Bearer "))
	})

	t.Run("basic auth", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/sessions", nil)
		req.Header.Set("Authorization", "Basic "+base64.StdEncoding.EncodeToString([]byte("admin:s3cret")))
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("wrong password", func(t *testing.T) {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, jsonRequest(t, http.MethodPost, "/api/v1/sessions", gin.H{
			"username": "admin", "password": "guess",
		}))

		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Equal(t, "Invalid username or password", decodeBody(t, w)["message"])
	})

	t.Run("malformed basic auth", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/sessions", nil)
		req.Header.Set("Authorization", "Basic !!!")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("missing body", func(t *testing.T) {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/v1/sessions", nil))

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestCreateSessionLoginDisabled(t *testing.T) {
	router, _ := setupSessionTest(t, "")

	w := httptest.NewRecorder()
	router.ServeHTTP(w, jsonRequest(t, http.MethodPost, "/api/v1/sessions", gin.H{
		"username": "admin", "password": "anything",
	}))

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}
