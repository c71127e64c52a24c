package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJWTManager(t *testing.T) {
	manager := NewJWTManager("test-secret", time.Hour)

	token, expiresAt, err := manager.Generate("operator")
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Hour), expiresAt, 5*time.Second)

	claims, err := manager.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "operator", claims.Username)
	assert.Equal(t, "operator", claims.Subject)
	assert.Equal(t, Issuer, claims.Issuer)
	assert.NotEmpty(t, claims.ID)
}

func TestJWTManagerRejects(t *testing.T) {
	manager := NewJWTManager("test-secret", time.Hour)

	t.Run("expired", func(t *testing.T) {
		expired := NewJWTManager("test-secret", -time.Minute)
		token, _, err := expired.Generate("operator")
		require.NoError(t, err)

		_, err = manager.Verify(token)
		assert.ErrorIs(t, err, ErrExpiredToken)
	})

	t.Run("wrong secret", func(t *testing.T) {
		token, _, err := NewJWTManager("other-secret", time.Hour).Generate("operator")
		require.NoError(t, err)

		_, err = manager.Verify(token)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("foreign issuer", func(t *testing.T) {
		token := jwt.NewWithClaims(jwt.SigningMethodHS256, &Claims{
			Username: "operator",
			RegisteredClaims: jwt.RegisteredClaims{
				Issuer:    "someone-else",
				ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
			},
		})
		signed, err := token.SignedString([]byte("test-secret"))
		require.NoError(t, err)

		_, err = manager.Verify(signed)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("garbage", func(t *testing.T) {
		_, err := manager.Verify("not-a-token")
		assert.ErrorIs(t, err, ErrInvalidToken)
	})
}

func TestServiceLogin(t *testing.T) {
	hash, err := HashPassword("correct horse")
	require.NoError(t, err)
	manager := NewJWTManager("test-secret", time.Hour)
	svc := NewService("admin", hash, manager, nil)

	t.Run("valid credentials", func(t *testing.T) {
		resp, err := svc.Login(&LoginRequest{Username: "admin", Password: "correct horse"})
		require.NoError(t, err)
		assert.Equal(t, "admin", resp.Username)

		claims, err := svc.ValidateToken(resp.Token)
		require.NoError(t, err)
		assert.Equal(t, "admin", claims.Username)
	})

	t.Run("wrong password", func(t *testing.T) {
		_, err := svc.Login(&LoginRequest{Username: "admin", Password: "battery staple"})
		assert.ErrorIs(t, err, ErrInvalidCredentials)
	})

	t.Run("wrong user", func(t *testing.T) {
		_, err := svc.Login(&LoginRequest{Username: "root", Password: "correct horse"})
		assert.ErrorIs(t, err, ErrInvalidCredentials)
	})

	t.Run("nil request", func(t *testing.T) {
		_, err := svc.Login(nil)
		assert.Error(t, err)
	})

	t.Run("no hash configured", func(t *testing.T) {
		_, err := NewService("admin", "", manager, nil).Login(&LoginRequest{Username: "admin", Password: "x"})
		assert.ErrorIs(t, err, ErrLoginDisabled)
	})
}

func TestJWTMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	manager := NewJWTManager("test-secret", time.Hour)
	valid, _, err := manager.Generate("admin")
	require.NoError(t, err)

	router := gin.New()
	router.GET("/protected", JWTMiddleware(manager), func(c *gin.Context) {
		claims, ok := GetClaims(c)
		require.True(t, ok)
		c.JSON(http.StatusOK, gin.H{"user": claims.Username})
	})

	tests := []struct {
		name   string
		header string
		status int
	}{
		{"missing header", "", http.StatusUnauthorized},
		{"not bearer", "Basic abc", http.StatusUnauthorized},
		{"invalid token", "Bearer nope", http.StatusUnauthorized},
		{"valid token", "Bearer " + valid, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/protected", nil)
			if tt.header != "" {
				req.Header.Set(AuthorizationHeader, tt.header)
			}
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)
			assert.Equal(t, tt.status, w.Code)
		})
	}
}

func TestServiceVerifyRequiresOperator(t *testing.T) {
	manager := NewJWTManager("test-secret", time.Hour)
	svc := NewService("admin", "", manager, nil)

	stranger, _, err := manager.Generate("someone")
	require.NoError(t, err)
	_, err = svc.Verify(stranger)
	assert.ErrorIs(t, err, ErrInvalidToken)

	operator, _, err := manager.Generate("admin")
	require.NoError(t, err)
	claims, err := svc.Verify(operator)
	require.NoError(t, err)
	assert.Equal(t, "admin", claims.Username)
}

func TestJWTMiddlewareChallenge(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.GET("/protected", JWTMiddleware(NewJWTManager("test-secret", time.Hour)), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set(AuthorizationHeader, "Bearer ")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, `Bearer realm="vcompute"`, w.Header().Get("WWW-Authenticate"))
	assert.Contains(t, w.Body.String(), "Bearer token required")
}

func TestJWTManagerEmptySecret(t *testing.T) {
	assert.ErrorIs(t, ValidateSecret(""), ErrEmptySecret)
	assert.NoError(t, ValidateSecret("test-secret"))

	empty := NewJWTManager("", time.Hour)
	_, _, err := empty.Generate("admin")
	assert.ErrorIs(t, err, ErrEmptySecret)

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, &Claims{
		Username: "admin",
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    Issuer,
			Subject:   "admin",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})
	signed, err := token.SignedString([]byte(""))
	require.NoError(t, err)

	_, err = empty.Verify(signed)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = NewService("admin", "", empty, nil).Verify(signed)
	assert.ErrorIs(t, err, ErrInvalidToken)
}
