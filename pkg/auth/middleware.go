package auth

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

const (
	// AuthorizationHeader is the HTTP header name for authorization tokens
	AuthorizationHeader = "Authorization"
	// BearerPrefix is the expected prefix for Bearer tokens in the Authorization header
	BearerPrefix = "Bearer "
	// UserContextKey is the Gin context key for storing the username
	UserContextKey = "user"
	// ClaimsContextKey is the Gin context key for storing JWT claims
	ClaimsContextKey = "claims"
)

// TokenVerifier checks a bearer token and returns its claims.
// *JWTManager and *Service both satisfy it.
type TokenVerifier interface {
	Verify(token string) (*Claims, error)
}

func unauthorized(c *gin.Context, message string) {
	c.Header("WWW-Authenticate", `Bearer realm="`+Issuer+`"`)
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": message})
}

// JWTMiddleware rejects requests without a valid operator bearer token and
// stores the verified claims on the context
func JWTMiddleware(verifier TokenVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, found := strings.CutPrefix(c.GetHeader(AuthorizationHeader), BearerPrefix)
		switch {
		case c.GetHeader(AuthorizationHeader) == "":
			unauthorized(c, "Authorization header required")
			return
		case !found || token == "":
			unauthorized(c, "Bearer token required")
			return
		}

		claims, err := verifier.Verify(token)
		switch {
		case errors.Is(err, ErrExpiredToken):
			unauthorized(c, "Token has expired")
			return
		case errors.Is(err, ErrInvalidToken):
			unauthorized(c, "Invalid token")
			return
		case err != nil:
			unauthorized(c, "Token verification failed")
			return
		}

		c.Set(ClaimsContextKey, claims)
		c.Set(UserContextKey, claims.Username)
		c.Next()
	}
}

// GetClaims extracts JWT claims from the Gin context if they exist
func GetClaims(c *gin.Context) (*Claims, bool) {
	claims, exists := c.Get(ClaimsContextKey)
	if !exists {
		return nil, false
	}
	userClaims, ok := claims.(*Claims)
	return userClaims, ok
}
