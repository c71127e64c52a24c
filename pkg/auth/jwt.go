package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	// ErrInvalidToken is returned when a JWT token is malformed or has invalid signature
	ErrInvalidToken = errors.New("invalid token")
	// ErrExpiredToken is returned when a JWT token has passed its expiration time
	ErrExpiredToken = errors.New("token has expired")
	// ErrEmptySecret is returned when a JWT manager has no signing key
	ErrEmptySecret = errors.New("jwt secret is empty")
)

// Issuer is recorded in every token this service signs
const Issuer = "vcompute"

// Claims represents the JWT claims of an authenticated operator
type Claims struct {
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// JWTManager handles JWT token generation and verification for authentication
type JWTManager struct {
	secretKey     string
	tokenDuration time.Duration
}

// NewJWTManager creates a new JWT manager with the specified secret key and
// token duration. A manager with an empty key refuses to sign or verify.
func NewJWTManager(secretKey string, tokenDuration time.Duration) *JWTManager {
	return &JWTManager{
		secretKey:     secretKey,
		tokenDuration: tokenDuration,
	}
}

// ValidateSecret rejects an empty signing key
func ValidateSecret(secretKey string) error {
	if secretKey == "" {
		return ErrEmptySecret
	}
	return nil
}

// TokenDuration returns how long generated tokens stay valid
func (manager *JWTManager) TokenDuration() time.Duration {
	return manager.tokenDuration
}

// Generate creates a new JWT token for the specified operator
func (manager *JWTManager) Generate(username string) (string, time.Time, error) {
	if err := ValidateSecret(manager.secretKey); err != nil {
		return "", time.Time{}, err
	}
	now := time.Now()
	expiresAt := now.Add(manager.tokenDuration)
	claims := &Claims{
		Username: username,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    Issuer,
			Subject:   username,
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(manager.secretKey))
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expiresAt, nil
}

// Verify validates a JWT token and returns the parsed claims if valid
func (manager *JWTManager) Verify(tokenString string) (*Claims, error) {
	if manager.secretKey == "" {
		return nil, ErrInvalidToken
	}
	token, err := jwt.ParseWithClaims(
		tokenString,
		&Claims{},
		func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, ErrInvalidToken
			}
			return []byte(manager.secretKey), nil
		},
		jwt.WithIssuer(Issuer),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}

	return claims, nil
}
