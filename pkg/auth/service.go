package auth

import (
	"crypto/subtle"
	"errors"
	"log/slog"
	"time"

	"golang.org/x/crypto/bcrypt"
)

var (
	// ErrInvalidCredentials is returned when login credentials are incorrect
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrLoginDisabled is returned when no operator password hash is configured
	ErrLoginDisabled = errors.New("login is not configured")
)

// Service authenticates the single configured operator
type Service struct {
	username     string
	passwordHash []byte
	jwtManager   *JWTManager
	logger       *slog.Logger
}

// NewService creates an authentication service for the operator with the
// given username and bcrypt password hash
func NewService(username, passwordHash string, jwtManager *JWTManager, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		username:     username,
		passwordHash: []byte(passwordHash),
		jwtManager:   jwtManager,
		logger:       logger,
	}
}

// LoginRequest represents the data required for operator authentication
type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// LoginResponse contains the authentication token returned after successful login
type LoginResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	Username  string    `json:"username"`
}

// HashPassword returns the bcrypt hash to configure as auth.admin_password_hash
func HashPassword(password string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}

// Login checks the credentials against the configured operator and returns a JWT token if they match
func (s *Service) Login(req *LoginRequest) (*LoginResponse, error) {
	if req == nil {
		return nil, errors.New("login request cannot be nil")
	}
	if len(s.passwordHash) == 0 {
		s.logger.Warn("Login attempted without a configured password hash", "username", req.Username)
		return nil, ErrLoginDisabled
	}

	userMatches := subtle.ConstantTimeCompare([]byte(req.Username), []byte(s.username)) == 1
	if err := bcrypt.CompareHashAndPassword(s.passwordHash, []byte(req.Password)); err != nil || !userMatches {
		s.logger.Info("Rejected login", "username", req.Username)
		return nil, ErrInvalidCredentials
	}

	token, expiresAt, err := s.jwtManager.Generate(s.username)
	if err != nil {
		s.logger.Error("Failed to generate token", "username", req.Username, "error", err)
		return nil, err
	}

	return &LoginResponse{
		Token:     token,
		ExpiresAt: expiresAt,
		Username:  s.username,
	}, nil
}

// ValidateToken verifies a JWT token and returns the parsed claims if valid
func (s *Service) ValidateToken(tokenString string) (*Claims, error) {
	return s.Verify(tokenString)
}

// Verify accepts only tokens issued to the configured operator
func (s *Service) Verify(tokenString string) (*Claims, error) {
	claims, err := s.jwtManager.Verify(tokenString)
	if err != nil {
		return nil, err
	}
	if subtle.ConstantTimeCompare([]byte(claims.Username), []byte(s.username)) != 1 {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
