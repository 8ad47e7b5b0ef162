// Package auth verifies the bearer credentials presented during the
// WebSocket handshake. The relay never authorizes anything beyond room
// membership; it only needs to know who is on the other end of a connection.
package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v4"

	"github.com/duochat/relay/internal/config"
)

var (
	// ErrTokenExpired indicates that the token has expired
	ErrTokenExpired = errors.New("token expired")

	// ErrInvalidToken indicates that the token is invalid
	ErrInvalidToken = errors.New("invalid token")

	// ErrMissingToken indicates that no token was presented
	ErrMissingToken = errors.New("missing token")
)

// Identity is the result of verifying a credential.
type Identity struct {
	UserID int64
	Role   string
}

// Claims represents JWT claims
type Claims struct {
	UserID int64  `json:"userId"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

// Verifier turns a bearer credential into an identity or fails.
type Verifier interface {
	Verify(token string) (Identity, error)
}

// Service verifies and mints HS256 tokens from a shared secret.
type Service struct {
	secret     []byte
	expiration time.Duration
}

// NewService creates a new authentication service
func NewService(cfg config.AuthConfig) *Service {
	return &Service{
		secret:     []byte(cfg.JWTSecret),
		expiration: cfg.JWTExpiration,
	}
}

// GenerateToken generates a new JWT token for a user
func (s *Service) GenerateToken(userID int64, role string) (string, error) {
	now := time.Now()

	claims := &Claims{
		UserID: userID,
		Role:   role,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(s.expiration)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    "duochat-relay",
			Subject:   fmt.Sprintf("%d", userID),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	tokenString, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}

	return tokenString, nil
}

// Verify validates a bearer credential and returns the bound identity. A
// "Bearer " prefix is tolerated, matching what browser clients send.
func (s *Service) Verify(tokenString string) (Identity, error) {
	tokenString = strings.TrimPrefix(tokenString, "Bearer ")
	if tokenString == "" {
		return Identity{}, ErrMissingToken
	}

	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secret, nil
	})

	if err != nil {
		if ve, ok := err.(*jwt.ValidationError); ok {
			if ve.Errors&jwt.ValidationErrorExpired != 0 {
				return Identity{}, ErrTokenExpired
			}
		}
		return Identity{}, ErrInvalidToken
	}

	if !token.Valid || claims.UserID == 0 {
		return Identity{}, ErrInvalidToken
	}

	role := claims.Role
	if role == "" {
		role = "USER"
	}

	return Identity{UserID: claims.UserID, Role: role}, nil
}
