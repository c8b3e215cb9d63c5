// Package core - Core Business Logic
// Token verification for callers authenticated by the external auth service,
// plus the gamification engine itself.
package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v4"

	"tila/pkg/models"
)

var ErrInvalidToken = fmt.Errorf("invalid token: %w", models.ErrUnauthorized)

// AuthService verifies bearer tokens. Issuing exists for the CLI and tests;
// production tokens come from the auth service sharing the secret.
type AuthService interface {
	ValidateToken(ctx context.Context, tokenString string) (*models.Principal, error)
	IssueToken(userID string, role models.UserRole, ttl time.Duration) (string, time.Time, error)
}

type authService struct {
	jwtSecret []byte
	jwtIssuer string
}

// JWT claims structure
type jwtClaims struct {
	UserID string `json:"user_id"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

// NewAuthService creates a token verifier for an HMAC secret
func NewAuthService(jwtSecret, jwtIssuer string) (AuthService, error) {
	if strings.TrimSpace(jwtSecret) == "" {
		return nil, errors.New("jwt secret is required")
	}
	return &authService{
		jwtSecret: []byte(jwtSecret),
		jwtIssuer: jwtIssuer,
	}, nil
}

// ValidateToken parses the token and returns the caller it names
func (s *authService) ValidateToken(_ context.Context, tokenString string) (*models.Principal, error) {
	token, err := jwt.ParseWithClaims(tokenString, &jwtClaims{}, func(token *jwt.Token) (interface{}, error) {
		// Verify signing method
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.jwtSecret, nil
	})
	if err != nil {
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*jwtClaims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	if s.jwtIssuer != "" && !claims.VerifyIssuer(s.jwtIssuer, true) {
		return nil, ErrInvalidToken
	}

	userID := claims.UserID
	if userID == "" {
		userID = claims.Subject
	}
	if userID == "" {
		return nil, ErrInvalidToken
	}

	role := models.UserRoleUser
	if models.UserRole(claims.Role) == models.UserRoleAdmin {
		role = models.UserRoleAdmin
	}
	return &models.Principal{UserID: userID, Role: role}, nil
}

// IssueToken signs a token for userID valid for ttl
func (s *authService) IssueToken(userID string, role models.UserRole, ttl time.Duration) (string, time.Time, error) {
	if strings.TrimSpace(userID) == "" {
		return "", time.Time{}, models.NewValidationError("user id is required")
	}
	now := time.Now()
	expiresAt := now.Add(ttl)

	claims := &jwtClaims{
		UserID: userID,
		Role:   string(role),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    s.jwtIssuer,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(s.jwtSecret)
	if err != nil {
		return "", time.Time{}, err
	}

	return tokenString, expiresAt, nil
}
