// Package auth handles admin credentials, bearer tokens and the per-login
// admin session.
package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrInvalidToken is returned when a token fails signature or shape checks.
	ErrInvalidToken = errors.New("invalid token")
	// ErrExpiredToken is returned when a token is past its expiry.
	ErrExpiredToken = errors.New("token has expired")
)

// DefaultTokenTTL is how long an admin token stays valid.
const DefaultTokenTTL = 7 * 24 * time.Hour

// TokenConfig holds signing parameters.
type TokenConfig struct {
	Secret string
	TTL    time.Duration
	Issuer string
}

// Claims identify the admin and the session a token belongs to. The session
// id travels as the registered jti claim.
type Claims struct {
	AdminID string `json:"id"`
	Email   string `json:"email"`
	Name    string `json:"name"`
	jwt.RegisteredClaims
}

// SessionID returns the session the token was issued for.
func (c *Claims) SessionID() string { return c.ID }

// TokenManager issues and validates HS256 admin tokens.
type TokenManager struct {
	cfg TokenConfig
	now func() time.Time
}

// NewTokenManager creates a TokenManager. A zero TTL means DefaultTokenTTL.
func NewTokenManager(cfg TokenConfig) *TokenManager {
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTokenTTL
	}
	if cfg.Issuer == "" {
		cfg.Issuer = "catalogd"
	}
	return &TokenManager{cfg: cfg, now: time.Now}
}

// TTL returns the configured token lifetime.
func (m *TokenManager) TTL() time.Duration { return m.cfg.TTL }

// Issue signs a token for the admin bound to sessionID.
func (m *TokenManager) Issue(admin Admin, sessionID string) (string, error) {
	now := m.now()
	claims := Claims{
		AdminID: admin.ID,
		Email:   admin.Email,
		Name:    admin.Name,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        sessionID,
			Issuer:    m.cfg.Issuer,
			Subject:   admin.ID,
			ExpiresAt: jwt.NewNumericDate(now.Add(m.cfg.TTL)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(m.cfg.Secret))
}

// Validate parses a token and returns its claims.
func (m *TokenManager) Validate(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return []byte(m.cfg.Secret), nil
	}, jwt.WithTimeFunc(m.now))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.AdminID == "" || claims.ID == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
