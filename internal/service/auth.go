package service

import (
	"time"

	"github.com/gtaquino-automatelabs/proativo-sub000/internal/domain"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// AdminAuth issues and validates short-lived bearer tokens for the
// administrative endpoints (metrics reset). The API key is verified
// against a bcrypt hash so the plaintext never lives in configuration.
type AdminAuth struct {
	keyHash   string
	jwtSecret []byte
	accessTTL time.Duration
	logger    *zap.Logger
}

// NewAdminAuth creates the admin auth service. An empty keyHash disables
// login entirely.
func NewAdminAuth(keyHash, jwtSecret string, accessTTL time.Duration, logger *zap.Logger) *AdminAuth {
	return &AdminAuth{
		keyHash:   keyHash,
		jwtSecret: []byte(jwtSecret),
		accessTTL: accessTTL,
		logger:    logger,
	}
}

// Enabled reports whether an admin key hash is configured.
func (a *AdminAuth) Enabled() bool {
	return a.keyHash != ""
}

// Login verifies the API key and returns a signed access token.
func (a *AdminAuth) Login(apiKey string) (string, error) {
	if !a.Enabled() {
		return "", &domain.ErrUnauthorized{Message: "admin API disabled"}
	}
	if err := bcrypt.CompareHashAndPassword([]byte(a.keyHash), []byte(apiKey)); err != nil {
		a.logger.Warn("admin login failed")
		return "", &domain.ErrUnauthorized{Message: "invalid API key"}
	}

	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   "admin",
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(a.accessTTL)),
		Issuer:    "proativo-router",
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(a.jwtSecret)
	if err != nil {
		return "", err
	}
	return signed, nil
}

// ValidateToken checks a bearer token and returns its subject.
func (a *AdminAuth) ValidateToken(tokenString string) (string, error) {
	token, err := jwt.ParseWithClaims(tokenString, &jwt.RegisteredClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, &domain.ErrUnauthorized{Message: "unexpected signing method"}
		}
		return a.jwtSecret, nil
	})
	if err != nil || !token.Valid {
		return "", &domain.ErrUnauthorized{Message: "invalid or expired token"}
	}
	claims, ok := token.Claims.(*jwt.RegisteredClaims)
	if !ok {
		return "", &domain.ErrUnauthorized{Message: "invalid token claims"}
	}
	return claims.Subject, nil
}
