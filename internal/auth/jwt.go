package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var ErrTokenRevoked = errors.New("token revoked")

// Claims identify one admin session. Subject is the admin username and ID
// (jti) is the revocation handle.
type Claims struct {
	jwt.RegisteredClaims
}

func GenerateToken(secret, username string, ttl time.Duration) (string, *Claims, error) {
	now := time.Now()
	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   username,
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		return "", nil, err
	}
	return signed, claims, nil
}

func ValidateToken(secret, tokenStr string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(secret), nil
	}, jwt.WithExpirationRequired())
	if err != nil {
		return nil, err
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}
	if claims.ID == "" {
		return nil, fmt.Errorf("token has no id")
	}
	return claims, nil
}

// Sessions issues, validates and revokes admin session tokens.
type Sessions struct {
	secret  string
	ttl     time.Duration
	revoker Revoker
}

func NewSessions(secret string, ttl time.Duration, revoker Revoker) *Sessions {
	return &Sessions{secret: secret, ttl: ttl, revoker: revoker}
}

// TTL is the lifetime of newly issued tokens.
func (s *Sessions) TTL() time.Duration { return s.ttl }

func (s *Sessions) Issue(username string) (string, *Claims, error) {
	return GenerateToken(s.secret, username, s.ttl)
}

// Validate checks signature and expiry, then the revocation list.
func (s *Sessions) Validate(ctx context.Context, tokenStr string) (*Claims, error) {
	claims, err := ValidateToken(s.secret, tokenStr)
	if err != nil {
		return nil, err
	}
	revoked, err := s.revoker.IsRevoked(ctx, claims.ID)
	if err != nil {
		return nil, fmt.Errorf("check revocation: %w", err)
	}
	if revoked {
		return nil, ErrTokenRevoked
	}
	return claims, nil
}

// Revoke blocks the token until it would have expired anyway.
func (s *Sessions) Revoke(ctx context.Context, claims *Claims) error {
	until := time.Now().Add(s.ttl)
	if claims.ExpiresAt != nil {
		until = claims.ExpiresAt.Time
	}
	return s.revoker.Revoke(ctx, claims.ID, until)
}
