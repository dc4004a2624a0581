// Package token issues and validates the signed bearer tokens the HTTP layer
// authenticates with. Tokens carry only the account id; role and scope are
// resolved fresh from the account table on every request.
package token

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	id "collecta/pkg/domain"
)

const defaultTTL = 24 * time.Hour

type Manager struct {
	signingKey []byte
	ttl        time.Duration
}

func NewManager(signingKey string) *Manager {
	return &Manager{signingKey: []byte(signingKey), ttl: defaultTTL}
}

// Issue signs a token for an account.
func (m *Manager) Issue(accountID id.AccountID, now time.Time) (string, error) {
	claims := jwt.RegisteredClaims{
		Subject:   accountID.String(),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
		Issuer:    "collecta",
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.signingKey)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Validate checks signature and expiry and returns the subject account id.
func (m *Manager) Validate(tokenString string) (id.AccountID, error) {
	parsed, err := jwt.ParseWithClaims(tokenString, &jwt.RegisteredClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return m.signingKey, nil
	}, jwt.WithIssuer("collecta"), jwt.WithExpirationRequired())
	if err != nil {
		return id.AccountID{}, fmt.Errorf("parse token: %w", err)
	}
	claims, ok := parsed.Claims.(*jwt.RegisteredClaims)
	if !ok || !parsed.Valid {
		return id.AccountID{}, fmt.Errorf("invalid token claims")
	}
	accountID, err := id.ParseAccountID(claims.Subject)
	if err != nil {
		return id.AccountID{}, fmt.Errorf("invalid token subject: %w", err)
	}
	return accountID, nil
}
