// Package auth is the relay's CredentialAuthority: agent-secret
// verification, access/refresh token issuance, pairing-code generation,
// and webhook signature verification.
package auth

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"agentrelay/internal/apierr"
)

// Claims is the access token's payload: routing identity plus the
// registered JWT fields.
type Claims struct {
	AgentID  string `json:"agent_id"`
	TenantID string `json:"tenant_id,omitempty"`
	jwt.RegisteredClaims
}

// TokenConfig carries everything CreateToken/VerifyToken need.
type TokenConfig struct {
	Secret []byte
	Issuer string
	TTL    time.Duration
}

// CreateToken issues a signed access JWT with sub=deviceID.
func (tc TokenConfig) CreateToken(deviceID, agentID, tenantID string) (string, time.Time, error) {
	now := time.Now()
	expiresAt := now.Add(tc.TTL)

	jti, err := randomHex(16)
	if err != nil {
		return "", time.Time{}, err
	}

	claims := Claims{
		AgentID:  agentID,
		TenantID: tenantID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   deviceID,
			Issuer:    tc.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			ID:        jti,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(tc.Secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expiresAt, nil
}

// VerifyToken validates signature, issuer, and expiry, returning the
// parsed claims on success.
func (tc TokenConfig) VerifyToken(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return tc.Secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, apierr.New(apierr.TokenExpired, "access token expired")
		}
		return nil, apierr.New(apierr.TokenInvalid, "access token invalid")
	}
	if !token.Valid {
		return nil, apierr.New(apierr.TokenInvalid, "access token invalid")
	}
	if claims.Issuer != tc.Issuer {
		return nil, apierr.New(apierr.TokenInvalid, "access token issuer mismatch")
	}
	return claims, nil
}

func randomHex(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
