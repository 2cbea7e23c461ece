package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
)

// refreshTokenBytes controls entropy of the opaque bearer value handed to
// clients; only its digest is ever persisted.
const refreshTokenBytes = 32

// GenerateRefreshToken returns a fresh opaque bearer token and the digest
// the Store should persist for it.
func GenerateRefreshToken() (token, hash string, err error) {
	b := make([]byte, refreshTokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", "", err
	}
	token = hex.EncodeToString(b)
	hash = HashOpaqueToken(token)
	return token, hash, nil
}

// GenerateAccountSessionToken returns a fresh opaque bearer token and its
// digest for an AccountSession row.
func GenerateAccountSessionToken() (token, hash string, err error) {
	b := make([]byte, refreshTokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", "", err
	}
	token = hex.EncodeToString(b)
	hash = HashOpaqueToken(token)
	return token, hash, nil
}

// HashRefreshToken digests a presented refresh token for lookup against
// the stored digest.
func HashRefreshToken(token string) string { return HashOpaqueToken(token) }

// HashOpaqueToken digests any opaque bearer token (refresh tokens,
// account-session tokens) the same way, since both are stored only as a
// SHA-256 digest.
func HashOpaqueToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
