package auth

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
)

// ErrInvalidAgentSecret is returned by VerifySecretDetailed when the
// presented secret does not match.
var ErrInvalidAgentSecret = errors.New("invalid agent secret")

// HashSecret digests a shared secret for storage as Agent.SecretHash.
func HashSecret(secret string) string {
	sum := sha256.Sum256([]byte(secret))
	return hex.EncodeToString(sum[:])
}

// VerifySecret reports whether secret hashes to storedHash.
func VerifySecret(storedHash, secret string) bool {
	ok, _ := VerifySecretDetailed(storedHash, secret)
	return ok
}

// VerifySecretDetailed performs the same check as VerifySecret but
// returns the error a caller can log or wrap, mirroring the
// detailed-then-bool-wrapper shape used for signature verification.
func VerifySecretDetailed(storedHash, secret string) (bool, error) {
	candidate := HashSecret(secret)
	if subtle.ConstantTimeCompare([]byte(storedHash), []byte(candidate)) != 1 {
		return false, ErrInvalidAgentSecret
	}
	return true, nil
}

// VerifyAgentSecret checks secret against storedHash, falling back to a
// single legacy global secret when allowLegacy is set and the primary
// check fails. Production deployments default allowLegacy to false.
func VerifyAgentSecret(storedHash, secret string, allowLegacy bool, legacySecret string) bool {
	if VerifySecret(storedHash, secret) {
		return true
	}
	if allowLegacy && legacySecret != "" {
		return subtle.ConstantTimeCompare([]byte(legacySecret), []byte(secret)) == 1
	}
	return false
}
