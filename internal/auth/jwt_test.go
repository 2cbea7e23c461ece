package auth

import (
	"testing"
	"time"
)

func TestCreateAndVerifyToken(t *testing.T) {
	tc := TokenConfig{Secret: []byte("test-secret"), Issuer: "agentrelay", TTL: 15 * time.Minute}

	token, expiresAt, err := tc.CreateToken("device-1", "agent-1", "tenant-1")
	if err != nil {
		t.Fatalf("CreateToken() error = %v", err)
	}
	if token == "" {
		t.Fatal("CreateToken() returned empty token")
	}
	if !expiresAt.After(time.Now()) {
		t.Fatal("CreateToken() expiresAt not in the future")
	}

	claims, err := tc.VerifyToken(token)
	if err != nil {
		t.Fatalf("VerifyToken() error = %v", err)
	}
	if claims.Subject != "device-1" {
		t.Errorf("Subject = %q, want device-1", claims.Subject)
	}
	if claims.AgentID != "agent-1" {
		t.Errorf("AgentID = %q, want agent-1", claims.AgentID)
	}
	if claims.TenantID != "tenant-1" {
		t.Errorf("TenantID = %q, want tenant-1", claims.TenantID)
	}
}

func TestVerifyTokenRejectsWrongSecret(t *testing.T) {
	tc := TokenConfig{Secret: []byte("secret-a"), Issuer: "agentrelay", TTL: time.Minute}
	token, _, err := tc.CreateToken("device-1", "agent-1", "")
	if err != nil {
		t.Fatalf("CreateToken() error = %v", err)
	}

	other := TokenConfig{Secret: []byte("secret-b"), Issuer: "agentrelay", TTL: time.Minute}
	if _, err := other.VerifyToken(token); err == nil {
		t.Fatal("VerifyToken() expected error for mismatched secret")
	}
}

func TestVerifyTokenRejectsExpired(t *testing.T) {
	tc := TokenConfig{Secret: []byte("secret"), Issuer: "agentrelay", TTL: -time.Minute}
	token, _, err := tc.CreateToken("device-1", "agent-1", "")
	if err != nil {
		t.Fatalf("CreateToken() error = %v", err)
	}
	if _, err := tc.VerifyToken(token); err == nil {
		t.Fatal("VerifyToken() expected error for expired token")
	}
}

func TestVerifyTokenRejectsIssuerMismatch(t *testing.T) {
	tc := TokenConfig{Secret: []byte("secret"), Issuer: "issuer-a", TTL: time.Minute}
	token, _, err := tc.CreateToken("device-1", "agent-1", "")
	if err != nil {
		t.Fatalf("CreateToken() error = %v", err)
	}

	other := TokenConfig{Secret: []byte("secret"), Issuer: "issuer-b", TTL: time.Minute}
	if _, err := other.VerifyToken(token); err == nil {
		t.Fatal("VerifyToken() expected error for issuer mismatch")
	}
}
