package auth

import "testing"

func TestGeneratePairingCode(t *testing.T) {
	code, err := GeneratePairingCode()
	if err != nil {
		t.Fatalf("GeneratePairingCode() error = %v", err)
	}
	if len(code) != pairingCodeLength {
		t.Fatalf("len(code) = %d, want %d", len(code), pairingCodeLength)
	}
	for _, c := range code {
		if c == '0' || c == 'O' || c == '1' || c == 'I' {
			t.Fatalf("code %q contains ambiguous character %q", code, c)
		}
	}
}

func TestGeneratePairingCodeVaries(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 20; i++ {
		code, err := GeneratePairingCode()
		if err != nil {
			t.Fatalf("GeneratePairingCode() error = %v", err)
		}
		seen[code] = true
	}
	if len(seen) < 15 {
		t.Fatalf("GeneratePairingCode() produced only %d distinct codes out of 20 draws", len(seen))
	}
}
