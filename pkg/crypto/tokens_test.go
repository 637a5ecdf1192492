package crypto

import (
	"strings"
	"testing"
)

func TestNewToken(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		token, err := NewToken()
		if err != nil {
			t.Fatalf("NewToken() error: %v", err)
		}
		if len(token) != 43 {
			t.Errorf("NewToken() length = %d, want 43", len(token))
		}
		if strings.ContainsAny(token, "+/=") {
			t.Errorf("NewToken() = %q, not URL-safe", token)
		}
		if seen[token] {
			t.Fatalf("NewToken() produced a duplicate: %q", token)
		}
		seen[token] = true
	}
}

func TestHashToken(t *testing.T) {
	token, err := NewToken()
	if err != nil {
		t.Fatalf("NewToken() error: %v", err)
	}

	hash := HashToken(token)
	if len(hash) != 64 {
		t.Errorf("HashToken() length = %d, want 64 hex chars", len(hash))
	}
	if hash == token {
		t.Error("HashToken() must not return the token itself")
	}
	if HashToken(token) != hash {
		t.Error("HashToken() must be deterministic")
	}

	other, _ := NewToken()
	if HashToken(other) == hash {
		t.Error("distinct tokens must not collide")
	}
}

func TestPasswordHashing(t *testing.T) {
	hash, err := HashPassword("correct horse battery staple")
	if err != nil {
		t.Fatalf("HashPassword() error: %v", err)
	}
	if hash == "correct horse battery staple" {
		t.Fatal("HashPassword() must not return the plaintext")
	}

	if !VerifyPassword(hash, "correct horse battery staple") {
		t.Error("VerifyPassword() rejected the correct password")
	}
	if VerifyPassword(hash, "wrong password") {
		t.Error("VerifyPassword() accepted a wrong password")
	}
	if VerifyPassword("not a bcrypt hash", "anything") {
		t.Error("VerifyPassword() accepted a malformed hash")
	}
}
