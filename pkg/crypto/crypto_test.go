package crypto

import (
	"strings"
	"testing"
)

func TestBcryptHashing(t *testing.T) {
	hash, err := HashBcrypt("secret", 4)
	if err != nil {
		t.Fatalf("hash error: %v", err)
	}

	if !IsBcryptHash(hash) {
		t.Fatalf("expected bcrypt prefix, got %q", hash[:4])
	}
	if !VerifyBcrypt(hash, "secret") {
		t.Fatal("expected password verification to succeed")
	}
	if VerifyBcrypt(hash, "incorrect") {
		t.Fatal("expected password verification to fail")
	}
}

func TestBcryptRejectsEmptyPassword(t *testing.T) {
	if _, err := HashBcrypt("", 4); err != ErrEmptyPassword {
		t.Fatalf("expected ErrEmptyPassword, got %v", err)
	}
}

func TestGenerateToken(t *testing.T) {
	token, err := GenerateToken(32)
	if err != nil {
		t.Fatalf("token error: %v", err)
	}

	if len(token) == 0 {
		t.Fatal("expected token to be non-empty")
	}
	if strings.ContainsAny(token, "+/=") {
		t.Fatalf("expected url-safe token, got %q", token)
	}

	other, err := GenerateToken(32)
	if err != nil {
		t.Fatalf("token error: %v", err)
	}
	if token == other {
		t.Fatal("expected distinct tokens")
	}
}

func TestHashTokenIsStable(t *testing.T) {
	first := HashToken("abc")
	if first != HashToken("abc") {
		t.Fatal("expected identical digests for identical input")
	}
	if first == HashToken("abd") {
		t.Fatal("expected different digests for different input")
	}
	if len(first) != 64 {
		t.Fatalf("expected hex sha256 digest, got length %d", len(first))
	}
}

func TestEqualStrings(t *testing.T) {
	if !EqualStrings("token", "token") {
		t.Fatal("expected equal strings to match")
	}
	if EqualStrings("token", "tokem") {
		t.Fatal("expected different strings not to match")
	}
}
