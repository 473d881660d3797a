package crypto

import (
	"strings"
	"testing"
)

func testArgon2Params() Argon2Parameters {
	return Argon2Parameters{Time: 1, Memory: 8 * 1024, Threads: 1, KeyLength: 32}
}

func TestHashArgon2idRoundTrip(t *testing.T) {
	digest, err := HashArgon2id("super-secret-passphrase", testArgon2Params())
	if err != nil {
		t.Fatalf("hash: %v", err)
	}

	if !IsArgon2idHash(digest) {
		t.Fatalf("expected argon2id prefix, got %q", digest)
	}
	if !strings.Contains(digest, "m=8192,t=1,p=1") {
		t.Fatalf("expected encoded parameters, got %q", digest)
	}
	if !VerifyArgon2id(digest, "super-secret-passphrase") {
		t.Fatal("expected verification to succeed")
	}
	if VerifyArgon2id(digest, "super-secret-passphrasE") {
		t.Fatal("expected verification to fail for a different password")
	}
}

func TestHashArgon2idUsesFreshSalt(t *testing.T) {
	params := testArgon2Params()
	first, err := HashArgon2id("same-password", params)
	if err != nil {
		t.Fatalf("hash (first): %v", err)
	}
	second, err := HashArgon2id("same-password", params)
	if err != nil {
		t.Fatalf("hash (second): %v", err)
	}
	if first == second {
		t.Fatal("expected different digests for repeated hashing")
	}
}

func TestVerifyArgon2idMalformedDigest(t *testing.T) {
	cases := []string{
		"",
		"plain",
		"$argon2id$",
		"$argon2id$v=19$m=8192,t=1,p=1$@@@$@@@",
		"$argon2id$v=18$m=8192,t=1,p=1$c2FsdHNhbHRzYWx0c2FsdA$aGFzaGhhc2hoYXNoaGFzaA",
		"$argon2id$v=19$m=0,t=0,p=0$c2FsdHNhbHRzYWx0c2FsdA$aGFzaGhhc2hoYXNoaGFzaA",
	}
	for _, digest := range cases {
		if VerifyArgon2id(digest, "anything") {
			t.Fatalf("expected malformed digest %q to fail verification", digest)
		}
	}
}

func TestArgon2ParametersValidate(t *testing.T) {
	params := DefaultArgon2Params()
	if err := params.Validate(); err != nil {
		t.Fatalf("default params invalid: %v", err)
	}

	params.Threads = 0
	if err := params.Validate(); err == nil {
		t.Fatal("expected error for zero threads")
	}

	params = DefaultArgon2Params()
	params.KeyLength = 8
	if err := params.Validate(); err == nil {
		t.Fatal("expected error for short key length")
	}
}

func TestHashArgon2idRejectsEmptyPassword(t *testing.T) {
	if _, err := HashArgon2id("", testArgon2Params()); err != ErrEmptyPassword {
		t.Fatalf("expected ErrEmptyPassword, got %v", err)
	}
}
