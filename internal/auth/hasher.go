package auth

import (
	"fmt"
	"strings"

	"github.com/charlesng35/authcore/pkg/crypto"
)

// Supported password hashing algorithms.
const (
	AlgorithmArgon2id = "argon2id"
	AlgorithmBcrypt   = "bcrypt"
)

// BcryptMaxPasswordBytes is the longest input bcrypt accepts.
const BcryptMaxPasswordBytes = 72

// PasswordHasher hashes and verifies user passwords.
type PasswordHasher interface {
	Hash(plaintext string) (string, error)
	// Verify reports whether plaintext matches digest. Malformed digests return false.
	Verify(plaintext, digest string) bool
}

// HasherConfig selects the algorithm used for new hashes.
type HasherConfig struct {
	Algorithm  string
	Argon2     crypto.Argon2Parameters
	BcryptCost int
}

type passwordHasher struct {
	algorithm  string
	argon2     crypto.Argon2Parameters
	bcryptCost int
}

// NewPasswordHasher returns a hasher producing digests with the configured algorithm.
// Verification accepts both argon2id and bcrypt digests so stored hashes survive an
// algorithm change.
func NewPasswordHasher(cfg HasherConfig) (PasswordHasher, error) {
	algorithm := strings.ToLower(strings.TrimSpace(cfg.Algorithm))
	if algorithm == "" {
		algorithm = AlgorithmArgon2id
	}

	params := cfg.Argon2
	if params == (crypto.Argon2Parameters{}) {
		params = crypto.DefaultArgon2Params()
	}

	switch algorithm {
	case AlgorithmArgon2id:
		if err := params.Validate(); err != nil {
			return nil, fmt.Errorf("password hasher: %w", err)
		}
	case AlgorithmBcrypt:
	default:
		return nil, fmt.Errorf("password hasher: unsupported algorithm %q", cfg.Algorithm)
	}

	return &passwordHasher{
		algorithm:  algorithm,
		argon2:     params,
		bcryptCost: cfg.BcryptCost,
	}, nil
}

func (h *passwordHasher) Hash(plaintext string) (string, error) {
	if h.algorithm == AlgorithmBcrypt {
		return crypto.HashBcrypt(plaintext, h.bcryptCost)
	}
	return crypto.HashArgon2id(plaintext, h.argon2)
}

// MaxPasswordBytes reports the input limit of the configured algorithm, zero when unbounded.
func (h *passwordHasher) MaxPasswordBytes() int {
	if h.algorithm == AlgorithmBcrypt {
		return BcryptMaxPasswordBytes
	}
	return 0
}

func (h *passwordHasher) Verify(plaintext, digest string) bool {
	switch {
	case crypto.IsArgon2idHash(digest):
		return crypto.VerifyArgon2id(digest, plaintext)
	case crypto.IsBcryptHash(digest):
		return crypto.VerifyBcrypt(digest, plaintext)
	default:
		return false
	}
}
