package auth

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/charlesng35/authcore/pkg/crypto"
)

var fastArgon2 = crypto.Argon2Parameters{Time: 1, Memory: 8 * 1024, Threads: 1, KeyLength: 32}

func TestPasswordHasherArgon2idRoundTrip(t *testing.T) {
	hasher, err := NewPasswordHasher(HasherConfig{Argon2: fastArgon2})
	require.NoError(t, err)

	first, err := hasher.Hash("Aa1!aaaa")
	require.NoError(t, err)
	second, err := hasher.Hash("Aa1!aaaa")
	require.NoError(t, err)

	require.NotEqual(t, "Aa1!aaaa", first)
	require.NotEqual(t, first, second, "salts must differ per call")
	require.True(t, crypto.IsArgon2idHash(first))

	require.True(t, hasher.Verify("Aa1!aaaa", first))
	require.True(t, hasher.Verify("Aa1!aaaa", second))
	require.False(t, hasher.Verify("Aa1!aaab", first))
}

func TestPasswordHasherBcrypt(t *testing.T) {
	hasher, err := NewPasswordHasher(HasherConfig{Algorithm: "bcrypt", BcryptCost: 4})
	require.NoError(t, err)

	digest, err := hasher.Hash("Secret#123")
	require.NoError(t, err)
	require.True(t, crypto.IsBcryptHash(digest))
	require.True(t, hasher.Verify("Secret#123", digest))
	require.False(t, hasher.Verify("secret#123", digest))
}

func TestPasswordHasherVerifiesEitherEncoding(t *testing.T) {
	argon, err := NewPasswordHasher(HasherConfig{Argon2: fastArgon2})
	require.NoError(t, err)
	bcryptHasher, err := NewPasswordHasher(HasherConfig{Algorithm: AlgorithmBcrypt, BcryptCost: 4})
	require.NoError(t, err)

	legacy, err := bcryptHasher.Hash("Secret#123")
	require.NoError(t, err)
	require.True(t, argon.Verify("Secret#123", legacy))
}

func TestPasswordHasherMalformedDigest(t *testing.T) {
	hasher, err := NewPasswordHasher(HasherConfig{Argon2: fastArgon2})
	require.NoError(t, err)

	for _, digest := range []string{"", "plaintext", "$argon2id$v=19$m=x$bad$bad", "$2a$10$short"} {
		require.NotPanics(t, func() {
			require.False(t, hasher.Verify("anything", digest))
		})
	}
}

func TestNewPasswordHasherRejectsUnknownAlgorithm(t *testing.T) {
	_, err := NewPasswordHasher(HasherConfig{Algorithm: "md5"})
	require.Error(t, err)

	_, err = NewPasswordHasher(HasherConfig{Argon2: crypto.Argon2Parameters{Time: 1, Memory: 8 * 1024, Threads: 1, KeyLength: 8}})
	require.Error(t, err)
}

func TestPasswordHasherMaxPasswordBytes(t *testing.T) {
	bcryptHasher, err := NewPasswordHasher(HasherConfig{Algorithm: AlgorithmBcrypt, BcryptCost: 4})
	require.NoError(t, err)
	require.Equal(t, BcryptMaxPasswordBytes, bcryptHasher.(*passwordHasher).MaxPasswordBytes())

	argonHasher, err := NewPasswordHasher(HasherConfig{})
	require.NoError(t, err)
	require.Zero(t, argonHasher.(*passwordHasher).MaxPasswordBytes())
}
