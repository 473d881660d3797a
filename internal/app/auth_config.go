package app

import (
	"github.com/charlesng35/authcore/internal/auth"
	"github.com/charlesng35/authcore/pkg/crypto"
)

// JWTServiceConfig converts AuthConfig into the parameters expected by the JWT service.
func (c AuthConfig) JWTServiceConfig() auth.JWTConfig {
	ttl := c.JWT.TTL
	if ttl <= 0 {
		ttl = auth.DefaultAccessTokenTTL
	}

	return auth.JWTConfig{
		Secret:         c.JWT.Secret,
		Issuer:         c.JWT.Issuer,
		AccessTokenTTL: ttl,
	}
}

// TokenIssuerConfig converts AuthConfig into TokenIssuer parameters.
func (c AuthConfig) TokenIssuerConfig() auth.TokenIssuerConfig {
	ttl := c.Session.RefreshTTL
	if ttl <= 0 {
		ttl = auth.DefaultRefreshTokenTTL
	}

	return auth.TokenIssuerConfig{
		RefreshTokenTTL:   ttl,
		InvalidateRotated: c.Session.InvalidateRotated,
	}
}

// HasherConfig converts the password settings into hasher parameters. Zero argon2
// settings fall back to the hasher defaults.
func (c AuthConfig) HasherConfig() auth.HasherConfig {
	return auth.HasherConfig{
		Algorithm:  c.Password.Algorithm,
		BcryptCost: c.Password.BcryptCost,
		Argon2: crypto.Argon2Parameters{
			Time:      c.Password.Argon2.Time,
			Memory:    c.Password.Argon2.Memory,
			Threads:   c.Password.Argon2.Threads,
			KeyLength: c.Password.Argon2.KeyLength,
		},
	}
}

// PasswordPolicy converts the policy settings. A zero minimum length keeps the default.
func (c AuthConfig) PasswordPolicy() auth.PasswordPolicy {
	minLength := c.Password.Policy.MinLength
	if minLength <= 0 {
		minLength = auth.DefaultPasswordPolicy().MinLength
	}

	return auth.PasswordPolicy{
		MinLength:      minLength,
		RequireMixed:   c.Password.Policy.RequireMixedCase,
		RequireDigits:  c.Password.Policy.RequireNumbers,
		RequireSymbols: c.Password.Policy.RequireSymbols,
	}
}

// ServiceConfig converts AuthConfig into the account service rules.
func (c AuthConfig) ServiceConfig() auth.Config {
	return auth.Config{
		Policy:               c.PasswordPolicy(),
		RequireVerifiedEmail: c.RequireVerifiedEmail,
		CheckRevocation:      c.JWT.CheckRevocation,
		VerifyTokenTTL:       c.Tokens.VerifyTTL,
		ResetTokenTTL:        c.Tokens.ResetTTL,
	}
}
