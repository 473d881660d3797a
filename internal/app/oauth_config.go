package app

import "github.com/charlesng35/authcore/internal/oauth"

// GoogleProviderConfig converts the Google client registration.
func (c OAuthConfig) GoogleProviderConfig() oauth.OIDCConfig {
	issuer := c.Google.Issuer
	if issuer == "" {
		issuer = oauth.GoogleIssuer
	}
	return oauth.OIDCConfig{
		Name:         "google",
		Issuer:       issuer,
		ClientID:     c.Google.ClientID,
		ClientSecret: c.Google.ClientSecret,
		RedirectURL:  c.Google.RedirectURL,
		Scopes:       append([]string(nil), c.Google.Scopes...),
	}
}
