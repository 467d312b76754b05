package identity

import "time"

type Config struct {
	PublicURL     string        `env:"AUTH_PUBLIC_URL" envDefault:"http://localhost:8080"`
	SigningKey    string        `env:"AUTH_SIGNING_KEY,required"`
	Issuer        string        `env:"AUTH_ISSUER" envDefault:"authgate"`
	AccessTTL     time.Duration `env:"AUTH_ACCESS_TTL" envDefault:"15m"`
	RefreshTTL    time.Duration `env:"AUTH_REFRESH_TTL" envDefault:"720h"`
	MagicLinkTTL  time.Duration `env:"AUTH_MAGIC_LINK_TTL" envDefault:"15m"`
	OAuthStateTTL time.Duration `env:"AUTH_OAUTH_STATE_TTL" envDefault:"10m"`
	ResetTTL      time.Duration `env:"AUTH_RESET_TTL" envDefault:"1h"`
	BcryptCost    int           `env:"AUTH_BCRYPT_COST" envDefault:"10"`
	VerifiedOnly  bool          `env:"AUTH_OAUTH_VERIFIED_ONLY" envDefault:"false"`
}

// OAuthConfig holds client credentials. A provider without a client id is
// not offered.
type OAuthConfig struct {
	GoogleClientID       string `env:"GOOGLE_OAUTH_CLIENT_ID"`
	GoogleClientSecret   string `env:"GOOGLE_OAUTH_CLIENT_SECRET"`
	GitHubClientID       string `env:"GITHUB_OAUTH_CLIENT_ID"`
	GitHubClientSecret   string `env:"GITHUB_OAUTH_CLIENT_SECRET"`
	LinkedInClientID     string `env:"LINKEDIN_OAUTH_CLIENT_ID"`
	LinkedInClientSecret string `env:"LINKEDIN_OAUTH_CLIENT_SECRET"`
}

// Adapters builds an adapter for every configured provider. returnURL is the
// authority's own OAuth return endpoint registered with each provider.
func (c OAuthConfig) Adapters(returnURL string) []OAuthAdapter {
	var adapters []OAuthAdapter
	if c.GoogleClientID != "" {
		adapters = append(adapters, NewGoogleAdapter(c.GoogleClientID, c.GoogleClientSecret, returnURL))
	}
	if c.GitHubClientID != "" {
		adapters = append(adapters, NewGitHubAdapter(c.GitHubClientID, c.GitHubClientSecret, returnURL))
	}
	if c.LinkedInClientID != "" {
		adapters = append(adapters, NewLinkedInAdapter(c.LinkedInClientID, c.LinkedInClientSecret, returnURL))
	}
	return adapters
}
