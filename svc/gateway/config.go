package gateway

import "time"

type Config struct {
	// PublicURL is the externally visible base of the application; callback
	// and reset links are built from it.
	PublicURL         string        `env:"GATEWAY_PUBLIC_URL" envDefault:"http://localhost:8080"`
	CookieName        string        `env:"GATEWAY_COOKIE_NAME" envDefault:"authgate_session"`
	SessionMaxAge     time.Duration `env:"GATEWAY_SESSION_MAX_AGE" envDefault:"720h"`
	ProtectedPrefixes []string      `env:"GATEWAY_PROTECTED_PREFIXES" envDefault:"/dashboard,/account,/settings" envSeparator:","`
	DefaultRedirect   string        `env:"GATEWAY_DEFAULT_REDIRECT" envDefault:"/dashboard"`
	LoginPath         string        `env:"GATEWAY_LOGIN_PATH" envDefault:"/login"`
	CallbackPath      string        `env:"GATEWAY_CALLBACK_PATH" envDefault:"/auth/callback"`
	ResetPath         string        `env:"GATEWAY_RESET_PATH" envDefault:"/reset-password"`
	SignUpPath        string        `env:"GATEWAY_SIGNUP_PATH" envDefault:"/signup"`
	ForgotPath        string        `env:"GATEWAY_FORGOT_PATH" envDefault:"/forgot-password"`
	MagicLinkTTL      time.Duration `env:"AUTH_MAGIC_LINK_TTL" envDefault:"15m"`
	ResetTTL          time.Duration `env:"AUTH_RESET_TTL" envDefault:"1h"`
}

func (c Config) withDefaults() Config {
	if c.CookieName == "" {
		c.CookieName = "authgate_session"
	}
	if c.DefaultRedirect == "" {
		c.DefaultRedirect = "/dashboard"
	}
	if c.LoginPath == "" {
		c.LoginPath = "/login"
	}
	if c.CallbackPath == "" {
		c.CallbackPath = "/auth/callback"
	}
	if c.ResetPath == "" {
		c.ResetPath = "/reset-password"
	}
	if c.SignUpPath == "" {
		c.SignUpPath = "/signup"
	}
	if c.ForgotPath == "" {
		c.ForgotPath = "/forgot-password"
	}
	if c.ProtectedPrefixes == nil {
		c.ProtectedPrefixes = []string{"/dashboard", "/account", "/settings"}
	}
	return c
}
