package identity

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/qbitshield/authgate/pkg/jwt"
	"github.com/qbitshield/authgate/pkg/logger"
)

var (
	_ Provider = (*Authority)(nil)
	_ Accounts = (*Authority)(nil)
)

// Authority is the identity authority: it owns users, sessions and one-time
// grants, and is the single source of truth on session validity.
type Authority struct {
	users     Users
	sessions  SessionStore
	artifacts ArtifactStore
	tokens    *jwt.Service
	adapters  map[OAuthProvider]OAuthAdapter
	cfg       Config
	log       *slog.Logger
	now       func() time.Time
}

type Option func(*Authority)

func WithLogger(l *slog.Logger) Option {
	return func(a *Authority) { a.log = l }
}

func WithOAuthAdapters(adapters ...OAuthAdapter) Option {
	return func(a *Authority) {
		for _, ad := range adapters {
			a.adapters[ad.Provider()] = ad
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(a *Authority) { a.now = now }
}

func NewAuthority(cfg Config, users Users, sessions SessionStore, artifacts ArtifactStore, opts ...Option) (*Authority, error) {
	a := &Authority{
		users:     users,
		sessions:  sessions,
		artifacts: artifacts,
		adapters:  make(map[OAuthProvider]OAuthAdapter),
		cfg:       withDefaults(cfg),
		log:       logger.NewNop(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}

	tokens, err := jwt.New([]byte(a.cfg.SigningKey), jwt.WithIssuer(a.cfg.Issuer), jwt.WithClock(a.now))
	if err != nil {
		return nil, fmt.Errorf("identity: access token signer: %w", err)
	}
	a.tokens = tokens
	a.log = a.log.With(logger.Component("identity"))
	return a, nil
}

func withDefaults(cfg Config) Config {
	if cfg.Issuer == "" {
		cfg.Issuer = "authgate"
	}
	if cfg.AccessTTL <= 0 {
		cfg.AccessTTL = 15 * time.Minute
	}
	if cfg.RefreshTTL <= 0 {
		cfg.RefreshTTL = 30 * 24 * time.Hour
	}
	if cfg.MagicLinkTTL <= 0 {
		cfg.MagicLinkTTL = 15 * time.Minute
	}
	if cfg.OAuthStateTTL <= 0 {
		cfg.OAuthStateTTL = 10 * time.Minute
	}
	if cfg.ResetTTL <= 0 {
		cfg.ResetTTL = time.Hour
	}
	if cfg.BcryptCost == 0 {
		cfg.BcryptCost = bcrypt.DefaultCost
	}
	return cfg
}

// OAuthProviders reports which providers have a configured adapter.
func (a *Authority) OAuthProviders() []OAuthProvider {
	var out []OAuthProvider
	for _, p := range SupportedProviders {
		if _, ok := a.adapters[p]; ok {
			out = append(out, p)
		}
	}
	return out
}

func randomToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

func hashToken(tok string) string {
	sum := sha256.Sum256([]byte(tok))
	return hex.EncodeToString(sum[:])
}

// withQuery returns rawURL with the given query parameters set.
func withQuery(rawURL string, params map[string]string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("%w: %q", ErrInvalidRedirectURI, rawURL)
	}
	q := u.Query()
	for k, v := range params {
		q.Set(k, v)
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func isNotFound(err error) bool {
	return errors.Is(err, ErrUserNotFound)
}
