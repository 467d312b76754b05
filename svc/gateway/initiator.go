package gateway

import (
	"context"
	"errors"
	"fmt"
	"net/url"

	"github.com/google/uuid"

	"github.com/qbitshield/authgate/pkg/email"
	"github.com/qbitshield/authgate/pkg/identity"
	"github.com/qbitshield/authgate/pkg/logger"
	"github.com/qbitshield/authgate/pkg/sanitizer"
	"github.com/qbitshield/authgate/pkg/validator"
)

// LoginRequest is one of CredentialLogin, OAuthLogin or MagicLinkLogin.
type LoginRequest interface {
	mode() string
}

type CredentialLogin struct {
	Email    string
	Password string
	Pending  string
}

type OAuthLogin struct {
	Provider string
	Pending  string
}

type MagicLinkLogin struct {
	Email   string
	Profile identity.Profile
	Pending string
}

func (CredentialLogin) mode() string { return "password" }
func (OAuthLogin) mode() string      { return "oauth" }
func (MagicLinkLogin) mode() string  { return "magic_link" }

type OutcomeKind int

const (
	// OutcomeEstablished: a session exists and must be persisted by the caller.
	OutcomeEstablished OutcomeKind = iota + 1
	// OutcomeRedirect: the browser must be sent to RedirectURL.
	OutcomeRedirect
	// OutcomeDispatched: a magic link was emailed.
	OutcomeDispatched
)

type LoginOutcome struct {
	Kind    OutcomeKind
	Session *identity.Session
	// RedirectURL is the provider authorization URL for OutcomeRedirect and
	// the sanitized destination for OutcomeEstablished.
	RedirectURL string
	// Binding is the nonce an OAuth callback must present; the caller keeps
	// it in the browser that started the flow.
	Binding string
	Receipt email.Receipt
}

// Directory creates or updates the user record for an email address.
// Non-empty profile fields overwrite stored ones.
type Directory interface {
	UpsertProfile(ctx context.Context, email string, profile identity.Profile) (*identity.User, error)
}

type Initiator struct {
	provider  identity.Provider
	directory Directory
	mailer    Mailer
	cfg       Config
	deps
}

func NewInitiator(provider identity.Provider, directory Directory, mailer Mailer, cfg Config, opts ...Option) *Initiator {
	return &Initiator{
		provider:  provider,
		directory: directory,
		mailer:    mailer,
		cfg:       cfg.withDefaults(),
		deps:      newDeps("gateway.initiator", opts),
	}
}

func (i *Initiator) Initiate(ctx context.Context, req LoginRequest) (*LoginOutcome, error) {
	var (
		out *LoginOutcome
		err error
	)
	switch r := req.(type) {
	case CredentialLogin:
		out, err = i.credentials(ctx, r)
	case OAuthLogin:
		out, err = i.oauth(ctx, r)
	case MagicLinkLogin:
		out, err = i.magicLink(ctx, r)
	default:
		err = fmt.Errorf("%w: unknown login request %T", ErrInvalidRequest, req)
	}

	if req != nil {
		i.metrics.login(req.mode(), err)
	}
	return out, err
}

// callbackURL is the absolute callback the identity hop returns to, carrying
// the pending destination and, for OAuth, the browser binding.
func (i *Initiator) callbackURL(pending, binding string) string {
	q := url.Values{"redirect": {SanitizeRedirect(pending, i.cfg.DefaultRedirect)}}
	if binding != "" {
		q.Set("binding", binding)
	}
	return i.cfg.PublicURL + i.cfg.CallbackPath + "?" + q.Encode()
}

func (i *Initiator) credentials(ctx context.Context, r CredentialLogin) (*LoginOutcome, error) {
	addr := sanitizer.NormalizeEmail(r.Email)
	if err := validator.Apply(
		validator.RequiredString("email", addr),
		validator.ValidEmail("email", addr),
		validator.RequiredString("password", r.Password),
	); err != nil {
		return nil, errors.Join(ErrInvalidEmail, err)
	}

	sess, err := i.provider.VerifyCredentials(ctx, addr, r.Password)
	if err != nil {
		if errors.Is(err, identity.ErrInvalidCredentials) {
			i.log.InfoContext(ctx, "credential login rejected", logger.Event("login.rejected"), logger.Email(addr))
			return nil, errors.Join(ErrInvalidCredentials, err)
		}
		i.log.ErrorContext(ctx, "credential login failed", logger.Event("login.failed"), logger.Email(addr), logger.Error(err))
		return nil, errors.Join(ErrProviderUnavailable, err)
	}

	i.log.InfoContext(ctx, "credential login succeeded", logger.Event("login.established"), logger.UserID(sess.UserID))
	return &LoginOutcome{
		Kind:        OutcomeEstablished,
		Session:     sess,
		RedirectURL: SanitizeRedirect(r.Pending, i.cfg.DefaultRedirect),
	}, nil
}

func (i *Initiator) oauth(ctx context.Context, r OAuthLogin) (*LoginOutcome, error) {
	provider, err := identity.ParseOAuthProvider(r.Provider)
	if err != nil {
		return nil, errors.Join(ErrUnsupportedProvider, err)
	}

	binding := uuid.NewString()
	authURL, err := i.provider.BeginOAuth(ctx, provider, i.callbackURL(r.Pending, binding))
	if err != nil {
		if errors.Is(err, identity.ErrUnsupportedProvider) {
			return nil, errors.Join(ErrUnsupportedProvider, err)
		}
		i.log.ErrorContext(ctx, "oauth begin failed",
			logger.Event("oauth.begin_failed"), logger.Provider(string(provider)), logger.Error(err))
		return nil, errors.Join(ErrLinkGenerationFailed, err)
	}

	i.log.InfoContext(ctx, "oauth redirect issued", logger.Event("oauth.redirect"), logger.Provider(string(provider)))
	return &LoginOutcome{Kind: OutcomeRedirect, RedirectURL: authURL, Binding: binding}, nil
}

func (i *Initiator) magicLink(ctx context.Context, r MagicLinkLogin) (*LoginOutcome, error) {
	addr := sanitizer.NormalizeEmail(r.Email)
	if err := validator.Apply(
		validator.RequiredString("email", addr),
		validator.ValidEmail("email", addr),
	); err != nil {
		return nil, errors.Join(ErrInvalidEmail, err)
	}

	profile := identity.Profile{
		Name:    sanitizer.ProfileField(r.Profile.Name),
		Company: sanitizer.ProfileField(r.Profile.Company),
		Phone:   sanitizer.ProfileField(r.Profile.Phone),
	}
	if _, err := i.directory.UpsertProfile(ctx, addr, profile); err != nil {
		i.log.ErrorContext(ctx, "profile upsert failed", logger.Event("magic_link.profile_failed"), logger.Email(addr), logger.Error(err))
		return nil, errors.Join(ErrProfileSaveFailed, err)
	}

	link, err := i.provider.IssueMagicLink(ctx, addr, i.callbackURL(r.Pending, ""))
	if err != nil {
		i.log.ErrorContext(ctx, "magic link generation failed", logger.Event("magic_link.generation_failed"), logger.Email(addr), logger.Error(err))
		return nil, errors.Join(ErrLinkGenerationFailed, err)
	}

	receipt, err := i.mailer.Send(ctx, addr, link)
	if err != nil {
		i.log.ErrorContext(ctx, "magic link delivery failed", logger.Event("magic_link.delivery_failed"), logger.Email(addr), logger.Error(err))
		return nil, errors.Join(ErrMailDeliveryFailed, err)
	}

	i.log.InfoContext(ctx, "magic link dispatched", logger.Event("magic_link.dispatched"), logger.Email(addr),
		"message_id", receipt.MessageID)
	return &LoginOutcome{Kind: OutcomeDispatched, Receipt: receipt}, nil
}
