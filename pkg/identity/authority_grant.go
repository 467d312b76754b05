package identity

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/qbitshield/authgate/pkg/logger"
	"github.com/qbitshield/authgate/pkg/sanitizer"
	"github.com/qbitshield/authgate/pkg/validator"
)

type oauthGrant struct {
	Provider    OAuthProvider `json:"provider"`
	RedirectURI string        `json:"redirect_uri"`
}

type magicLinkGrant struct {
	Email string `json:"email"`
}

func (a *Authority) BeginOAuth(ctx context.Context, provider OAuthProvider, redirectURI string) (string, error) {
	adapter, ok := a.adapters[provider]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedProvider, provider)
	}
	if _, err := withQuery(redirectURI, nil); err != nil {
		return "", err
	}

	state, err := randomToken()
	if err != nil {
		return "", fmt.Errorf("generate state: %w", err)
	}

	grant, err := json.Marshal(oauthGrant{Provider: provider, RedirectURI: redirectURI})
	if err != nil {
		return "", err
	}
	if err := a.artifacts.Put(ctx, NamespaceOAuthState, state, grant, a.cfg.OAuthStateTTL); err != nil {
		return "", fmt.Errorf("store oauth state: %w", err)
	}

	return adapter.AuthURL(state), nil
}

// OAuthReturnURL maps the provider's redirect back to the application
// callback recorded for state, forwarding code and state. The state is only
// read here; it is consumed by ExchangeArtifact.
func (a *Authority) OAuthReturnURL(ctx context.Context, code, state string) (string, error) {
	if state == "" {
		return "", ErrArtifactNotFound
	}

	raw, err := a.artifacts.Peek(ctx, NamespaceOAuthState, state)
	if err != nil {
		return "", err
	}

	var grant oauthGrant
	if err := json.Unmarshal(raw, &grant); err != nil {
		return "", fmt.Errorf("decode oauth state: %w", err)
	}

	return withQuery(grant.RedirectURI, map[string]string{"code": code, "state": state})
}

func (a *Authority) IssueMagicLink(ctx context.Context, email, redirectURI string) (string, error) {
	email = sanitizer.NormalizeEmail(email)
	if !validator.IsEmail(email) {
		return "", ErrInvalidEmail
	}

	tok, err := randomToken()
	if err != nil {
		return "", fmt.Errorf("generate magic link token: %w", err)
	}

	link, err := withQuery(redirectURI, map[string]string{"token": tok})
	if err != nil {
		return "", err
	}

	grant, err := json.Marshal(magicLinkGrant{Email: email})
	if err != nil {
		return "", err
	}
	if err := a.artifacts.Put(ctx, NamespaceMagicLink, hashToken(tok), grant, a.cfg.MagicLinkTTL); err != nil {
		return "", fmt.Errorf("store magic link: %w", err)
	}

	a.log.InfoContext(ctx, "magic link issued", logger.Event("magic_link.issued"), logger.Email(email))
	return link, nil
}

// ExchangeArtifact consumes a one-time artifact and opens a session. A second
// exchange of the same artifact fails with ErrArtifactConsumed.
func (a *Authority) ExchangeArtifact(ctx context.Context, artifact Artifact) (*Session, error) {
	if err := artifact.Validate(); err != nil {
		return nil, err
	}

	var (
		user *User
		err  error
	)
	switch artifact.Kind {
	case ArtifactOAuthCode:
		user, err = a.exchangeOAuth(ctx, artifact)
	case ArtifactMagicLink:
		user, err = a.exchangeMagicLink(ctx, artifact)
	}
	if err != nil {
		return nil, err
	}

	return a.issueSession(ctx, user)
}

func (a *Authority) exchangeMagicLink(ctx context.Context, artifact Artifact) (*User, error) {
	raw, err := a.artifacts.Consume(ctx, NamespaceMagicLink, hashToken(artifact.Token))
	if err != nil {
		return nil, err
	}

	var grant magicLinkGrant
	if err := json.Unmarshal(raw, &grant); err != nil {
		return nil, fmt.Errorf("decode magic link grant: %w", err)
	}

	user, err := a.users.UpsertProfile(ctx, grant.Email, Profile{})
	if err != nil {
		return nil, fmt.Errorf("load magic link user: %w", err)
	}
	if !user.Verified {
		if err := a.users.MarkVerified(ctx, user.ID); err != nil {
			return nil, fmt.Errorf("mark verified: %w", err)
		}
		user.Verified = true
	}
	return user, nil
}

func (a *Authority) exchangeOAuth(ctx context.Context, artifact Artifact) (*User, error) {
	raw, err := a.artifacts.Consume(ctx, NamespaceOAuthState, artifact.State)
	if err != nil {
		return nil, err
	}

	var grant oauthGrant
	if err := json.Unmarshal(raw, &grant); err != nil {
		return nil, fmt.Errorf("decode oauth state: %w", err)
	}

	adapter, ok := a.adapters[grant.Provider]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedProvider, grant.Provider)
	}

	profile, err := adapter.ResolveProfile(ctx, artifact.Code)
	if err != nil {
		a.log.WarnContext(ctx, "oauth profile resolution failed",
			logger.Event("oauth.failed"), logger.Provider(string(grant.Provider)), logger.Error(err))
		return nil, err
	}
	if profile.ProviderUserID == "" || profile.Email == "" {
		return nil, ErrNoPrimaryEmail
	}
	profile.Email = sanitizer.NormalizeEmail(profile.Email)
	if a.cfg.VerifiedOnly && !profile.EmailVerified {
		return nil, ErrUnverifiedEmail
	}

	return a.resolveOAuthUser(ctx, profile)
}

// resolveOAuthUser finds or creates the local user for a provider identity.
// A verified provider email links to an existing account with that email;
// an unverified one never does.
func (a *Authority) resolveOAuthUser(ctx context.Context, p ProviderProfile) (*User, error) {
	user, err := a.users.FindByOAuth(ctx, p.Provider, p.ProviderUserID)
	if err == nil {
		return user, nil
	}
	if !isNotFound(err) {
		return nil, fmt.Errorf("find oauth link: %w", err)
	}

	existing, err := a.users.FindByEmail(ctx, p.Email)
	switch {
	case err == nil && !p.EmailVerified:
		return nil, ErrProviderEmailInUse
	case err == nil:
		user = existing
	case isNotFound(err):
		user, err = a.users.UpsertProfile(ctx, p.Email, Profile{Name: p.Name})
		if err != nil {
			return nil, fmt.Errorf("create oauth user: %w", err)
		}
	default:
		return nil, fmt.Errorf("find user by email: %w", err)
	}

	if err := a.users.LinkOAuth(ctx, user.ID, p.Provider, p.ProviderUserID); err != nil {
		return nil, fmt.Errorf("link oauth identity: %w", err)
	}
	if p.EmailVerified && !user.Verified {
		if err := a.users.MarkVerified(ctx, user.ID); err != nil {
			return nil, fmt.Errorf("mark verified: %w", err)
		}
		user.Verified = true
	}

	a.log.InfoContext(ctx, "oauth identity linked",
		logger.Event("oauth.linked"), logger.Provider(string(p.Provider)), logger.UserID(user.ID))
	return user, nil
}
