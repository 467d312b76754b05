package identity

import "context"

// Provider is the identity authority as seen by the gateway. It is the only
// component allowed to decide whether a session is valid.
type Provider interface {
	VerifyCredentials(ctx context.Context, email, password string) (*Session, error)
	// BeginOAuth returns the provider authorization URL. redirectURI is the
	// application callback the user returns to after the provider hop.
	BeginOAuth(ctx context.Context, provider OAuthProvider, redirectURI string) (string, error)
	ExchangeArtifact(ctx context.Context, artifact Artifact) (*Session, error)
	// IssueMagicLink returns redirectURI extended with a one-time token.
	IssueMagicLink(ctx context.Context, email, redirectURI string) (string, error)
	// GetSession returns ErrSessionNotFound or ErrSessionExpired when the
	// reference does not resolve to a live session.
	GetSession(ctx context.Context, ref SessionRef) (*Session, error)
	Refresh(ctx context.Context, ref SessionRef) (*Session, error)
	Invalidate(ctx context.Context, ref SessionRef) error
}

// Accounts manages password-based accounts.
type Accounts interface {
	SignUp(ctx context.Context, email, password string, profile Profile) (*Session, error)
	// RequestPasswordReset returns redirectURI extended with a reset token.
	RequestPasswordReset(ctx context.Context, email, redirectURI string) (string, error)
	ResetPassword(ctx context.Context, resetToken, newPassword string) (*Session, error)
}
