package identity

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

type OAuthProvider string

const (
	ProviderGoogle   OAuthProvider = "google"
	ProviderGitHub   OAuthProvider = "github"
	ProviderLinkedIn OAuthProvider = "linkedin"
)

// SupportedProviders lists every provider the gateway accepts, in display order.
var SupportedProviders = []OAuthProvider{ProviderGoogle, ProviderGitHub, ProviderLinkedIn}

func ParseOAuthProvider(s string) (OAuthProvider, error) {
	for _, p := range SupportedProviders {
		if string(p) == s {
			return p, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnsupportedProvider, s)
}

// Session is an authenticated session as confirmed by the Authority. It is
// always complete: a Session is never returned with an empty token or user.
type Session struct {
	ID               string
	UserID           uuid.UUID
	AccessToken      string
	RefreshToken     string
	ExpiresAt        time.Time
	RefreshExpiresAt time.Time
}

func (s *Session) Ref() SessionRef {
	return SessionRef{AccessToken: s.AccessToken, RefreshToken: s.RefreshToken}
}

// SessionRef is the client-held reference to a session. It carries no
// authority of its own and must be re-validated with GetSession.
type SessionRef struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

func (r SessionRef) IsZero() bool {
	return r.AccessToken == "" || r.RefreshToken == ""
}

// Profile holds optional user details collected at login time.
type Profile struct {
	Name    string `json:"name,omitempty"`
	Company string `json:"company,omitempty"`
	Phone   string `json:"phone,omitempty"`
}

type User struct {
	ID        uuid.UUID
	Email     string
	Name      string
	Company   string
	Phone     string
	Verified  bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

type ArtifactKind string

const (
	ArtifactOAuthCode ArtifactKind = "oauth_code"
	ArtifactMagicLink ArtifactKind = "magic_link"
)

// Artifact is the one-time proof returned to the callback: an OAuth code and
// state, or a magic link token.
type Artifact struct {
	Kind  ArtifactKind
	Code  string
	State string
	Token string
}

func (a Artifact) Validate() error {
	switch a.Kind {
	case ArtifactOAuthCode:
		if a.Code == "" || a.State == "" {
			return fmt.Errorf("%w: code and state are required", ErrInvalidArtifact)
		}
	case ArtifactMagicLink:
		if a.Token == "" {
			return fmt.Errorf("%w: token is required", ErrInvalidArtifact)
		}
	default:
		return fmt.Errorf("%w: unknown kind %q", ErrInvalidArtifact, a.Kind)
	}
	return nil
}

// Namespace partitions one-time grants in the ArtifactStore.
type Namespace string

const (
	NamespaceOAuthState    Namespace = "oauth_state"
	NamespaceMagicLink     Namespace = "magic_link"
	NamespacePasswordReset Namespace = "password_reset"
)

// SessionRecord is the server-side half of a session.
type SessionRecord struct {
	ID               string    `json:"id"`
	UserID           uuid.UUID `json:"user_id"`
	RefreshHash      string    `json:"refresh_hash"`
	RefreshExpiresAt time.Time `json:"refresh_expires_at"`
	CreatedAt        time.Time `json:"created_at"`
}

// ProviderProfile is the normalized identity returned by an OAuth provider.
type ProviderProfile struct {
	Provider       OAuthProvider
	ProviderUserID string
	Email          string
	EmailVerified  bool
	Name           string
}
