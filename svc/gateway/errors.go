package gateway

import "errors"

var (
	ErrInvalidCredentials     = errors.New("gateway: invalid credentials")
	ErrInvalidEmail           = errors.New("gateway: invalid email")
	ErrUnsupportedProvider    = errors.New("gateway: unsupported provider")
	ErrLinkGenerationFailed   = errors.New("gateway: link generation failed")
	ErrMailDeliveryFailed     = errors.New("gateway: mail delivery failed")
	ErrProfileSaveFailed      = errors.New("gateway: profile save failed")
	ErrArtifactExchangeFailed = errors.New("gateway: artifact exchange failed")
	ErrArtifactReused         = errors.New("gateway: artifact already used")
	ErrSessionMissing         = errors.New("gateway: session missing")
	ErrSessionPersistFailed   = errors.New("gateway: session persist failed")
	ErrEmailTaken             = errors.New("gateway: email already registered")
	ErrResetFailed            = errors.New("gateway: password reset failed")
	ErrInvalidRequest         = errors.New("gateway: invalid request")
	ErrProviderUnavailable    = errors.New("gateway: identity provider unavailable")
	ErrBindingMismatch        = errors.New("gateway: oauth callback reached a different browser")
)

// errorKey is the stable identifier exposed to clients for err. Causes never
// leave the process.
func errorKey(err error) string {
	switch {
	case errors.Is(err, ErrInvalidCredentials):
		return "invalid_credentials"
	case errors.Is(err, ErrInvalidEmail):
		return "invalid_email"
	case errors.Is(err, ErrUnsupportedProvider):
		return "unsupported_provider"
	case errors.Is(err, ErrLinkGenerationFailed):
		return "link_generation_failed"
	case errors.Is(err, ErrMailDeliveryFailed):
		return "mail_delivery_failed"
	case errors.Is(err, ErrProfileSaveFailed):
		return "profile_save_failed"
	case errors.Is(err, ErrArtifactReused):
		return "artifact_reused"
	case errors.Is(err, ErrArtifactExchangeFailed):
		return "artifact_exchange_failed"
	case errors.Is(err, ErrSessionMissing):
		return "session_missing"
	case errors.Is(err, ErrSessionPersistFailed):
		return "session_persist_failed"
	case errors.Is(err, ErrEmailTaken):
		return "email_taken"
	case errors.Is(err, ErrResetFailed):
		return "reset_failed"
	case errors.Is(err, ErrInvalidRequest):
		return "invalid_request"
	case errors.Is(err, ErrProviderUnavailable):
		return "provider_unavailable"
	case errors.Is(err, ErrBindingMismatch):
		return "binding_mismatch"
	default:
		return "internal_error"
	}
}
