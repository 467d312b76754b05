package identity

import "errors"

var (
	ErrInvalidCredentials  = errors.New("identity: invalid credentials")
	ErrUnsupportedProvider = errors.New("identity: unsupported oauth provider")
	ErrInvalidArtifact     = errors.New("identity: invalid artifact")
	ErrArtifactNotFound    = errors.New("identity: artifact not found or expired")
	ErrArtifactConsumed    = errors.New("identity: artifact already consumed")
	ErrSessionNotFound     = errors.New("identity: session not found")
	ErrSessionExpired      = errors.New("identity: session expired")
	ErrUserNotFound        = errors.New("identity: user not found")
	ErrEmailTaken          = errors.New("identity: email already registered")
	ErrNoPassword          = errors.New("identity: user has no password")
	ErrInvalidEmail        = errors.New("identity: invalid email")
	ErrPasswordRequired    = errors.New("identity: password is required")
	ErrResetTokenInvalid   = errors.New("identity: reset token invalid or expired")
	ErrProviderEmailInUse  = errors.New("identity: provider email already registered")
	ErrUnverifiedEmail     = errors.New("identity: provider email not verified")
	ErrNoPrimaryEmail      = errors.New("identity: provider returned no usable email")
	ErrProviderExchange    = errors.New("identity: provider code exchange failed")
	ErrInvalidRedirectURI  = errors.New("identity: invalid redirect uri")
)
