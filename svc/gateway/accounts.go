package gateway

import (
	"context"
	"errors"
	"net/http"

	"github.com/qbitshield/authgate/pkg/identity"
	"github.com/qbitshield/authgate/pkg/logger"
	"github.com/qbitshield/authgate/pkg/sanitizer"
	"github.com/qbitshield/authgate/pkg/validator"
)

// AccountFlows runs sign-up and the forgot/reset password round trip.
type AccountFlows struct {
	accounts identity.Accounts
	store    *SessionStore
	mailer   Mailer
	cfg      Config
	deps
}

func NewAccountFlows(accounts identity.Accounts, store *SessionStore, resetMailer Mailer, cfg Config, opts ...Option) *AccountFlows {
	return &AccountFlows{
		accounts: accounts,
		store:    store,
		mailer:   resetMailer,
		cfg:      cfg.withDefaults(),
		deps:     newDeps("gateway.accounts", opts),
	}
}

// SignUp creates a password account, persists its session and returns the
// destination.
func (a *AccountFlows) SignUp(ctx context.Context, w http.ResponseWriter, addr, password string, profile identity.Profile, pending string) (string, error) {
	addr = sanitizer.NormalizeEmail(addr)
	if err := validator.Apply(validator.ValidEmail("email", addr)); err != nil {
		return "", errors.Join(ErrInvalidEmail, err)
	}
	if err := validator.Apply(validator.RequiredString("password", password)); err != nil {
		return "", errors.Join(ErrInvalidRequest, err)
	}

	profile = identity.Profile{
		Name:    sanitizer.ProfileField(profile.Name),
		Company: sanitizer.ProfileField(profile.Company),
		Phone:   sanitizer.ProfileField(profile.Phone),
	}
	sess, err := a.accounts.SignUp(ctx, addr, password, profile)
	a.metrics.login("signup", err)
	if err != nil {
		if errors.Is(err, identity.ErrEmailTaken) {
			return "", errors.Join(ErrEmailTaken, err)
		}
		a.log.ErrorContext(ctx, "sign up failed", logger.Event("signup.failed"), logger.Email(addr), logger.Error(err))
		return "", errors.Join(ErrProfileSaveFailed, err)
	}

	if err := a.store.Set(w, sess.Ref()); err != nil {
		return "", err
	}
	a.log.InfoContext(ctx, "signed up", logger.Event("signup.established"), logger.UserID(sess.UserID))
	return SanitizeRedirect(pending, a.cfg.DefaultRedirect), nil
}

// ForgotPassword emails a reset link. Unknown addresses succeed silently so
// the response does not reveal which emails are registered.
func (a *AccountFlows) ForgotPassword(ctx context.Context, addr string) error {
	addr = sanitizer.NormalizeEmail(addr)
	if err := validator.Apply(validator.ValidEmail("email", addr)); err != nil {
		return errors.Join(ErrInvalidEmail, err)
	}

	link, err := a.accounts.RequestPasswordReset(ctx, addr, a.cfg.PublicURL+a.cfg.ResetPath)
	if err != nil {
		if errors.Is(err, identity.ErrUserNotFound) {
			a.log.InfoContext(ctx, "reset requested for unknown email", logger.Event("password.reset_unknown"), logger.Email(addr))
			return nil
		}
		a.log.ErrorContext(ctx, "reset link generation failed", logger.Event("password.reset_link_failed"), logger.Error(err))
		return errors.Join(ErrLinkGenerationFailed, err)
	}

	if _, err := a.mailer.Send(ctx, addr, link); err != nil {
		a.log.ErrorContext(ctx, "reset link delivery failed", logger.Event("password.reset_delivery_failed"), logger.Error(err))
		return errors.Join(ErrMailDeliveryFailed, err)
	}
	return nil
}

// ResetPassword redeems a reset token, persists the new session and returns
// the default destination.
func (a *AccountFlows) ResetPassword(ctx context.Context, w http.ResponseWriter, token, password string) (string, error) {
	if err := validator.Apply(
		validator.RequiredString("token", token),
		validator.RequiredString("password", password),
	); err != nil {
		return "", errors.Join(ErrInvalidRequest, err)
	}

	sess, err := a.accounts.ResetPassword(ctx, token, password)
	if err != nil {
		if !errors.Is(err, identity.ErrResetTokenInvalid) {
			a.log.ErrorContext(ctx, "password reset failed", logger.Event("password.reset_failed"), logger.Error(err))
		}
		return "", errors.Join(ErrResetFailed, err)
	}

	if err := a.store.Set(w, sess.Ref()); err != nil {
		return "", err
	}
	return a.cfg.DefaultRedirect, nil
}
