package identity

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/qbitshield/authgate/pkg/logger"
	"github.com/qbitshield/authgate/pkg/sanitizer"
	"github.com/qbitshield/authgate/pkg/token"
	"github.com/qbitshield/authgate/pkg/validator"
)

func (a *Authority) VerifyCredentials(ctx context.Context, email, password string) (*Session, error) {
	email = sanitizer.NormalizeEmail(email)
	if email == "" || password == "" {
		return nil, ErrInvalidCredentials
	}

	user, err := a.users.FindByEmail(ctx, email)
	if err != nil {
		if isNotFound(err) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("find user: %w", err)
	}

	hash, err := a.users.PasswordHash(ctx, user.ID)
	if err != nil {
		if errors.Is(err, ErrNoPassword) || isNotFound(err) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("load password hash: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword(hash, []byte(password)); err != nil {
		a.log.InfoContext(ctx, "password mismatch", logger.Event("credentials.rejected"), logger.UserID(user.ID))
		return nil, ErrInvalidCredentials
	}

	return a.issueSession(ctx, user)
}

func (a *Authority) SignUp(ctx context.Context, email, password string, profile Profile) (*Session, error) {
	email = sanitizer.NormalizeEmail(email)
	if !validator.IsEmail(email) {
		return nil, ErrInvalidEmail
	}
	if password == "" {
		return nil, ErrPasswordRequired
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), a.cfg.BcryptCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user, err := a.users.CreateWithPassword(ctx, email, hash, profile)
	if err != nil {
		if errors.Is(err, ErrEmailTaken) {
			return nil, ErrEmailTaken
		}
		return nil, fmt.Errorf("create user: %w", err)
	}

	a.log.InfoContext(ctx, "user signed up", logger.Event("user.signed_up"), logger.UserID(user.ID))
	return a.issueSession(ctx, user)
}

type resetClaims struct {
	UserID    uuid.UUID `json:"uid"`
	Nonce     string    `json:"n"`
	ExpiresAt int64     `json:"exp"`
}

// RequestPasswordReset returns ErrUserNotFound for unknown emails; callers
// decide whether to reveal that.
func (a *Authority) RequestPasswordReset(ctx context.Context, email, redirectURI string) (string, error) {
	email = sanitizer.NormalizeEmail(email)
	if !validator.IsEmail(email) {
		return "", ErrInvalidEmail
	}

	user, err := a.users.FindByEmail(ctx, email)
	if err != nil {
		return "", err
	}

	nonce, err := randomToken()
	if err != nil {
		return "", fmt.Errorf("generate reset nonce: %w", err)
	}

	// the stored nonce grant makes each link single use
	tok, err := token.Generate(resetClaims{
		UserID:    user.ID,
		Nonce:     nonce,
		ExpiresAt: a.now().Add(a.cfg.ResetTTL).Unix(),
	}, a.cfg.SigningKey)
	if err != nil {
		return "", fmt.Errorf("sign reset token: %w", err)
	}

	link, err := withQuery(redirectURI, map[string]string{"token": tok})
	if err != nil {
		return "", err
	}

	if err := a.artifacts.Put(ctx, NamespacePasswordReset, hashToken(nonce), []byte(user.ID.String()), a.cfg.ResetTTL); err != nil {
		return "", fmt.Errorf("store reset grant: %w", err)
	}

	a.log.InfoContext(ctx, "password reset requested", logger.Event("password.reset_requested"), logger.UserID(user.ID))
	return link, nil
}

func (a *Authority) ResetPassword(ctx context.Context, resetToken, newPassword string) (*Session, error) {
	if newPassword == "" {
		return nil, ErrPasswordRequired
	}

	claims, err := token.Parse[resetClaims](resetToken, a.cfg.SigningKey)
	if err != nil || a.now().After(time.Unix(claims.ExpiresAt, 0)) {
		return nil, ErrResetTokenInvalid
	}

	owner, err := a.artifacts.Consume(ctx, NamespacePasswordReset, hashToken(claims.Nonce))
	if err != nil {
		if errors.Is(err, ErrArtifactNotFound) || errors.Is(err, ErrArtifactConsumed) {
			return nil, ErrResetTokenInvalid
		}
		return nil, fmt.Errorf("consume reset grant: %w", err)
	}
	if string(owner) != claims.UserID.String() {
		return nil, ErrResetTokenInvalid
	}

	user, err := a.users.FindByID(ctx, claims.UserID)
	if err != nil {
		if isNotFound(err) {
			return nil, ErrResetTokenInvalid
		}
		return nil, fmt.Errorf("find user: %w", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), a.cfg.BcryptCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	if err := a.users.SetPasswordHash(ctx, user.ID, hash); err != nil {
		return nil, fmt.Errorf("store password hash: %w", err)
	}
	// the reset link proved control of the mailbox
	if err := a.users.MarkVerified(ctx, user.ID); err != nil {
		return nil, fmt.Errorf("mark verified: %w", err)
	}

	a.log.InfoContext(ctx, "password reset", logger.Event("password.reset"), logger.UserID(user.ID))
	return a.issueSession(ctx, user)
}
