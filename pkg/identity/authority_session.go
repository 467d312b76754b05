package identity

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/qbitshield/authgate/pkg/jwt"
	"github.com/qbitshield/authgate/pkg/logger"
)

// issueSession creates the server-side record and both tokens for user.
func (a *Authority) issueSession(ctx context.Context, user *User) (*Session, error) {
	refresh, err := randomToken()
	if err != nil {
		return nil, fmt.Errorf("generate refresh token: %w", err)
	}

	now := a.now()
	rec := SessionRecord{
		ID:               uuid.NewString(),
		UserID:           user.ID,
		RefreshHash:      hashToken(refresh),
		RefreshExpiresAt: now.Add(a.cfg.RefreshTTL),
		CreatedAt:        now,
	}
	if err := a.sessions.Save(ctx, rec, a.cfg.RefreshTTL); err != nil {
		return nil, fmt.Errorf("save session: %w", err)
	}

	access, expiresAt, err := a.tokens.Issue(user.ID.String(), rec.ID, a.cfg.AccessTTL)
	if err != nil {
		return nil, err
	}

	a.log.InfoContext(ctx, "session issued", logger.Event("session.issued"), logger.UserID(user.ID))

	return &Session{
		ID:               rec.ID,
		UserID:           user.ID,
		AccessToken:      access,
		RefreshToken:     refresh,
		ExpiresAt:        expiresAt,
		RefreshExpiresAt: rec.RefreshExpiresAt,
	}, nil
}

// resolve verifies the reference against the stored record. allowExpired
// accepts an access token whose only fault is its age.
func (a *Authority) resolve(ctx context.Context, ref SessionRef, allowExpired bool) (*SessionRecord, *jwt.Claims, error) {
	if ref.IsZero() {
		return nil, nil, ErrSessionNotFound
	}

	claims, err := a.tokens.Parse(ref.AccessToken)
	expired := errors.Is(err, jwt.ErrExpiredToken)
	if err != nil && !expired {
		return nil, nil, ErrSessionNotFound
	}

	rec, err := a.sessions.Load(ctx, claims.SessionID)
	if err != nil {
		if errors.Is(err, ErrSessionNotFound) {
			return nil, nil, ErrSessionNotFound
		}
		return nil, nil, err
	}

	if rec.UserID.String() != claims.Subject ||
		subtle.ConstantTimeCompare([]byte(rec.RefreshHash), []byte(hashToken(ref.RefreshToken))) != 1 {
		return nil, nil, ErrSessionNotFound
	}
	if !a.now().Before(rec.RefreshExpiresAt) {
		return nil, nil, ErrSessionExpired
	}
	if expired && !allowExpired {
		return rec, claims, ErrSessionExpired
	}
	return rec, claims, nil
}

func (a *Authority) GetSession(ctx context.Context, ref SessionRef) (*Session, error) {
	rec, claims, err := a.resolve(ctx, ref, false)
	if err != nil {
		return nil, err
	}
	return &Session{
		ID:               rec.ID,
		UserID:           rec.UserID,
		AccessToken:      ref.AccessToken,
		RefreshToken:     ref.RefreshToken,
		ExpiresAt:        claims.ExpiresAt.Time,
		RefreshExpiresAt: rec.RefreshExpiresAt,
	}, nil
}

// Refresh issues a new access token for a session whose refresh token is
// still valid. The refresh token itself is kept.
func (a *Authority) Refresh(ctx context.Context, ref SessionRef) (*Session, error) {
	rec, _, err := a.resolve(ctx, ref, true)
	if err != nil {
		return nil, err
	}

	access, expiresAt, err := a.tokens.Issue(rec.UserID.String(), rec.ID, a.cfg.AccessTTL)
	if err != nil {
		return nil, err
	}

	a.log.InfoContext(ctx, "session refreshed", logger.Event("session.refreshed"), logger.UserID(rec.UserID))

	return &Session{
		ID:               rec.ID,
		UserID:           rec.UserID,
		AccessToken:      access,
		RefreshToken:     ref.RefreshToken,
		ExpiresAt:        expiresAt,
		RefreshExpiresAt: rec.RefreshExpiresAt,
	}, nil
}

func (a *Authority) Invalidate(ctx context.Context, ref SessionRef) error {
	rec, _, err := a.resolve(ctx, ref, true)
	if err != nil {
		if errors.Is(err, ErrSessionExpired) || errors.Is(err, ErrSessionNotFound) {
			return ErrSessionNotFound
		}
		return err
	}

	if err := a.sessions.Delete(ctx, rec.ID); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	a.log.InfoContext(ctx, "session invalidated", logger.Event("session.invalidated"), logger.UserID(rec.UserID))
	return nil
}
