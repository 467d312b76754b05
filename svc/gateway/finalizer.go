package gateway

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"

	"github.com/google/uuid"

	"github.com/qbitshield/authgate/pkg/identity"
	"github.com/qbitshield/authgate/pkg/logger"
)

// Finalizer completes the callback hop: it redeems the one-time artifact
// and persists the resulting session before naming a destination.
type Finalizer struct {
	provider identity.Provider
	store    *SessionStore
	cfg      Config
	deps
}

func NewFinalizer(provider identity.Provider, store *SessionStore, cfg Config, opts ...Option) *Finalizer {
	return &Finalizer{
		provider: provider,
		store:    store,
		cfg:      cfg.withDefaults(),
		deps:     newDeps("gateway.finalizer", opts),
	}
}

// FailureTarget is where every failed finalization lands.
func (f *Finalizer) FailureTarget() string {
	return pageError(f.cfg.LoginPath, "session", "")
}

// Finalize returns the sanitized pending path, or the default, once the
// session cookie is written. On any failure it returns FailureTarget and
// the error; it never falls back to the default destination.
func (f *Finalizer) Finalize(ctx context.Context, w http.ResponseWriter, artifact identity.Artifact, pending string) (string, error) {
	target, err := f.finalize(ctx, w, artifact, pending)
	f.metrics.callback(err)
	if err != nil {
		return f.FailureTarget(), err
	}
	return target, nil
}

// CheckBinding rejects an OAuth callback whose binding nonce differs from
// the one held by the browser that began the flow. Magic links are not
// bound. A rejected callback leaves the artifact unconsumed.
func (f *Finalizer) CheckBinding(ctx context.Context, artifact identity.Artifact, got, want string) error {
	if artifact.Kind != identity.ArtifactOAuthCode {
		return nil
	}
	if got == "" || subtle.ConstantTimeCompare([]byte(got), []byte(want)) != 1 {
		f.metrics.callback(ErrBindingMismatch)
		f.log.WarnContext(ctx, "oauth callback from another browser",
			logger.Event("callback.binding_mismatch"), "binding_cookie", want != "")
		return ErrBindingMismatch
	}
	return nil
}

func (f *Finalizer) finalize(ctx context.Context, w http.ResponseWriter, artifact identity.Artifact, pending string) (string, error) {
	sess, err := f.provider.ExchangeArtifact(ctx, artifact)
	if err != nil {
		if errors.Is(err, identity.ErrArtifactConsumed) {
			f.log.WarnContext(ctx, "artifact reused", logger.Event("callback.reused"), "kind", string(artifact.Kind))
			return "", errors.Join(ErrArtifactReused, err)
		}
		f.log.WarnContext(ctx, "artifact exchange failed",
			logger.Event("callback.failed"), "kind", string(artifact.Kind), logger.Error(err))
		return "", errors.Join(ErrArtifactExchangeFailed, err)
	}
	if sess == nil || sess.UserID == uuid.Nil {
		f.log.ErrorContext(ctx, "exchange returned no user", logger.Event("callback.failed"))
		return "", errors.Join(ErrArtifactExchangeFailed, errors.New("session without user id"))
	}

	if err := f.store.Set(w, sess.Ref()); err != nil {
		f.log.ErrorContext(ctx, "session persist failed", logger.Event("callback.persist_failed"),
			logger.UserID(sess.UserID), logger.Error(err))
		if ierr := f.provider.Invalidate(ctx, sess.Ref()); ierr != nil {
			f.log.WarnContext(ctx, "orphaned session not revoked", logger.Event("callback.persist_failed"),
				logger.UserID(sess.UserID), logger.Error(ierr))
		}
		return "", err
	}

	target := SanitizeRedirect(pending, f.cfg.DefaultRedirect)
	f.log.InfoContext(ctx, "session established",
		logger.Event("callback.established"), logger.UserID(sess.UserID), logger.Path(target))
	return target, nil
}

// ArtifactFromQuery reads the callback parameters: token for magic links,
// code and state for OAuth.
func ArtifactFromQuery(r *http.Request) identity.Artifact {
	q := r.URL.Query()
	if tok := q.Get("token"); tok != "" {
		return identity.Artifact{Kind: identity.ArtifactMagicLink, Token: tok}
	}
	return identity.Artifact{Kind: identity.ArtifactOAuthCode, Code: q.Get("code"), State: q.Get("state")}
}
