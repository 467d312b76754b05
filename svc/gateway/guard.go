package gateway

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/qbitshield/authgate/pkg/identity"
	"github.com/qbitshield/authgate/pkg/logger"
)

// Decision is the outcome of a protected route check.
type Decision struct {
	Allow      bool
	RedirectTo string
	Session    *identity.Session
	// Refreshed is set when the access token was renewed and the cookie
	// must be rewritten.
	Refreshed bool
}

// Guard protects path prefixes by re-validating the session with the
// provider on every request.
type Guard struct {
	provider identity.Provider
	store    *SessionStore
	prefixes []string
	cfg      Config
	deps
}

func NewGuard(provider identity.Provider, store *SessionStore, cfg Config, opts ...Option) *Guard {
	cfg = cfg.withDefaults()
	prefixes := make([]string, 0, len(cfg.ProtectedPrefixes))
	for _, p := range cfg.ProtectedPrefixes {
		if p = strings.TrimRight(strings.TrimSpace(p), "/"); p != "" {
			prefixes = append(prefixes, p)
		}
	}
	return &Guard{
		provider: provider,
		store:    store,
		prefixes: prefixes,
		cfg:      cfg,
		deps:     newDeps("gateway.guard", opts),
	}
}

// Protects reports whether path falls under a protected prefix. Matching is
// per segment: /dashboard covers /dashboard/x but not /dashboards.
func (g *Guard) Protects(path string) bool {
	for _, p := range g.prefixes {
		if path == p || strings.HasPrefix(path, p+"/") {
			return true
		}
	}
	return false
}

// Check decides whether target (path plus optional query) may be served for
// ref. Unprotected targets are always allowed without a provider call.
func (g *Guard) Check(ctx context.Context, target string, ref identity.SessionRef) Decision {
	path, _, _ := strings.Cut(target, "?")
	if !g.Protects(path) {
		return Decision{Allow: true}
	}

	deny := Decision{RedirectTo: loginRedirect(g.cfg.LoginPath, target)}
	if ref.IsZero() {
		g.metrics.decision("anonymous")
		return deny
	}

	sess, err := g.provider.GetSession(ctx, ref)
	switch {
	case err == nil:
		g.metrics.decision("allow")
		return Decision{Allow: true, Session: sess}
	case errors.Is(err, identity.ErrSessionExpired):
		sess, err = g.provider.Refresh(ctx, ref)
		if err == nil {
			g.log.InfoContext(ctx, "session refreshed", logger.Event("guard.refreshed"), logger.UserID(sess.UserID))
			g.metrics.decision("refresh")
			return Decision{Allow: true, Session: sess, Refreshed: true}
		}
	}

	if errors.Is(err, identity.ErrSessionNotFound) || errors.Is(err, identity.ErrSessionExpired) {
		g.log.InfoContext(ctx, "session rejected", logger.Event("guard.denied"), logger.Path(path))
	} else {
		g.log.ErrorContext(ctx, "session check failed", logger.Event("guard.error"), logger.Path(path), logger.Error(err))
	}
	g.metrics.decision("deny")
	return deny
}

// Middleware passes allowed requests through unchanged with the session in
// the context. Denied requests get the cookie cleared and a 302 to login.
func (g *Guard) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !g.Protects(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		ref, _ := g.store.Get(r)
		d := g.Check(r.Context(), r.URL.RequestURI(), ref)
		if !d.Allow {
			g.store.Clear(w)
			http.Redirect(w, r, d.RedirectTo, http.StatusFound)
			return
		}

		if d.Refreshed {
			if err := g.store.Set(w, d.Session.Ref()); err != nil {
				g.log.ErrorContext(r.Context(), "refreshed session persist failed",
					logger.Event("guard.persist_failed"), logger.Error(err))
			}
		}
		next.ServeHTTP(w, r.WithContext(WithSession(r.Context(), d.Session)))
	})
}
