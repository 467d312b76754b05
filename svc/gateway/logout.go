package gateway

import (
	"context"
	"net/http"

	"github.com/qbitshield/authgate/pkg/identity"
	"github.com/qbitshield/authgate/pkg/logger"
)

type LogoutHandler struct {
	provider identity.Provider
	store    *SessionStore
	cfg      Config
	deps
}

func NewLogoutHandler(provider identity.Provider, store *SessionStore, cfg Config, opts ...Option) *LogoutHandler {
	return &LogoutHandler{
		provider: provider,
		store:    store,
		cfg:      cfg.withDefaults(),
		deps:     newDeps("gateway.logout", opts),
	}
}

// Logout invalidates the session with the provider when a reference exists
// and always clears the cookie. Provider failures are logged only.
func (h *LogoutHandler) Logout(ctx context.Context, w http.ResponseWriter, r *http.Request) {
	if ref, err := h.store.Get(r); err == nil {
		if err := h.provider.Invalidate(ctx, ref); err != nil {
			h.log.WarnContext(ctx, "session invalidate failed", logger.Event("logout.invalidate_failed"), logger.Error(err))
		}
	}
	h.store.Clear(w)
	h.metrics.logout()
	h.log.InfoContext(ctx, "logged out", logger.Event("logout"))
}

func (h *LogoutHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.Logout(r.Context(), w, r)
	http.Redirect(w, r, h.cfg.LoginPath, http.StatusFound)
}
