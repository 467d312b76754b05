package gateway

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/qbitshield/authgate/pkg/clientip"
	"github.com/qbitshield/authgate/pkg/httpserver"
	"github.com/qbitshield/authgate/pkg/logger"
	"github.com/qbitshield/authgate/pkg/requestid"
)

// OAuthReturner maps a provider's redirect back to the application callback.
type OAuthReturner interface {
	OAuthReturnURL(ctx context.Context, code, state string) (string, error)
}

type RouterConfig struct {
	Config    Config
	Sessions  *SessionStore
	Initiator *Initiator
	Finalizer *Finalizer
	Guard     *Guard
	Logout    *LogoutHandler
	// Accounts and OAuthReturn are optional; their routes are only mounted
	// when set.
	Accounts    *AccountFlows
	OAuthReturn OAuthReturner
	Logger      *slog.Logger
	Readiness   []httpserver.Check
	Gatherer    prometheus.Gatherer
	// Pages mounts application pages. Everything under a protected prefix
	// is guarded.
	Pages func(r chi.Router)
}

func NewRouter(rc RouterConfig) http.Handler {
	rc.Config = rc.Config.withDefaults()
	if rc.Logger == nil {
		rc.Logger = logger.NewNop()
	}
	h := &handlers{
		cfg:         rc.Config,
		store:       rc.Sessions,
		initiator:   rc.Initiator,
		finalizer:   rc.Finalizer,
		accounts:    rc.Accounts,
		oauthReturn: rc.OAuthReturn,
		log:         rc.Logger.With(logger.Component("gateway.http")),
	}

	r := chi.NewRouter()
	r.Use(requestid.Middleware)
	r.Use(clientip.Middleware)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", httpserver.LivenessHandler())
	r.Get("/readyz", httpserver.ReadinessHandler(rc.Logger, rc.Readiness...))
	if rc.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(rc.Gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/auth", func(r chi.Router) {
		r.Get("/callback", h.callback)
		r.Post("/login", h.login)
		r.Post("/magic-link", h.magicLink)
		r.Get("/oauth/{provider}", h.oauthStart)
		if h.oauthReturn != nil {
			r.Get("/oauth/return", h.oauthReturnHop)
		}
		if h.accounts != nil {
			r.Post("/signup", h.signUp)
			r.Post("/password/forgot", h.forgotPassword)
			r.Post("/password/reset", h.resetPassword)
		}
	})
	r.Post("/logout", rc.Logout.ServeHTTP)

	r.Group(func(r chi.Router) {
		r.Use(rc.Guard.Middleware)
		if rc.Pages != nil {
			rc.Pages(r)
		}
	})

	return r
}
