// Package pages serves the HTML pages around the gateway: the public login
// forms and the guarded dashboard.
package pages

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/a-h/templ"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/qbitshield/authgate/pkg/identity"
	"github.com/qbitshield/authgate/pkg/logger"
	"github.com/qbitshield/authgate/svc/gateway"
)

type UserLookup interface {
	FindByID(ctx context.Context, id uuid.UUID) (*identity.User, error)
}

type Pages struct {
	users     UserLookup
	providers []identity.OAuthProvider
	log       *slog.Logger
}

func New(users UserLookup, providers []identity.OAuthProvider, log *slog.Logger) *Pages {
	if log == nil {
		log = logger.NewNop()
	}
	return &Pages{users: users, providers: providers, log: log.With(logger.Component("pages"))}
}

// Mount registers the pages. Pass it as gateway.RouterConfig.Pages so the
// dashboard routes sit behind the Guard.
func (p *Pages) Mount(r chi.Router) {
	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/dashboard", http.StatusFound)
	})
	r.Get("/login", p.login)
	r.Get("/signup", p.signUp)
	r.Get("/forgot-password", p.forgotPassword)
	r.Get("/reset-password", p.resetPassword)
	r.Get("/dashboard", p.dashboard("Dashboard"))
	r.Get("/account", p.dashboard("Account"))
	r.Get("/settings", p.dashboard("Settings"))
}

func (p *Pages) login(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	p.render(w, r, http.StatusOK, loginPage(loginView{
		Error:     errorMessage(q.Get("error")),
		Notice:    notices[q.Get("sent")],
		From:      gateway.SanitizeRedirect(q.Get("from"), ""),
		Providers: p.providers,
	}))
}

func (p *Pages) signUp(w http.ResponseWriter, r *http.Request) {
	p.render(w, r, http.StatusOK, signUpPage(r.URL.Query().Get("error")))
}

func (p *Pages) forgotPassword(w http.ResponseWriter, r *http.Request) {
	p.render(w, r, http.StatusOK, forgotPasswordPage(r.URL.Query().Get("error")))
}

func (p *Pages) resetPassword(w http.ResponseWriter, r *http.Request) {
	tok := r.URL.Query().Get("token")
	if tok == "" {
		http.Redirect(w, r, "/forgot-password", http.StatusFound)
		return
	}
	p.render(w, r, http.StatusOK, resetPasswordPage(resetView{Token: tok}))
}

func (p *Pages) dashboard(title string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, ok := gateway.SessionFromContext(r.Context())
		if !ok {
			http.Redirect(w, r, "/login", http.StatusFound)
			return
		}
		user, err := p.users.FindByID(r.Context(), sess.UserID)
		if err != nil {
			p.log.ErrorContext(r.Context(), "load user failed", logger.UserID(sess.UserID), logger.Error(err))
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			return
		}
		p.render(w, r, http.StatusOK, dashboardPage(dashboardView{Title: title, User: user}))
	}
}

func (p *Pages) render(w http.ResponseWriter, r *http.Request, status int, c templ.Component) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := c.Render(r.Context(), w); err != nil {
		p.log.ErrorContext(r.Context(), "render failed", logger.Path(r.URL.Path), logger.Error(err))
	}
}
