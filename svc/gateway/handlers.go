package gateway

import (
	"encoding/json"
	"errors"
	"log/slog"
	"mime"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/qbitshield/authgate/pkg/binder"
	"github.com/qbitshield/authgate/pkg/identity"
	"github.com/qbitshield/authgate/pkg/logger"
)

type handlers struct {
	cfg         Config
	store       *SessionStore
	initiator   *Initiator
	finalizer   *Finalizer
	accounts    *AccountFlows
	oauthReturn OAuthReturner
	log         *slog.Logger
}

func (h *handlers) callback(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	artifact := ArtifactFromQuery(r)
	if artifact.Kind == identity.ArtifactOAuthCode {
		want := h.store.Binding(r)
		h.store.ClearBinding(w)
		if err := h.finalizer.CheckBinding(r.Context(), artifact, q.Get("binding"), want); err != nil {
			http.Redirect(w, r, h.finalizer.FailureTarget(), http.StatusFound)
			return
		}
	}
	target, _ := h.finalizer.Finalize(r.Context(), w, artifact, q.Get("redirect"))
	http.Redirect(w, r, target, http.StatusFound)
}

type loginForm struct {
	Email    string `form:"email"`
	Password string `form:"password"`
	From     string `form:"from"`
}

func (h *handlers) login(w http.ResponseWriter, r *http.Request) {
	var f loginForm
	if err := binder.Form()(r, &f); err != nil {
		http.Redirect(w, r, pageError(h.cfg.LoginPath, "email", ""), http.StatusSeeOther)
		return
	}
	from := SanitizeRedirect(f.From, "")

	out, err := h.initiator.Initiate(r.Context(), CredentialLogin{Email: f.Email, Password: f.Password, Pending: from})
	if err != nil {
		key := errorKey(err)
		switch {
		case errors.Is(err, ErrInvalidCredentials):
			key = "credentials"
		case errors.Is(err, ErrInvalidEmail):
			key = "email"
		}
		http.Redirect(w, r, pageError(h.cfg.LoginPath, key, from), http.StatusSeeOther)
		return
	}

	if err := h.store.Set(w, out.Session.Ref()); err != nil {
		h.log.ErrorContext(r.Context(), "session persist failed", logger.Event("login.persist_failed"), logger.Error(err))
		http.Redirect(w, r, pageError(h.cfg.LoginPath, "session", from), http.StatusSeeOther)
		return
	}
	http.Redirect(w, r, out.RedirectURL, http.StatusSeeOther)
}

func (h *handlers) oauthStart(w http.ResponseWriter, r *http.Request) {
	pending := SanitizeRedirect(r.URL.Query().Get("redirect"), "")
	out, err := h.initiator.Initiate(r.Context(), OAuthLogin{Provider: chi.URLParam(r, "provider"), Pending: pending})
	if err != nil {
		http.Redirect(w, r, pageError(h.cfg.LoginPath, errorKey(err), pending), http.StatusFound)
		return
	}
	if err := h.store.SetBinding(w, out.Binding); err != nil {
		h.log.ErrorContext(r.Context(), "oauth binding not stored", logger.Event("oauth.begin_failed"), logger.Error(err))
		http.Redirect(w, r, pageError(h.cfg.LoginPath, "internal_error", pending), http.StatusFound)
		return
	}
	http.Redirect(w, r, out.RedirectURL, http.StatusFound)
}

func (h *handlers) oauthReturnHop(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	target, err := h.oauthReturn.OAuthReturnURL(r.Context(), q.Get("code"), q.Get("state"))
	if err != nil {
		h.log.WarnContext(r.Context(), "oauth return rejected", logger.Event("oauth.return_rejected"), logger.Error(err))
		http.Redirect(w, r, h.finalizer.FailureTarget(), http.StatusFound)
		return
	}
	http.Redirect(w, r, target, http.StatusFound)
}

type magicLinkRequest struct {
	Email    string `json:"email" form:"email"`
	Name     string `json:"name" form:"name"`
	Company  string `json:"company" form:"company"`
	Phone    string `json:"phone" form:"phone"`
	Redirect string `json:"redirect" form:"redirect"`
}

func (h *handlers) magicLink(w http.ResponseWriter, r *http.Request) {
	var req magicLinkRequest
	if err := bindBody(r, &req); err != nil {
		h.fail(w, r, h.cfg.LoginPath, errors.Join(ErrInvalidRequest, err), "")
		return
	}

	_, err := h.initiator.Initiate(r.Context(), MagicLinkLogin{
		Email:   req.Email,
		Profile: identity.Profile{Name: req.Name, Company: req.Company, Phone: req.Phone},
		Pending: req.Redirect,
	})
	if err != nil {
		h.fail(w, r, h.cfg.LoginPath, err, req.Redirect)
		return
	}
	h.succeed(w, r, h.cfg.LoginPath+"?sent=magic_link", nil)
}

type signUpRequest struct {
	Email    string `json:"email" form:"email"`
	Password string `json:"password" form:"password"`
	Name     string `json:"name" form:"name"`
	Company  string `json:"company" form:"company"`
	Phone    string `json:"phone" form:"phone"`
	Redirect string `json:"redirect" form:"redirect"`
}

func (h *handlers) signUp(w http.ResponseWriter, r *http.Request) {
	var req signUpRequest
	if err := bindBody(r, &req); err != nil {
		h.fail(w, r, h.cfg.SignUpPath, errors.Join(ErrInvalidRequest, err), "")
		return
	}

	target, err := h.accounts.SignUp(r.Context(), w, req.Email, req.Password,
		identity.Profile{Name: req.Name, Company: req.Company, Phone: req.Phone}, req.Redirect)
	if err != nil {
		h.fail(w, r, h.cfg.SignUpPath, err, req.Redirect)
		return
	}
	h.succeed(w, r, target, map[string]any{"redirect": target})
}

type forgotPasswordRequest struct {
	Email string `json:"email" form:"email"`
}

func (h *handlers) forgotPassword(w http.ResponseWriter, r *http.Request) {
	var req forgotPasswordRequest
	if err := bindBody(r, &req); err != nil {
		h.fail(w, r, h.cfg.ForgotPath, errors.Join(ErrInvalidRequest, err), "")
		return
	}
	if err := h.accounts.ForgotPassword(r.Context(), req.Email); err != nil {
		h.fail(w, r, h.cfg.ForgotPath, err, "")
		return
	}
	h.succeed(w, r, h.cfg.LoginPath+"?sent=password_reset", nil)
}

type resetPasswordRequest struct {
	Token    string `json:"token" form:"token"`
	Password string `json:"password" form:"password"`
}

func (h *handlers) resetPassword(w http.ResponseWriter, r *http.Request) {
	var req resetPasswordRequest
	if err := bindBody(r, &req); err != nil {
		h.fail(w, r, h.cfg.ForgotPath, errors.Join(ErrInvalidRequest, err), "")
		return
	}
	target, err := h.accounts.ResetPassword(r.Context(), w, req.Token, req.Password)
	if err != nil {
		h.fail(w, r, h.cfg.ForgotPath, err, "")
		return
	}
	h.succeed(w, r, target, map[string]any{"redirect": target})
}

// bindBody accepts JSON or a url-encoded form.
func bindBody(r *http.Request, v any) error {
	if isJSON(r) {
		return binder.JSON()(r, v)
	}
	return binder.Form()(r, v)
}

func isJSON(r *http.Request) bool {
	mt, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return mt == "application/json"
}

// succeed answers JSON callers with {"ok":true,...} and form posts with a
// 303 to target.
func (h *handlers) succeed(w http.ResponseWriter, r *http.Request, target string, extra map[string]any) {
	if !isJSON(r) {
		http.Redirect(w, r, target, http.StatusSeeOther)
		return
	}
	body := map[string]any{"ok": true}
	for k, v := range extra {
		body[k] = v
	}
	h.writeJSON(w, r, http.StatusOK, body)
}

// fail exposes only the error kind: JSON callers get a status and key, form
// posts are sent back to page with the key.
func (h *handlers) fail(w http.ResponseWriter, r *http.Request, page string, err error, from string) {
	key := errorKey(err)
	if !isJSON(r) {
		http.Redirect(w, r, pageError(page, key, SanitizeRedirect(from, "")), http.StatusSeeOther)
		return
	}
	h.writeJSON(w, r, statusFor(err), map[string]any{"ok": false, "error": key})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, ErrInvalidEmail), errors.Is(err, ErrInvalidRequest), errors.Is(err, ErrResetFailed):
		return http.StatusBadRequest
	case errors.Is(err, ErrInvalidCredentials):
		return http.StatusUnauthorized
	case errors.Is(err, ErrProviderUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, ErrEmailTaken):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func (h *handlers) writeJSON(w http.ResponseWriter, r *http.Request, status int, body any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.log.ErrorContext(r.Context(), "response encode failed", logger.Error(err))
	}
}
