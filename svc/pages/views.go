package pages

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/a-h/templ"

	"github.com/qbitshield/authgate/pkg/identity"
)

type loginView struct {
	Error     string
	Notice    string
	From      string
	Providers []identity.OAuthProvider
}

type resetView struct {
	Token string
}

type dashboardView struct {
	Title string
	User  *identity.User
}

var errorMessages = map[string]string{
	"credentials":            "Invalid email or password.",
	"email":                  "Enter a valid email address.",
	"invalid_email":          "Enter a valid email address.",
	"session":                "Your sign-in link is invalid or has expired. Please sign in again.",
	"provider_unavailable":   "Sign-in is temporarily unavailable. Please try again shortly.",
	"unsupported_provider":   "That sign-in provider is not available.",
	"link_generation_failed": "We could not create a sign-in link. Please try again.",
	"mail_delivery_failed":   "We could not send the email. Please try again.",
	"email_taken":            "An account with this email already exists.",
	"reset_failed":           "The reset link is invalid or has expired.",
}

var notices = map[string]string{
	"magic_link":     "Check your inbox for a sign-in link.",
	"password_reset": "If the address is registered you will receive a reset link shortly.",
}

func errorMessage(key string) string {
	if key == "" {
		return ""
	}
	if msg, ok := errorMessages[key]; ok {
		return msg
	}
	return "Something went wrong. Please try again."
}

func layout(title string, body templ.Component) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		if _, err := fmt.Fprintf(w, `<!doctype html><html><head><meta charset="utf-8"><title>%s</title></head>`+
			`<body style="font-family:sans-serif;max-width:420px;margin:48px auto">`, templ.EscapeString(title)); err != nil {
			return err
		}
		if err := body.Render(ctx, w); err != nil {
			return err
		}
		_, err := io.WriteString(w, `</body></html>`)
		return err
	})
}

func alert(w io.Writer, class, msg string) error {
	if msg == "" {
		return nil
	}
	_, err := fmt.Fprintf(w, `<p class="%s">%s</p>`, class, templ.EscapeString(msg))
	return err
}

func hidden(name, value string) string {
	if value == "" {
		return ""
	}
	return fmt.Sprintf(`<input type="hidden" name="%s" value="%s">`, name, templ.EscapeString(value))
}

func loginPage(v loginView) templ.Component {
	return layout("Sign in", templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
		var b strings.Builder
		b.WriteString(`<h1>Sign in</h1>`)
		_ = alert(&b, "error", v.Error)
		_ = alert(&b, "notice", v.Notice)

		b.WriteString(`<form method="post" action="/auth/login">`)
		b.WriteString(hidden("from", v.From))
		b.WriteString(`<input type="email" name="email" placeholder="Email" required>`)
		b.WriteString(`<input type="password" name="password" placeholder="Password" required>`)
		b.WriteString(`<button type="submit">Sign in</button></form>`)

		b.WriteString(`<h2>Email me a link</h2><form method="post" action="/auth/magic-link">`)
		b.WriteString(hidden("redirect", v.From))
		b.WriteString(`<input type="email" name="email" placeholder="Email" required>`)
		b.WriteString(`<input type="text" name="name" placeholder="Name">`)
		b.WriteString(`<input type="text" name="company" placeholder="Company">`)
		b.WriteString(`<input type="tel" name="phone" placeholder="Phone">`)
		b.WriteString(`<button type="submit">Send link</button></form>`)

		for _, p := range v.Providers {
			href := "/auth/oauth/" + string(p)
			if v.From != "" {
				href += "?" + url.Values{"redirect": {v.From}}.Encode()
			}
			fmt.Fprintf(&b, `<p><a href="%s">Continue with %s</a></p>`,
				templ.EscapeString(href), templ.EscapeString(providerLabel(p)))
		}

		b.WriteString(`<p><a href="/signup">Create an account</a> · <a href="/forgot-password">Forgot password?</a></p>`)
		_, err := io.WriteString(w, b.String())
		return err
	}))
}

func providerLabel(p identity.OAuthProvider) string {
	switch p {
	case identity.ProviderGitHub:
		return "GitHub"
	case identity.ProviderLinkedIn:
		return "LinkedIn"
	default:
		return "Google"
	}
}

func signUpPage(errKey string) templ.Component {
	return layout("Create an account", templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
		var b strings.Builder
		b.WriteString(`<h1>Create an account</h1>`)
		_ = alert(&b, "error", errorMessage(errKey))
		b.WriteString(`<form method="post" action="/auth/signup">`)
		b.WriteString(`<input type="email" name="email" placeholder="Email" required>`)
		b.WriteString(`<input type="password" name="password" placeholder="Password" required>`)
		b.WriteString(`<input type="text" name="name" placeholder="Name">`)
		b.WriteString(`<button type="submit">Sign up</button></form>`)
		_, err := io.WriteString(w, b.String())
		return err
	}))
}

func forgotPasswordPage(errKey string) templ.Component {
	return layout("Forgot password", templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
		var b strings.Builder
		b.WriteString(`<h1>Forgot password</h1>`)
		_ = alert(&b, "error", errorMessage(errKey))
		b.WriteString(`<form method="post" action="/auth/password/forgot">` +
			`<input type="email" name="email" placeholder="Email" required>` +
			`<button type="submit">Send reset link</button></form>`)
		_, err := io.WriteString(w, b.String())
		return err
	}))
}

func resetPasswordPage(v resetView) templ.Component {
	return layout("Choose a new password", templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
		_, err := fmt.Fprintf(w, `<h1>Choose a new password</h1>`+
			`<form method="post" action="/auth/password/reset">%s`+
			`<input type="password" name="password" placeholder="New password" required>`+
			`<button type="submit">Save password</button></form>`, hidden("token", v.Token))
		return err
	}))
}

func dashboardPage(v dashboardView) templ.Component {
	return layout(v.Title, templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
		name := v.User.Name
		if name == "" {
			name = v.User.Email
		}
		_, err := fmt.Fprintf(w, `<h1>%s</h1><p>Signed in as <strong>%s</strong></p>`+
			`<p><a href="/dashboard">Dashboard</a> · <a href="/account">Account</a> · <a href="/settings">Settings</a></p>`+
			`<form method="post" action="/logout"><button type="submit">Sign out</button></form>`,
			templ.EscapeString(v.Title), templ.EscapeString(name))
		return err
	}))
}
