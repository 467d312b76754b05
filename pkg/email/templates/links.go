package templates

import (
	"context"
	"fmt"
	"io"

	"github.com/a-h/templ"
)

// LinkData is the payload of every single-action email.
type LinkData struct {
	URL       string
	ExpiresIn string
}

// MagicLink is the body of the passwordless sign-in email.
func MagicLink(data LinkData) templ.Component {
	return actionEmail(
		"Sign in to your account",
		"Click the button below to sign in. If you did not request this email you can ignore it.",
		"Sign in",
		data,
	)
}

// PasswordReset is the body of the forgot-password email.
func PasswordReset(data LinkData) templ.Component {
	return actionEmail(
		"Reset your password",
		"Someone asked to reset the password for this account. Use the button below to choose a new one.",
		"Choose a new password",
		data,
	)
}

func actionEmail(title, intro, action string, data LinkData) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		href := string(templ.URL(data.URL))

		expiry := ""
		if data.ExpiresIn != "" {
			expiry = fmt.Sprintf(`<p style="color:#6b7280;font-size:13px">This link expires in %s.</p>`, templ.EscapeString(data.ExpiresIn))
		}

		_, err := fmt.Fprintf(w, `<!doctype html><html><body style="font-family:sans-serif;background:#f9fafb;padding:24px">`+
			`<div style="max-width:480px;margin:0 auto;background:#fff;padding:32px;border-radius:8px">`+
			`<h1 style="font-size:20px">%s</h1><p>%s</p>`+
			`<p><a href="%s" style="display:inline-block;background:#111827;color:#fff;padding:12px 20px;border-radius:6px;text-decoration:none">%s</a></p>`+
			`%s<p style="color:#6b7280;font-size:13px;word-break:break-all">%s</p>`+
			`</div></body></html>`,
			templ.EscapeString(title),
			templ.EscapeString(intro),
			templ.EscapeString(href),
			templ.EscapeString(action),
			expiry,
			templ.EscapeString(href),
		)
		return err
	})
}
