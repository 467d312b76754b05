package gateway

import (
	"context"
	"fmt"
	"time"

	"github.com/a-h/templ"

	"github.com/qbitshield/authgate/pkg/email"
	"github.com/qbitshield/authgate/pkg/email/templates"
)

// Mailer delivers a single-use link. Send is called exactly once per
// request and never retried.
type Mailer interface {
	Send(ctx context.Context, to, linkURL string) (email.Receipt, error)
}

// LinkMailer renders a link email and hands it to an email.Sender.
type LinkMailer struct {
	sender  email.Sender
	subject string
	tag     string
	ttl     time.Duration
	body    func(templates.LinkData) templ.Component
}

func NewMagicLinkMailer(sender email.Sender, ttl time.Duration) *LinkMailer {
	return &LinkMailer{
		sender:  sender,
		subject: "Your sign-in link",
		tag:     "magic-link",
		ttl:     ttl,
		body:    templates.MagicLink,
	}
}

func NewPasswordResetMailer(sender email.Sender, ttl time.Duration) *LinkMailer {
	return &LinkMailer{
		sender:  sender,
		subject: "Reset your password",
		tag:     "password-reset",
		ttl:     ttl,
		body:    templates.PasswordReset,
	}
}

func (m *LinkMailer) Send(ctx context.Context, to, linkURL string) (email.Receipt, error) {
	html, err := templates.Render(ctx, m.body(templates.LinkData{
		URL:       linkURL,
		ExpiresIn: humanDuration(m.ttl),
	}))
	if err != nil {
		return email.Receipt{}, fmt.Errorf("render %s email: %w", m.tag, err)
	}

	return m.sender.Send(ctx, email.Message{
		To:       to,
		Subject:  m.subject,
		HTMLBody: html,
		Tag:      m.tag,
	})
}

func humanDuration(d time.Duration) string {
	switch {
	case d <= 0:
		return ""
	case d%time.Hour == 0 && d >= time.Hour:
		if h := int(d / time.Hour); h != 1 {
			return fmt.Sprintf("%d hours", h)
		}
		return "1 hour"
	case d >= time.Minute:
		if m := int(d / time.Minute); m != 1 {
			return fmt.Sprintf("%d minutes", m)
		}
		return "1 minute"
	default:
		return fmt.Sprintf("%d seconds", int(d/time.Second))
	}
}
