// Package email sends transactional messages through a provider-agnostic
// Sender.
//
// Two transports are available: the Postmark client for real delivery and
// DevSender, which writes each message to disk as an HTML body plus a JSON
// envelope. NewFromConfig chooses between them based on whether Postmark
// tokens are configured.
//
//	sender, err := email.NewFromConfig(cfg)
//	if err != nil {
//	    return err
//	}
//
//	html, err := templates.Render(ctx, templates.MagicLink(templates.LinkData{URL: link}))
//	if err != nil {
//	    return err
//	}
//
//	receipt, err := sender.Send(ctx, email.Message{
//	    To:       "user@example.com",
//	    Subject:  "Your sign-in link",
//	    HTMLBody: html,
//	    Tag:      "magic-link",
//	})
//
// Every Send validates the message first; failures wrap ErrInvalidParams or
// ErrFailedToSendEmail and can be matched with errors.Is.
package email
