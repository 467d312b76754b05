package email

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mrz1836/postmark"
)

// postmarkAPI is the subset of *postmark.Client used here.
type postmarkAPI interface {
	SendEmail(ctx context.Context, email postmark.Email) (postmark.EmailResponse, error)
}

type postmarkClient struct {
	api    postmarkAPI
	config Config
	now    func() time.Time
}

// NewPostmarkClient creates a Postmark-backed Sender.
func NewPostmarkClient(cfg Config) (Sender, error) {
	if err := validateConfig(cfg); err != nil {
		return nil, err
	}
	return newPostmarkClient(postmark.NewClient(cfg.PostmarkServerToken, cfg.PostmarkAccountToken), cfg), nil
}

// MustNewPostmarkClient panics on invalid config.
func MustNewPostmarkClient(cfg Config) Sender {
	client, err := NewPostmarkClient(cfg)
	if err != nil {
		panic(err)
	}
	return client
}

func newPostmarkClient(api postmarkAPI, cfg Config) *postmarkClient {
	return &postmarkClient{api: api, config: cfg, now: time.Now}
}

func validateConfig(cfg Config) error {
	switch {
	case cfg.PostmarkServerToken == "":
		return fmt.Errorf("%w: PostmarkServerToken is required", ErrInvalidConfig)
	case cfg.PostmarkAccountToken == "":
		return fmt.Errorf("%w: PostmarkAccountToken is required", ErrInvalidConfig)
	case !emailRegex.MatchString(cfg.SenderEmail):
		return fmt.Errorf("%w: SenderEmail must be a valid email address", ErrInvalidConfig)
	case !emailRegex.MatchString(cfg.SupportEmail):
		return fmt.Errorf("%w: SupportEmail must be a valid email address", ErrInvalidConfig)
	}
	return nil
}

// Send delivers through Postmark's transactional API. Replies go to the
// support address. A non-zero Postmark error code is a delivery failure even
// when the HTTP call itself succeeded.
func (c *postmarkClient) Send(ctx context.Context, msg Message) (Receipt, error) {
	if err := msg.Validate(); err != nil {
		return Receipt{}, err
	}

	resp, err := c.api.SendEmail(ctx, postmark.Email{
		From:       c.config.SenderEmail,
		ReplyTo:    c.config.SupportEmail,
		To:         msg.To,
		Subject:    msg.Subject,
		Tag:        msg.Tag,
		HTMLBody:   msg.HTMLBody,
		TrackOpens: false,
		TrackLinks: "None",
	})
	if err != nil {
		return Receipt{}, errors.Join(ErrFailedToSendEmail, err)
	}
	if resp.ErrorCode > 0 {
		return Receipt{}, errors.Join(
			ErrFailedToSendEmail,
			fmt.Errorf("postmark error: %d - %s", resp.ErrorCode, resp.Message),
		)
	}

	return Receipt{
		MessageID:   resp.MessageID,
		To:          msg.To,
		SubmittedAt: c.now(),
	}, nil
}
