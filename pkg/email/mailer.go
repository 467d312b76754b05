package email

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"
)

// Sender delivers a single transactional message and reports what the
// transport accepted.
type Sender interface {
	Send(ctx context.Context, msg Message) (Receipt, error)
}

// Message is one outbound email.
type Message struct {
	To       string `json:"to"`
	Subject  string `json:"subject"`
	HTMLBody string `json:"html_body"`
	Tag      string `json:"tag,omitempty"`
}

// Receipt confirms that the transport accepted a message.
type Receipt struct {
	MessageID   string    `json:"message_id"`
	To          string    `json:"to"`
	SubmittedAt time.Time `json:"submitted_at"`
}

var emailRegex = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// Validate reports the first missing or malformed field.
func (m Message) Validate() error {
	to := strings.TrimSpace(m.To)
	switch {
	case to == "":
		return fmt.Errorf("%w: To is required", ErrInvalidParams)
	case !emailRegex.MatchString(to):
		return fmt.Errorf("%w: To must be a valid email address", ErrInvalidParams)
	case strings.TrimSpace(m.Subject) == "":
		return fmt.Errorf("%w: Subject is required", ErrInvalidParams)
	case strings.TrimSpace(m.HTMLBody) == "":
		return fmt.Errorf("%w: HTMLBody is required", ErrInvalidParams)
	}
	return nil
}
