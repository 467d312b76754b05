package email

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
)

// DevSender writes messages to disk instead of delivering them: one HTML
// file with the body and one JSON file with the envelope.
type DevSender struct {
	dir string
}

// NewDevSender creates a sender that saves messages under dir. The directory
// is created on first send.
func NewDevSender(dir string) *DevSender {
	return &DevSender{dir: dir}
}

type envelope struct {
	MessageID string `json:"message_id"`
	Timestamp string `json:"timestamp"`
	To        string `json:"to"`
	Subject   string `json:"subject"`
	Tag       string `json:"tag,omitempty"`
}

func (d *DevSender) Send(ctx context.Context, msg Message) (Receipt, error) {
	if err := msg.Validate(); err != nil {
		return Receipt{}, err
	}

	if err := os.MkdirAll(d.dir, 0o755); err != nil {
		return Receipt{}, fmt.Errorf("%w: create directory: %v", ErrFailedToSendEmail, err)
	}

	now := time.Now()
	id := uuid.NewString()

	identifier := msg.Tag
	if identifier == "" {
		identifier = msg.Subject
	}
	base := fmt.Sprintf("%s_%s_%s", now.Format("2006_01_02_150405"), sanitizeFilename(identifier), id[:8])

	if err := os.WriteFile(filepath.Join(d.dir, base+".html"), []byte(msg.HTMLBody), 0o644); err != nil {
		return Receipt{}, fmt.Errorf("%w: write html: %v", ErrFailedToSendEmail, err)
	}

	data, err := json.MarshalIndent(envelope{
		MessageID: id,
		Timestamp: now.Format(time.RFC3339),
		To:        msg.To,
		Subject:   msg.Subject,
		Tag:       msg.Tag,
	}, "", "  ")
	if err != nil {
		return Receipt{}, fmt.Errorf("%w: marshal envelope: %v", ErrFailedToSendEmail, err)
	}

	if err := os.WriteFile(filepath.Join(d.dir, base+".json"), data, 0o644); err != nil {
		return Receipt{}, fmt.Errorf("%w: write json: %v", ErrFailedToSendEmail, err)
	}

	return Receipt{MessageID: id, To: msg.To, SubmittedAt: now}, nil
}

var unsafeFilenameChars = regexp.MustCompile(`[^a-zA-Z0-9\-_.]`)

func sanitizeFilename(s string) string {
	s = strings.ReplaceAll(s, " ", "_")
	s = unsafeFilenameChars.ReplaceAllString(s, "")

	const maxLength = 100
	if len(s) > maxLength {
		s = s[:maxLength]
	}
	if s == "" {
		s = "email"
	}
	return strings.ToLower(s)
}
