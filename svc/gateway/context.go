package gateway

import (
	"context"
	"log/slog"

	"github.com/qbitshield/authgate/pkg/identity"
	"github.com/qbitshield/authgate/pkg/logger"
)

type sessionContextKey struct{}

// WithSession stores the verified session for downstream handlers.
func WithSession(ctx context.Context, s *identity.Session) context.Context {
	return context.WithValue(ctx, sessionContextKey{}, s)
}

// SessionFromContext returns the session the Guard verified for this
// request. It is only present behind a protected prefix.
func SessionFromContext(ctx context.Context) (*identity.Session, bool) {
	s, ok := ctx.Value(sessionContextKey{}).(*identity.Session)
	return s, ok && s != nil
}

// LoggerExtractor adds user_id to records logged with a guarded request
// context.
func LoggerExtractor() logger.ContextExtractor {
	return func(ctx context.Context) (slog.Attr, bool) {
		if s, ok := SessionFromContext(ctx); ok {
			return logger.UserID(s.UserID), true
		}
		return slog.Attr{}, false
	}
}
