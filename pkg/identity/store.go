package identity

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Users is the user directory. Emails are passed already normalized.
type Users interface {
	FindByID(ctx context.Context, id uuid.UUID) (*User, error)
	FindByEmail(ctx context.Context, email string) (*User, error)
	// UpsertProfile creates the user if the email is unknown. Non-empty
	// profile fields overwrite stored values; empty ones leave them as is.
	UpsertProfile(ctx context.Context, email string, profile Profile) (*User, error)
	// CreateWithPassword fails with ErrEmailTaken if the email exists.
	CreateWithPassword(ctx context.Context, email string, passwordHash []byte, profile Profile) (*User, error)
	PasswordHash(ctx context.Context, id uuid.UUID) ([]byte, error)
	SetPasswordHash(ctx context.Context, id uuid.UUID, hash []byte) error
	MarkVerified(ctx context.Context, id uuid.UUID) error
	FindByOAuth(ctx context.Context, provider OAuthProvider, providerUserID string) (*User, error)
	LinkOAuth(ctx context.Context, userID uuid.UUID, provider OAuthProvider, providerUserID string) error
}

type SessionStore interface {
	Save(ctx context.Context, rec SessionRecord, ttl time.Duration) error
	Load(ctx context.Context, id string) (*SessionRecord, error)
	Delete(ctx context.Context, id string) error
}

// ArtifactStore keeps one-time grants. Consume is atomic: exactly one caller
// gets the value, later callers get ErrArtifactConsumed until the tombstone
// expires.
type ArtifactStore interface {
	Put(ctx context.Context, ns Namespace, key string, value []byte, ttl time.Duration) error
	Peek(ctx context.Context, ns Namespace, key string) ([]byte, error)
	Consume(ctx context.Context, ns Namespace, key string) ([]byte, error)
}
