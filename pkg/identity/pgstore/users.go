// Package pgstore is the Postgres user directory.
package pgstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/qbitshield/authgate/pkg/identity"
	"github.com/qbitshield/authgate/pkg/pg"
)

var _ identity.Users = (*Users)(nil)

const userColumns = `id, email, name, company, phone, verified, created_at, updated_at`

type Users struct {
	db *pgxpool.Pool
}

func NewUsers(db *pgxpool.Pool) *Users {
	return &Users{db: db}
}

func scanUser(row pgx.Row) (*identity.User, error) {
	var u identity.User
	err := row.Scan(&u.ID, &u.Email, &u.Name, &u.Company, &u.Phone, &u.Verified, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if pg.IsNotFoundError(err) {
			return nil, identity.ErrUserNotFound
		}
		return nil, err
	}
	return &u, nil
}

func (s *Users) FindByID(ctx context.Context, id uuid.UUID) (*identity.User, error) {
	u, err := scanUser(s.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
	if err != nil && !errors.Is(err, identity.ErrUserNotFound) {
		return nil, fmt.Errorf("pgstore: find user by id: %w", err)
	}
	return u, err
}

func (s *Users) FindByEmail(ctx context.Context, email string) (*identity.User, error) {
	u, err := scanUser(s.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email))
	if err != nil && !errors.Is(err, identity.ErrUserNotFound) {
		return nil, fmt.Errorf("pgstore: find user by email: %w", err)
	}
	return u, err
}

// UpsertProfile is a single statement so concurrent first logins for the
// same email converge on one row.
func (s *Users) UpsertProfile(ctx context.Context, email string, p identity.Profile) (*identity.User, error) {
	const q = `
		INSERT INTO users (id, email, name, company, phone)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (email) DO UPDATE SET
			name       = COALESCE(NULLIF(EXCLUDED.name, ''), users.name),
			company    = COALESCE(NULLIF(EXCLUDED.company, ''), users.company),
			phone      = COALESCE(NULLIF(EXCLUDED.phone, ''), users.phone),
			updated_at = now()
		RETURNING ` + userColumns

	u, err := scanUser(s.db.QueryRow(ctx, q, uuid.New(), email, p.Name, p.Company, p.Phone))
	if err != nil {
		return nil, fmt.Errorf("pgstore: upsert user: %w", err)
	}
	return u, nil
}

func (s *Users) CreateWithPassword(ctx context.Context, email string, passwordHash []byte, p identity.Profile) (*identity.User, error) {
	const q = `
		INSERT INTO users (id, email, name, company, phone, password_hash)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING ` + userColumns

	u, err := scanUser(s.db.QueryRow(ctx, q, uuid.New(), email, p.Name, p.Company, p.Phone, passwordHash))
	if err != nil {
		if pg.IsDuplicateKeyError(err) {
			return nil, identity.ErrEmailTaken
		}
		return nil, fmt.Errorf("pgstore: create user: %w", err)
	}
	return u, nil
}

func (s *Users) PasswordHash(ctx context.Context, id uuid.UUID) ([]byte, error) {
	var hash []byte
	err := s.db.QueryRow(ctx, `SELECT password_hash FROM users WHERE id = $1`, id).Scan(&hash)
	if err != nil {
		if pg.IsNotFoundError(err) {
			return nil, identity.ErrUserNotFound
		}
		return nil, fmt.Errorf("pgstore: load password hash: %w", err)
	}
	if len(hash) == 0 {
		return nil, identity.ErrNoPassword
	}
	return hash, nil
}

func (s *Users) SetPasswordHash(ctx context.Context, id uuid.UUID, hash []byte) error {
	tag, err := s.db.Exec(ctx, `UPDATE users SET password_hash = $2, updated_at = now() WHERE id = $1`, id, hash)
	if err != nil {
		return fmt.Errorf("pgstore: set password hash: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return identity.ErrUserNotFound
	}
	return nil
}

func (s *Users) MarkVerified(ctx context.Context, id uuid.UUID) error {
	tag, err := s.db.Exec(ctx, `UPDATE users SET verified = TRUE, updated_at = now() WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("pgstore: mark verified: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return identity.ErrUserNotFound
	}
	return nil
}

func (s *Users) FindByOAuth(ctx context.Context, provider identity.OAuthProvider, providerUserID string) (*identity.User, error) {
	const q = `
		SELECT u.id, u.email, u.name, u.company, u.phone, u.verified, u.created_at, u.updated_at
		FROM oauth_identities o
		JOIN users u ON u.id = o.user_id
		WHERE o.provider = $1 AND o.provider_user_id = $2`

	u, err := scanUser(s.db.QueryRow(ctx, q, string(provider), providerUserID))
	if err != nil && !errors.Is(err, identity.ErrUserNotFound) {
		return nil, fmt.Errorf("pgstore: find oauth identity: %w", err)
	}
	return u, err
}

func (s *Users) LinkOAuth(ctx context.Context, userID uuid.UUID, provider identity.OAuthProvider, providerUserID string) error {
	const q = `
		INSERT INTO oauth_identities (provider, provider_user_id, user_id)
		VALUES ($1, $2, $3)
		ON CONFLICT (provider, provider_user_id) DO NOTHING`

	if _, err := s.db.Exec(ctx, q, string(provider), providerUserID, userID); err != nil {
		return fmt.Errorf("pgstore: link oauth identity: %w", err)
	}
	return nil
}
