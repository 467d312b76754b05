// Package jwt issues and verifies HS256 access tokens bound to a server-side
// session id.
package jwt

import (
	"errors"
	"time"

	gojwt "github.com/golang-jwt/jwt/v5"
)

const minKeyLength = 32

// Claims are the access token claims. Subject is the user id and SessionID
// names the server-side session record.
type Claims struct {
	SessionID string `json:"sid"`
	gojwt.RegisteredClaims
}

type Service struct {
	key    []byte
	issuer string
	now    func() time.Time
}

type Option func(*Service)

func WithIssuer(issuer string) Option {
	return func(s *Service) { s.issuer = issuer }
}

// WithClock replaces time.Now for issuing and validating.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func New(signingKey []byte, opts ...Option) (*Service, error) {
	if len(signingKey) == 0 {
		return nil, ErrMissingSigningKey
	}
	if len(signingKey) < minKeyLength {
		return nil, ErrInvalidSigningKey
	}

	s := &Service{key: signingKey, issuer: "authgate", now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Issue signs a token for subject and sessionID valid for ttl.
func (s *Service) Issue(subject, sessionID string, ttl time.Duration) (string, time.Time, error) {
	now := s.now()
	expiresAt := now.Add(ttl)

	claims := Claims{
		SessionID: sessionID,
		RegisteredClaims: gojwt.RegisteredClaims{
			Subject:   subject,
			Issuer:    s.issuer,
			IssuedAt:  gojwt.NewNumericDate(now),
			NotBefore: gojwt.NewNumericDate(now),
			ExpiresAt: gojwt.NewNumericDate(expiresAt),
		},
	}

	signed, err := gojwt.NewWithClaims(gojwt.SigningMethodHS256, claims).SignedString(s.key)
	if err != nil {
		return "", time.Time{}, errors.Join(ErrInvalidToken, err)
	}
	return signed, expiresAt, nil
}

// Parse verifies signature, algorithm, issuer and expiry. An expired but
// otherwise valid token returns its claims together with ErrExpiredToken.
func (s *Service) Parse(token string) (*Claims, error) {
	claims := &Claims{}
	_, err := gojwt.ParseWithClaims(token, claims, s.keyFunc,
		gojwt.WithValidMethods([]string{gojwt.SigningMethodHS256.Alg()}),
		gojwt.WithIssuer(s.issuer),
		gojwt.WithExpirationRequired(),
		gojwt.WithTimeFunc(s.now),
	)

	switch {
	case err == nil:
	case errors.Is(err, gojwt.ErrTokenExpired) && !errors.Is(err, gojwt.ErrTokenSignatureInvalid):
		return claims, ErrExpiredToken
	default:
		return nil, errors.Join(ErrInvalidToken, err)
	}

	if claims.Subject == "" || claims.SessionID == "" {
		return nil, ErrInvalidClaims
	}
	return claims, nil
}

func (s *Service) keyFunc(*gojwt.Token) (any, error) {
	return s.key, nil
}
