package jwt

import "errors"

var (
	ErrInvalidToken      = errors.New("jwt: invalid token")
	ErrExpiredToken      = errors.New("jwt: token is expired")
	ErrMissingSigningKey = errors.New("jwt: missing signing key")
	ErrInvalidSigningKey = errors.New("jwt: signing key must be at least 32 bytes")
	ErrInvalidClaims     = errors.New("jwt: invalid claims")
)
