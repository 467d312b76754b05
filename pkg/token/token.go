// Package token produces compact, tamper-evident tokens carrying a JSON
// payload. A token is base64url(payload) + "." + base64url(hmac-sha256).
//
// Tokens are signed, not encrypted: never put secrets in the payload.
package token

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/json"
	"strings"
)

// signatureLength is the number of HMAC bytes kept in the token.
const signatureLength = 16

// Generate encodes payload and signs it with secret.
func Generate[T any](payload T, secret string) (string, error) {
	if secret == "" {
		return "", ErrEmptySecret
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}

	return base64.RawURLEncoding.EncodeToString(data) + "." +
		base64.RawURLEncoding.EncodeToString(sign(data, secret)), nil
}

// Parse verifies the signature and decodes the payload.
func Parse[T any](token, secret string) (T, error) {
	var payload T
	if secret == "" {
		return payload, ErrEmptySecret
	}

	encData, encSig, ok := strings.Cut(token, ".")
	if !ok || strings.Contains(encSig, ".") {
		return payload, ErrInvalidToken
	}

	data, err := base64.RawURLEncoding.DecodeString(encData)
	if err != nil {
		return payload, ErrInvalidToken
	}
	sig, err := base64.RawURLEncoding.DecodeString(encSig)
	if err != nil {
		return payload, ErrInvalidToken
	}

	if subtle.ConstantTimeCompare(sig, sign(data, secret)) != 1 {
		return payload, ErrSignatureInvalid
	}

	if err := json.Unmarshal(data, &payload); err != nil {
		return payload, ErrInvalidToken
	}
	return payload, nil
}

func sign(data []byte, secret string) []byte {
	h := hmac.New(sha256.New, []byte(secret))
	h.Write(data)
	return h.Sum(nil)[:signatureLength]
}
