package gateway

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/qbitshield/authgate/pkg/cookie"
	"github.com/qbitshield/authgate/pkg/identity"
)

// bindingTTL bounds how long a browser may take to come back from an OAuth
// provider.
const bindingTTL = 10 * time.Minute

// SessionStore keeps the session reference in one encrypted cookie. Set and
// Clear share the same attribute options so a cleared cookie always matches
// the one that was written.
type SessionStore struct {
	cookies *cookie.Manager
	name    string
	opts    []cookie.Option
}

func NewSessionStore(cookies *cookie.Manager, name string, opts ...cookie.Option) *SessionStore {
	return &SessionStore{cookies: cookies, name: name, opts: opts}
}

// Get returns ErrSessionMissing when there is no cookie or it cannot be
// decrypted or decoded.
func (s *SessionStore) Get(r *http.Request) (identity.SessionRef, error) {
	raw, err := s.cookies.GetEncrypted(r, s.name)
	if err != nil {
		return identity.SessionRef{}, errors.Join(ErrSessionMissing, err)
	}

	var ref identity.SessionRef
	if err := json.Unmarshal([]byte(raw), &ref); err != nil {
		return identity.SessionRef{}, errors.Join(ErrSessionMissing, err)
	}
	if ref.IsZero() {
		return identity.SessionRef{}, ErrSessionMissing
	}
	return ref, nil
}

func (s *SessionStore) Set(w http.ResponseWriter, ref identity.SessionRef) error {
	if ref.IsZero() {
		return ErrSessionPersistFailed
	}
	data, err := json.Marshal(ref)
	if err != nil {
		return errors.Join(ErrSessionPersistFailed, err)
	}
	if err := s.cookies.SetEncrypted(w, s.name, string(data), s.opts...); err != nil {
		return errors.Join(ErrSessionPersistFailed, err)
	}
	return nil
}

func (s *SessionStore) Clear(w http.ResponseWriter) {
	s.cookies.Delete(w, s.name, s.opts...)
}

func (s *SessionStore) bindingName() string { return s.name + "_oauth" }

// SetBinding records the nonce of an OAuth flow started by this browser in a
// short-lived signed cookie.
func (s *SessionStore) SetBinding(w http.ResponseWriter, nonce string) error {
	opts := append(append([]cookie.Option{}, s.opts...), cookie.WithMaxAge(int(bindingTTL.Seconds())))
	return s.cookies.SetSigned(w, s.bindingName(), nonce, opts...)
}

// Binding returns the nonce stored by SetBinding, or "" when the cookie is
// absent or its signature does not verify.
func (s *SessionStore) Binding(r *http.Request) string {
	nonce, err := s.cookies.GetSigned(r, s.bindingName())
	if err != nil {
		return ""
	}
	return nonce
}

func (s *SessionStore) ClearBinding(w http.ResponseWriter) {
	s.cookies.Delete(w, s.bindingName(), s.opts...)
}
