// Package gateway is the HTTP edge of the login flows.
//
// It starts password, OAuth and magic-link logins (Initiator), completes the
// callback hop by exchanging the one-time artifact for a session
// (Finalizer), protects route prefixes (Guard) and ends sessions
// (LogoutHandler). The only client state is an encrypted cookie holding an
// identity.SessionRef; every protected request is re-validated against the
// identity provider.
package gateway
