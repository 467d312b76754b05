// Package identity is the identity authority behind the gateway.
//
// Authority verifies passwords, runs OAuth flows through provider adapters,
// issues and redeems magic links and password reset links, and owns the
// server-side session records. Clients only ever hold a SessionRef: a short
// lived JWT access token naming a session record plus an opaque refresh
// token whose hash is stored in that record. GetSession re-checks both on
// every call.
//
// Storage is pluggable through Users, SessionStore and ArtifactStore. The
// pgstore and redisstore subpackages provide the production implementations;
// the Memory* types in this package serve tests and local runs.
package identity
