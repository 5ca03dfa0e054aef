// Package perizia implements the backend for a field-survey ("perizia")
// tracking application: operators record surveys with photos and location
// data, admins review and manage them, and users authenticate with a
// password or through Google.
//
// # Authentication
//
// Sessions are stateless JWTs signed with a process-wide HMAC secret. A
// token carries the subject's user ID, email and a purpose claim; validity
// is purely cryptographic plus expiry, there is no server-side session
// state or revocation list. Two purposes exist: "session" tokens (default
// 7 day TTL) and "password_reset" tokens (1 hour TTL) which are only
// accepted by the reset-confirm endpoint.
//
// The request gate distinguishes a missing credential (401) from an
// invalid or expired one (403). Admin-only routes additionally re-read the
// user record on every request instead of trusting anything embedded in
// the token, so role changes take effect immediately even for tokens
// issued before the change.
//
// # Federation
//
// Google sign-in is handled by the oauth2 subpackage; the callback hands a
// normalized assertion to EnsureFederatedUser, which looks the user up by
// Google subject ID, creating the account on first login. Creation is
// idempotent: a duplicate-key failure from a concurrent identical callback
// is treated as "already created" and re-fetched.
//
// # Stores
//
// Persistence is behind the UserStore and PeriziaStore interfaces. The
// stores/gorm package provides the Postgres-backed implementation used in
// production; stores/memory provides a mutex-guarded implementation for
// tests. Both enforce uniqueness of email, username, Google ID and perizia
// code and report collisions as ErrDuplicateIdentity / ErrDuplicateCode.
package perizia
