// Package refresh defines the refresh-token record model, its closed status set, and
// the storage contract that rotation and reuse detection are built on.
//
// # Token format
//
// Presented refresh tokens are opaque base64url strings carrying 32 random bytes.
// Stores never see them: a record is keyed by the SHA-256 lookup id of the token, so
// a leaked table or keyspace cannot be replayed.
//
// # Lifecycle
//
//	Active  -> Rotated   (successful rotation, ReplacedBy set)
//	Active  -> Revoked   (family revocation, logout)
//	Rotated -> Revoked   (family revocation)
//	Revoked -> Revoked   (idempotent)
//
// No other transition is valid. Exactly one record per family is Active at a time.
//
// # Architecture boundaries
//
// This package owns the record model and the [Store] contract. Backends live in
// redisstore and pgstore; the rotation state machine lives in internal/flows.
//
// # What this package must NOT do
//
//   - Perform I/O.
//   - Import goSession, jwt, or any store backend.
package refresh
