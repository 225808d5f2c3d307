// Package redisstore provides Redis-backed implementations of [refresh.Store] and
// [reset.Store].
//
// # Atomicity
//
// Refresh rotation, conditional status updates and family revocation each run as a
// single Lua script, so a concurrent caller observes either the state before or the
// state after, never a half-rotated chain or a partially revoked family. Reset
// redemption uses a WATCH/MULTI optimistic transaction with bounded retries.
//
// # Key layout
//
//	{<prefix>}:rt:<token id>    hash   refresh record (fid, uid, st, ca, ea, rb)
//	{<prefix>}:rf:<family id>   set    token ids of a family
//	{<prefix>}:ru:<user id>     set    family ids of a user
//	{<prefix>}:pr:<token id>    string binary reset record
//
// The braces are a Redis Cluster hash tag: all keys of one prefix live in the
// same slot, so the scripts run unchanged against a cluster client. Spreading
// load across a cluster means running several prefixes.
//
// Records carry a PEXPIREAT at ExpiresAt plus the configured retention so that
// rotated and revoked records stay around long enough for reuse detection.
//
// # What this package must NOT do
//
//   - Import goSession or jwt.
//   - Decide what a status conflict means; that is the engine's job.
package redisstore
