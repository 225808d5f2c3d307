// Package goSession is a session token engine: it issues short-lived access
// tokens next to rotating opaque refresh tokens, detects refresh-token reuse,
// and runs single-use password reset tokens.
//
// Engine methods are safe for concurrent use after [Builder.Build].
//
// # Refresh families
//
// Every login starts a family. Rotating the family's Active token marks it
// Rotated and creates its successor in one atomic store operation. Presenting
// any token that is no longer Active, including losing a rotation race,
// revokes every token in the family before [ErrReuseDetected] is returned.
//
// # Architecture boundaries
//
// Persistence sits behind [refresh.Store] and [reset.Store]; redisstore and
// pgstore implement both. Users live behind [UserDirectory]. Orchestration
// lives in internal/flows. The engine never logs; it emits audit events.
//
// # What this package must NOT do
//
//   - Touch storage from [Engine.ValidateAccess].
//   - Keep token state in process memory.
//   - Return raw reset tokens unless PasswordReset.ExposeToken is set.
package goSession
