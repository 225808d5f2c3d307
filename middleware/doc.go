// Package middleware exposes net/http adapters that gate handlers on a valid
// goSession access token.
//
// # Guards
//
//   - [Guard] verifies the bearer access token and stores the result in the
//     request context.
//   - [RequireStaff] additionally rejects callers without the staff claim.
//
// A request without an Authorization header is answered with 400. A header that
// is not a bearer token, or a token that fails verification, is answered with
// 401. Guards never touch storage: they call Engine.ValidateAccess only.
package middleware
