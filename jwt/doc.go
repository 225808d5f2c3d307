// Package jwt signs and verifies the short-lived access tokens handed out next to
// refresh tokens, and exposes the verification key for distribution.
//
// Verification is stateless: a token is accepted when its signature, algorithm,
// issuer, audience, expiry and token type check out. Expiry is reported separately
// from every other failure so callers can log the two differently.
package jwt
