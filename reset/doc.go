// Package reset defines the single-use password reset token record and the storage
// contract for issuing and redeeming it.
//
// A reset record moves from unused to used exactly once. Redeem is the only mutation
// and it either marks the record used or leaves it untouched; a failed redemption
// never has side effects. Like refresh records, reset records are keyed by the
// SHA-256 lookup id of the presented token.
package reset
