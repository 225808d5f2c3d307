package reset

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound is returned when no record exists for a token id.
	ErrNotFound = errors.New("reset record not found")
	// ErrUsed is returned when the record was already redeemed.
	ErrUsed = errors.New("reset record already used")
	// ErrExpired is returned when the record's lifetime has ended.
	ErrExpired = errors.New("reset record expired")
	// ErrUserMismatch is returned when the record belongs to another user.
	ErrUserMismatch = errors.New("reset record user mismatch")
	// ErrBackendUnavailable wraps transport and driver failures of a store.
	ErrBackendUnavailable = errors.New("reset store unavailable")
)

// Record is a password reset token.
type Record struct {
	TokenID   string
	UserID    string
	CreatedAt time.Time
	ExpiresAt time.Time
	Used      bool
}

// Check reports why r cannot be redeemed by userID at now, or nil if it can.
// The order matches what callers log: used before expired before mismatch.
func (r *Record) Check(userID string, now time.Time) error {
	switch {
	case r.Used:
		return ErrUsed
	case !now.Before(r.ExpiresAt):
		return ErrExpired
	case r.UserID != userID:
		return ErrUserMismatch
	default:
		return nil
	}
}

// Store persists reset records.
type Store interface {
	// Create inserts a new unused record.
	Create(ctx context.Context, rec *Record) error
	// Redeem atomically marks tokenID used if Check passes for userID at now and
	// returns the redeemed record. On any error the record is left unchanged.
	Redeem(ctx context.Context, tokenID, userID string, now time.Time) (*Record, error)
}
