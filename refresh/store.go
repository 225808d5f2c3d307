package refresh

import (
	"context"
	"errors"
)

var (
	// ErrNotFound is returned when no record exists for a token id.
	ErrNotFound = errors.New("refresh record not found")
	// ErrStatusConflict is returned when a conditional status update finds a
	// status other than the expected one.
	ErrStatusConflict = errors.New("refresh record status conflict")
	// ErrExpired is returned by Rotate when the record expired before the swap.
	ErrExpired = errors.New("refresh record expired")
	// ErrInvalidTransition is returned for transitions outside the lifecycle table.
	ErrInvalidTransition = errors.New("invalid refresh status transition")
	// ErrUnknownStatus is returned when a stored status cannot be decoded.
	ErrUnknownStatus = errors.New("unknown refresh status")
	// ErrBackendUnavailable wraps transport and driver failures of a store.
	ErrBackendUnavailable = errors.New("refresh store unavailable")
)

// Store persists refresh-token records.
//
// Rotate and RevokeFamily must each appear atomic to concurrent callers.
type Store interface {
	// Create inserts a new record.
	Create(ctx context.Context, rec *Record) error
	// Get returns the record for tokenID or ErrNotFound.
	Get(ctx context.Context, tokenID string) (*Record, error)
	// Rotate moves tokenID from Active to Rotated, sets ReplacedBy to next.TokenID,
	// and inserts next, all in one atomic step. It returns ErrStatusConflict when
	// the record is no longer Active and ErrExpired when it has expired.
	Rotate(ctx context.Context, tokenID string, next *Record) error
	// UpdateStatus changes tokenID from one status to another only if its current
	// status equals from.
	UpdateStatus(ctx context.Context, tokenID string, from, to Status) error
	// RevokeFamily marks every record of the family Revoked and returns how many
	// records changed state. Revoking an already revoked family is a no-op.
	RevokeFamily(ctx context.Context, familyID string) (int, error)
	// FamilyIDs lists the families ever issued to userID.
	FamilyIDs(ctx context.Context, userID string) ([]string, error)
}
