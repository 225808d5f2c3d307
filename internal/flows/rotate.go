package flows

import (
	"context"
	"errors"
	"time"

	"github.com/MrEthical07/goSession/refresh"
)

// RotateFailureKind classifies rotate flow failures for root-level mapping.
type RotateFailureKind int

const (
	RotateFailureNone RotateFailureKind = iota
	RotateFailureMalformed
	RotateFailureNotFound
	RotateFailureExpired
	RotateFailureReuse
	RotateFailureMint
	RotateFailureStore
	RotateFailureAccess
)

// RotateResult carries either the successor pair or failure metadata. On
// reuse, Revoked and RevokeErr describe the family revocation that ran before
// the flow returned.
type RotateResult struct {
	Failure         RotateFailureKind
	Err             error
	Presented       *refresh.Record
	Successor       *refresh.Record
	RefreshToken    string
	AccessToken     string
	AccessExpiresAt time.Time
	Revoked         int
	RevokeErr       error
	Raced           bool
}

// RotateDeps captures rotate flow dependencies.
type RotateDeps struct {
	Store       refresh.Store
	Now         func() time.Time
	RefreshTTL  time.Duration
	Resolve     TokenResolver
	NewToken    TokenMinter
	IssueAccess AccessIssuer
}

// RunRotate exchanges a presented refresh token for a new pair.
//
// Lookup failures and expiry never touch the family. A non-active record, or
// losing the compare-and-set to a concurrent rotation, revokes the whole family.
// An IssueAccess error (unknown or disabled account) fails the flow before the
// store is written.
func RunRotate(ctx context.Context, presented string, deps RotateDeps) RotateResult {
	tokenID, err := deps.Resolve(presented)
	if err != nil {
		return RotateResult{Failure: RotateFailureMalformed, Err: err}
	}

	rec, err := deps.Store.Get(ctx, tokenID)
	if err != nil {
		if errors.Is(err, refresh.ErrNotFound) {
			return RotateResult{Failure: RotateFailureNotFound, Err: err}
		}
		return RotateResult{Failure: RotateFailureStore, Err: err}
	}

	now := deps.Now()
	if rec.Expired(now) {
		return RotateResult{Failure: RotateFailureExpired, Err: refresh.ErrExpired, Presented: rec}
	}
	if rec.Status != refresh.StatusActive {
		return revokeOnReuse(ctx, rec, false, deps)
	}

	// Sign before the compare-and-set: a failure must leave the record Active.
	access, accessExp, err := deps.IssueAccess(ctx, rec.UserID, now)
	if err != nil {
		return RotateResult{Failure: RotateFailureAccess, Err: err, Presented: rec}
	}

	raw, nextID, err := deps.NewToken()
	if err != nil {
		return RotateResult{Failure: RotateFailureMint, Err: err, Presented: rec}
	}
	successor := rec.Successor(nextID, now, deps.RefreshTTL)

	if err := deps.Store.Rotate(ctx, tokenID, successor); err != nil {
		switch {
		case errors.Is(err, refresh.ErrStatusConflict):
			return revokeOnReuse(ctx, rec, true, deps)
		case errors.Is(err, refresh.ErrExpired):
			return RotateResult{Failure: RotateFailureExpired, Err: err, Presented: rec}
		case errors.Is(err, refresh.ErrNotFound):
			return RotateResult{Failure: RotateFailureNotFound, Err: err, Presented: rec}
		default:
			return RotateResult{Failure: RotateFailureStore, Err: err, Presented: rec}
		}
	}

	return RotateResult{
		Presented:       rec,
		Successor:       successor,
		RefreshToken:    raw,
		AccessToken:     access,
		AccessExpiresAt: accessExp,
	}
}

func revokeOnReuse(ctx context.Context, rec *refresh.Record, raced bool, deps RotateDeps) RotateResult {
	// Revocation must finish even when the caller has gone away.
	revokeCtx := context.WithoutCancel(ctx)
	n, err := deps.Store.RevokeFamily(revokeCtx, rec.FamilyID)
	return RotateResult{
		Failure:   RotateFailureReuse,
		Err:       refresh.ErrStatusConflict,
		Presented: rec,
		Revoked:   n,
		RevokeErr: err,
		Raced:     raced,
	}
}
