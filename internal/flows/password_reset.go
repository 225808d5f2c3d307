package flows

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/MrEthical07/goSession/reset"
)

// ResetUser is the slice of a directory account the reset flows need.
type ResetUser struct {
	UserID   string
	Username string
	Email    string
}

// ResetNotice is what a delivery channel receives for an issued reset token.
type ResetNotice struct {
	UserID    string
	Username  string
	Email     string
	Token     string
	ExpiresAt time.Time
}

// ResetFailureKind classifies reset flow failures.
type ResetFailureKind int

const (
	ResetFailureNone ResetFailureKind = iota
	ResetFailureEmptyInput
	ResetFailureUnknownUser
	ResetFailureLookup
	ResetFailureMint
	ResetFailureStore
	ResetFailureDelivery
	ResetFailureInvalid
	ResetFailurePolicy
	ResetFailureHash
	ResetFailureUpdate
)

// ResetRequestResult reports the outcome of a reset request. Token is the raw
// token and is set on success regardless of exposure; the Engine decides
// whether to return it.
type ResetRequestResult struct {
	Failure   ResetFailureKind
	Err       error
	UserID    string
	Token     string
	ExpiresAt time.Time
}

// ResetRequestDeps captures reset request dependencies.
type ResetRequestDeps struct {
	TTL             time.Duration
	Now             func() time.Time
	FindUserByEmail func(ctx context.Context, email string) (ResetUser, error)
	IsUserNotFound  func(error) bool
	NewToken        TokenMinter
	Store           reset.Store
	Deliver         func(ctx context.Context, notice ResetNotice) error
}

// RunRequestReset issues a reset token for the account owning email and hands
// it to the delivery channel.
func RunRequestReset(ctx context.Context, email string, deps ResetRequestDeps) ResetRequestResult {
	email = strings.TrimSpace(email)
	if email == "" {
		return ResetRequestResult{Failure: ResetFailureEmptyInput, Err: errors.New("empty email")}
	}

	user, err := deps.FindUserByEmail(ctx, email)
	if err != nil {
		if deps.IsUserNotFound != nil && deps.IsUserNotFound(err) {
			return ResetRequestResult{Failure: ResetFailureUnknownUser, Err: err}
		}
		return ResetRequestResult{Failure: ResetFailureLookup, Err: err}
	}

	raw, tokenID, err := deps.NewToken()
	if err != nil {
		return ResetRequestResult{Failure: ResetFailureMint, Err: err, UserID: user.UserID}
	}

	now := deps.Now()
	rec := &reset.Record{
		TokenID:   tokenID,
		UserID:    user.UserID,
		CreatedAt: now,
		ExpiresAt: now.Add(deps.TTL),
	}
	if err := deps.Store.Create(ctx, rec); err != nil {
		return ResetRequestResult{Failure: ResetFailureStore, Err: err, UserID: user.UserID}
	}

	if deps.Deliver != nil {
		notice := ResetNotice{
			UserID:    user.UserID,
			Username:  user.Username,
			Email:     user.Email,
			Token:     raw,
			ExpiresAt: rec.ExpiresAt,
		}
		if err := deps.Deliver(ctx, notice); err != nil {
			return ResetRequestResult{Failure: ResetFailureDelivery, Err: err, UserID: user.UserID}
		}
	}

	return ResetRequestResult{UserID: user.UserID, Token: raw, ExpiresAt: rec.ExpiresAt}
}

// ResetConfirmResult reports the outcome of a reset confirmation. Reason
// distinguishes invalid-token causes for logs only.
type ResetConfirmResult struct {
	Failure   ResetFailureKind
	Err       error
	Reason    string
	UserID    string
	Revoked   int
	RevokeErr error
}

// ResetConfirmDeps captures reset confirmation dependencies.
type ResetConfirmDeps struct {
	Now                func() time.Time
	Resolve            TokenResolver
	FindUserByUsername func(ctx context.Context, username string) (ResetUser, error)
	IsUserNotFound     func(error) bool
	CheckPolicy        func(password string) error
	HashPassword       func(password string) (string, error)
	Store              reset.Store
	SetPasswordHash    func(ctx context.Context, userID, hash string) error
	RevokeSessions     bool
	RevokeAllForUser   func(ctx context.Context, userID string) (int, error)
}

// RunConfirmReset redeems a reset token and replaces the account password.
//
// The password is validated and hashed before redemption, so a rejected
// password or a username that does not own the token leaves the token usable.
func RunConfirmReset(ctx context.Context, token, username, newPassword string, deps ResetConfirmDeps) ResetConfirmResult {
	tokenID, err := deps.Resolve(token)
	if err != nil {
		return ResetConfirmResult{Failure: ResetFailureInvalid, Err: err, Reason: "malformed"}
	}

	user, err := deps.FindUserByUsername(ctx, username)
	if err != nil {
		if deps.IsUserNotFound != nil && deps.IsUserNotFound(err) {
			return ResetConfirmResult{Failure: ResetFailureInvalid, Err: err, Reason: "unknown_user"}
		}
		return ResetConfirmResult{Failure: ResetFailureLookup, Err: err}
	}

	if err := deps.CheckPolicy(newPassword); err != nil {
		return ResetConfirmResult{Failure: ResetFailurePolicy, Err: err, UserID: user.UserID}
	}
	hash, err := deps.HashPassword(newPassword)
	if err != nil {
		return ResetConfirmResult{Failure: ResetFailureHash, Err: err, UserID: user.UserID}
	}

	if _, err := deps.Store.Redeem(ctx, tokenID, user.UserID, deps.Now()); err != nil {
		if reason := invalidReason(err); reason != "" {
			return ResetConfirmResult{Failure: ResetFailureInvalid, Err: err, Reason: reason, UserID: user.UserID}
		}
		return ResetConfirmResult{Failure: ResetFailureStore, Err: err, UserID: user.UserID}
	}

	if err := deps.SetPasswordHash(ctx, user.UserID, hash); err != nil {
		return ResetConfirmResult{Failure: ResetFailureUpdate, Err: err, UserID: user.UserID}
	}

	result := ResetConfirmResult{UserID: user.UserID}
	if deps.RevokeSessions && deps.RevokeAllForUser != nil {
		result.Revoked, result.RevokeErr = deps.RevokeAllForUser(context.WithoutCancel(ctx), user.UserID)
	}
	return result
}

func invalidReason(err error) string {
	switch {
	case errors.Is(err, reset.ErrNotFound):
		return "not_found"
	case errors.Is(err, reset.ErrUsed):
		return "used"
	case errors.Is(err, reset.ErrExpired):
		return "expired"
	case errors.Is(err, reset.ErrUserMismatch):
		return "user_mismatch"
	}
	return ""
}
