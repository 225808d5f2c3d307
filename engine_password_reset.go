package goSession

import (
	"context"
	"errors"
	"fmt"

	"github.com/MrEthical07/goSession/internal/flows"
)

// RequestPasswordReset issues a single-use reset token for the account owning
// email and hands it to the configured [ResetDelivery].
//
// With PasswordReset.ExposeToken off, an unknown email succeeds with an empty
// challenge and the raw token is never returned. With it on, the token is
// returned and unknown emails fail with ErrUserNotFound.
func (e *Engine) RequestPasswordReset(ctx context.Context, email string) (ResetChallenge, error) {
	if e == nil || !e.config.PasswordReset.Enabled || e.flows.ResetRequest.Store == nil {
		return ResetChallenge{}, ErrEngineNotReady
	}

	result := flows.RunRequestReset(ctx, email, e.flows.ResetRequest)

	switch result.Failure {
	case flows.ResetFailureNone:
	case flows.ResetFailureEmptyInput, flows.ResetFailureUnknownUser:
		e.emitAudit(ctx, auditEventPasswordResetRequest, false, "", "", ErrUserNotFound, nil)
		if e.config.PasswordReset.ExposeToken {
			return ResetChallenge{}, ErrUserNotFound
		}
		e.metricInc(MetricPasswordResetRequest)
		return ResetChallenge{}, nil
	case flows.ResetFailureLookup:
		e.emitAudit(ctx, auditEventPasswordResetRequest, false, "", "", ErrDirectoryUnavailable, nil)
		return ResetChallenge{}, fmt.Errorf("%w: %v", ErrDirectoryUnavailable, result.Err)
	case flows.ResetFailureDelivery:
		e.emitAudit(ctx, auditEventPasswordResetRequest, false, result.UserID, "", ErrDeliveryFailed, nil)
		return ResetChallenge{}, fmt.Errorf("%w: %v", ErrDeliveryFailed, result.Err)
	default:
		e.emitAudit(ctx, auditEventPasswordResetRequest, false, result.UserID, "", ErrStoreUnavailable, nil)
		return ResetChallenge{}, fmt.Errorf("%w: %v", ErrStoreUnavailable, result.Err)
	}

	e.metricInc(MetricPasswordResetRequest)
	e.emitAudit(ctx, auditEventPasswordResetRequest, true, result.UserID, "", nil, nil)

	challenge := ResetChallenge{ExpiresAt: result.ExpiresAt}
	if e.config.PasswordReset.ExposeToken {
		challenge.Token = result.Token
	}
	return challenge, nil
}

// ConfirmPasswordReset redeems token for the account named username and sets
// newPassword. Unknown, used, expired and mismatched tokens all return
// ErrResetInvalid; a mismatch leaves the token usable by its owner.
func (e *Engine) ConfirmPasswordReset(ctx context.Context, token, username, newPassword string) error {
	if e == nil || !e.config.PasswordReset.Enabled || e.flows.ResetConfirm.Store == nil {
		return ErrEngineNotReady
	}
	if token == "" {
		return ErrResetInvalid
	}

	result := flows.RunConfirmReset(ctx, token, username, newPassword, e.flows.ResetConfirm)

	switch result.Failure {
	case flows.ResetFailureNone:
	case flows.ResetFailureInvalid:
		e.metricInc(MetricPasswordResetConfirmFailure)
		e.emitAudit(ctx, auditEventPasswordResetRejected, false, result.UserID, "", ErrResetInvalid, func() map[string]string {
			return map[string]string{"reason": result.Reason}
		})
		return ErrResetInvalid
	case flows.ResetFailurePolicy:
		e.metricInc(MetricPasswordResetConfirmFailure)
		e.emitAudit(ctx, auditEventPasswordResetRejected, false, result.UserID, "", ErrPasswordPolicy, nil)
		return fmt.Errorf("%w: %v", ErrPasswordPolicy, result.Err)
	case flows.ResetFailureLookup, flows.ResetFailureUpdate:
		e.metricInc(MetricPasswordResetConfirmFailure)
		e.emitAudit(ctx, auditEventPasswordResetConfirm, false, result.UserID, "", ErrDirectoryUnavailable, nil)
		return fmt.Errorf("%w: %v", ErrDirectoryUnavailable, result.Err)
	default:
		e.metricInc(MetricPasswordResetConfirmFailure)
		e.emitAudit(ctx, auditEventPasswordResetConfirm, false, result.UserID, "", ErrStoreUnavailable, nil)
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, result.Err)
	}

	e.metricInc(MetricPasswordResetConfirmSuccess)
	e.emitAudit(ctx, auditEventPasswordResetConfirm, true, result.UserID, "", result.RevokeErr, func() map[string]string {
		return map[string]string{"families_revoked": fmt.Sprint(result.Revoked)}
	})

	if result.RevokeErr != nil {
		if errors.Is(result.RevokeErr, ErrStoreUnavailable) {
			return result.RevokeErr
		}
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, result.RevokeErr)
	}
	return nil
}

func (e *Engine) resetUserByEmail(ctx context.Context, email string) (flows.ResetUser, error) {
	user, err := e.directory.UserByEmail(ctx, email)
	if err != nil {
		return flows.ResetUser{}, err
	}
	return flows.ResetUser{UserID: user.UserID, Username: user.Username, Email: user.Email}, nil
}

func (e *Engine) resetUserByUsername(ctx context.Context, username string) (flows.ResetUser, error) {
	user, err := e.directory.UserByUsername(ctx, username)
	if err != nil {
		return flows.ResetUser{}, err
	}
	return flows.ResetUser{UserID: user.UserID, Username: user.Username, Email: user.Email}, nil
}
