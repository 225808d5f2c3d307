package goSession

import (
	"context"
	"errors"
	"time"

	internalaudit "github.com/MrEthical07/goSession/internal/audit"
)

const (
	auditEventLoginSuccess          = "login_success"
	auditEventLoginFailure          = "login_failure"
	auditEventSessionIssued         = "session_issued"
	auditEventRefreshSuccess        = "refresh_success"
	auditEventRefreshInvalid        = "refresh_invalid"
	auditEventRefreshExpired        = "refresh_expired"
	auditEventRefreshReuseDetected  = "refresh_reuse_detected"
	auditEventFamilyRevoked         = "family_revoked"
	auditEventLogout                = "logout"
	auditEventLogoutAll             = "logout_all"
	auditEventPasswordResetRequest  = "password_reset_request"
	auditEventPasswordResetConfirm  = "password_reset_confirm"
	auditEventPasswordResetRejected = "password_reset_rejected"
)

// AuditErrorCode is the stable error label carried in audit events.
type AuditErrorCode string

const (
	auditErrInvalidCredentials AuditErrorCode = "invalid_credentials"
	auditErrAccountDisabled    AuditErrorCode = "account_disabled"
	auditErrInvalidToken       AuditErrorCode = "invalid_token"
	auditErrTokenExpired       AuditErrorCode = "token_expired"
	auditErrRefreshReuse       AuditErrorCode = "refresh_reuse"
	auditErrResetInvalid       AuditErrorCode = "reset_invalid"
	auditErrUserNotFound       AuditErrorCode = "user_not_found"
	auditErrPasswordPolicy     AuditErrorCode = "password_policy"
	auditErrDeliveryFailed     AuditErrorCode = "delivery_failed"
	auditErrUnavailable        AuditErrorCode = "backend_unavailable"
	auditErrInternal           AuditErrorCode = "internal_error"
)

func (e *Engine) emitAudit(
	ctx context.Context,
	eventType string,
	success bool,
	userID string,
	familyID string,
	err error,
	metadataBuilder func() map[string]string,
) {
	severity := internalaudit.SeverityInfo
	if !success {
		severity = internalaudit.SeverityWarn
	}
	e.emit(ctx, eventType, severity, success, userID, familyID, err, metadataBuilder)
}

// emitSecurity records a reuse detection or other theft signal.
func (e *Engine) emitSecurity(
	ctx context.Context,
	eventType string,
	userID string,
	familyID string,
	err error,
	metadataBuilder func() map[string]string,
) {
	if err == nil {
		err = ErrReuseDetected
	}
	e.emit(ctx, eventType, internalaudit.SeveritySecurity, false, userID, familyID, err, metadataBuilder)
}

func (e *Engine) emit(
	ctx context.Context,
	eventType string,
	severity internalaudit.Severity,
	success bool,
	userID string,
	familyID string,
	err error,
	metadataBuilder func() map[string]string,
) {
	if e == nil || e.audit == nil {
		return
	}

	var metadata map[string]string
	if metadataBuilder != nil {
		metadata = metadataBuilder()
	}

	event := AuditEvent{
		Timestamp: time.Now().UTC(),
		EventType: eventType,
		Severity:  severity,
		UserID:    userID,
		FamilyID:  familyID,
		RequestID: requestIDFromContext(ctx),
		IP:        clientIPFromContext(ctx),
		UserAgent: userAgentFromContext(ctx),
		Success:   success,
		Metadata:  metadata,
	}
	if code := auditErrorCode(err); code != "" {
		event.Error = string(code)
	}

	e.audit.Emit(ctx, event)
}

func auditErrorCode(err error) AuditErrorCode {
	if err == nil {
		return ""
	}

	switch {
	case errors.Is(err, ErrInvalidCredentials):
		return auditErrInvalidCredentials
	case errors.Is(err, ErrAccountDisabled):
		return auditErrAccountDisabled
	case errors.Is(err, ErrReuseDetected):
		return auditErrRefreshReuse
	case errors.Is(err, ErrTokenExpired):
		return auditErrTokenExpired
	case errors.Is(err, ErrInvalidToken), errors.Is(err, ErrMissingToken):
		return auditErrInvalidToken
	case errors.Is(err, ErrResetInvalid):
		return auditErrResetInvalid
	case errors.Is(err, ErrUserNotFound):
		return auditErrUserNotFound
	case errors.Is(err, ErrPasswordPolicy):
		return auditErrPasswordPolicy
	case errors.Is(err, ErrDeliveryFailed):
		return auditErrDeliveryFailed
	case errors.Is(err, ErrStoreUnavailable),
		errors.Is(err, ErrDirectoryUnavailable):
		return auditErrUnavailable
	default:
		return auditErrInternal
	}
}
