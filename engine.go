package goSession

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/MrEthical07/goSession/internal"
	internalaudit "github.com/MrEthical07/goSession/internal/audit"
	"github.com/MrEthical07/goSession/internal/flows"
	"github.com/MrEthical07/goSession/jwt"
	"github.com/MrEthical07/goSession/password"
	"github.com/MrEthical07/goSession/refresh"
	"github.com/MrEthical07/goSession/reset"
)

// Engine issues, rotates and revokes refresh-token families and runs the
// password reset flow.
type Engine struct {
	config       Config
	refreshStore refresh.Store
	resetStore   reset.Store
	directory    UserDirectory
	delivery     ResetDelivery
	audit        *internalaudit.Dispatcher
	metrics      *Metrics
	passwordHash *password.Argon2
	jwtManager   *jwt.Manager
	flows        flows.Deps
	now          func() time.Time
}

// Close flushes pending audit events.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	e.audit.Close()
}

// AuditDropped returns how many audit events were dropped on a full buffer.
func (e *Engine) AuditDropped() uint64 {
	if e == nil {
		return 0
	}
	return e.audit.Dropped()
}

// MetricsSnapshot returns a copy of the in-process metrics.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return e.metrics.Snapshot()
}

// Config returns a copy of the engine configuration.
func (e *Engine) Config() Config {
	return cloneConfig(e.config)
}

func (e *Engine) buildFlowDeps() flows.Deps {
	issueAccess := func(ctx context.Context, userID string, now time.Time) (string, time.Time, error) {
		sub, err := e.subjectFor(ctx, userID)
		if err != nil {
			return "", time.Time{}, err
		}
		return e.jwtManager.CreateAccess(sub, internal.NewTokenJTI(), now)
	}

	deps := flows.Deps{
		Issue: flows.IssueDeps{
			Store:       e.refreshStore,
			Now:         e.now,
			RefreshTTL:  e.config.Session.RefreshTTL,
			NewToken:    mintOpaqueToken,
			NewFamilyID: internal.NewFamilyID,
			IssueAccess: issueAccess,
		},
		Rotate: flows.RotateDeps{
			Store:       e.refreshStore,
			Now:         e.now,
			RefreshTTL:  e.config.Session.RefreshTTL,
			Resolve:     internal.LookupID,
			NewToken:    mintOpaqueToken,
			IssueAccess: issueAccess,
		},
	}

	if e.directory != nil && e.resetStore != nil {
		deps.ResetRequest = flows.ResetRequestDeps{
			TTL:             e.config.PasswordReset.ResetTTL,
			Now:             e.now,
			FindUserByEmail: e.resetUserByEmail,
			IsUserNotFound:  isUserNotFound,
			NewToken:        mintOpaqueToken,
			Store:           e.resetStore,
		}
		if e.delivery != nil {
			deps.ResetRequest.Deliver = e.delivery.DeliverResetToken
		}
		deps.ResetConfirm = flows.ResetConfirmDeps{
			Now:                e.now,
			Resolve:            internal.LookupID,
			FindUserByUsername: e.resetUserByUsername,
			IsUserNotFound:     isUserNotFound,
			CheckPolicy:        e.passwordHash.CheckPolicy,
			HashPassword:       e.passwordHash.Hash,
			Store:              e.resetStore,
			SetPasswordHash:    e.directory.SetPasswordHash,
			RevokeSessions:     e.config.PasswordReset.RevokeSessions,
			RevokeAllForUser:   e.RevokeAllForUser,
		}
	}

	return deps
}

func mintOpaqueToken() (string, string, error) {
	tok, err := internal.NewOpaqueToken()
	if err != nil {
		return "", "", err
	}
	return tok.Raw, tok.LookupID, nil
}

// subjectFor resolves access-token claims. Without a directory only the user
// id is known. Inactive accounts get ErrAccountDisabled.
func (e *Engine) subjectFor(ctx context.Context, userID string) (jwt.Subject, error) {
	if e.directory == nil {
		return jwt.Subject{UserID: userID}, nil
	}
	user, err := e.directory.UserByID(ctx, userID)
	if err != nil {
		return jwt.Subject{}, err
	}
	if !user.IsActive {
		return jwt.Subject{}, ErrAccountDisabled
	}
	return subjectOf(user), nil
}

func subjectOf(user UserRecord) jwt.Subject {
	return jwt.Subject{UserID: user.UserID, Username: user.Username, Staff: user.IsStaff}
}

// Login verifies credentials through the directory and starts a new family.
func (e *Engine) Login(ctx context.Context, username, password string) (*LoginResult, error) {
	if e == nil || e.directory == nil {
		return nil, ErrEngineNotReady
	}

	user, err := e.directory.VerifyCredentials(ctx, username, password)
	if err != nil {
		e.metricInc(MetricLoginFailure)
		if errors.Is(err, ErrInvalidCredentials) || errors.Is(err, ErrUserNotFound) {
			e.emitAudit(ctx, auditEventLoginFailure, false, "", "", ErrInvalidCredentials, func() map[string]string {
				return map[string]string{"username": username}
			})
			return nil, ErrInvalidCredentials
		}
		e.emitAudit(ctx, auditEventLoginFailure, false, "", "", err, nil)
		return nil, fmt.Errorf("%w: %v", ErrDirectoryUnavailable, err)
	}

	if !user.IsActive {
		e.metricInc(MetricLoginDisabled)
		e.emitAudit(ctx, auditEventLoginFailure, false, user.UserID, "", ErrAccountDisabled, nil)
		return nil, ErrAccountDisabled
	}

	deps := e.flows.Issue
	sub := subjectOf(user)
	deps.IssueAccess = func(_ context.Context, _ string, now time.Time) (string, time.Time, error) {
		return e.jwtManager.CreateAccess(sub, internal.NewTokenJTI(), now)
	}

	pair, err := e.issue(ctx, user.UserID, deps)
	if err != nil {
		e.metricInc(MetricLoginFailure)
		return nil, err
	}

	if recorder, ok := e.directory.(LoginRecorder); ok {
		loginAt := e.now()
		if err := recorder.TouchLogin(ctx, user.UserID, loginAt); err == nil {
			user.LastLogin = loginAt
		}
	}

	e.metricInc(MetricLoginSuccess)
	e.emitAudit(ctx, auditEventLoginSuccess, true, user.UserID, pair.FamilyID, nil, nil)

	return &LoginResult{TokenPair: pair, User: user}, nil
}

// Issue starts a new refresh family for userID and returns its first pair.
func (e *Engine) Issue(ctx context.Context, userID string) (TokenPair, error) {
	if e == nil || e.refreshStore == nil {
		return TokenPair{}, ErrEngineNotReady
	}
	if strings.TrimSpace(userID) == "" {
		return TokenPair{}, fmt.Errorf("%w: empty user id", ErrSessionCreationFailed)
	}
	return e.issue(ctx, userID, e.flows.Issue)
}

func (e *Engine) issue(ctx context.Context, userID string, deps flows.IssueDeps) (TokenPair, error) {
	result := flows.RunIssue(ctx, userID, deps)
	switch result.Failure {
	case flows.IssueFailureNone:
	case flows.IssueFailureStore:
		return TokenPair{}, fmt.Errorf("%w: %v", ErrStoreUnavailable, result.Err)
	case flows.IssueFailureAccess:
		if errors.Is(result.Err, ErrAccountDisabled) {
			return TokenPair{}, ErrAccountDisabled
		}
		return TokenPair{}, fmt.Errorf("%w: %v", ErrSessionCreationFailed, result.Err)
	default:
		return TokenPair{}, fmt.Errorf("%w: %v", ErrSessionCreationFailed, result.Err)
	}

	e.metricInc(MetricSessionIssued)
	e.emitAudit(ctx, auditEventSessionIssued, true, userID, result.Record.FamilyID, nil, nil)

	return TokenPair{
		AccessToken:      result.AccessToken,
		RefreshToken:     result.RefreshToken,
		AccessExpiresAt:  result.AccessExpiresAt,
		RefreshExpiresAt: result.Record.ExpiresAt,
		FamilyID:         result.Record.FamilyID,
	}, nil
}

// Rotate exchanges an Active refresh token for a new pair.
//
// Unknown tokens fail with ErrInvalidToken and expired ones with
// ErrTokenExpired; neither touches the family. Any other non-Active token, or
// losing a concurrent rotation, revokes the whole family and returns
// ErrReuseDetected. If that revocation fails the storage error is joined to
// ErrReuseDetected.
func (e *Engine) Rotate(ctx context.Context, refreshToken string) (TokenPair, error) {
	if e == nil || e.refreshStore == nil {
		return TokenPair{}, ErrEngineNotReady
	}
	if refreshToken == "" {
		return TokenPair{}, ErrMissingToken
	}

	result := flows.RunRotate(ctx, refreshToken, e.flows.Rotate)

	var userID, familyID string
	if result.Presented != nil {
		userID, familyID = result.Presented.UserID, result.Presented.FamilyID
	}

	switch result.Failure {
	case flows.RotateFailureNone:
		e.metricInc(MetricRotateSuccess)
		e.emitAudit(ctx, auditEventRefreshSuccess, true, userID, familyID, nil, nil)
		return TokenPair{
			AccessToken:      result.AccessToken,
			RefreshToken:     result.RefreshToken,
			AccessExpiresAt:  result.AccessExpiresAt,
			RefreshExpiresAt: result.Successor.ExpiresAt,
			FamilyID:         result.Successor.FamilyID,
		}, nil

	case flows.RotateFailureMalformed, flows.RotateFailureNotFound:
		e.metricInc(MetricRotateInvalid)
		e.emitAudit(ctx, auditEventRefreshInvalid, false, userID, familyID, ErrInvalidToken, nil)
		return TokenPair{}, ErrInvalidToken

	case flows.RotateFailureExpired:
		e.metricInc(MetricRotateExpired)
		e.emitAudit(ctx, auditEventRefreshExpired, false, userID, familyID, ErrTokenExpired, nil)
		return TokenPair{}, ErrTokenExpired

	case flows.RotateFailureReuse:
		e.metricInc(MetricReuseDetected)
		if result.Raced {
			e.metricInc(MetricRotateRace)
		}
		if result.RevokeErr == nil {
			e.metricInc(MetricFamilyRevoked)
		}
		e.emitSecurity(ctx, auditEventRefreshReuseDetected, userID, familyID, result.RevokeErr, func() map[string]string {
			meta := map[string]string{
				"presented_status": result.Presented.Status.String(),
				"revoked":          fmt.Sprint(result.Revoked),
			}
			if result.Raced {
				meta["race"] = "true"
			}
			return meta
		})
		if result.RevokeErr != nil {
			return TokenPair{}, errors.Join(ErrReuseDetected, fmt.Errorf("%w: %v", ErrStoreUnavailable, result.RevokeErr))
		}
		return TokenPair{}, ErrReuseDetected

	case flows.RotateFailureStore:
		e.emitAudit(ctx, auditEventRefreshInvalid, false, userID, familyID, result.Err, nil)
		return TokenPair{}, fmt.Errorf("%w: %v", ErrStoreUnavailable, result.Err)

	case flows.RotateFailureAccess:
		e.emitAudit(ctx, auditEventRefreshInvalid, false, userID, familyID, result.Err, nil)
		if errors.Is(result.Err, ErrAccountDisabled) {
			return TokenPair{}, ErrAccountDisabled
		}
		return TokenPair{}, fmt.Errorf("%w: %v", ErrSessionCreationFailed, result.Err)

	default:
		e.emitAudit(ctx, auditEventRefreshInvalid, false, userID, familyID, result.Err, nil)
		return TokenPair{}, fmt.Errorf("%w: %v", ErrSessionCreationFailed, result.Err)
	}
}

// RevokeFamily marks every record of familyID Revoked. It is idempotent.
func (e *Engine) RevokeFamily(ctx context.Context, familyID string) error {
	if e == nil || e.refreshStore == nil {
		return ErrEngineNotReady
	}
	if _, err := e.refreshStore.RevokeFamily(ctx, familyID); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	e.metricInc(MetricFamilyRevoked)
	e.emitAudit(ctx, auditEventFamilyRevoked, true, "", familyID, nil, nil)
	return nil
}

// Logout revokes the family of the presented refresh token. Non-active tokens
// are accepted so a client can always end its own session.
func (e *Engine) Logout(ctx context.Context, refreshToken string) error {
	if e == nil || e.refreshStore == nil {
		return ErrEngineNotReady
	}
	if refreshToken == "" {
		return ErrMissingToken
	}

	tokenID, err := internal.LookupID(refreshToken)
	if err != nil {
		return ErrInvalidToken
	}
	rec, err := e.refreshStore.Get(ctx, tokenID)
	if err != nil {
		if errors.Is(err, refresh.ErrNotFound) {
			return ErrInvalidToken
		}
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	if _, err := e.refreshStore.RevokeFamily(ctx, rec.FamilyID); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	e.metricInc(MetricLogout)
	e.emitAudit(ctx, auditEventLogout, true, rec.UserID, rec.FamilyID, nil, nil)
	return nil
}

// RevokeAllForUser revokes every family of userID and returns how many
// families were processed.
func (e *Engine) RevokeAllForUser(ctx context.Context, userID string) (int, error) {
	if e == nil || e.refreshStore == nil {
		return 0, ErrEngineNotReady
	}

	families, err := e.refreshStore.FamilyIDs(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	var errs []error
	revoked := 0
	for _, familyID := range families {
		if _, err := e.refreshStore.RevokeFamily(ctx, familyID); err != nil {
			errs = append(errs, err)
			continue
		}
		revoked++
	}

	e.metricInc(MetricLogoutAll)
	e.emitAudit(ctx, auditEventLogoutAll, len(errs) == 0, userID, "", nil, func() map[string]string {
		return map[string]string{"families": fmt.Sprint(revoked)}
	})

	if len(errs) > 0 {
		return revoked, fmt.Errorf("%w: %v", ErrStoreUnavailable, errors.Join(errs...))
	}
	return revoked, nil
}

// ValidateAccess verifies an access token's signature and expiry. It never
// touches storage.
func (e *Engine) ValidateAccess(token string) (*AccessResult, error) {
	if e == nil || e.jwtManager == nil {
		return nil, ErrEngineNotReady
	}
	if token == "" {
		return nil, ErrMissingToken
	}

	var start time.Time
	if e.metrics.LatencyEnabled() {
		start = time.Now()
		defer func() { e.metrics.Observe(MetricValidateLatency, time.Since(start)) }()
	}

	claims, err := e.jwtManager.ParseAccess(token)
	if err != nil {
		e.metricInc(MetricValidateFailure)
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrInvalidToken
	}

	e.metricInc(MetricValidateSuccess)

	result := &AccessResult{
		UserID:   claims.UID,
		Username: claims.Username,
		Staff:    claims.Staff,
		TokenID:  claims.ID,
	}
	if claims.IssuedAt != nil {
		result.IssuedAt = claims.IssuedAt.Time
	}
	if claims.ExpiresAt != nil {
		result.ExpiresAt = claims.ExpiresAt.Time
	}
	return result, nil
}

// PublicKeyPEM returns the access-token verification key in PEM form.
func (e *Engine) PublicKeyPEM() ([]byte, error) {
	if e == nil || e.jwtManager == nil {
		return nil, ErrEngineNotReady
	}
	return e.jwtManager.PublicKeyPEM()
}

// Ping checks every backend that supports it.
func (e *Engine) Ping(ctx context.Context) error {
	if e == nil {
		return ErrEngineNotReady
	}
	var errs []error
	for _, dep := range []any{e.refreshStore, e.resetStore, e.directory} {
		if p, ok := dep.(Pinger); ok {
			if err := p.Ping(ctx); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}

func isUserNotFound(err error) bool {
	return errors.Is(err, ErrUserNotFound)
}
