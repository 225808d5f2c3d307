package goSession

import (
	"context"
	"io"
	"log/slog"
	"time"

	internalaudit "github.com/MrEthical07/goSession/internal/audit"
	"github.com/MrEthical07/goSession/internal/flows"
)

// TokenPair is returned by Issue, Login and Rotate.
type TokenPair struct {
	AccessToken      string
	RefreshToken     string
	AccessExpiresAt  time.Time
	RefreshExpiresAt time.Time
	FamilyID         string
}

// AccessResult is the verified content of an access token.
type AccessResult struct {
	UserID    string
	Username  string
	Staff     bool
	TokenID   string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// LoginResult carries the issued pair and the account that logged in.
type LoginResult struct {
	TokenPair
	User UserRecord
}

// UserRecord is the account view the engine works with.
type UserRecord struct {
	UserID    string
	Username  string
	Email     string
	IsActive  bool
	IsStaff   bool
	LastLogin time.Time

	// Profile fields are shown to the account owner and staff. The engine
	// never reads them.
	FirstName string
	LastName  string
	Phone     string
	Country   string
}

// ProfileUpdate lists the account fields an owner or staff member may change.
// Nil fields are left untouched.
type ProfileUpdate struct {
	Username  *string
	Email     *string
	FirstName *string
	LastName  *string
	Phone     *string
	Country   *string
}

// UserDirectory is the account store the engine consults. Implementations
// return ErrUserNotFound for missing accounts and ErrInvalidCredentials for a
// failed password check.
type UserDirectory interface {
	VerifyCredentials(ctx context.Context, username, password string) (UserRecord, error)
	UserByID(ctx context.Context, userID string) (UserRecord, error)
	UserByEmail(ctx context.Context, email string) (UserRecord, error)
	UserByUsername(ctx context.Context, username string) (UserRecord, error)
	SetPasswordHash(ctx context.Context, userID, hash string) error
}

// LoginRecorder is implemented by directories that track the last login time.
type LoginRecorder interface {
	TouchLogin(ctx context.Context, userID string, at time.Time) error
}

// Pinger is implemented by stores and directories that support readiness checks.
type Pinger interface {
	Ping(ctx context.Context) error
}

// ResetNotice is what a [ResetDelivery] receives for each issued reset token.
type ResetNotice = flows.ResetNotice

// ResetDelivery sends reset tokens out of band.
type ResetDelivery interface {
	DeliverResetToken(ctx context.Context, notice ResetNotice) error
}

// ResetChallenge is the result of RequestPasswordReset. Token is empty unless
// PasswordReset.ExposeToken is enabled.
type ResetChallenge struct {
	Token     string
	ExpiresAt time.Time
}

// AuditEvent is a structured audit record emitted by the engine.
type AuditEvent = internalaudit.Event

// AuditSeverity ranks an [AuditEvent].
type AuditSeverity = internalaudit.Severity

const (
	SeverityInfo     = internalaudit.SeverityInfo
	SeverityWarn     = internalaudit.SeverityWarn
	SeveritySecurity = internalaudit.SeveritySecurity
)

// AuditSink receives [AuditEvent] values from the engine's audit dispatcher.
type AuditSink = internalaudit.Sink

// NoOpSink is an [AuditSink] that discards all events.
type NoOpSink = internalaudit.NoOpSink

// ChannelSink is a buffered channel-based [AuditSink].
type ChannelSink = internalaudit.ChannelSink

// JSONWriterSink writes JSON-encoded events to an [io.Writer], one per line.
type JSONWriterSink = internalaudit.JSONWriterSink

// SlogSink logs events through a [slog.Logger].
type SlogSink = internalaudit.SlogSink

// NewChannelSink creates a [ChannelSink] with the given buffer capacity.
func NewChannelSink(buffer int) *ChannelSink {
	return internalaudit.NewChannelSink(buffer)
}

// NewJSONWriterSink creates a [JSONWriterSink] that writes to w.
func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return internalaudit.NewJSONWriterSink(w)
}

// NewSlogSink creates a [SlogSink]. Reuse detections log at WARN.
func NewSlogSink(logger *slog.Logger) *SlogSink {
	return internalaudit.NewSlogSink(logger)
}
