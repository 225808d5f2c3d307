package internaldefs

import (
	goSession "github.com/MrEthical07/goSession"
)

// BucketCount is the number of validate-latency buckets, +Inf included.
const BucketCount = 8

type CounterDef struct {
	ID   goSession.MetricID
	Name string
	Help string
}

type HistogramDef struct {
	ID   goSession.MetricID
	Name string
	Help string
}

// AuditDroppedName is exported alongside the engine counters.
const AuditDroppedName = "gosession_audit_dropped_total"

var CounterDefs = []CounterDef{
	{ID: goSession.MetricLoginSuccess, Name: "gosession_login_success_total", Help: "Successful logins."},
	{ID: goSession.MetricLoginFailure, Name: "gosession_login_failure_total", Help: "Failed logins."},
	{ID: goSession.MetricLoginDisabled, Name: "gosession_login_disabled_total", Help: "Logins refused for inactive accounts."},
	{ID: goSession.MetricSessionIssued, Name: "gosession_session_issued_total", Help: "Refresh families started."},
	{ID: goSession.MetricRotateSuccess, Name: "gosession_rotate_success_total", Help: "Successful refresh rotations."},
	{ID: goSession.MetricRotateInvalid, Name: "gosession_rotate_invalid_total", Help: "Rotations with unknown or malformed tokens."},
	{ID: goSession.MetricRotateExpired, Name: "gosession_rotate_expired_total", Help: "Rotations with expired tokens."},
	{ID: goSession.MetricReuseDetected, Name: "gosession_reuse_detected_total", Help: "Refresh token reuse detections."},
	{ID: goSession.MetricRotateRace, Name: "gosession_rotate_race_total", Help: "Rotations that lost a concurrent race."},
	{ID: goSession.MetricFamilyRevoked, Name: "gosession_family_revoked_total", Help: "Refresh families revoked."},
	{ID: goSession.MetricLogout, Name: "gosession_logout_total", Help: "Single-session logouts."},
	{ID: goSession.MetricLogoutAll, Name: "gosession_logout_all_total", Help: "Logout-everywhere operations."},
	{ID: goSession.MetricValidateSuccess, Name: "gosession_validate_success_total", Help: "Accepted access tokens."},
	{ID: goSession.MetricValidateFailure, Name: "gosession_validate_failure_total", Help: "Rejected access tokens."},
	{ID: goSession.MetricPasswordResetRequest, Name: "gosession_password_reset_request_total", Help: "Password reset requests."},
	{ID: goSession.MetricPasswordResetConfirmSuccess, Name: "gosession_password_reset_confirm_success_total", Help: "Successful password reset confirmations."},
	{ID: goSession.MetricPasswordResetConfirmFailure, Name: "gosession_password_reset_confirm_failure_total", Help: "Rejected password reset confirmations."},
}

var HistogramDefs = []HistogramDef{
	{ID: goSession.MetricValidateLatency, Name: "gosession_validate_latency_seconds", Help: "Access token validation latency."},
}

// HistogramBounds are the Prometheus "le" labels, matching the engine's
// millisecond buckets.
var HistogramBounds = [BucketCount]string{"0.005", "0.01", "0.025", "0.05", "0.1", "0.25", "0.5", "+Inf"}

// HistogramBoundSuffix names the per-bucket OTel gauges.
var HistogramBoundSuffix = [BucketCount]string{"0_005", "0_01", "0_025", "0_05", "0_1", "0_25", "0_5", "inf"}

// Cumulative converts raw per-bucket counts into cumulative counts. Missing
// buckets count as zero and extra ones are ignored.
func Cumulative(raw []uint64) [BucketCount]uint64 {
	var out [BucketCount]uint64
	var running uint64
	for i := 0; i < BucketCount; i++ {
		if i < len(raw) {
			running += raw[i]
		}
		out[i] = running
	}
	return out
}
