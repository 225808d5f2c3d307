package goSession

import (
	internalmetrics "github.com/MrEthical07/goSession/internal/metrics"
)

// MetricID identifies a counter or histogram in the in-process metrics.
type MetricID = internalmetrics.MetricID

const (
	MetricLoginSuccess                = MetricID(internalmetrics.MetricLoginSuccess)
	MetricLoginFailure                = MetricID(internalmetrics.MetricLoginFailure)
	MetricLoginDisabled               = MetricID(internalmetrics.MetricLoginDisabled)
	MetricSessionIssued               = MetricID(internalmetrics.MetricSessionIssued)
	MetricRotateSuccess               = MetricID(internalmetrics.MetricRotateSuccess)
	MetricRotateInvalid               = MetricID(internalmetrics.MetricRotateInvalid)
	MetricRotateExpired               = MetricID(internalmetrics.MetricRotateExpired)
	MetricReuseDetected               = MetricID(internalmetrics.MetricReuseDetected)
	MetricRotateRace                  = MetricID(internalmetrics.MetricRotateRace)
	MetricFamilyRevoked               = MetricID(internalmetrics.MetricFamilyRevoked)
	MetricLogout                      = MetricID(internalmetrics.MetricLogout)
	MetricLogoutAll                   = MetricID(internalmetrics.MetricLogoutAll)
	MetricValidateSuccess             = MetricID(internalmetrics.MetricValidateSuccess)
	MetricValidateFailure             = MetricID(internalmetrics.MetricValidateFailure)
	MetricPasswordResetRequest        = MetricID(internalmetrics.MetricPasswordResetRequest)
	MetricPasswordResetConfirmSuccess = MetricID(internalmetrics.MetricPasswordResetConfirmSuccess)
	MetricPasswordResetConfirmFailure = MetricID(internalmetrics.MetricPasswordResetConfirmFailure)
	MetricValidateLatency             = MetricID(internalmetrics.MetricValidateLatency)
)

// Metrics holds atomic counters and an optional validate latency histogram.
type Metrics = internalmetrics.Metrics

// MetricsSnapshot is a point-in-time copy of all metrics.
type MetricsSnapshot = internalmetrics.Snapshot

// NewMetrics creates a [Metrics] instance. When cfg.Enabled is false every
// operation is a no-op.
func NewMetrics(cfg MetricsConfig) *Metrics {
	return internalmetrics.New(internalmetrics.Config{
		Enabled:       cfg.Enabled,
		EnableLatency: cfg.EnableLatencyHistograms,
	})
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}
