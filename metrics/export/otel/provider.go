package otel

import (
	"context"
	"log/slog"
	"time"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

// LogExporter is a push exporter that writes every collected int64 data point
// to a slog.Logger. It lets the authserver binary run a real SDK pipeline
// without a collector.
type LogExporter struct {
	logger *slog.Logger
}

var _ sdkmetric.Exporter = (*LogExporter)(nil)

func NewLogExporter(logger *slog.Logger) *LogExporter {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogExporter{logger: logger}
}

func (l *LogExporter) Temporality(kind sdkmetric.InstrumentKind) metricdata.Temporality {
	return sdkmetric.DefaultTemporalitySelector(kind)
}

func (l *LogExporter) Aggregation(kind sdkmetric.InstrumentKind) sdkmetric.Aggregation {
	return sdkmetric.DefaultAggregationSelector(kind)
}

// Export logs one record per data point. Zero-valued points are skipped.
func (l *LogExporter) Export(ctx context.Context, rm *metricdata.ResourceMetrics) error {
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			var points []metricdata.DataPoint[int64]
			switch data := m.Data.(type) {
			case metricdata.Sum[int64]:
				points = data.DataPoints
			case metricdata.Gauge[int64]:
				points = data.DataPoints
			default:
				continue
			}
			for _, p := range points {
				if p.Value == 0 {
					continue
				}
				l.logger.LogAttrs(ctx, slog.LevelInfo, "metric",
					slog.String("scope", sm.Scope.Name),
					slog.String("name", m.Name),
					slog.Int64("value", p.Value),
				)
			}
		}
	}
	return nil
}

func (l *LogExporter) ForceFlush(context.Context) error { return nil }

func (l *LogExporter) Shutdown(context.Context) error { return nil }

// NewMeterProvider wraps exp in a periodic reader collecting every interval.
// The caller shuts the provider down.
func NewMeterProvider(exp sdkmetric.Exporter, interval time.Duration) *sdkmetric.MeterProvider {
	reader := sdkmetric.NewPeriodicReader(exp, sdkmetric.WithInterval(interval))
	return sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
}
