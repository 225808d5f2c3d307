// Package otel publishes goSession metrics through an OpenTelemetry Meter.
//
// Every engine counter becomes an Int64ObservableCounter and the validate
// latency histogram becomes one cumulative gauge per bucket plus a count
// gauge. A single callback reads the engine snapshot on each collection. The
// caller owns the MeterProvider; NewMeterProvider with a LogExporter gives a
// self-contained pipeline that logs each collection.
package otel
