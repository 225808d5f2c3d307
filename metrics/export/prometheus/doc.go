// Package prometheus renders goSession metrics in the Prometheus text
// exposition format. Mount [Exporter.Handler] on the metrics route; nothing is
// registered globally.
package prometheus
