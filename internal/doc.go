// Package internal contains helpers private to goSession: opaque token generation
// and lookup-id hashing.
//
// # Sub-packages
//
//   - audit: async event dispatch (Dispatcher + Sink implementations)
//   - flows: pure-function orchestrators for issue, rotation and password reset
//   - metrics: atomic counters and the validate latency histogram
//   - config: environment configuration for the HTTP service
//   - logging: slog construction and request-scoped loggers
//   - httpapi: echo routes and handlers
//
// # What this package must NOT do
//
//   - Export types that appear in the public goSession API.
package internal
