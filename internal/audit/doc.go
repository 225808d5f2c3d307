// Package audit relays security events from the engine to pluggable sinks.
//
// # Components
//
//   - [Sink] consumes events (channel, JSON lines, slog, no-op).
//   - [Dispatcher] buffers events and forwards them from one goroutine, either
//     dropping or blocking when the buffer is full.
//   - [Event] is the structured record.
//
// The package decides nothing about which events exist; callers build them.
package audit
