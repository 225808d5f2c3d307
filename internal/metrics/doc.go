// Package metrics provides lock-free counters and a latency histogram for the
// session engine.
//
// Counters live in cache-line-padded uint64 slots and are incremented with
// [sync/atomic.AddUint64]. The histogram has 8 fixed buckets (≤5ms … +Inf).
// Neither allocates on the write path. Exporters under metrics/export read
// [Snapshot] values.
//
// # What this package must NOT do
//
//   - Perform I/O.
//   - Import the root package.
//   - Expose global registries.
package metrics
