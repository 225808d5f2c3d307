// Package flows holds the orchestration behind each Engine operation.
//
// Every flow takes a dependency struct of interfaces and function fields and
// returns a result value carrying a failure kind. The Engine translates kinds
// into its public errors, audit events and metrics, so flows stay free of those
// concerns and can be tested with plain fakes.
//
// # What this package must NOT do
//
//   - Hold state between calls.
//   - Import the root package.
//   - Perform I/O other than through its dependencies.
package flows
