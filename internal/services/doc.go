// Package services defines shared utilities consumed by the worker and its
// account service integrations.
//
// Key responsibilities:
//   - Context helpers that stamp workspace identifiers, operation names, and
//     correlation identifiers for logging.
//   - Structured error markers plus the Wrap helper that translate failures
//     into consistent journal states (failed vs rejected).
//
// Use these helpers when wiring new worker logic so operational behaviour
// (error handling, observability) stays uniform.
package services
