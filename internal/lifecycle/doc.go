// Package lifecycle wraps the account client calls a worker makes about the
// workspaces it processes: claiming pending work, announcing itself, and
// reporting create/upgrade progress.
//
// Every call is a single attempt. Reports are best-effort telemetry; the
// caller decides whether a failed report matters.
package lifecycle
