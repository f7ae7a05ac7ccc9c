// Package daemon coordinates the long-running weft worker process.
//
// It wires configuration, the job journal, and the worker coordinator into a
// single lifecycle with flock-based locking so only one worker runs per state
// directory. The daemon also exposes journal maintenance helpers and the
// notification self-test used by the CLI.
//
// Keep orchestration logic here: claim and report behavior lives in the
// worker package while the daemon focuses on startup, shutdown, and status.
package daemon
