// Package worker drives the claim loop of a workspace worker.
//
// A Coordinator announces the worker with a handshake, polls the account
// service for pending workspaces, checks each claim against the authz
// registry, resolves the transactor endpoint, and hands the job to an
// Executor while reporting lifecycle events. Every claim and report is
// recorded in the local journal. A claim the journal cannot record is
// dropped and the loop backs off.
//
// With a TokenSource the endpoint is resolved using a token scoped to the
// claimed workspace. Without one, an address in the workspace descriptor is
// used before falling back to resolving with the worker token.
//
// Reports are best-effort: a failed progress or ping report is logged and
// journaled but does not fail the job. The closing done report is the
// exception, since the account service only considers a workspace ready once
// it has seen it.
package worker
