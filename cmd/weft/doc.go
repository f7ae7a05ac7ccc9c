// Package main hosts the weft CLI entrypoint and command graph.
//
// The Cobra-based command tree exposes the account service calls a worker
// makes (listing workspaces, resolving the transactor endpoint, claiming
// pending work, handshakes, and lifecycle reports) for operators debugging a
// deployment, alongside journal inspection, the foreground worker loop, and
// configuration scaffolding.
//
// Keep this package lean: add new functionality by extending the internal
// packages first, then surface it through dedicated commands or flags here.
package main
