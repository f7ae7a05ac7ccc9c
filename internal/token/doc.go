// Package token mints workspace-scoped account tokens.
//
// The account service resolves a transactor endpoint from the bearer token
// alone, so a worker serving many workspaces signs one token per claimed
// workspace with the shared service secret instead of reusing its own.
package token
