// Package account is the client for the workspace account service.
//
// Every call is a single POST carrying an rpc envelope to the configured URL.
// The client never retries; endpoint resolution with backoff lives in the
// endpoint package and lifecycle reporting in lifecycle. Failures are returned
// as *Error values tagged with a Kind: configuration errors are raised before
// any request is built, and connection reset/refused failures are classified
// once here so callers can retry on a stable tag.
package account
