package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"weft/internal/account"
	"weft/internal/services"
)

// Exit codes follow sysexits so wrappers can tell a retryable outage from a
// broken configuration.
const (
	exitFailure     = 1
	exitUnavailable = 69
	exitTempFail    = 75
	exitConfig      = 78
)

func main() {
	cmd := newRootCommand()
	if err := cmd.Execute(); err != nil {
		if !errors.Is(err, context.Canceled) {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(exitCode(err))
	}
}

func exitCode(err error) int {
	switch {
	case account.IsConfiguration(err), errors.Is(err, services.ErrConfiguration):
		return exitConfig
	case account.IsTransient(err):
		return exitTempFail
	case account.KindOf(err) == account.KindTransport, account.KindOf(err) == account.KindHTTPStatus:
		return exitUnavailable
	default:
		return exitFailure
	}
}
