// Package endpoint resolves which transactor serves a workspace, retrying the
// account service while it is momentarily unreachable.
//
// Only connection reset and connection refused failures are retried, at a
// fixed one second interval. Everything else (HTTP errors, malformed replies,
// configuration problems) is returned on the first attempt. A non-positive
// timeout retries forever; a positive one is checked between attempts only, so
// a single slow call can overrun it.
package endpoint

import (
	"context"
	"log/slog"
	"time"

	"weft/internal/account"
	"weft/internal/logging"
)

// RetryInterval is the fixed pause between resolution attempts.
const RetryInterval = 1000 * time.Millisecond

// Forever disables the resolution timeout.
const Forever time.Duration = -1

// Selector is the single call the resolver wraps.
type Selector interface {
	SelectWorkspace(ctx context.Context, token string, kind account.EndpointKind) (string, error)
}

// Clock abstracts time so retry timing is deterministic in tests.
type Clock interface {
	Now() time.Time
	Sleep(ctx context.Context, d time.Duration) error
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

func (systemClock) Sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// SystemClock returns the wall clock.
func SystemClock() Clock {
	return systemClock{}
}

// Resolver wraps Selector in the retry loop.
type Resolver struct {
	selector Selector
	clock    Clock
	interval time.Duration
	logger   *slog.Logger
}

// Option customizes the resolver.
type Option func(*Resolver)

// WithClock overrides the clock (useful for tests).
func WithClock(clock Clock) Option {
	return func(r *Resolver) {
		if clock != nil {
			r.clock = clock
		}
	}
}

// WithLogger attaches a logger used to report transient retries.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Resolver) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// NewResolver constructs a resolver over selector.
func NewResolver(selector Selector, opts ...Option) *Resolver {
	r := &Resolver{
		selector: selector,
		clock:    SystemClock(),
		interval: RetryInterval,
		logger:   logging.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = logging.NewComponentLogger(r.logger, "endpoint-resolver")
	return r
}

// Resolve returns the transactor endpoint of kind for token's workspace.
func (r *Resolver) Resolve(ctx context.Context, token string, kind account.EndpointKind, timeout time.Duration) (string, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	start := r.clock.Now()
	for attempt := 1; ; attempt++ {
		endpoint, err := r.selector.SelectWorkspace(ctx, token, kind)
		if err == nil {
			return endpoint, nil
		}
		if !account.IsTransient(err) {
			return "", err
		}
		elapsed := r.clock.Now().Sub(start)
		if timeout > 0 && elapsed >= timeout {
			return "", err
		}
		r.logger.Warn("account service unreachable; retrying",
			logging.Int("attempt", attempt),
			logging.Duration("elapsed", elapsed),
			logging.ErrorKind(err),
			logging.Error(err),
		)
		if sleepErr := r.clock.Sleep(ctx, r.interval); sleepErr != nil {
			return "", sleepErr
		}
	}
}
