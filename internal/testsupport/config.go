package testsupport

import (
	"path/filepath"
	"testing"

	"weft/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*config.Config)

// NewConfig produces a config seeded with unique temp directories per test.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	cfg.Paths.StateDir = filepath.Join(base, "state")
	cfg.Account.Token = "test-token"
	cfg.Worker.Region = "test-region"

	for _, opt := range opts {
		opt(&cfg)
	}
	return &cfg
}

// WithAccountURL points the test config at an account service, typically an httptest server.
func WithAccountURL(url string) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Account.URL = url
	}
}

// WithCommand sets the executor command on the test config.
func WithCommand(args ...string) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Worker.Command = args
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.StateDir)
}
