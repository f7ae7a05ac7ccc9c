package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	LogDir   string `toml:"log_dir"`
	StateDir string `toml:"state_dir"`
}

// Account contains the account service connection settings.
type Account struct {
	URL            string `toml:"url"`
	Token          string `toml:"token"`
	TokenSecret    string `toml:"token_secret"`
	SystemEmail    string `toml:"system_email"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// Worker contains the claim loop and lifecycle reporting settings.
type Worker struct {
	Region       string `toml:"region"`
	Version      string `toml:"version"`
	Operation    string `toml:"operation"`
	EndpointKind string `toml:"endpoint_kind"`
	// PollInterval is the pause in seconds after an empty claim.
	PollInterval int `toml:"poll_interval"`
	// HandshakeInterval re-announces the worker every N seconds.
	HandshakeInterval int `toml:"handshake_interval"`
	// ResolveTimeout bounds transactor endpoint resolution in seconds; -1 waits forever.
	ResolveTimeout int `toml:"resolve_timeout"`
	// ProgressIntervalMS is the minimum spacing between progress reports.
	ProgressIntervalMS int `toml:"progress_interval_ms"`
	// PingInterval keeps the claim alive while a job runs silently.
	PingInterval int      `toml:"ping_interval"`
	Command      []string `toml:"command"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Notifications contains configuration for ntfy push notifications.
type Notifications struct {
	NtfyTopic      string `toml:"ntfy_topic"`
	RequestTimeout int    `toml:"request_timeout"`
	Completed      bool   `toml:"completed"`
	Errors         bool   `toml:"errors"`
}

// Config encapsulates all configuration values for weft.
//
// Configuration sections by subsystem:
//   - Paths: log and state directories
//   - Account: account service URL, token, and HTTP timeout
//   - Worker: claim filter, intervals, and the executor command
//   - Logging: log format and level
//   - Notifications: ntfy push notification settings
type Config struct {
	Paths         Paths         `toml:"paths"`
	Account       Account       `toml:"account"`
	Worker        Worker        `toml:"worker"`
	Logging       Logging       `toml:"logging"`
	Notifications Notifications `toml:"notifications"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("weft.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the directories the worker writes to.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.LogDir, c.Paths.StateDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// AccountTimeout returns the per-request HTTP timeout for the account service.
func (c *Config) AccountTimeout() time.Duration {
	return time.Duration(c.Account.TimeoutSeconds) * time.Second
}

// ResolveTimeout returns the endpoint resolution budget. Non-positive values
// mean retry forever.
func (c *Config) ResolveTimeout() time.Duration {
	if c.Worker.ResolveTimeout <= 0 {
		return -1
	}
	return time.Duration(c.Worker.ResolveTimeout) * time.Second
}

// PollInterval returns the pause after an empty claim.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.Worker.PollInterval) * time.Second
}

// HandshakeInterval returns how often the worker re-announces itself.
func (c *Config) HandshakeInterval() time.Duration {
	return time.Duration(c.Worker.HandshakeInterval) * time.Second
}

// PingInterval returns how often a running job pings the account service.
func (c *Config) PingInterval() time.Duration {
	return time.Duration(c.Worker.PingInterval) * time.Second
}

// ProgressInterval returns the minimum spacing between progress reports.
func (c *Config) ProgressInterval() time.Duration {
	return time.Duration(c.Worker.ProgressIntervalMS) * time.Millisecond
}

// JournalPath returns the location of the local job journal.
func (c *Config) JournalPath() string {
	return filepath.Join(c.Paths.StateDir, "journal.db")
}

// LockPath returns the single-instance lock file for the worker.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.StateDir, "weftd.lock")
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
