package config

import (
	"errors"
	"fmt"
	"net/url"

	"github.com/Masterminds/semver/v3"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateAccount(); err != nil {
		return err
	}
	if err := c.validateWorker(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	if c.Notifications.RequestTimeout <= 0 {
		return errors.New("notifications.request_timeout must be positive")
	}
	return nil
}

func (c *Config) validateAccount() error {
	if c.Account.URL == "" {
		return nil
	}
	parsed, err := url.Parse(c.Account.URL)
	if err != nil {
		return fmt.Errorf("account.url: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("account.url must use http or https, got %q", c.Account.URL)
	}
	if parsed.Host == "" {
		return fmt.Errorf("account.url must include a host, got %q", c.Account.URL)
	}
	return nil
}

func (c *Config) validateWorker() error {
	switch c.Worker.Operation {
	case "create", "upgrade", "all":
	default:
		return fmt.Errorf("worker.operation must be create, upgrade, or all, got %q", c.Worker.Operation)
	}
	switch c.Worker.EndpointKind {
	case "internal", "external":
	default:
		return fmt.Errorf("worker.endpoint_kind must be internal or external, got %q", c.Worker.EndpointKind)
	}
	if _, err := semver.NewVersion(c.Worker.Version); err != nil {
		return fmt.Errorf("worker.version %q is not a semantic version: %w", c.Worker.Version, err)
	}
	if err := ensurePositiveMap(map[string]int{
		"worker.poll_interval":        c.Worker.PollInterval,
		"worker.handshake_interval":   c.Worker.HandshakeInterval,
		"worker.progress_interval_ms": c.Worker.ProgressIntervalMS,
		"worker.ping_interval":        c.Worker.PingInterval,
	}); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format must be console or json, got %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be debug, info, warn, or error, got %q", c.Logging.Level)
	}
	return nil
}

func ensurePositiveMap(values map[string]int) error {
	for key, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}
