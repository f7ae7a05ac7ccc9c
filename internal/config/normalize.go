package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeAccount()
	c.normalizeWorker()
	c.normalizeLogging()
	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.StateDir) == "" {
		c.Paths.StateDir = defaultStateDir
	}
	if c.Paths.StateDir, err = expandPath(c.Paths.StateDir); err != nil {
		return fmt.Errorf("paths.state_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeAccount() {
	c.Account.URL = strings.TrimSpace(c.Account.URL)
	if c.Account.URL == "" {
		if value, ok := os.LookupEnv("WEFT_ACCOUNT_URL"); ok {
			c.Account.URL = strings.TrimSpace(value)
		}
	}
	c.Account.Token = strings.TrimSpace(c.Account.Token)
	if c.Account.Token == "" {
		if value, ok := os.LookupEnv("WEFT_TOKEN"); ok {
			c.Account.Token = strings.TrimSpace(value)
		}
	}
	c.Account.TokenSecret = strings.TrimSpace(c.Account.TokenSecret)
	if c.Account.TokenSecret == "" {
		if value, ok := os.LookupEnv("WEFT_TOKEN_SECRET"); ok {
			c.Account.TokenSecret = strings.TrimSpace(value)
		}
	}
	c.Account.SystemEmail = strings.TrimSpace(c.Account.SystemEmail)
	if c.Account.TimeoutSeconds <= 0 {
		c.Account.TimeoutSeconds = defaultAccountTimeoutSeconds
	}
}

func (c *Config) normalizeWorker() {
	c.Worker.Region = strings.TrimSpace(c.Worker.Region)
	c.Worker.Version = strings.TrimSpace(c.Worker.Version)
	if c.Worker.Version == "" {
		c.Worker.Version = defaultWorkerVersion
	}
	c.Worker.Operation = strings.ToLower(strings.TrimSpace(c.Worker.Operation))
	if c.Worker.Operation == "" {
		c.Worker.Operation = defaultOperation
	}
	c.Worker.EndpointKind = strings.ToLower(strings.TrimSpace(c.Worker.EndpointKind))
	if c.Worker.EndpointKind == "" {
		c.Worker.EndpointKind = defaultEndpointKind
	}
	command := c.Worker.Command[:0]
	for _, arg := range c.Worker.Command {
		if strings.TrimSpace(arg) != "" {
			command = append(command, arg)
		}
	}
	c.Worker.Command = command
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
