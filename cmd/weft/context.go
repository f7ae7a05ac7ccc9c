package main

import (
	"log/slog"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"weft/internal/config"
	"weft/internal/daemonrun"
	"weft/internal/journal"
	"weft/internal/logging"
)

type commandContext struct {
	configFlag *string
	jsonFlag   *bool

	configOnce sync.Once
	config     *config.Config
	configErr  error
}

func newCommandContext(configFlag *string, jsonFlag *bool) *commandContext {
	return &commandContext{
		configFlag: configFlag,
		jsonFlag:   jsonFlag,
	}
}

func (c *commandContext) configPath() string {
	if c.configFlag == nil {
		return ""
	}
	return strings.TrimSpace(*c.configFlag)
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		cfg, _, _, err := config.Load(c.configPath())
		if err != nil {
			c.configErr = err
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

func (c *commandContext) jsonOutput() bool {
	return c.jsonFlag != nil && *c.jsonFlag
}

// stderrLogger surfaces resolver retry warnings without polluting command output.
func (c *commandContext) stderrLogger(cmd *cobra.Command) *slog.Logger {
	cfg, err := c.ensureConfig()
	if err != nil {
		return logging.NewNop()
	}
	logger, err := logging.New(logging.Options{
		Level:       cfg.Logging.Level,
		Format:      "console",
		OutputPaths: []string{"stderr"},
		Color:       shouldColorize(cmd.ErrOrStderr()),
	})
	if err != nil {
		return logging.NewNop()
	}
	return logger
}

func (c *commandContext) components(cmd *cobra.Command) (*daemonrun.Components, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	return daemonrun.NewComponents(cfg, c.stderrLogger(cmd))
}

func (c *commandContext) withJournal(fn func(*journal.Store) error) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}
	store, err := journal.Open(cfg)
	if err != nil {
		return err
	}
	defer store.Close()
	return fn(store)
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
