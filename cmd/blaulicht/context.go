package main

import (
	"fmt"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"blaulicht/internal/config"
	"blaulicht/internal/ledger"
	"blaulicht/internal/logging"
	"blaulicht/internal/workflow"
)

type commandContext struct {
	configFlag *string

	configOnce sync.Once
	config       *config.Config
	configPath   string
	configExists bool
	configErr    error
}

func newCommandContext(configFlag *string) *commandContext {
	return &commandContext{configFlag: configFlag}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, resolved, exists, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
		c.configPath = resolved
		c.configExists = exists
	})
	return c.config, c.configErr
}

// session holds what a command needs for one invocation.
type session struct {
	ledger  *ledger.Store
	manager *workflow.Manager
}

// withSession builds the logger, ledger and workflow manager, runs fn, and
// releases the ledger afterwards.
func (c *commandContext) withSession(fn func(*session) error) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}
	logger, logPath, err := logging.NewFromConfig(cfg)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	workflow.PruneLogs(cfg, logger, logPath)
	logger.Debug("configuration loaded",
		logging.String("path", c.configPath),
		logging.Bool("exists", c.configExists),
	)

	runs, err := ledger.Open(cfg, ledger.WithLogger(logger))
	if err != nil {
		return fmt.Errorf("open ledger: %w", err)
	}
	defer runs.Close()

	manager, err := workflow.NewManager(cfg, runs, workflow.WithLogger(logger))
	if err != nil {
		return err
	}
	return fn(&session{ledger: runs, manager: manager})
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}
