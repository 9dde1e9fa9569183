package main

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"lapsecam/internal/catalog"
	"lapsecam/internal/config"
	"lapsecam/internal/logging"
	"lapsecam/internal/stream"
)

type commandContext struct {
	configFlag *string

	configOnce   sync.Once
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

// openCatalog opens the catalog for read-mostly CLI commands.
func (c *commandContext) openCatalog() (*catalog.Store, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	store, err := catalog.Open(cfg)
	if err != nil {
		return nil, fmt.Errorf("open catalog: %w", err)
	}
	return store, nil
}

// cliLogger logs to stderr so stdout stays clean for tables and JSON.
func (c *commandContext) cliLogger(w io.Writer) *slog.Logger {
	level := "warn"
	if cfg, err := c.ensureConfig(); err == nil && cfg.Logging.Level == "debug" {
		level = "debug"
	}
	logger, err := logging.New(logging.Options{Level: level, Format: "console", Writer: w})
	if err != nil {
		return logging.NewNop()
	}
	return logger
}

// streamByIndex resolves --stream against the configured streams.
func (c *commandContext) streamByIndex(index int) (stream.Stream, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return stream.Stream{}, err
	}
	streams := stream.FromURLs(cfg.Streams)
	s, ok := stream.ByIndex(streams, index)
	if !ok {
		return stream.Stream{}, fmt.Errorf("stream %d not configured (have %d streams)", index, len(streams))
	}
	return s, nil
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}
