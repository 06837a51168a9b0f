package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/SAlberte/multi-annotator/config"
	"github.com/SAlberte/multi-annotator/logging"
	"github.com/SAlberte/multi-annotator/store"
)

// commandContext lazily loads the pieces commands share: configuration, the
// logger derived from it, and the run history store.
type commandContext struct {
	configFlag *string

	configOnce   sync.Once
	config       *config.Config
	configPath   string
	configExists bool
	configErr    error

	loggerOnce sync.Once
	logger     *slog.Logger
	loggerErr  error
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
		c.config, c.configPath, c.configExists, c.configErr = config.Load(path)
	})
	return c.config, c.configErr
}

func (c *commandContext) ensureLogger() (*slog.Logger, error) {
	c.loggerOnce.Do(func() {
		cfg, err := c.ensureConfig()
		if err != nil {
			c.loggerErr = err
			return
		}
		c.logger, c.loggerErr = logging.New(logging.Options{
			Level:  cfg.Logging.Level,
			Format: cfg.Logging.Format,
		})
	})
	return c.logger, c.loggerErr
}

// openStore opens the run history database. Callers close it.
func (c *commandContext) openStore() (*store.Store, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	return store.Open(cfg.Paths.StorePath)
}

// resolveDataset turns a dataset argument into an absolute path. Bare names
// (no separator, no dot prefix) fall back to the configured dataset directory
// when they do not exist relative to the working directory.
func (c *commandContext) resolveDataset(path string, mustExist bool) (string, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return "", err
	}
	if path == "" {
		return "", fmt.Errorf("empty dataset path")
	}
	if strings.HasPrefix(path, "~") || filepath.IsAbs(path) {
		return config.ExpandPath(path)
	}
	if strings.ContainsRune(path, os.PathSeparator) || strings.HasPrefix(path, ".") {
		return filepath.Abs(path)
	}
	if _, err := os.Stat(path); err == nil {
		return filepath.Abs(path)
	}
	candidate := filepath.Join(cfg.Paths.DatasetDir, path)
	if mustExist {
		if _, err := os.Stat(candidate); err != nil {
			return "", fmt.Errorf("dataset %q not found here or in %s", path, cfg.Paths.DatasetDir)
		}
	}
	return candidate, nil
}
