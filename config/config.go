// Package config loads and validates the repository configuration.
//
// Settings come from three layers: repository defaults, an optional TOML
// file, and MA_-prefixed environment variables (with .env support), strongest
// last. Paths are tilde-expanded and absolute by the time Load returns, so
// downstream code never re-resolves them.
package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"

	"github.com/SAlberte/multi-annotator/vodconvert"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory and file location configuration.
type Paths struct {
	// DatasetDir is the base directory bare dataset names resolve against.
	DatasetDir string `toml:"dataset_dir"`
	// StorePath is the conversion run history database.
	StorePath string `toml:"store_path"`
}

// Convert contains conversion behaviour configuration.
type Convert struct {
	// OnUnmappedLabel is "drop" or "keep". Empty means every conversion must
	// choose explicitly.
	OnUnmappedLabel string `toml:"on_unmapped_label"`
	// Thumbnails generates a _thumbnail directory next to egested images.
	Thumbnails bool `toml:"thumbnails"`
	// Aliases is merged over the built-in label alias table.
	Aliases map[string]string `toml:"aliases"`
}

// Logging contains log output configuration.
type Logging struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// Config encapsulates all configuration values.
type Config struct {
	Paths   Paths   `toml:"paths"`
	Convert Convert `toml:"convert"`
	Logging Logging `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration
// file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/vodconv/config.toml")
}

// Load locates, parses, and validates configuration. The returned config has
// all path fields expanded and normalized. The second and third return values
// are the resolved file path and whether that file existed.
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

		if err := toml.NewDecoder(file).Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	// The .env file is optional; a missing one is not an error.
	_ = godotenv.Load()
	applyEnv(&cfg)

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
		if _, err := os.Stat(expanded); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}
	projectPath, err := filepath.Abs("vodconv.toml")
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

func applyEnv(cfg *Config) {
	set := func(target *string, key string) {
		if v, ok := os.LookupEnv(key); ok && strings.TrimSpace(v) != "" {
			*target = strings.TrimSpace(v)
		}
	}
	set(&cfg.Paths.DatasetDir, "MA_DATASET_DIR")
	set(&cfg.Paths.StorePath, "MA_STORE_PATH")
	set(&cfg.Logging.Level, "MA_LOG_LEVEL")
	set(&cfg.Logging.Format, "MA_LOG_FORMAT")
	set(&cfg.Convert.OnUnmappedLabel, "MA_ON_UNMAPPED")
}

func (c *Config) normalize() error {
	for _, p := range []*string{&c.Paths.DatasetDir, &c.Paths.StorePath} {
		expanded, err := expandPath(*p)
		if err != nil {
			return err
		}
		*p = expanded
	}
	return nil
}

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	switch strings.ToLower(strings.TrimSpace(c.Logging.Level)) {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level: unsupported value %q", c.Logging.Level)
	}
	switch strings.ToLower(strings.TrimSpace(c.Logging.Format)) {
	case "", "text", "json":
	default:
		return fmt.Errorf("logging.format: unsupported value %q", c.Logging.Format)
	}
	if p := c.Convert.OnUnmappedLabel; p != "" && !vodconvert.UnmappedLabelPolicy(p).Valid() {
		return fmt.Errorf("convert.on_unmapped_label: must be drop or keep, got %q", p)
	}
	return nil
}

// MergedAliases returns the built-in alias table with the configured aliases
// laid over it.
func (c *Config) MergedAliases() map[string]string {
	aliases := vodconvert.DefaultAliases()
	for k, v := range c.Convert.Aliases {
		aliases[k] = v
	}
	return aliases
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
		} else if len(pathValue) > 1 && pathValue[1] == '/' {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	absolute, err := filepath.Abs(filepath.Clean(pathValue))
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", pathValue, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a starter configuration file to path.
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
