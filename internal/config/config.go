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
	DataDir  string `toml:"data_dir"`
	StateDir string `toml:"state_dir"`
	LogDir   string `toml:"log_dir"`
}

// Partitions describes which yearly partitions exist and how they are named.
type Partitions struct {
	FirstYear   int    `toml:"first_year"`
	LastYear    int    `toml:"last_year"` // 0 means the current year
	FilePattern string `toml:"file_pattern"`
}

// Enrich contains driver settings.
type Enrich struct {
	Fields      []string `toml:"fields"`
	Persist     string   `toml:"persist"`
	Parallelism int      `toml:"parallelism"`
}

// Source contains settings for the police press archive.
type Source struct {
	BaseURL        string `toml:"base_url"`
	ArchivePath    string `toml:"archive_path"`
	PageParam      string `toml:"page_param"`
	UserAgent      string `toml:"user_agent"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
	MinDelayMillis int    `toml:"min_delay_ms"`
	MaxDelayMillis int    `toml:"max_delay_ms"`
	MaxPages       int    `toml:"max_pages"`
}

// Classifier contains the chat-completion settings used for categorization.
type Classifier struct {
	Enabled          bool   `toml:"enabled"`
	BaseURL          string `toml:"base_url"`
	Model            string `toml:"model"`
	APIKey           string `toml:"api_key"`
	Referer          string `toml:"referer"`
	Title            string `toml:"title"`
	TimeoutSeconds   int    `toml:"timeout_seconds"`
	MinIntervalMs    int    `toml:"min_interval_ms"`
	DescriptionLimit int    `toml:"description_limit"`
	TaxonomyPath     string `toml:"taxonomy_path"`
}

// Translator contains MyMemory settings used for title translation.
type Translator struct {
	Enabled          bool   `toml:"enabled"`
	BaseURL          string `toml:"base_url"`
	SourceLang       string `toml:"source_lang"`
	TargetLang       string `toml:"target_lang"`
	Email            string `toml:"email"`
	BatchSize        int    `toml:"batch_size"`
	BatchWaitSeconds int    `toml:"batch_wait_seconds"`
	MinIntervalMs    int    `toml:"min_interval_ms"`
	TimeoutSeconds   int    `toml:"timeout_seconds"`
}

// Metrics contains Prometheus export settings.
type Metrics struct {
	TextfilePath string `toml:"textfile_path"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format             string            `toml:"format"`
	Level              string            `toml:"level"`
	RetentionDays      int               `toml:"retention_days"`
	ComponentOverrides map[string]string `toml:"component_overrides"`
}

// Config encapsulates all configuration values for blaulicht.
//
// Configuration sections by subsystem:
//   - Paths: data (partition CSVs), state (ledger), and log directories
//   - Partitions: year range and file naming
//   - Enrich: fields to enrich, persistence policy, partition parallelism
//   - Source: archive URL layout and polite crawling delays
//   - Classifier: chat-completion endpoint for categorization
//   - Translator: MyMemory endpoint for title translation
//   - Metrics: Prometheus textfile export
//   - Logging: log format, level, and retention
type Config struct {
	Paths      Paths      `toml:"paths"`
	Partitions Partitions `toml:"partitions"`
	Enrich     Enrich     `toml:"enrich"`
	Source     Source     `toml:"source"`
	Classifier Classifier `toml:"classifier"`
	Translator Translator `toml:"translator"`
	Metrics    Metrics    `toml:"metrics"`
	Logging    Logging    `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/blaulicht/config.toml")
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

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("blaulicht.toml")
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

// EnsureDirectories creates the data, state, and log directories.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.DataDir, c.Paths.StateDir, c.Paths.LogDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// Years returns the configured partition range, oldest first. A zero
// last_year resolves against now.
func (c *Config) Years(now time.Time) []int {
	last := c.Partitions.LastYear
	if last == 0 {
		last = now.Year()
	}
	if last < c.Partitions.FirstYear {
		return nil
	}
	years := make([]int, 0, last-c.Partitions.FirstYear+1)
	for y := c.Partitions.FirstYear; y <= last; y++ {
		years = append(years, y)
	}
	return years
}

// LedgerPath returns the SQLite run ledger location.
func (c *Config) LedgerPath() string {
	return filepath.Join(c.Paths.StateDir, "ledger.db")
}

// ClassifierInterval returns the minimum delay between classifier calls.
func (c *Config) ClassifierInterval() time.Duration {
	return time.Duration(c.Classifier.MinIntervalMs) * time.Millisecond
}

// TranslatorInterval returns the minimum delay between translator calls.
func (c *Config) TranslatorInterval() time.Duration {
	return time.Duration(c.Translator.MinIntervalMs) * time.Millisecond
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

func defaultStateDir() string {
	if base, ok := os.LookupEnv("XDG_STATE_HOME"); ok && strings.TrimSpace(base) != "" {
		return filepath.Join(base, "blaulicht")
	}
	return "~/.local/state/blaulicht"
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
