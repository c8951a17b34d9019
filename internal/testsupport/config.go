package testsupport

import (
	"path/filepath"
	"testing"

	"blaulicht/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// Network adapters point nowhere until a With*URL option supplies an
// httptest server, polite delays are zeroed, and batch waits are disabled.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.DataDir = filepath.Join(base, "data")
	cfgVal.Paths.StateDir = filepath.Join(base, "state")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Partitions.FirstYear = 2024
	cfgVal.Partitions.LastYear = 2025
	cfgVal.Source.BaseURL = "http://127.0.0.1:0"
	cfgVal.Source.MinDelayMillis = 0
	cfgVal.Source.MaxDelayMillis = 0
	cfgVal.Source.MaxPages = 20
	cfgVal.Classifier.BaseURL = "http://127.0.0.1:0/v1/chat/completions"
	cfgVal.Classifier.MinIntervalMs = 0
	cfgVal.Translator.BaseURL = "http://127.0.0.1:0/get"
	cfgVal.Translator.BatchWaitSeconds = 0
	cfgVal.Translator.MinIntervalMs = 0

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	return builder.cfg
}

// WithYears limits the partition range.
func WithYears(first, last int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Partitions.FirstYear = first
		b.cfg.Partitions.LastYear = last
	}
}

// WithFields sets the fields the driver enriches.
func WithFields(fields ...string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Enrich.Fields = fields
	}
}

// WithSourceURL points the archive adapter at a test server.
func WithSourceURL(url string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Source.BaseURL = url
	}
}

// WithClassifierURL points the chat-completion client at a test server.
func WithClassifierURL(url string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Classifier.BaseURL = url
	}
}

// WithTranslatorURL points the MyMemory client at a test server.
func WithTranslatorURL(url string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Translator.BaseURL = url
	}
}

// WithMetricsTextfile enables the Prometheus textfile export under the
// test's temp directory.
func WithMetricsTextfile() ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Metrics.TextfilePath = filepath.Join(b.baseDir, "metrics", "blaulicht.prom")
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.DataDir)
}
