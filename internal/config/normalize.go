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
	c.normalizePartitions()
	c.normalizeEnrich()
	c.normalizeSource()
	if err := c.normalizeClassifier(); err != nil {
		return err
	}
	c.normalizeTranslator()
	if err := c.normalizeMetrics(); err != nil {
		return err
	}
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		c.Paths.DataDir = defaultDataDir
	}
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.StateDir) == "" {
		c.Paths.StateDir = defaultStateDir()
	}
	if c.Paths.StateDir, err = expandPath(c.Paths.StateDir); err != nil {
		return fmt.Errorf("paths.state_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizePartitions() {
	c.Partitions.FilePattern = strings.TrimSpace(c.Partitions.FilePattern)
	if c.Partitions.FilePattern == "" {
		c.Partitions.FilePattern = defaultFilePattern
	}
	if c.Partitions.FirstYear == 0 {
		c.Partitions.FirstYear = defaultFirstYear
	}
}

func (c *Config) normalizeEnrich() {
	fields := make([]string, 0, len(c.Enrich.Fields))
	seen := make(map[string]struct{}, len(c.Enrich.Fields))
	for _, field := range c.Enrich.Fields {
		normalized := strings.ToLower(strings.TrimSpace(field))
		if normalized == "" {
			continue
		}
		if _, exists := seen[normalized]; exists {
			continue
		}
		seen[normalized] = struct{}{}
		fields = append(fields, normalized)
	}
	c.Enrich.Fields = fields

	c.Enrich.Persist = strings.ToLower(strings.TrimSpace(c.Enrich.Persist))
	if c.Enrich.Persist == "" {
		c.Enrich.Persist = defaultPersist
	}
	if c.Enrich.Parallelism <= 0 {
		c.Enrich.Parallelism = defaultParallelism
	}
}

func (c *Config) normalizeSource() {
	c.Source.BaseURL = strings.TrimRight(strings.TrimSpace(c.Source.BaseURL), "/")
	if c.Source.BaseURL == "" {
		c.Source.BaseURL = defaultSourceBaseURL
	}
	c.Source.ArchivePath = strings.TrimSpace(c.Source.ArchivePath)
	if c.Source.ArchivePath == "" {
		c.Source.ArchivePath = defaultSourceArchivePath
	}
	c.Source.PageParam = strings.TrimSpace(c.Source.PageParam)
	if c.Source.PageParam == "" {
		c.Source.PageParam = defaultSourcePageParam
	}
	c.Source.UserAgent = strings.TrimSpace(c.Source.UserAgent)
	if c.Source.UserAgent == "" {
		c.Source.UserAgent = defaultSourceUserAgent
	}
	if c.Source.TimeoutSeconds <= 0 {
		c.Source.TimeoutSeconds = defaultSourceTimeout
	}
	if c.Source.MinDelayMillis < 0 {
		c.Source.MinDelayMillis = 0
	}
	if c.Source.MaxDelayMillis < c.Source.MinDelayMillis {
		c.Source.MaxDelayMillis = c.Source.MinDelayMillis
	}
	if c.Source.MaxPages <= 0 {
		c.Source.MaxPages = defaultSourceMaxPages
	}
}

func (c *Config) normalizeClassifier() error {
	c.Classifier.BaseURL = strings.TrimSpace(c.Classifier.BaseURL)
	if c.Classifier.BaseURL == "" {
		c.Classifier.BaseURL = defaultClassifierBaseURL
	}
	c.Classifier.Model = strings.TrimSpace(c.Classifier.Model)
	if c.Classifier.Model == "" {
		c.Classifier.Model = defaultClassifierModel
	}
	c.Classifier.Referer = strings.TrimSpace(c.Classifier.Referer)
	c.Classifier.Title = strings.TrimSpace(c.Classifier.Title)
	if c.Classifier.Title == "" {
		c.Classifier.Title = defaultClassifierTitle
	}
	if c.Classifier.TimeoutSeconds <= 0 {
		c.Classifier.TimeoutSeconds = defaultClassifierTimeout
	}
	if c.Classifier.MinIntervalMs < 0 {
		c.Classifier.MinIntervalMs = 0
	}
	if c.Classifier.DescriptionLimit <= 0 {
		c.Classifier.DescriptionLimit = defaultDescriptionLimit
	}
	c.Classifier.APIKey = strings.TrimSpace(c.Classifier.APIKey)
	if c.Classifier.APIKey == "" {
		if value, ok := os.LookupEnv("BLAULICHT_LLM_API_KEY"); ok {
			c.Classifier.APIKey = strings.TrimSpace(value)
		} else if value, ok := os.LookupEnv("OPENROUTER_API_KEY"); ok {
			c.Classifier.APIKey = strings.TrimSpace(value)
		}
	}
	if strings.TrimSpace(c.Classifier.TaxonomyPath) != "" {
		var err error
		if c.Classifier.TaxonomyPath, err = expandPath(strings.TrimSpace(c.Classifier.TaxonomyPath)); err != nil {
			return fmt.Errorf("classifier.taxonomy_path: %w", err)
		}
	}
	return nil
}

func (c *Config) normalizeTranslator() {
	c.Translator.BaseURL = strings.TrimSpace(c.Translator.BaseURL)
	if c.Translator.BaseURL == "" {
		c.Translator.BaseURL = defaultTranslatorBaseURL
	}
	c.Translator.SourceLang = strings.TrimSpace(c.Translator.SourceLang)
	if c.Translator.SourceLang == "" {
		c.Translator.SourceLang = defaultTranslatorSource
	}
	c.Translator.TargetLang = strings.TrimSpace(c.Translator.TargetLang)
	if c.Translator.TargetLang == "" {
		c.Translator.TargetLang = defaultTranslatorTarget
	}
	c.Translator.Email = strings.TrimSpace(c.Translator.Email)
	if c.Translator.Email == "" {
		if value, ok := os.LookupEnv("MYMEMORY_EMAIL"); ok {
			c.Translator.Email = strings.TrimSpace(value)
		}
	}
	if c.Translator.BatchSize <= 0 {
		c.Translator.BatchSize = defaultTranslatorBatchSize
	}
	if c.Translator.BatchWaitSeconds < 0 {
		c.Translator.BatchWaitSeconds = 0
	}
	if c.Translator.MinIntervalMs < 0 {
		c.Translator.MinIntervalMs = 0
	}
	if c.Translator.TimeoutSeconds <= 0 {
		c.Translator.TimeoutSeconds = defaultTranslatorTimeout
	}
}

func (c *Config) normalizeMetrics() error {
	path := strings.TrimSpace(c.Metrics.TextfilePath)
	if path == "" {
		c.Metrics.TextfilePath = ""
		return nil
	}
	expanded, err := expandPath(path)
	if err != nil {
		return fmt.Errorf("metrics.textfile_path: %w", err)
	}
	c.Metrics.TextfilePath = expanded
	return nil
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	if c.Logging.RetentionDays < 0 {
		c.Logging.RetentionDays = 0
	}
	if len(c.Logging.ComponentOverrides) > 0 {
		overrides := make(map[string]string, len(c.Logging.ComponentOverrides))
		for component, level := range c.Logging.ComponentOverrides {
			key := strings.ToLower(strings.TrimSpace(component))
			if key == "" {
				continue
			}
			overrides[key] = strings.ToLower(strings.TrimSpace(level))
		}
		c.Logging.ComponentOverrides = overrides
	}
}
