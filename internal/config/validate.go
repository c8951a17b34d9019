package config

import (
	"errors"
	"fmt"
	"strings"
)

var knownFields = map[string]struct{}{
	"description": {},
	"en_title":    {},
	"category":    {},
}

var knownLevels = map[string]struct{}{
	"debug": {},
	"info":  {},
	"warn":  {},
	"error": {},
}

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePartitions(); err != nil {
		return err
	}
	if err := c.validateEnrich(); err != nil {
		return err
	}
	if err := c.validateSource(); err != nil {
		return err
	}
	if err := c.validateTranslator(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validatePartitions() error {
	if c.Partitions.FirstYear < 1900 {
		return fmt.Errorf("partitions.first_year must be a calendar year, got %d", c.Partitions.FirstYear)
	}
	if c.Partitions.LastYear != 0 && c.Partitions.LastYear < c.Partitions.FirstYear {
		return errors.New("partitions.last_year must be 0 or not earlier than partitions.first_year")
	}
	if strings.Count(c.Partitions.FilePattern, "%d") != 1 {
		return errors.New("partitions.file_pattern must contain exactly one %d placeholder for the year")
	}
	if strings.ContainsAny(c.Partitions.FilePattern, `/\`) {
		return errors.New("partitions.file_pattern must be a file name, not a path")
	}
	return nil
}

func (c *Config) validateEnrich() error {
	if len(c.Enrich.Fields) == 0 {
		return errors.New("enrich.fields must list at least one field")
	}
	for _, field := range c.Enrich.Fields {
		if _, ok := knownFields[field]; !ok {
			return fmt.Errorf("enrich.fields: unknown field %q (expected description, en_title, or category)", field)
		}
	}
	switch c.Enrich.Persist {
	case "pass", "row":
	default:
		return fmt.Errorf("enrich.persist must be %q or %q, got %q", "pass", "row", c.Enrich.Persist)
	}
	if c.Enrich.Parallelism > 16 {
		return errors.New("enrich.parallelism must not exceed 16")
	}
	return nil
}

func (c *Config) validateSource() error {
	if !strings.HasPrefix(c.Source.BaseURL, "http://") && !strings.HasPrefix(c.Source.BaseURL, "https://") {
		return fmt.Errorf("source.base_url must be an http(s) URL, got %q", c.Source.BaseURL)
	}
	if strings.Count(c.Source.ArchivePath, "%d") != 1 {
		return errors.New("source.archive_path must contain exactly one %d placeholder for the year")
	}
	return nil
}

func (c *Config) validateTranslator() error {
	if !c.Translator.Enabled {
		return nil
	}
	if c.Translator.BatchSize > 500 {
		return errors.New("translator.batch_size must not exceed 500")
	}
	return nil
}

func (c *Config) validateLogging() error {
	if _, ok := knownLevels[c.Logging.Level]; !ok {
		return fmt.Errorf("logging.level: unsupported value %q", c.Logging.Level)
	}
	for component, level := range c.Logging.ComponentOverrides {
		if _, ok := knownLevels[level]; !ok {
			return fmt.Errorf("logging.component_overrides.%s: unsupported level %q", component, level)
		}
	}
	return nil
}
