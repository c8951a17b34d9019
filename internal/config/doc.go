// Package config loads, normalizes, and validates blaulicht configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// BLAULICHT_LLM_API_KEY and MYMEMORY_EMAIL. The Config type centralizes every
// knob the CLI needs: where partitions live, which fields to enrich, how
// politely to crawl the archive, and how to reach the classifier and
// translator.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
