// Package metrics exposes run counters for the Prometheus node exporter's
// textfile collector. blaulicht is a batch tool, so nothing is served over
// HTTP; the workflow manager writes the registry to disk after each run.
package metrics
