package metrics

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"blaulicht/internal/enrich"
)

const namespace = "blaulicht"

// Recorder collects enrichment and update counters in a private registry.
type Recorder struct {
	registry *prometheus.Registry

	rows         *prometheus.CounterVec
	pending      *prometheus.GaugeVec
	satisfied    *prometheus.GaugeVec
	unrecognized *prometheus.GaugeVec
	added        *prometheus.CounterVec
	runDuration  *prometheus.GaugeVec
	lastRun      *prometheus.GaugeVec
}

// New registers the blaulicht metrics on a fresh registry.
func New() *Recorder {
	r := &Recorder{registry: prometheus.NewRegistry()}
	r.rows = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "rows_total",
		Help:      "Rows finished by the enrichment driver",
	}, []string{"partition", "field", "outcome"})
	r.pending = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "field_pending_rows",
		Help:      "Rows left unprocessed by the last worklist",
	}, []string{"partition", "field"})
	r.satisfied = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "field_satisfied_rows",
		Help:      "Rows already satisfied when the last worklist was built",
	}, []string{"partition", "field"})
	r.unrecognized = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "field_unrecognized_rows",
		Help:      "Rows holding a value outside the category taxonomy",
	}, []string{"partition", "field"})
	r.added = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "update_added_rows_total",
		Help:      "Reports prepended by the incremental updater",
	}, []string{"partition"})
	r.runDuration = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "run_duration_seconds",
		Help:      "Wall time of the last run",
	}, []string{"command"})
	r.lastRun = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "last_run_timestamp_seconds",
		Help:      "Unix timestamp of the last finished run",
	}, []string{"command", "status"})

	r.registry.MustRegister(
		r.rows, r.pending, r.satisfied, r.unrecognized,
		r.added, r.runDuration, r.lastRun,
	)
	return r
}

// Registry exposes the underlying registry.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// RowFinished counts one row outcome.
func (r *Recorder) RowFinished(_ context.Context, event enrich.RowEvent) {
	r.rows.WithLabelValues(strconv.Itoa(event.Partition), string(event.Field), string(event.Outcome)).Inc()
}

// FieldFinished sets the worklist gauges.
func (r *Recorder) FieldFinished(_ context.Context, event enrich.FieldEvent) {
	labels := []string{strconv.Itoa(event.Partition), string(event.Field)}
	r.pending.WithLabelValues(labels...).Set(float64(event.Stats.Pending))
	r.satisfied.WithLabelValues(labels...).Set(float64(event.Stats.Satisfied))
	r.unrecognized.WithLabelValues(labels...).Set(float64(event.Stats.Unrecognized))
}

// UpdateFinished counts reports prepended to a partition.
func (r *Recorder) UpdateFinished(year, added int) {
	r.added.WithLabelValues(strconv.Itoa(year)).Add(float64(added))
}

// RunFinished records the duration and completion time of a run.
func (r *Recorder) RunFinished(command, status string, started, finished time.Time) {
	r.runDuration.WithLabelValues(command).Set(finished.Sub(started).Seconds())
	r.lastRun.WithLabelValues(command, status).Set(float64(finished.Unix()))
}

// WriteTextfile publishes the registry in the node-exporter textfile format.
func (r *Recorder) WriteTextfile(path string) error {
	if path == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create metrics directory: %w", err)
	}
	if err := prometheus.WriteToTextfile(path, r.registry); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}

var _ enrich.Observer = (*Recorder)(nil)
