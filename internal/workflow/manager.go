package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"blaulicht/internal/config"
	"blaulicht/internal/ledger"
	"blaulicht/internal/logging"
	"blaulicht/internal/metrics"
	"blaulicht/internal/partition"
	"blaulicht/internal/report"
	"blaulicht/internal/services"
	"blaulicht/internal/source"
)

// Manager wires partitions, computators, ledger and metrics for one
// invocation of the CLI.
type Manager struct {
	cfg      *config.Config
	store    *partition.CSVStore
	ledger   *ledger.Store
	metrics  *metrics.Recorder
	source   *source.Client
	taxonomy report.Taxonomy
	logger   *slog.Logger

	httpClient *http.Client
	sleep      func(context.Context, time.Duration) error
	now        func() time.Time
	newRunID   func() string
}

// ManagerOption configures optional Manager behavior.
type ManagerOption func(*Manager)

// WithLogger sets the base logger.
func WithLogger(logger *slog.Logger) ManagerOption {
	return func(m *Manager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// WithHTTPClient routes every adapter through client (used in tests).
func WithHTTPClient(client *http.Client) ManagerOption {
	return func(m *Manager) {
		m.httpClient = client
	}
}

// WithSleeper overrides every polite delay and rate-limit wait.
func WithSleeper(sleep func(context.Context, time.Duration) error) ManagerOption {
	return func(m *Manager) {
		m.sleep = sleep
	}
}

// WithClock overrides the time source used to resolve the current year.
func WithClock(now func() time.Time) ManagerOption {
	return func(m *Manager) {
		if now != nil {
			m.now = now
		}
	}
}

// WithRunIDs overrides run identifier generation.
func WithRunIDs(next func() string) ManagerOption {
	return func(m *Manager) {
		if next != nil {
			m.newRunID = next
		}
	}
}

// NewManager constructs a manager from configuration. The ledger may be nil,
// in which case runs are not recorded.
func NewManager(cfg *config.Config, runs *ledger.Store, opts ...ManagerOption) (*Manager, error) {
	if cfg == nil {
		return nil, services.Wrap(services.ErrConfiguration, "workflow", "new manager", "config required", nil)
	}
	m := &Manager{
		cfg:      cfg,
		ledger:   runs,
		metrics:  metrics.New(),
		logger:   logging.NewNop(),
		now:      time.Now,
		newRunID: uuid.NewString,
	}
	for _, opt := range opts {
		opt(m)
	}

	store, err := partition.NewCSVStore(cfg.Paths.DataDir, cfg.Partitions.FilePattern, m.logger)
	if err != nil {
		return nil, err
	}
	m.store = store

	m.taxonomy = report.DefaultTaxonomy()
	if path := strings.TrimSpace(cfg.Classifier.TaxonomyPath); path != "" {
		tax, err := report.LoadTaxonomy(path)
		if err != nil {
			return nil, services.Wrap(services.ErrConfiguration, "workflow", "load taxonomy", path, err)
		}
		m.taxonomy = tax
	}

	sourceOpts := []source.Option{source.WithLogger(m.logger)}
	if m.httpClient != nil {
		sourceOpts = append(sourceOpts, source.WithHTTPClient(m.httpClient))
	}
	if m.sleep != nil {
		sourceOpts = append(sourceOpts, source.WithSleeper(m.sleep))
	}
	m.source, err = source.NewClient(source.Config{
		BaseURL:        cfg.Source.BaseURL,
		ArchivePath:    cfg.Source.ArchivePath,
		PageParam:      cfg.Source.PageParam,
		UserAgent:      cfg.Source.UserAgent,
		TimeoutSeconds: cfg.Source.TimeoutSeconds,
		MinDelay:       time.Duration(cfg.Source.MinDelayMillis) * time.Millisecond,
		MaxDelay:       time.Duration(cfg.Source.MaxDelayMillis) * time.Millisecond,
	}, sourceOpts...)
	if err != nil {
		return nil, err
	}
	return m, nil
}

// Store exposes the partition store.
func (m *Manager) Store() *partition.CSVStore {
	return m.store
}

// Taxonomy returns the active category taxonomy.
func (m *Manager) Taxonomy() report.Taxonomy {
	return m.taxonomy
}

// Years resolves requested years against the configured range. An empty
// request selects the whole range.
func (m *Manager) Years(requested []int) ([]int, error) {
	if len(requested) == 0 {
		return m.cfg.Years(m.now()), nil
	}
	for _, year := range requested {
		if year < 1900 || year > 9999 {
			return nil, services.Wrap(services.ErrValidation, "workflow", "resolve years", fmt.Sprintf("invalid year %d", year), nil)
		}
	}
	return requested, nil
}

// Fields resolves requested field names in driver order. An empty request
// selects enrich.fields from the configuration.
func (m *Manager) Fields(requested []string) ([]report.Field, error) {
	names := requested
	if len(names) == 0 {
		names = m.cfg.Enrich.Fields
	}
	wanted := make(map[report.Field]struct{}, len(names))
	for _, name := range names {
		field, ok := report.ParseField(name)
		if !ok {
			return nil, services.Wrap(services.ErrValidation, "workflow", "resolve fields", fmt.Sprintf("unknown field %q", name), nil)
		}
		wanted[field] = struct{}{}
	}
	fields := make([]report.Field, 0, len(wanted))
	for _, field := range report.Fields {
		if _, ok := wanted[field]; ok {
			fields = append(fields, field)
		}
	}
	return fields, nil
}

func (m *Manager) beginRun(ctx context.Context, command string, years []int, fields []report.Field) (context.Context, string) {
	runID := m.newRunID()
	ctx = services.WithRunID(ctx, runID)
	if m.ledger == nil {
		return ctx, runID
	}
	names := make([]string, 0, len(fields))
	for _, f := range fields {
		names = append(names, string(f))
	}
	if err := m.ledger.BeginRun(ctx, runID, command, years, names); err != nil {
		logging.WarnWithContext(logging.WithContext(ctx, m.logger), "run not recorded", "ledger_write_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check paths.state_dir permissions"),
			logging.String(logging.FieldImpact, "run missing from blaulicht runs"),
		)
	}
	return ctx, runID
}

func (m *Manager) finishRun(ctx context.Context, command, runID string, started time.Time, runErr error) {
	ctx = context.WithoutCancel(ctx)
	logger := logging.WithContext(ctx, m.logger)
	if m.ledger != nil {
		if err := m.ledger.FinishRun(ctx, runID, runErr); err != nil {
			logging.WarnWithContext(logger, "run completion not recorded", "ledger_write_failed", logging.Error(err))
		}
	}
	m.metrics.RunFinished(command, string(ledger.StatusForError(runErr)), started, m.now())
	if err := m.metrics.WriteTextfile(m.cfg.Metrics.TextfilePath); err != nil {
		logging.WarnWithContext(logger, "metrics export failed", "metrics_write_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check metrics.textfile_path"),
			logging.String(logging.FieldImpact, "node exporter shows stale values"),
		)
	}
}
