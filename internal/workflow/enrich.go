package workflow

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"

	"blaulicht/internal/enrich"
	"blaulicht/internal/logging"
	"blaulicht/internal/partition"
	"blaulicht/internal/report"
	"blaulicht/internal/services"
)

// EnrichRequest selects what an enrichment run covers. Zero values fall back
// to the configuration.
type EnrichRequest struct {
	Years   []int
	Fields  []string
	Persist string
}

// EnrichReport summarizes an enrichment run.
type EnrichReport struct {
	RunID     string                             `json:"run_id"`
	Years     []int                              `json:"years"`
	Fields    []report.Field                     `json:"fields"`
	Result    enrich.Result                      `json:"result"`
	Totals    map[report.Field]enrich.FieldStats `json:"totals"`
	Exhausted []report.Field                     `json:"exhausted,omitempty"`
}

// RunEnrichment fills unset fields across the selected partitions. Up to
// enrich.parallelism partitions run at once. A quota error is returned after
// every partition finished its other fields; any other error cancels the
// remaining partitions, which persist their progress before returning.
func (m *Manager) RunEnrichment(ctx context.Context, req EnrichRequest) (EnrichReport, error) {
	var rep EnrichReport
	years, err := m.Years(req.Years)
	if err != nil {
		return rep, err
	}
	fields, err := m.Fields(req.Fields)
	if err != nil {
		return rep, err
	}
	persistValue := req.Persist
	if persistValue == "" {
		persistValue = m.cfg.Enrich.Persist
	}
	persist, err := enrich.ParsePersist(persistValue)
	if err != nil {
		return rep, err
	}
	rep.Years = years
	rep.Fields = fields

	started := m.now()
	ctx, runID := m.beginRun(ctx, "enrich", years, fields)
	rep.RunID = runID
	logger := logging.WithContext(ctx, m.logger)

	jobs := m.jobs(ctx, fields)
	driverOpts := []enrich.Option{
		enrich.WithLogger(m.logger),
		enrich.WithPersist(persist),
		enrich.WithTaxonomy(m.taxonomy),
		enrich.WithObserver(m.observer()),
	}
	if m.sleep != nil {
		driverOpts = append(driverOpts, enrich.WithSleeper(m.sleep))
	}
	driver, err := enrich.New(m.store, jobs, driverOpts...)
	if err != nil {
		m.finishRun(ctx, "enrich", runID, started, err)
		return rep, err
	}

	logger.Info("enrichment started",
		logging.Any("years", years),
		logging.Any("fields", fields),
		logging.String("persist", string(persist)),
	)
	result, runErr := m.runPartitions(ctx, driver, years)
	rep.Result = result
	rep.Totals = result.Totals()
	rep.Exhausted = driver.Exhausted()

	m.finishRun(ctx, "enrich", runID, started, runErr)
	if runErr != nil && !services.IsQuota(runErr) {
		logging.ErrorWithContext(logger, "enrichment failed", "enrich_failed", logging.Error(runErr))
		return rep, runErr
	}
	for field, stats := range rep.Totals {
		logger.Info("field summary",
			logging.Field(string(field)),
			logging.Int("computed", stats.Computed),
			logging.Int("fallback", stats.Fallback),
			logging.Int("pending", stats.Pending),
		)
	}
	return rep, runErr
}

func (m *Manager) runPartitions(ctx context.Context, driver *enrich.Driver, years []int) (enrich.Result, error) {
	results := make([]enrich.PartitionResult, len(years))
	var (
		mu       sync.Mutex
		quotaErr error
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(1, m.cfg.Enrich.Parallelism))
	for i, year := range years {
		g.Go(func() error {
			pr, err := driver.RunPartition(gctx, partition.Key(year))
			results[i] = pr
			if err != nil && services.IsQuota(err) {
				mu.Lock()
				if quotaErr == nil {
					quotaErr = err
				}
				mu.Unlock()
				return nil
			}
			return err
		})
	}
	err := g.Wait()

	result := enrich.Result{Partitions: results}
	if err != nil {
		return result, err
	}
	return result, quotaErr
}

func (m *Manager) observer() enrich.Observer {
	if m.ledger == nil {
		return m.metrics
	}
	return enrich.Observers(m.ledger, m.metrics)
}
