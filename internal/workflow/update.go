package workflow

import (
	"context"

	"blaulicht/internal/logging"
	"blaulicht/internal/updater"
)

// UpdateRequest selects the partitions to bring up to date and whether to
// enrich them afterwards.
type UpdateRequest struct {
	Years   []int
	Enrich  bool
	Fields  []string
	Persist string
}

// UpdateReport summarizes an update run.
type UpdateReport struct {
	RunID      string           `json:"run_id"`
	Partitions []updater.Result `json:"partitions"`
	Enrichment *EnrichReport    `json:"enrichment,omitempty"`
}

// RunUpdate prepends new archive reports to each selected partition, one
// partition at a time. A malformed timestamp stops the run before that
// partition is written.
func (m *Manager) RunUpdate(ctx context.Context, req UpdateRequest) (UpdateReport, error) {
	var rep UpdateReport
	years, err := m.Years(req.Years)
	if err != nil {
		return rep, err
	}

	started := m.now()
	runCtx, runID := m.beginRun(ctx, "update", years, nil)
	rep.RunID = runID
	logger := logging.WithContext(runCtx, m.logger)

	u := updater.New(m.store, m.source,
		updater.WithLogger(m.logger),
		updater.WithMaxPages(m.cfg.Source.MaxPages),
		updater.WithPacer(m.source),
	)
	for _, year := range years {
		res, err := u.Run(runCtx, year)
		rep.Partitions = append(rep.Partitions, res)
		m.metrics.UpdateFinished(year, res.Added)
		if err != nil {
			logging.ErrorWithContext(logger, "update failed", "update_failed",
				logging.Partition(year),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "inspect the archive page and the newest stored row"),
			)
			m.finishRun(runCtx, "update", runID, started, err)
			return rep, err
		}
	}
	m.finishRun(runCtx, "update", runID, started, nil)

	if !req.Enrich {
		return rep, nil
	}
	enriched, err := m.RunEnrichment(ctx, EnrichRequest{Years: years, Fields: req.Fields, Persist: req.Persist})
	rep.Enrichment = &enriched
	return rep, err
}
