package enrich

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"blaulicht/internal/gate"
	"blaulicht/internal/logging"
	"blaulicht/internal/partition"
	"blaulicht/internal/report"
	"blaulicht/internal/services"
)

// Persist selects when the driver writes a partition.
type Persist string

const (
	// PersistPass saves after each field worklist completes or truncates.
	PersistPass Persist = "pass"
	// PersistRow saves after every mutated row.
	PersistRow Persist = "row"
)

// ParsePersist validates a persist policy name.
func ParsePersist(value string) (Persist, error) {
	switch Persist(value) {
	case PersistPass, PersistRow:
		return Persist(value), nil
	case "":
		return PersistPass, nil
	default:
		return "", services.Wrap(services.ErrValidation, "enrich", "parse persist", fmt.Sprintf("unknown policy %q", value), nil)
	}
}

// Option configures a Driver.
type Option func(*Driver)

// WithLogger sets the driver logger.
func WithLogger(logger *slog.Logger) Option {
	return func(d *Driver) {
		if logger != nil {
			d.logger = logger
		}
	}
}

// WithObserver registers a progress observer.
func WithObserver(observer Observer) Option {
	return func(d *Driver) {
		d.observer = observer
	}
}

// WithPersist sets the persist policy.
func WithPersist(policy Persist) Option {
	return func(d *Driver) {
		if policy != "" {
			d.persist = policy
		}
	}
}

// WithTaxonomy sets the category vocabulary used by the gate.
func WithTaxonomy(tax report.Taxonomy) Option {
	return func(d *Driver) {
		d.taxonomy = tax
	}
}

// WithSleeper overrides how interval waits are performed (useful for tests).
func WithSleeper(sleep func(context.Context, time.Duration) error) Option {
	return func(d *Driver) {
		if sleep != nil {
			d.sleep = sleep
		}
	}
}

// Driver fills missing fields of partitions through computators.
type Driver struct {
	store    partition.Store
	jobs     []Job
	windows  []*window
	taxonomy report.Taxonomy
	persist  Persist
	observer Observer
	logger   *slog.Logger
	sleep    func(context.Context, time.Duration) error

	mu        sync.Mutex
	exhausted map[int]error
}

// New constructs a driver for the given jobs. Jobs run in the order given.
func New(store partition.Store, jobs []Job, opts ...Option) (*Driver, error) {
	if store == nil {
		return nil, errors.New("enrich: store required")
	}
	seen := make(map[report.Field]struct{}, len(jobs))
	for _, job := range jobs {
		if job.Computator == nil {
			return nil, fmt.Errorf("enrich: job %s has no computator", job.Field)
		}
		if _, dup := seen[job.Field]; dup {
			return nil, fmt.Errorf("enrich: duplicate job for field %s", job.Field)
		}
		seen[job.Field] = struct{}{}
	}
	d := &Driver{
		store:     store,
		jobs:      jobs,
		taxonomy:  report.DefaultTaxonomy(),
		persist:   PersistPass,
		logger:    logging.NewNop(),
		sleep:     services.Sleep,
		exhausted: make(map[int]error),
	}
	for _, opt := range opts {
		opt(d)
	}
	d.logger = logging.NewComponentLogger(d.logger, "driver")
	d.windows = make([]*window, len(jobs))
	for i, job := range jobs {
		d.windows[i] = newWindow(job.MinInterval)
	}
	return d, nil
}

// Run processes partitions sequentially. It stops at the first error other
// than quota exhaustion; quota errors are returned after every partition had
// its remaining fields processed.
func (d *Driver) Run(ctx context.Context, keys []partition.Key) (Result, error) {
	var (
		result   Result
		quotaErr error
	)
	for _, key := range keys {
		pr, err := d.RunPartition(ctx, key)
		result.Partitions = append(result.Partitions, pr)
		if err != nil {
			if services.IsQuota(err) {
				if quotaErr == nil {
					quotaErr = err
				}
				continue
			}
			return result, err
		}
	}
	return result, quotaErr
}

// Exhausted reports the fields whose computator hit its quota in this run.
func (d *Driver) Exhausted() []report.Field {
	d.mu.Lock()
	defer d.mu.Unlock()
	var fields []report.Field
	for i, job := range d.jobs {
		if _, ok := d.exhausted[i]; ok {
			fields = append(fields, job.Field)
		}
	}
	return fields
}

func (d *Driver) markExhausted(i int, err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.exhausted[i]; !ok {
		d.exhausted[i] = err
	}
}

func (d *Driver) exhaustedErr(i int) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.exhausted[i]
}

// partitionRun holds the mutable state of one partition pass.
type partitionRun struct {
	key    partition.Key
	rows   []report.Report
	dirty  bool
	result *PartitionResult
	logger *slog.Logger
}

// RunPartition enriches one partition under its lock. A missing partition is
// skipped. Quota exhaustion truncates the affected field only; the error is
// returned once the other fields are done.
func (d *Driver) RunPartition(ctx context.Context, key partition.Key) (PartitionResult, error) {
	result := PartitionResult{Partition: int(key), Fields: make(map[report.Field]FieldStats)}
	if err := ctx.Err(); err != nil {
		return result, err
	}
	ctx = services.WithPartition(ctx, int(key))
	logger := logging.WithContext(ctx, d.logger)

	unlock, err := d.store.Lock(key)
	if err != nil {
		return result, err
	}
	defer func() {
		if err := unlock(); err != nil {
			logger.Warn("partition unlock failed", logging.Error(err))
		}
	}()

	rows, err := d.store.Load(ctx, key)
	if err != nil {
		if errors.Is(err, services.ErrNotFound) {
			result.Missing = true
			logger.Info("partition missing, skipping")
			return result, nil
		}
		return result, err
	}
	result.Rows = len(rows)

	// Worklists are fixed before any computation starts.
	lists := make([]gate.Worklist, len(d.jobs))
	for i, job := range d.jobs {
		lists[i] = gate.Build(rows, job.Field, gate.For(job.Field, d.taxonomy))
	}

	run := &partitionRun{key: key, rows: rows, result: &result, logger: logger}
	var quotaErr error
	for i, job := range d.jobs {
		list := lists[i]
		stats := FieldStats{Satisfied: list.Satisfied, Unrecognized: list.Unrecognized}
		if err := ctx.Err(); err != nil {
			stats.Pending = list.Len()
			d.finishField(ctx, run, job, stats)
			return result, d.abort(ctx, run, err)
		}
		fieldCtx := services.WithField(ctx, string(job.Field))

		if exhausted := d.exhaustedErr(i); exhausted != nil {
			stats.Pending = list.Len()
			if list.Len() > 0 {
				logger.Info("computator exhausted earlier in run, leaving field pending",
					logging.Field(string(job.Field)),
					logging.Int("pending", list.Len()),
				)
				if quotaErr == nil {
					quotaErr = exhausted
				}
			}
			d.finishField(fieldCtx, run, job, stats)
			continue
		}

		err := d.processWorklist(fieldCtx, run, i, list, &stats)
		d.finishField(fieldCtx, run, job, stats)
		switch {
		case err == nil:
		case services.IsQuota(err):
			if quotaErr == nil {
				quotaErr = err
			}
		default:
			return result, d.abort(ctx, run, err)
		}
		if d.persist == PersistPass {
			if err := d.save(ctx, run); err != nil {
				return result, err
			}
		}
	}
	if err := d.save(ctx, run); err != nil {
		return result, err
	}
	if quotaErr != nil {
		return result, fmt.Errorf("partition %d: %w", key, quotaErr)
	}
	return result, nil
}

// abort persists partial progress and returns cause.
func (d *Driver) abort(ctx context.Context, run *partitionRun, cause error) error {
	if err := d.save(context.WithoutCancel(ctx), run); err != nil {
		return errors.Join(cause, err)
	}
	return cause
}

func (d *Driver) save(ctx context.Context, run *partitionRun) error {
	if !run.dirty {
		return nil
	}
	if err := d.store.Save(ctx, run.key, run.rows); err != nil {
		return err
	}
	run.dirty = false
	run.result.Saves++
	return nil
}

func (d *Driver) finishField(ctx context.Context, run *partitionRun, job Job, stats FieldStats) {
	run.result.Fields[job.Field] = stats
	run.logger.Info("field pass complete",
		logging.Field(string(job.Field)),
		logging.Int("satisfied", stats.Satisfied),
		logging.Int("computed", stats.Computed),
		logging.Int("fallback", stats.Fallback),
		logging.Int("pending", stats.Pending),
		logging.Int("unrecognized", stats.Unrecognized),
	)
	if d.observer != nil {
		d.observer.FieldFinished(ctx, FieldEvent{Partition: int(run.key), Field: job.Field, Stats: stats})
	}
}

func (d *Driver) processWorklist(ctx context.Context, run *partitionRun, jobIndex int, list gate.Worklist, stats *FieldStats) error {
	if list.Len() == 0 {
		return nil
	}
	job := d.jobs[jobIndex]
	remaining := list.Rows
	if batch, ok := job.Computator.(BatchComputator); ok {
		done, err := d.processBatch(ctx, run, jobIndex, batch, remaining, stats)
		remaining = remaining[done:]
		if err != nil {
			stats.Pending = len(remaining)
			return err
		}
		if len(remaining) == 0 {
			return nil
		}
	}
	return d.processRows(ctx, run, jobIndex, remaining, stats)
}

// processBatch hands the whole worklist to a batch computator and merges the
// returned prefix. A non-quota failure leaves the unmerged rows to the
// row-at-a-time path.
func (d *Driver) processBatch(ctx context.Context, run *partitionRun, jobIndex int, batch BatchComputator, indexes []int, stats *FieldStats) (int, error) {
	job := d.jobs[jobIndex]
	input := make([]report.Report, len(indexes))
	for i, idx := range indexes {
		input[i] = run.rows[idx]
	}
	if err := d.windows[jobIndex].wait(ctx, d.sleep); err != nil {
		return 0, err
	}
	values, err := batch.ComputeBatch(ctx, input)
	if len(values) > len(indexes) {
		values = values[:len(indexes)]
	}
	for i, value := range values {
		d.apply(ctx, run, job, indexes[i], value, nil, stats)
	}
	if len(values) > 0 && d.persist == PersistRow {
		if saveErr := d.save(ctx, run); saveErr != nil {
			return len(values), saveErr
		}
	}
	if err == nil {
		return len(values), nil
	}
	switch {
	case services.IsQuota(err):
		d.quotaReached(run, jobIndex, len(indexes)-len(values), err)
		return len(values), err
	case ctx.Err() != nil:
		return len(values), ctx.Err()
	default:
		run.logger.Warn("batch computation failed, continuing row by row",
			logging.Field(string(job.Field)),
			logging.Int("merged", len(values)),
			logging.Error(err),
		)
		return len(values), nil
	}
}

func (d *Driver) processRows(ctx context.Context, run *partitionRun, jobIndex int, indexes []int, stats *FieldStats) error {
	job := d.jobs[jobIndex]
	for pos, idx := range indexes {
		if err := d.windows[jobIndex].wait(ctx, d.sleep); err != nil {
			stats.Pending = len(indexes) - pos
			return err
		}
		value, err := job.Computator.Compute(ctx, run.rows[idx])
			if err != nil {
			if services.IsQuota(err) {
				stats.Pending = len(indexes) - pos
				d.quotaReached(run, jobIndex, stats.Pending, err)
				return err
			}
			if ctxErr := ctx.Err(); ctxErr != nil {
				stats.Pending = len(indexes) - pos
				return ctxErr
			}
		}
		d.apply(ctx, run, job, idx, value, err, stats)
		if d.persist == PersistRow {
			if saveErr := d.save(ctx, run); saveErr != nil {
				stats.Pending = len(indexes) - pos - 1
				return saveErr
			}
		}
	}
	return nil
}

// apply merges one computed value. err is the non-quota call failure, if any.
// A call that succeeds without a value is handled like a failure: the row
// gets the fallback and is counted and reported as one.
func (d *Driver) apply(ctx context.Context, run *partitionRun, job Job, idx int, value string, err error, stats *FieldStats) {
	row := &run.rows[idx]
	outcome := OutcomeDone
	empty := value == report.Unset
	if empty {
		value = job.Fallback
	}
	switch {
	case err == nil && empty:
		outcome = OutcomeFallback
		stats.Fallback++
		logging.WarnWithContext(run.logger, "computation returned no value, fallback written", "row_empty_result",
			logging.Field(string(job.Field)),
			logging.Link(row.Link),
			logging.String("fallback", value),
			logging.String(logging.FieldErrorHint, "check the source page or model reply for this row"),
			logging.String(logging.FieldImpact, "row holds a fallback value"),
		)
	case err != nil:
		outcome = OutcomeFallback
		stats.Fallback++
		logging.WarnWithContext(run.logger, "computation failed, fallback written", "row_fallback",
			logging.Field(string(job.Field)),
			logging.Link(row.Link),
			logging.String("fallback", value),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "run `blaulicht replay` after fixing the cause to recompute"),
			logging.String(logging.FieldImpact, "row holds a fallback value"),
		)
	default:
		stats.Computed++
		run.logger.Debug("row computed", logging.Field(string(job.Field)), logging.Link(row.Link))
	}
	if value != row.Get(job.Field) {
		row.Set(job.Field, value)
		run.dirty = true
	}
	if d.observer != nil {
		d.observer.RowFinished(ctx, RowEvent{
			Partition: int(run.key),
			Field:     job.Field,
			Link:      row.Link,
			Outcome:   outcome,
			Value:     value,
			Err:       err,
		})
	}
}

func (d *Driver) quotaReached(run *partitionRun, jobIndex int, pending int, err error) {
	d.markExhausted(jobIndex, err)
	logging.WarnWithContext(run.logger, "computator quota exhausted, field truncated", "quota_exceeded",
		logging.Field(string(d.jobs[jobIndex].Field)),
		logging.Int("pending", pending),
		logging.Error(err),
		logging.String(logging.FieldErrorHint, "rerun after the quota resets; pending rows resume automatically"),
		logging.String(logging.FieldImpact, "field left partially enriched"),
	)
}
