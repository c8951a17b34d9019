package updater

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"blaulicht/internal/logging"
	"blaulicht/internal/partition"
	"blaulicht/internal/report"
	"blaulicht/internal/services"
)

const defaultMaxPages = 500

// Lister returns one archive page of raw reports, newest first.
type Lister interface {
	ListPage(ctx context.Context, year, page int) ([]report.Report, error)
}

// Pacer waits between page fetches.
type Pacer interface {
	Pause(ctx context.Context) error
}

// Option configures an Updater.
type Option func(*Updater)

// WithLogger sets the updater logger.
func WithLogger(logger *slog.Logger) Option {
	return func(u *Updater) {
		if logger != nil {
			u.logger = logger
		}
	}
}

// WithMaxPages caps pagination per run.
func WithMaxPages(n int) Option {
	return func(u *Updater) {
		if n > 0 {
			u.maxPages = n
		}
	}
}

// WithPacer sets the delay between page fetches.
func WithPacer(p Pacer) Option {
	return func(u *Updater) {
		u.pacer = p
	}
}

// Result describes one update run.
type Result struct {
	Partition int        `json:"partition"`
	Newest    *time.Time `json:"newest_stored,omitempty"`
	Pages     int        `json:"pages"`
	Added     int        `json:"added"`
	Reposts   int        `json:"reposts_skipped"`
	Truncated bool       `json:"truncated"`
}

// Updater prepends newly published reports to a partition.
type Updater struct {
	store    partition.Store
	lister   Lister
	pacer    Pacer
	maxPages int
	logger   *slog.Logger
}

// New constructs an updater.
func New(store partition.Store, lister Lister, opts ...Option) *Updater {
	u := &Updater{
		store:    store,
		lister:   lister,
		maxPages: defaultMaxPages,
		logger:   logging.NewNop(),
	}
	for _, opt := range opts {
		opt(u)
	}
	u.logger = logging.NewComponentLogger(u.logger, "updater")
	return u
}

// Run fetches archive pages for year until it reaches a report not newer
// than the newest stored one, then prepends the collected reports. A missing
// or empty partition means the whole year is collected. Any unparsable
// timestamp aborts the run before anything is written, and so does reaching
// the page limit before the boundary: publishing a prefix would move the
// boundary past reports that were never fetched.
func (u *Updater) Run(ctx context.Context, year int) (Result, error) {
	result := Result{Partition: year}
	if err := ctx.Err(); err != nil {
		return result, err
	}
	ctx = services.WithPartition(ctx, year)
	logger := logging.WithContext(ctx, u.logger)
	key := partition.Key(year)

	unlock, err := u.store.Lock(key)
	if err != nil {
		return result, err
	}
	defer func() {
		if err := unlock(); err != nil {
			logger.Warn("partition unlock failed", logging.Error(err))
		}
	}()

	existing, err := u.store.Load(ctx, key)
	if err != nil && !errors.Is(err, services.ErrNotFound) {
		return result, err
	}

	var newest time.Time
	if len(existing) > 0 {
		newest, err = existing[0].Time()
		if err != nil {
			return result, fmt.Errorf("newest stored report in %d: %w", year, err)
		}
		result.Newest = &newest
	}

	known := partition.LinkIndex(existing)
	collected, err := u.collect(ctx, logger, year, newest, known, &result)
	if err != nil {
		return result, err
	}
	if len(collected) == 0 {
		logger.Info("partition up to date", logging.Int("pages", result.Pages))
		return result, nil
	}

	merged := make([]report.Report, 0, len(collected)+len(existing))
	merged = append(merged, collected...)
	merged = append(merged, existing...)
	if err := u.store.Save(ctx, key, merged); err != nil {
		return result, err
	}
	result.Added = len(collected)
	logger.Info("new reports prepended",
		logging.Int("added", result.Added),
		logging.Int("pages", result.Pages),
		logging.Int("reposts_skipped", result.Reposts),
	)
	return result, nil
}

func (u *Updater) collect(ctx context.Context, logger *slog.Logger, year int, newest time.Time, known map[string]int, result *Result) ([]report.Report, error) {
	var collected []report.Report
	seen := make(map[string]struct{})
	for page := 1; ; page++ {
		if page > u.maxPages {
			result.Truncated = true
			logging.WarnWithContext(logger, "page limit reached", "page_limit",
				logging.Int("max_pages", u.maxPages),
				logging.Int("collected", len(collected)),
				logging.String(logging.FieldErrorHint, "raise source.max_pages and rerun"),
				logging.String(logging.FieldImpact, "partition left unchanged"),
			)
			return nil, services.Wrap(services.ErrConfiguration, "updater", "collect",
				fmt.Sprintf("partition %d: boundary not reached within %d pages", year, u.maxPages), nil)
		}
		if page > 1 && u.pacer != nil {
			if err := u.pacer.Pause(ctx); err != nil {
				return nil, err
			}
		}
		items, err := u.lister.ListPage(ctx, year, page)
		if err != nil {
			return nil, fmt.Errorf("list page %d: %w", page, err)
		}
		result.Pages = page
		if len(items) == 0 {
			return collected, nil
		}
		for _, item := range items {
			ts, err := item.Time()
			if err != nil {
				return nil, fmt.Errorf("archive page %d: %w", page, err)
			}
			if !newest.IsZero() && !ts.After(newest) {
				return collected, nil
			}
			if _, ok := known[item.Link]; ok {
				result.Reposts++
				continue
			}
			if _, ok := seen[item.Link]; ok {
				continue
			}
			seen[item.Link] = struct{}{}
			collected = append(collected, partition.Canonicalize(item))
		}
	}
}
