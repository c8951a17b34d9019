package translate

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"blaulicht/internal/logging"
	"blaulicht/internal/report"
	"blaulicht/internal/services"
)

const (
	defaultBatchSize = 50
	defaultBatchWait = 2 * time.Second
)

// TextTranslator translates a single text.
type TextTranslator interface {
	Translate(ctx context.Context, text string) (string, error)
}

// Option configures a Translator.
type Option func(*Translator)

// WithBatchSize sets how many texts are sent per chunk.
func WithBatchSize(size int) Option {
	return func(t *Translator) {
		if size > 0 {
			t.batchSize = size
		}
	}
}

// WithBatchWait sets the pause between chunks.
func WithBatchWait(wait time.Duration) Option {
	return func(t *Translator) {
		if wait >= 0 {
			t.batchWait = wait
		}
	}
}

// WithItemInterval sets the minimum spacing between items inside a chunk.
func WithItemInterval(interval time.Duration) Option {
	return func(t *Translator) {
		if interval >= 0 {
			t.itemInterval = interval
		}
	}
}

// WithLogger sets the translator logger.
func WithLogger(logger *slog.Logger) Option {
	return func(t *Translator) {
		if logger != nil {
			t.logger = logger
		}
	}
}

// WithSleeper overrides how waits are performed (useful for tests).
func WithSleeper(sleep func(context.Context, time.Duration) error) Option {
	return func(t *Translator) {
		if sleep != nil {
			t.sleep = sleep
		}
	}
}

// Translator fills the en_title field from the German title.
type Translator struct {
	client       TextTranslator
	batchSize    int
	batchWait    time.Duration
	itemInterval time.Duration
	logger       *slog.Logger
	sleep        func(context.Context, time.Duration) error
}

// New wraps client.
func New(client TextTranslator, opts ...Option) *Translator {
	t := &Translator{
		client:    client,
		batchSize: defaultBatchSize,
		batchWait: defaultBatchWait,
		logger:    logging.NewNop(),
		sleep:     services.Sleep,
	}
	for _, opt := range opts {
		opt(t)
	}
	t.logger = logging.NewComponentLogger(t.logger, "translate")
	return t
}

// Translate translates one text. Empty input yields "" without a call.
func (t *Translator) Translate(ctx context.Context, text string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", nil
	}
	return t.client.Translate(ctx, text)
}

// TranslateBatch translates texts chunk by chunk. Output index i belongs to
// input index i. On error the translated prefix is returned with the error.
func (t *Translator) TranslateBatch(ctx context.Context, texts []string) ([]string, error) {
	out := make([]string, 0, len(texts))
	for start := 0; start < len(texts); start += t.batchSize {
		if start > 0 {
			if err := t.sleep(ctx, t.batchWait); err != nil {
				return out, err
			}
		}
		end := min(start+t.batchSize, len(texts))
		t.logger.Debug("translating chunk",
			logging.Int("from", start),
			logging.Int("to", end),
			logging.Int("total", len(texts)),
		)
		for i := start; i < end; i++ {
			if i > start && t.itemInterval > 0 {
				if err := t.sleep(ctx, t.itemInterval); err != nil {
					return out, err
				}
			}
			translated, err := t.Translate(ctx, texts[i])
			if err != nil {
				return out, fmt.Errorf("translate item %d: %w", i, err)
			}
			out = append(out, translated)
		}
	}
	return out, nil
}

// Compute translates the report title.
func (t *Translator) Compute(ctx context.Context, r report.Report) (string, error) {
	return t.Translate(ctx, r.Title)
}

// ComputeBatch translates the titles of rows.
func (t *Translator) ComputeBatch(ctx context.Context, rows []report.Report) ([]string, error) {
	titles := make([]string, len(rows))
	for i, r := range rows {
		titles[i] = r.Title
	}
	return t.TranslateBatch(ctx, titles)
}
