package workflow

import (
	"context"
	"log/slog"
	"time"

	"blaulicht/internal/categorize"
	"blaulicht/internal/enrich"
	"blaulicht/internal/logging"
	"blaulicht/internal/report"
	"blaulicht/internal/services/llm"
	"blaulicht/internal/services/mymemory"
	"blaulicht/internal/translate"
)

// jobs builds one driver job per field. Fields whose adapter is disabled in
// the configuration are skipped with a warning.
func (m *Manager) jobs(ctx context.Context, fields []report.Field) []enrich.Job {
	logger := logging.WithContext(ctx, m.logger)
	jobs := make([]enrich.Job, 0, len(fields))
	for _, field := range fields {
		switch field {
		case report.FieldDescription:
			jobs = append(jobs, enrich.Job{
				Field:       field,
				Computator:  m.source,
				MinInterval: time.Duration(m.cfg.Source.MinDelayMillis) * time.Millisecond,
			})
		case report.FieldENTitle:
			if !m.cfg.Translator.Enabled {
				m.warnDisabled(logger, field, "translator.enabled")
				continue
			}
			jobs = append(jobs, enrich.Job{
				Field:       field,
				Computator:  m.translator(),
				MinInterval: m.cfg.TranslatorInterval(),
			})
		case report.FieldCategory:
			if !m.cfg.Classifier.Enabled {
				m.warnDisabled(logger, field, "classifier.enabled")
				continue
			}
			classifier := m.classifier()
			jobs = append(jobs, enrich.Job{
				Field:       field,
				Computator:  classifier,
				Fallback:    classifier.Fallback(),
				MinInterval: m.cfg.ClassifierInterval(),
			})
		}
	}
	return jobs
}

func (m *Manager) warnDisabled(logger *slog.Logger, field report.Field, key string) {
	logging.WarnWithContext(logger, "field skipped, adapter disabled", "field_disabled",
		logging.Field(string(field)),
		logging.String(logging.FieldErrorHint, "set "+key+" = true to enrich this field"),
		logging.String(logging.FieldImpact, "field stays unset"),
	)
}

func (m *Manager) llmClient() *llm.Client {
	cfg := m.cfg.Classifier
	var opts []llm.Option
	if m.httpClient != nil {
		opts = append(opts, llm.WithHTTPClient(m.httpClient))
	}
	if m.sleep != nil {
		opts = append(opts, llm.WithSleeper(func(time.Duration) {}))
	}
	return llm.NewClient(llm.Config{
		APIKey:         cfg.APIKey,
		BaseURL:        cfg.BaseURL,
		Model:          cfg.Model,
		Referer:        cfg.Referer,
		Title:          cfg.Title,
		TimeoutSeconds: cfg.TimeoutSeconds,
	}, opts...)
}

func (m *Manager) classifier() *categorize.Classifier {
	cfg := m.cfg.Classifier
	return categorize.New(m.llmClient(), m.taxonomy,
		categorize.WithDescriptionLimit(cfg.DescriptionLimit),
		categorize.WithLogger(m.logger),
	)
}

// CheckClassifier sends one short request to the configured chat endpoint.
// It returns nil without a call when the classifier is disabled.
func (m *Manager) CheckClassifier(ctx context.Context) error {
	if !m.cfg.Classifier.Enabled {
		return nil
	}
	return m.llmClient().HealthCheck(ctx)
}

func (m *Manager) translator() *translate.Translator {
	cfg := m.cfg.Translator
	var clientOpts []mymemory.Option
	if m.httpClient != nil {
		clientOpts = append(clientOpts, mymemory.WithHTTPClient(m.httpClient))
	}
	client := mymemory.NewClient(mymemory.Config{
		BaseURL:        cfg.BaseURL,
		SourceLang:     cfg.SourceLang,
		TargetLang:     cfg.TargetLang,
		Email:          cfg.Email,
		UserAgent:      m.cfg.Source.UserAgent,
		TimeoutSeconds: cfg.TimeoutSeconds,
	}, clientOpts...)

	opts := []translate.Option{
		translate.WithBatchSize(cfg.BatchSize),
		translate.WithBatchWait(time.Duration(cfg.BatchWaitSeconds) * time.Second),
		translate.WithItemInterval(m.cfg.TranslatorInterval()),
		translate.WithLogger(m.logger),
	}
	if m.sleep != nil {
		opts = append(opts, translate.WithSleeper(m.sleep))
	}
	return translate.New(client, opts...)
}
