package workflow

import (
	"log/slog"
	"time"

	"blaulicht/internal/config"
	"blaulicht/internal/logging"
)

// PruneLogs removes run logs older than logging.retention_days, keeping the
// log of the current run.
func PruneLogs(cfg *config.Config, logger *slog.Logger, currentLog string) {
	if cfg == nil {
		return
	}
	if _, err := logging.PruneRunLogs(logger, cfg.Paths.LogDir, cfg.Logging.RetentionDays, currentLog, time.Now()); err != nil {
		logging.WarnWithContext(logger, "log retention skipped", "log_retention_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check paths.log_dir"),
			logging.String(logging.FieldImpact, "old run logs stay on disk"),
		)
	}
}
