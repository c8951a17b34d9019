package workflow_test

import (
	"context"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"go.uber.org/goleak"

	"blaulicht/internal/ledger"
	"blaulicht/internal/partition"
	"blaulicht/internal/report"
	"blaulicht/internal/services"
	"blaulicht/internal/testsupport"
	"blaulicht/internal/workflow"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func seedPartition(t *testing.T, h *harness, year int, rows ...report.Report) {
	t.Helper()
	if err := h.manager.Store().Save(context.Background(), partition.Key(year), rows); err != nil {
		t.Fatalf("seed partition: %v", err)
	}
}

func loadPartition(t *testing.T, h *harness, year int) []report.Report {
	t.Helper()
	rows, err := h.manager.Store().Load(context.Background(), partition.Key(year))
	if err != nil {
		t.Fatalf("load partition: %v", err)
	}
	return rows
}

func TestRunUpdateThenEnrich(t *testing.T) {
	h := newHarness(t, testsupport.WithYears(2025, 2025))
	stored := report.Report{
		Date:        "13.07.2025 13:31 Uhr",
		Title:       "Verkehrsunfall",
		Link:        reportLink(h.server.URL, 2025, 2),
		Description: "Ein Radfahrer wurde verletzt.",
		ENTitle:     "Traffic accident",
		Category:    "Verkehrsdelikte",
	}
	seedPartition(t, h, 2025, stored)
	h.upstream.pages[2025] = [][]listing{{
		{date: "14.07.2025 09:00 Uhr", id: 1, title: "Raub in Mitte"},
		{date: "13.07.2025 13:31 Uhr", id: 2, title: "Verkehrsunfall"},
		{date: "10.07.2025 08:00 Uhr", id: 3, title: "Einbruch"},
	}}

	rep, err := h.manager.RunUpdate(context.Background(), workflow.UpdateRequest{Enrich: true})
	if err != nil {
		t.Fatalf("RunUpdate: %v", err)
	}
	if len(rep.Partitions) != 1 || rep.Partitions[0].Added != 1 {
		t.Fatalf("update partitions = %+v", rep.Partitions)
	}
	if rep.Enrichment == nil || rep.Enrichment.RunID == rep.RunID {
		t.Fatalf("expected a separate enrichment run, got %+v", rep.Enrichment)
	}

	rows := loadPartition(t, h, 2025)
	want := []report.Report{
		{
			Date:        "14.07.2025 09:00 Uhr",
			Title:       "Raub in Mitte",
			Link:        reportLink(h.server.URL, 2025, 1),
			Location:    "Mitte",
			Description: "Bericht zu /polizei/polizeimeldungen/2025/pressemitteilung.1.php",
			ENTitle:     "EN Raub in Mitte",
			Category:    "Gewaltverbrechen",
		},
		stored,
	}
	if diff := cmp.Diff(want, rows); diff != "" {
		t.Fatalf("partition (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"Raub in Mitte"}, h.upstream.translations()); diff != "" {
		t.Fatalf("translated titles (-want +got):\n%s", diff)
	}

	runs, err := h.ledger.Runs(context.Background(), 10)
	if err != nil {
		t.Fatalf("Runs: %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("runs = %+v, want update and enrich", runs)
	}
	for _, run := range runs {
		if run.Status != ledger.RunCompleted {
			t.Fatalf("run %s status = %s", run.ID, run.Status)
		}
	}

	metrics := testsupport.ReadFile(t, h.cfg.Metrics.TextfilePath)
	if !strings.Contains(metrics, `blaulicht_update_added_rows_total{partition="2025"} 1`) {
		t.Fatalf("metrics textfile missing update counter:\n%s", metrics)
	}
}

func TestRunEnrichmentIsIdempotent(t *testing.T) {
	h := newHarness(t, testsupport.WithYears(2025, 2025))
	seedPartition(t, h, 2025, report.Report{Date: "14.07.2025 09:00 Uhr", Title: "Raub", Link: reportLink(h.server.URL, 2025, 1)})

	if _, err := h.manager.RunEnrichment(context.Background(), workflow.EnrichRequest{}); err != nil {
		t.Fatalf("first RunEnrichment: %v", err)
	}
	path := h.manager.Store().Path(2025)
	first := testsupport.ReadFile(t, path)
	calls := h.upstream.calls()

	rep, err := h.manager.RunEnrichment(context.Background(), workflow.EnrichRequest{})
	if err != nil {
		t.Fatalf("second RunEnrichment: %v", err)
	}
	if got := testsupport.ReadFile(t, path); got != first {
		t.Fatalf("second run changed the partition:\n%s\n---\n%s", first, got)
	}
	if h.upstream.calls() != calls {
		t.Fatalf("second run called the classifier %d times", h.upstream.calls()-calls)
	}
	if totals := rep.Totals[report.FieldCategory]; totals.Satisfied != 1 || totals.Computed != 0 {
		t.Fatalf("category totals = %+v", totals)
	}
}

func TestRunEnrichmentQuotaTruncates(t *testing.T) {
	h := newHarness(t, testsupport.WithYears(2024, 2025))
	h.upstream.setChatStatus(http.StatusPaymentRequired)
	for _, year := range []int{2024, 2025} {
		seedPartition(t, h, year, report.Report{Date: "01.03." + itoa(year) + " 10:00 Uhr", Title: "Raub", Link: reportLink(h.server.URL, year, 1)})
	}

	rep, err := h.manager.RunEnrichment(context.Background(), workflow.EnrichRequest{})
	if !errors.Is(err, services.ErrQuotaExceeded) {
		t.Fatalf("err = %v, want ErrQuotaExceeded", err)
	}
	if services.ExitCode(err) != 2 {
		t.Fatalf("exit code = %d, want 2", services.ExitCode(err))
	}
	if h.upstream.calls() != 1 {
		t.Fatalf("classifier called %d times after quota, want 1", h.upstream.calls())
	}
	if diff := cmp.Diff([]report.Field{report.FieldCategory}, rep.Exhausted); diff != "" {
		t.Fatalf("exhausted (-want +got):\n%s", diff)
	}
	for _, year := range []int{2024, 2025} {
		row := loadPartition(t, h, year)[0]
		if row.Description == report.Unset || row.ENTitle == report.Unset {
			t.Fatalf("%d: other fields should be enriched, got %+v", year, row)
		}
		if row.Category != report.Unset {
			t.Fatalf("%d: category = %q, want unset", year, row.Category)
		}
	}

	run, err := h.ledger.GetRun(context.Background(), rep.RunID)
	if err != nil {
		t.Fatalf("GetRun: %v", err)
	}
	if run.Status != ledger.RunTruncated || run.Pending != 2 {
		t.Fatalf("run = %+v, want truncated with 2 pending", run)
	}
}

func TestReplayResetsFallbacks(t *testing.T) {
	h := newHarness(t, testsupport.WithYears(2025, 2025), testsupport.WithFields("category"))
	h.upstream.setChatStatus(http.StatusInternalServerError)
	seedPartition(t, h, 2025,
		report.Report{Date: "14.07.2025 09:00 Uhr", Title: "Raub", Link: reportLink(h.server.URL, 2025, 1), Description: "Text"},
		report.Report{Date: "13.07.2025 09:00 Uhr", Title: "Unfall", Link: reportLink(h.server.URL, 2025, 2), Description: "Text"},
	)

	rep, err := h.manager.RunEnrichment(context.Background(), workflow.EnrichRequest{})
	if err != nil {
		t.Fatalf("RunEnrichment: %v", err)
	}
	if got := rep.Totals[report.FieldCategory].Fallback; got != 2 {
		t.Fatalf("fallback = %d, want 2", got)
	}
	rows := loadPartition(t, h, 2025)
	if rows[0].Category != "Sonstiges" || rows[1].Category != "Sonstiges" {
		t.Fatalf("categories = %q, %q", rows[0].Category, rows[1].Category)
	}

	// An operator fixed the second row by hand; replay must leave it alone.
	rows[1].Category = "Verkehrsdelikte"
	seedPartition(t, h, 2025, rows...)

	replayed, err := h.manager.Replay(context.Background(), workflow.ReplayRequest{Year: 2025, Field: "category"})
	if err != nil {
		t.Fatalf("Replay: %v", err)
	}
	if replayed.Failures != 2 || replayed.Reset != 1 || replayed.Skipped != 1 {
		t.Fatalf("replay = %+v", replayed)
	}
	rows = loadPartition(t, h, 2025)
	if rows[0].Category != report.Unset || rows[1].Category != "Verkehrsdelikte" {
		t.Fatalf("after replay categories = %q, %q", rows[0].Category, rows[1].Category)
	}

	again, err := h.manager.Replay(context.Background(), workflow.ReplayRequest{Year: 2025, Field: "category"})
	if err != nil {
		t.Fatalf("second Replay: %v", err)
	}
	if again.Failures != 0 {
		t.Fatalf("second replay found %d failures", again.Failures)
	}

	h.upstream.setChatStatus(http.StatusOK)
	if _, err := h.manager.RunEnrichment(context.Background(), workflow.EnrichRequest{}); err != nil {
		t.Fatalf("RunEnrichment after replay: %v", err)
	}
	if got := loadPartition(t, h, 2025)[0].Category; got != "Gewaltverbrechen" {
		t.Fatalf("recomputed category = %q", got)
	}
}

func TestStatus(t *testing.T) {
	h := newHarness(t, testsupport.WithYears(2024, 2025))
	seedPartition(t, h, 2025,
		report.Report{Date: "14.07.2025 09:00 Uhr", Title: "Raub", Link: "a", Description: "Text", Category: "Gewaltverbrechen"},
		report.Report{Date: "13.07.2025 09:00 Uhr", Title: "Demo", Link: "b", Category: "LegacyLabel"},
	)

	statuses, err := h.manager.Status(context.Background(), nil)
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	want := []workflow.PartitionStatus{
		{Partition: 2024},
		{
			Partition: 2025,
			Exists:    true,
			Rows:      2,
			Newest:    "14.07.2025 09:00 Uhr",
			Fields: []workflow.FieldStatus{
				{Field: report.FieldDescription, Satisfied: 1, Pending: 1},
				{Field: report.FieldENTitle, Pending: 2},
				{Field: report.FieldCategory, Satisfied: 2, Unrecognized: 1},
			},
		},
	}
	if diff := cmp.Diff(want, statuses); diff != "" {
		t.Fatalf("status (-want +got):\n%s", diff)
	}
}

func TestRunEnrichmentParallelPartitions(t *testing.T) {
	h := newHarness(t, testsupport.WithYears(2022, 2025))
	h.cfg.Enrich.Parallelism = 3
	for year := 2022; year <= 2025; year++ {
		seedPartition(t, h, year, report.Report{Date: "01.03." + itoa(year) + " 10:00 Uhr", Title: "Raub " + itoa(year), Link: reportLink(h.server.URL, year, 1)})
	}

	rep, err := h.manager.RunEnrichment(context.Background(), workflow.EnrichRequest{})
	if err != nil {
		t.Fatalf("RunEnrichment: %v", err)
	}
	if len(rep.Result.Partitions) != 4 {
		t.Fatalf("partitions = %d, want 4", len(rep.Result.Partitions))
	}
	for i, pr := range rep.Result.Partitions {
		if pr.Partition != 2022+i {
			t.Fatalf("partition order = %+v", rep.Result.Partitions)
		}
		if got := pr.Fields[report.FieldCategory].Computed; got != 1 {
			t.Fatalf("%d: computed = %d", pr.Partition, got)
		}
	}
}

func TestRunEnrichmentValidation(t *testing.T) {
	h := newHarness(t)
	if _, err := h.manager.RunEnrichment(context.Background(), workflow.EnrichRequest{Fields: []string{"kategorie_neu"}}); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("unknown field: err = %v, want ErrValidation", err)
	}
	if _, err := h.manager.RunEnrichment(context.Background(), workflow.EnrichRequest{Persist: "sometimes"}); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("bad persist: err = %v, want ErrValidation", err)
	}
	if _, err := h.manager.Replay(context.Background(), workflow.ReplayRequest{Year: 2025, Field: "title"}); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("replay title: err = %v, want ErrValidation", err)
	}
}

func TestDisabledTranslatorLeavesFieldUnset(t *testing.T) {
	h := newHarness(t, testsupport.WithYears(2025, 2025))
	h.cfg.Translator.Enabled = false
	seedPartition(t, h, 2025, report.Report{Date: "14.07.2025 09:00 Uhr", Title: "Raub", Link: reportLink(h.server.URL, 2025, 1)})

	rep, err := h.manager.RunEnrichment(context.Background(), workflow.EnrichRequest{})
	if err != nil {
		t.Fatalf("RunEnrichment: %v", err)
	}
	if _, ok := rep.Totals[report.FieldENTitle]; ok {
		t.Fatal("en_title should not have been processed")
	}
	if len(h.upstream.translations()) != 0 {
		t.Fatalf("translator called %d times", len(h.upstream.translations()))
	}
	if row := loadPartition(t, h, 2025)[0]; row.ENTitle != report.Unset || row.Category == report.Unset {
		t.Fatalf("row = %+v", row)
	}
}

func TestRunUpdateMalformedTimestamp(t *testing.T) {
	h := newHarness(t, testsupport.WithYears(2025, 2025))
	h.upstream.pages[2025] = [][]listing{{{date: "gestern", id: 1, title: "Raub"}}}

	_, err := h.manager.RunUpdate(context.Background(), workflow.UpdateRequest{Enrich: true})
	if services.ExitCode(err) != 3 {
		t.Fatalf("exit code = %d for %v, want 3", services.ExitCode(err), err)
	}
	if _, statErr := os.Stat(h.manager.Store().Path(2025)); !os.IsNotExist(statErr) {
		t.Fatalf("partition written despite malformed timestamp: %v", statErr)
	}
	run, err := h.ledger.LatestRun(context.Background(), "update")
	if err != nil {
		t.Fatalf("LatestRun: %v", err)
	}
	if run.Status != ledger.RunFailed {
		t.Fatalf("update run status = %s", run.Status)
	}
}

func TestPruneLogsKeepsCurrent(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Logging.RetentionDays = 1
	if err := os.MkdirAll(cfg.Paths.LogDir, 0o755); err != nil {
		t.Fatal(err)
	}
	current := filepath.Join(cfg.Paths.LogDir, "blaulicht-20250714T120000.log")
	if err := os.WriteFile(current, nil, 0o644); err != nil {
		t.Fatal(err)
	}
	old := filepath.Join(cfg.Paths.LogDir, "blaulicht-20200101T000000.log")
	if err := os.WriteFile(old, nil, 0o644); err != nil {
		t.Fatal(err)
	}
	past := mustTime(t, "2020-01-01T00:00:00Z")
	for _, path := range []string{current, old} {
		if err := os.Chtimes(path, past, past); err != nil {
			t.Fatal(err)
		}
	}

	workflow.PruneLogs(cfg, nil, current)

	if _, err := os.Stat(current); err != nil {
		t.Fatalf("current log removed: %v", err)
	}
	if _, err := os.Stat(old); !os.IsNotExist(err) {
		t.Fatalf("old log kept: %v", err)
	}
}
