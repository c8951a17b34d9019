package metrics

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"blaulicht/internal/enrich"
	"blaulicht/internal/report"
)

func TestWriteTextfile(t *testing.T) {
	r := New()
	ctx := context.Background()
	r.RowFinished(ctx, enrich.RowEvent{Partition: 2025, Field: report.FieldCategory, Outcome: enrich.OutcomeDone})
	r.RowFinished(ctx, enrich.RowEvent{Partition: 2025, Field: report.FieldCategory, Outcome: enrich.OutcomeDone})
	r.RowFinished(ctx, enrich.RowEvent{Partition: 2025, Field: report.FieldCategory, Outcome: enrich.OutcomeFallback})
	r.FieldFinished(ctx, enrich.FieldEvent{Partition: 2025, Field: report.FieldCategory, Stats: enrich.FieldStats{Pending: 14, Satisfied: 3, Unrecognized: 1}})
	r.UpdateFinished(2025, 4)
	started := time.Unix(1752476400, 0)
	r.RunFinished("enrich", "completed", started, started.Add(90*time.Second))

	path := filepath.Join(t.TempDir(), "textfile", "blaulicht.prom")
	if err := r.WriteTextfile(path); err != nil {
		t.Fatalf("WriteTextfile: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read textfile: %v", err)
	}
	out := string(data)
	for _, want := range []string{
		`blaulicht_rows_total{field="category",outcome="done",partition="2025"} 2`,
		`blaulicht_rows_total{field="category",outcome="fallback",partition="2025"} 1`,
		`blaulicht_field_pending_rows{field="category",partition="2025"} 14`,
		`blaulicht_field_unrecognized_rows{field="category",partition="2025"} 1`,
		`blaulicht_update_added_rows_total{partition="2025"} 4`,
		`blaulicht_run_duration_seconds{command="enrich"} 90`,
		`blaulicht_last_run_timestamp_seconds{command="enrich",status="completed"} 1.75247649e+09`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("textfile missing %q\n%s", want, out)
		}
	}
}

func TestWriteTextfileDisabled(t *testing.T) {
	if err := New().WriteTextfile(""); err != nil {
		t.Fatalf("WriteTextfile(\"\") = %v", err)
	}
}
