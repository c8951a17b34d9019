package updater_test

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/google/go-cmp/cmp"

	"blaulicht/internal/partition"
	"blaulicht/internal/report"
	"blaulicht/internal/services"
	"blaulicht/internal/updater"
)

type fakeLister struct {
	pages map[int][]report.Report
	calls []int
	err   error
}

func (f *fakeLister) ListPage(_ context.Context, _ int, page int) ([]report.Report, error) {
	f.calls = append(f.calls, page)
	if f.err != nil {
		return nil, f.err
	}
	return f.pages[page], nil
}

type countingPacer struct{ pauses int }

func (p *countingPacer) Pause(ctx context.Context) error {
	p.pauses++
	return ctx.Err()
}

func item(date, link string) report.Report {
	return report.Report{Date: date, Title: "Meldung " + link, Link: link, Location: "Mitte"}
}

func newStore(t *testing.T) *partition.CSVStore {
	t.Helper()
	store, err := partition.NewCSVStore(t.TempDir(), "berlin_polizei_%d.csv", nil)
	if err != nil {
		t.Fatalf("NewCSVStore: %v", err)
	}
	return store
}

func links(rows []report.Report) []string {
	out := make([]string, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.Link)
	}
	return out
}

func TestRunPrependsOnlyStrictlyNewer(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	stored := report.Report{
		Date:        "13.07.2025 13:31 Uhr",
		Title:       "Einbruch",
		Link:        "https://www.berlin.de/b",
		Description: "Beschreibung",
		ENTitle:     "Burglary",
		Category:    "Eigentumsdelikte",
	}
	if err := store.Save(ctx, 2025, []report.Report{stored}); err != nil {
		t.Fatalf("Save: %v", err)
	}

	lister := &fakeLister{pages: map[int][]report.Report{
		1: {
			item("14.07.2025 09:00 Uhr", "https://www.berlin.de/a"),
			item("13.07.2025 13:31 Uhr", "https://www.berlin.de/b"),
			item("10.07.2025 08:00 Uhr", "https://www.berlin.de/c"),
		},
		2: {item("09.07.2025 08:00 Uhr", "https://www.berlin.de/d")},
	}}
	result, err := updater.New(store, lister).Run(ctx, 2025)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.Added != 1 || result.Pages != 1 {
		t.Fatalf("result = %+v, want 1 added from 1 page", result)
	}
	if diff := cmp.Diff([]int{1}, lister.calls); diff != "" {
		t.Fatalf("pages fetched (-want +got):\n%s", diff)
	}

	rows, err := store.Load(ctx, 2025)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if diff := cmp.Diff([]string{"https://www.berlin.de/a", "https://www.berlin.de/b"}, links(rows)); diff != "" {
		t.Fatalf("stored links (-want +got):\n%s", diff)
	}
	if rows[0].Description != report.Unset || rows[0].Category != report.Unset {
		t.Fatalf("new row should start unenriched, got %+v", rows[0])
	}
	if diff := cmp.Diff(stored, rows[1]); diff != "" {
		t.Fatalf("existing row changed (-want +got):\n%s", diff)
	}
}

func TestRunPaginatesUntilEmptyPage(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	lister := &fakeLister{pages: map[int][]report.Report{
		1: {item("02.01.2024 10:00 Uhr", "https://www.berlin.de/2"), item("01.01.2024 10:00 Uhr", "https://www.berlin.de/1")},
		2: {item("01.01.2024 09:00 Uhr", "https://www.berlin.de/0")},
	}}
	pacer := &countingPacer{}

	result, err := updater.New(store, lister, updater.WithPacer(pacer)).Run(ctx, 2024)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.Added != 3 || result.Pages != 3 || result.Newest != nil {
		t.Fatalf("result = %+v", result)
	}
	if pacer.pauses != 2 {
		t.Fatalf("pauses = %d, want 2", pacer.pauses)
	}
	rows, err := store.Load(ctx, 2024)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	want := []string{"https://www.berlin.de/2", "https://www.berlin.de/1", "https://www.berlin.de/0"}
	if diff := cmp.Diff(want, links(rows)); diff != "" {
		t.Fatalf("stored links (-want +got):\n%s", diff)
	}
}

func TestRunNothingNewLeavesFileUntouched(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	if err := store.Save(ctx, 2025, []report.Report{item("13.07.2025 13:31 Uhr", "https://www.berlin.de/b")}); err != nil {
		t.Fatalf("Save: %v", err)
	}
	before, err := os.Stat(store.Path(2025))
	if err != nil {
		t.Fatalf("stat: %v", err)
	}

	lister := &fakeLister{pages: map[int][]report.Report{
		1: {item("13.07.2025 13:31 Uhr", "https://www.berlin.de/b")},
	}}
	result, err := updater.New(store, lister).Run(ctx, 2025)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.Added != 0 {
		t.Fatalf("added = %d, want 0", result.Added)
	}
	after, err := os.Stat(store.Path(2025))
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if !after.ModTime().Equal(before.ModTime()) {
		t.Fatal("partition rewritten although nothing was new")
	}
}

func TestRunSkipsRepostedLinks(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	if err := store.Save(ctx, 2025, []report.Report{
		item("13.07.2025 13:31 Uhr", "https://www.berlin.de/b"),
		item("01.07.2025 08:00 Uhr", "https://www.berlin.de/old"),
	}); err != nil {
		t.Fatalf("Save: %v", err)
	}
	lister := &fakeLister{pages: map[int][]report.Report{
		1: {
			item("15.07.2025 09:00 Uhr", "https://www.berlin.de/new"),
			item("14.07.2025 09:00 Uhr", "https://www.berlin.de/old"),
			item("14.07.2025 08:00 Uhr", "https://www.berlin.de/new"),
		},
	}}
	result, err := updater.New(store, lister).Run(ctx, 2025)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.Added != 1 || result.Reposts != 1 {
		t.Fatalf("result = %+v, want 1 added and 1 repost", result)
	}
}

func TestRunMalformedTimestampWritesNothing(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	lister := &fakeLister{pages: map[int][]report.Report{
		1: {
			item("14.07.2025 09:00 Uhr", "https://www.berlin.de/a"),
			item("gestern", "https://www.berlin.de/b"),
		},
	}}
	_, err := updater.New(store, lister).Run(ctx, 2025)
	if !errors.Is(err, services.ErrMalformedTimestamp) {
		t.Fatalf("err = %v, want ErrMalformedTimestamp", err)
	}
	if services.ExitCode(err) != 3 {
		t.Fatalf("exit code = %d, want 3", services.ExitCode(err))
	}
	exists, err := store.Exists(2025)
	if err != nil {
		t.Fatalf("Exists: %v", err)
	}
	if exists {
		t.Fatal("partition written despite malformed timestamp")
	}
}

func TestRunMalformedStoredTimestamp(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	if err := store.Save(ctx, 2025, []report.Report{item("kein Datum", "https://www.berlin.de/b")}); err != nil {
		t.Fatalf("Save: %v", err)
	}
	lister := &fakeLister{}
	if _, err := updater.New(store, lister).Run(ctx, 2025); !errors.Is(err, services.ErrMalformedTimestamp) {
		t.Fatalf("err = %v, want ErrMalformedTimestamp", err)
	}
	if len(lister.calls) != 0 {
		t.Fatalf("listed %v before validating stored data", lister.calls)
	}
}

func TestRunPageLimit(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	lister := &fakeLister{pages: map[int][]report.Report{
		1: {item("03.01.2024 10:00 Uhr", "https://www.berlin.de/3")},
		2: {item("02.01.2024 10:00 Uhr", "https://www.berlin.de/2")},
		3: {item("01.01.2024 10:00 Uhr", "https://www.berlin.de/1")},
	}}
	result, err := updater.New(store, lister, updater.WithMaxPages(2)).Run(ctx, 2024)
	if !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("err = %v, want ErrConfiguration", err)
	}
	if !result.Truncated || result.Added != 0 {
		t.Fatalf("result = %+v, want truncated with nothing added", result)
	}
	if exists, _ := store.Exists(2024); exists {
		t.Fatal("partition written after hitting the page limit")
	}
}

func TestRunAfterPageLimitCollectsFullHistory(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	lister := &fakeLister{pages: map[int][]report.Report{
		1: {item("03.01.2024 10:00 Uhr", "https://www.berlin.de/3")},
		2: {item("02.01.2024 10:00 Uhr", "https://www.berlin.de/2")},
		3: {item("01.01.2024 10:00 Uhr", "https://www.berlin.de/1")},
	}}
	if _, err := updater.New(store, lister, updater.WithMaxPages(2)).Run(ctx, 2024); err == nil {
		t.Fatal("expected page limit error")
	}

	result, err := updater.New(store, lister, updater.WithMaxPages(100)).Run(ctx, 2024)
	if err != nil {
		t.Fatalf("rerun: %v", err)
	}
	if result.Added != 3 || result.Truncated {
		t.Fatalf("rerun result = %+v, want 3 added", result)
	}
	rows, err := store.Load(ctx, 2024)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	want := []string{"https://www.berlin.de/3", "https://www.berlin.de/2", "https://www.berlin.de/1"}
	if diff := cmp.Diff(want, links(rows)); diff != "" {
		t.Fatalf("stored links mismatch (-want +got):\n%s", diff)
	}
}

func TestRunListErrorWritesNothing(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	lister := &fakeLister{err: services.ErrTransient}
	if _, err := updater.New(store, lister).Run(ctx, 2025); !errors.Is(err, services.ErrTransient) {
		t.Fatalf("err = %v, want ErrTransient", err)
	}
	if exists, _ := store.Exists(2025); exists {
		t.Fatal("partition written after list failure")
	}
}

func TestRunRespectsLock(t *testing.T) {
	store := newStore(t)
	unlock, err := store.Lock(2025)
	if err != nil {
		t.Fatalf("Lock: %v", err)
	}
	defer func() { _ = unlock() }()

	_, err = updater.New(store, &fakeLister{}).Run(context.Background(), 2025)
	if !errors.Is(err, partition.ErrLocked) {
		t.Fatalf("err = %v, want ErrLocked", err)
	}
}
