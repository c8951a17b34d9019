package workflow_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"blaulicht/internal/config"
	"blaulicht/internal/ledger"
	"blaulicht/internal/testsupport"
	"blaulicht/internal/workflow"
)

type listing struct {
	date  string
	id    int
	title string
}

// fakeUpstream serves the archive, the chat-completion endpoint and the
// MyMemory endpoint from one test server.
type fakeUpstream struct {
	mu         sync.Mutex
	pages      map[int][][]listing
	chatStatus int
	label      string
	chatCalls  int
	translated []string
}

func newFakeUpstream() *fakeUpstream {
	return &fakeUpstream{
		pages:      make(map[int][][]listing),
		chatStatus: http.StatusOK,
		label:      "Gewaltverbrechen",
	}
}

func reportLink(base string, year, id int) string {
	return fmt.Sprintf("%s/polizei/polizeimeldungen/%d/pressemitteilung.%d.php", base, year, id)
}

func (f *fakeUpstream) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	switch {
	case strings.HasPrefix(r.URL.Path, "/polizei/polizeimeldungen/archiv/"):
		var year, page int
		fmt.Sscanf(r.URL.Path, "/polizei/polizeimeldungen/archiv/%d/", &year)
		fmt.Sscanf(r.URL.Query().Get("page_at_1_0"), "%d", &page)
		fmt.Fprint(w, `<html><body><ul class="list list--tablelist">`)
		if pages := f.pages[year]; page >= 1 && page <= len(pages) {
			for _, item := range pages[page-1] {
				fmt.Fprintf(w, `<li><div class="cell nowrap date">%s</div><div class="cell text"><a href="/polizei/polizeimeldungen/%d/pressemitteilung.%d.php">%s</a><span class="category">Ereignisort: Mitte</span></div></li>`,
					item.date, year, item.id, item.title)
			}
		}
		fmt.Fprint(w, `</ul></body></html>`)
	case strings.HasPrefix(r.URL.Path, "/polizei/polizeimeldungen/"):
		fmt.Fprintf(w, `<html><body><div class="text"><div class="textile"><p>Bericht zu %s</p></div></div></body></html>`, r.URL.Path)
	case r.URL.Path == "/v1/chat/completions":
		f.chatCalls++
		if f.chatStatus != http.StatusOK {
			http.Error(w, `{"error":{"message":"unavailable"}}`, f.chatStatus)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{{"message": map[string]string{"content": f.label}}},
		})
	case r.URL.Path == "/get":
		q := r.URL.Query().Get("q")
		f.translated = append(f.translated, q)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"responseData":   map[string]string{"translatedText": "EN " + q},
			"responseStatus": 200,
		})
	default:
		http.NotFound(w, r)
	}
}

func (f *fakeUpstream) setChatStatus(status int) {
	f.mu.Lock()
	f.chatStatus = status
	f.mu.Unlock()
}

func (f *fakeUpstream) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.chatCalls
}

func (f *fakeUpstream) translations() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.translated...)
}

func itoa(n int) string {
	return strconv.Itoa(n)
}

func mustTime(t *testing.T, value string) time.Time {
	t.Helper()
	ts, err := time.Parse(time.RFC3339, value)
	if err != nil {
		t.Fatal(err)
	}
	return ts
}

type harness struct {
	cfg      *config.Config
	server   *httptest.Server
	upstream *fakeUpstream
	ledger   *ledger.Store
	manager  *workflow.Manager
}

func newHarness(t *testing.T, opts ...testsupport.ConfigOption) *harness {
	t.Helper()
	upstream := newFakeUpstream()
	server := httptest.NewServer(upstream)
	t.Cleanup(server.Close)

	opts = append([]testsupport.ConfigOption{
		testsupport.WithSourceURL(server.URL),
		testsupport.WithClassifierURL(server.URL + "/v1/chat/completions"),
		testsupport.WithTranslatorURL(server.URL + "/get"),
		testsupport.WithMetricsTextfile(),
	}, opts...)
	cfg := testsupport.NewConfig(t, opts...)

	runs, err := ledger.Open(cfg)
	if err != nil {
		t.Fatalf("ledger.Open: %v", err)
	}
	t.Cleanup(func() { runs.Close() })

	var seq int
	manager, err := workflow.NewManager(cfg, runs,
		workflow.WithHTTPClient(server.Client()),
		workflow.WithSleeper(func(ctx context.Context, _ time.Duration) error { return ctx.Err() }),
		workflow.WithClock(func() time.Time { return time.Date(2025, 7, 14, 12, 0, 0, 0, time.UTC) }),
		workflow.WithRunIDs(func() string {
			seq++
			return fmt.Sprintf("run-%d", seq)
		}),
	)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	return &harness{cfg: cfg, server: server, upstream: upstream, ledger: runs, manager: manager}
}
