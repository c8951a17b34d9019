package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"go.uber.org/goleak"

	"blaulicht/internal/ledger"
	"blaulicht/internal/report"
	"blaulicht/internal/services"
	"blaulicht/internal/testsupport"
	"blaulicht/internal/workflow"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m,
		goleak.IgnoreTopFunction("net/http.(*persistConn).readLoop"),
		goleak.IgnoreTopFunction("net/http.(*persistConn).writeLoop"),
		goleak.IgnoreTopFunction("internal/poll.runtime_pollWait"),
	)
}

// upstream answers report pages, chat completions and MyMemory lookups.
type upstream struct {
	mu        sync.Mutex
	chatCalls int
}

func (u *upstream) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	u.mu.Lock()
	defer u.mu.Unlock()
	switch {
	case r.URL.Path == "/v1/chat/completions":
		u.chatCalls++
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{{"message": map[string]string{"content": "Verkehrsdelikte"}}},
		})
	case r.URL.Path == "/get":
		_ = json.NewEncoder(w).Encode(map[string]any{
			"responseData":   map[string]string{"translatedText": "EN " + r.URL.Query().Get("q")},
			"responseStatus": 200,
		})
	default:
		fmt.Fprintf(w, `<html><body><div class="text"><div class="textile"><p>Bericht %s</p></div></div></body></html>`, r.URL.Path)
	}
}

type cliEnv struct {
	dir        string
	configPath string
	dataDir    string
	server     *httptest.Server
	upstream   *upstream
}

func setupCLIEnv(t *testing.T) *cliEnv {
	t.Helper()
	up := &upstream{}
	server := httptest.NewServer(up)
	t.Cleanup(server.Close)

	dir := t.TempDir()
	env := &cliEnv{
		dir:        dir,
		configPath: filepath.Join(dir, "config.toml"),
		dataDir:    filepath.Join(dir, "data"),
		server:     server,
		upstream:   up,
	}
	content := fmt.Sprintf(`[paths]
data_dir = %q
state_dir = %q
log_dir = %q

[partitions]
first_year = 2024
last_year = 2025

[source]
base_url = %q
min_delay_ms = 0
max_delay_ms = 0

[classifier]
base_url = %q
min_interval_ms = 0

[translator]
base_url = %q
batch_wait_seconds = 0

[logging]
level = "error"
`, env.dataDir, filepath.Join(dir, "state"), filepath.Join(dir, "logs"),
		server.URL, server.URL+"/v1/chat/completions", server.URL+"/get")
	if err := os.WriteFile(env.configPath, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return env
}

func (e *cliEnv) seed(t *testing.T, year int, rows ...report.Report) {
	t.Helper()
	records := make([][]string, len(rows))
	for i, r := range rows {
		records[i] = r.Record()
	}
	testsupport.WritePartition(t, e.partitionPath(year), report.Columns, records...)
}

func (e *cliEnv) partitionPath(year int) string {
	return filepath.Join(e.dataDir, fmt.Sprintf("berlin_polizei_%d.csv", year))
}

func runCLI(t *testing.T, args []string, configPath string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	var flags []string
	if configPath != "" {
		flags = append(flags, "--config", configPath)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func TestConfigInitAndValidate(t *testing.T) {
	target := filepath.Join(t.TempDir(), "nested", "blaulicht.toml")

	out, _, err := runCLI(t, []string{"config", "init", "--path", target}, "")
	if err != nil {
		t.Fatalf("config init: %v", err)
	}
	if !strings.Contains(out, target) {
		t.Fatalf("init output %q does not name %s", out, target)
	}
	if _, _, err := runCLI(t, []string{"config", "init", "--path", target}, ""); err == nil || !strings.Contains(err.Error(), "already exists") {
		t.Fatalf("second init err = %v", err)
	}
	if _, _, err := runCLI(t, []string{"config", "init", "--path", target, "--overwrite"}, ""); err != nil {
		t.Fatalf("overwrite init: %v", err)
	}

	env := setupCLIEnv(t)
	out, _, err = runCLI(t, []string{"config", "validate"}, env.configPath)
	if err != nil {
		t.Fatalf("config validate: %v", err)
	}
	for _, want := range []string{"Config path: " + env.configPath, "Partitions: 2024-2025", "ledger.db", "Configuration valid"} {
		if !strings.Contains(out, want) {
			t.Fatalf("validate output missing %q:\n%s", want, out)
		}
	}
}

func TestConfigValidateCheckPingsClassifier(t *testing.T) {
	env := setupCLIEnv(t)
	out, _, err := runCLI(t, []string{"config", "validate", "--check"}, env.configPath)
	if err != nil {
		t.Fatalf("config validate --check: %v", err)
	}
	if !strings.Contains(out, "Classifier endpoint reachable") {
		t.Fatalf("validate output:\n%s", out)
	}
	env.upstream.mu.Lock()
	defer env.upstream.mu.Unlock()
	if env.upstream.chatCalls != 1 {
		t.Fatalf("chat calls = %d, want 1", env.upstream.chatCalls)
	}
}

func TestConfigValidateRejectsBadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.toml")
	if err := os.WriteFile(path, []byte("[partitions]\nfirst_year = 2030\nlast_year = 2020\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	_, _, err := runCLI(t, []string{"config", "validate"}, path)
	if err == nil {
		t.Fatal("expected validation error")
	}
	if code := services.ExitCode(err); code != 1 {
		t.Fatalf("exit code = %d, want 1", code)
	}
}

func TestStatusTSV(t *testing.T) {
	env := setupCLIEnv(t)
	env.seed(t, 2025,
		report.Report{Date: "14.07.2025 09:00 Uhr", Title: "Raub", Link: env.server.URL + "/r1.php", Description: "Text"},
		report.Report{Date: "13.07.2025 13:31 Uhr", Title: "Unfall", Link: env.server.URL + "/r2.php"},
	)

	out, _, err := runCLI(t, []string{"status"}, env.configPath)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected header and two partitions, got:\n%s", out)
	}
	if lines[0] != "Partition\tRows\tNewest\tdescription pending\ten_title pending\tcategory pending" {
		t.Fatalf("header = %q", lines[0])
	}
	if lines[1] != "2024\tmissing\t-\t-\t-\t-" {
		t.Fatalf("2024 row = %q", lines[1])
	}
	if lines[2] != "2025\t2\t14.07.2025 09:00 Uhr\t1\t2\t2" {
		t.Fatalf("2025 row = %q", lines[2])
	}
}

func TestStatusJSON(t *testing.T) {
	env := setupCLIEnv(t)
	env.seed(t, 2025, report.Report{Date: "14.07.2025 09:00 Uhr", Title: "Raub", Link: env.server.URL + "/r1.php"})

	out, _, err := runCLI(t, []string{"status", "--year", "2025", "--json"}, env.configPath)
	if err != nil {
		t.Fatalf("status --json: %v", err)
	}
	var statuses []workflow.PartitionStatus
	if err := json.Unmarshal([]byte(out), &statuses); err != nil {
		t.Fatalf("decode status: %v\n%s", err, out)
	}
	if len(statuses) != 1 || statuses[0].Partition != 2025 || statuses[0].Rows != 1 || !statuses[0].Exists {
		t.Fatalf("unexpected status %+v", statuses)
	}
}

func TestStatusRejectsBadYear(t *testing.T) {
	env := setupCLIEnv(t)
	_, _, err := runCLI(t, []string{"status", "--year", "12"}, env.configPath)
	if err == nil {
		t.Fatal("expected error for year 12")
	}
}

func TestEnrichThenRunsAndFailures(t *testing.T) {
	env := setupCLIEnv(t)
	env.seed(t, 2025,
		report.Report{Date: "14.07.2025 09:00 Uhr", Title: "Unfall", Link: env.server.URL + "/polizei/polizeimeldungen/2025/pressemitteilung.1.php"},
	)

	out, _, err := runCLI(t, []string{"enrich", "--year", "2025", "--json"}, env.configPath)
	if err != nil {
		t.Fatalf("enrich: %v", err)
	}
	var rep workflow.EnrichReport
	if err := json.Unmarshal([]byte(out), &rep); err != nil {
		t.Fatalf("decode enrich report: %v\n%s", err, out)
	}
	if rep.RunID == "" {
		t.Fatal("enrich report has no run id")
	}
	for _, field := range report.Fields {
		if got := rep.Totals[field].Computed; got != 1 {
			t.Fatalf("%s computed = %d, want 1", field, got)
		}
	}

	content := testsupport.ReadFile(t, env.partitionPath(2025))
	for _, want := range []string{"Bericht /polizei/polizeimeldungen/2025/pressemitteilung.1.php", "EN Unfall", "Verkehrsdelikte"} {
		if !strings.Contains(content, want) {
			t.Fatalf("partition missing %q:\n%s", want, content)
		}
	}

	// Everything is set now, so a second run computes nothing.
	out, _, err = runCLI(t, []string{"enrich", "--year", "2025"}, env.configPath)
	if err != nil {
		t.Fatalf("second enrich: %v", err)
	}
	if !strings.Contains(out, "category\t1\t0\t0\t0") {
		t.Fatalf("second run table:\n%s", out)
	}
	env.upstream.mu.Lock()
	calls := env.upstream.chatCalls
	env.upstream.mu.Unlock()
	if calls != 1 {
		t.Fatalf("chat calls = %d, want 1", calls)
	}

	out, _, err = runCLI(t, []string{"runs", "--json"}, env.configPath)
	if err != nil {
		t.Fatalf("runs: %v", err)
	}
	var runs []ledger.Run
	if err := json.Unmarshal([]byte(out), &runs); err != nil {
		t.Fatalf("decode runs: %v\n%s", err, out)
	}
	if len(runs) != 2 {
		t.Fatalf("runs = %d, want 2", len(runs))
	}
	for _, run := range runs {
		if run.Status != ledger.RunCompleted || run.Command != "enrich" {
			t.Fatalf("unexpected run %+v", run)
		}
	}

	out, _, err = runCLI(t, []string{"failures"}, env.configPath)
	if err != nil {
		t.Fatalf("failures: %v", err)
	}
	if strings.TrimSpace(out) != "ID\tRun\tPartition\tField\tLink\tFallback\tError\tReplayed" {
		t.Fatalf("expected no failures, got:\n%s", out)
	}
}

func TestEnrichRejectsUnknownField(t *testing.T) {
	env := setupCLIEnv(t)
	_, _, err := runCLI(t, []string{"enrich", "--field", "weather"}, env.configPath)
	if err == nil {
		t.Fatal("expected error for unknown field")
	}
	if code := services.ExitCode(err); code != 1 {
		t.Fatalf("exit code = %d, want 1", code)
	}
}

func TestReplayRequiresYearAndField(t *testing.T) {
	env := setupCLIEnv(t)
	_, _, err := runCLI(t, []string{"replay", "--year", "2025"}, env.configPath)
	if err == nil || !strings.Contains(err.Error(), "field") {
		t.Fatalf("err = %v", err)
	}
}

func TestReplayWithoutFailures(t *testing.T) {
	env := setupCLIEnv(t)
	env.seed(t, 2025, report.Report{Date: "14.07.2025 09:00 Uhr", Title: "Raub", Link: env.server.URL + "/r1.php"})

	out, _, err := runCLI(t, []string{"replay", "--year", "2025", "--field", "category"}, env.configPath)
	if err != nil {
		t.Fatalf("replay: %v", err)
	}
	if !strings.Contains(out, "0 failures, 0 rows reset") {
		t.Fatalf("replay output %q", out)
	}
}
