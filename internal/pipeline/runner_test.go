package pipeline

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/mkrivoshein/taxopull/internal/model"
)

func testRunner(t *testing.T, serverURL string) *Runner {
	t.Helper()

	cfg := model.DefaultConfig()
	cfg.API.BaseURL = serverURL
	cfg.API.PathPrefix = "/api/data/taxon/"
	cfg.HTTP.Timeout = 5 * time.Second
	cfg.RateLimiting.RequestDelay = time.Millisecond
	cfg.Robots.Respect = false
	cfg.Cache.Enabled = false
	cfg.Output.Dir = t.TempDir()

	fetcher := NewFetcher(cfg, nil)
	fetcher.SetProgress(io.Discard)

	runner := NewRunner(cfg, fetcher)
	runner.now = func() time.Time {
		return time.Date(2025, 3, 15, 10, 30, 0, 0, time.UTC)
	}
	return runner
}

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open output: %v", err)
	}
	defer func() { _ = f.Close() }()

	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("parse output: %v", err)
	}
	return rows
}

func TestRun_MiddleRouteFails(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		route := strings.TrimPrefix(r.URL.Path, "/api/data/taxon/")
		if route == "b" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_, _ = fmt.Fprintf(w, `{"scientificName": "Species %s", "elementGlobalId": 1}`, route)
	}))
	defer server.Close()

	runner := testRunner(t, server.URL)
	summary, err := runner.Run(context.Background(), "animals_set_1.csv", []string{"a", "b", "c"})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if summary.RowsWritten != 3 || summary.Total != 3 {
		t.Errorf("RowsWritten/Total = %d/%d, want 3/3", summary.RowsWritten, summary.Total)
	}
	if len(summary.Failures) != 1 || summary.Failures[0].Route != "b" {
		t.Errorf("Failures = %+v", summary.Failures)
	}
	if len(summary.Species) != 2 {
		t.Errorf("Species = %v", summary.Species)
	}

	rows := readCSV(t, summary.OutputPath)
	if len(rows) != 4 {
		t.Fatalf("Expected header + 3 rows, got %d rows", len(rows))
	}
	if !equalStrings(rows[0], model.Columns()) {
		t.Errorf("Header = %v", rows[0])
	}

	failRow := rows[2]
	if failRow[1] != "404 Not Found" {
		t.Errorf("Error column = %q, want %q", failRow[1], "404 Not Found")
	}
	for i, v := range failRow[2:] {
		if v != "" {
			t.Errorf("Failure row column %d = %q, want empty", i+2, v)
		}
	}

	if rows[1][5] != "Species a" || rows[3][5] != "Species c" {
		t.Errorf("Success rows: %v / %v", rows[1], rows[3])
	}
}

func TestRun_OutputPathFromDatafileAndTimestamp(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = fmt.Fprint(w, `{}`)
	}))
	defer server.Close()

	runner := testRunner(t, server.URL)
	summary, err := runner.Run(context.Background(), filepath.Join("data", "animals_set_1.csv"), []string{"a"})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	want := "animals_set_1_20250315_103000.csv"
	if filepath.Base(summary.OutputPath) != want {
		t.Errorf("Output file = %s, want %s", filepath.Base(summary.OutputPath), want)
	}
}

func TestRun_EmptyRouteList(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("No request expected for empty route list")
	}))
	defer server.Close()

	runner := testRunner(t, server.URL)
	summary, err := runner.Run(context.Background(), "empty.csv", nil)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	rows := readCSV(t, summary.OutputPath)
	if len(rows) != 1 {
		t.Errorf("Expected header only, got %d rows", len(rows))
	}
}

func TestRun_CanceledContextLeavesValidPrefix(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = fmt.Fprint(w, `{}`)
	}))
	defer server.Close()

	runner := testRunner(t, server.URL)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	summary, err := runner.Run(ctx, "animals.csv", []string{"a", "b"})
	if err == nil {
		t.Fatal("Expected error from canceled context")
	}
	if summary == nil {
		t.Fatal("Expected partial summary on abort")
	}
	if summary.RowsWritten != 0 {
		t.Errorf("RowsWritten = %d, want 0", summary.RowsWritten)
	}

	// The aborted file is still a parseable CSV with the full header.
	rows := readCSV(t, summary.OutputPath)
	if len(rows) != 1 || !equalStrings(rows[0], model.Columns()) {
		t.Errorf("Partial file rows = %v", rows)
	}
}

func TestRun_RowsDurableAfterEachRequest(t *testing.T) {
	var runner *Runner
	var outputDir string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// By the time the second request arrives, the first row must
		// already be on disk.
		if strings.HasSuffix(r.URL.Path, "/second") {
			files, _ := filepath.Glob(filepath.Join(outputDir, "*.csv"))
			if len(files) != 1 {
				t.Errorf("Expected 1 output file, got %v", files)
			} else {
				rows := readCSV(t, files[0])
				if len(rows) != 2 {
					t.Errorf("Expected header + 1 row before second fetch, got %d", len(rows))
				}
			}
		}
		_, _ = fmt.Fprint(w, `{}`)
	}))
	defer server.Close()

	runner = testRunner(t, server.URL)
	outputDir = runner.cfg.Output.Dir

	if _, err := runner.Run(context.Background(), "two.csv", []string{"first", "second"}); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
