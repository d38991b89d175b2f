package pipeline

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/mkrivoshein/taxopull/internal/cache"
	"github.com/mkrivoshein/taxopull/internal/model"
)

func testFetcher(serverURL string, store cache.Cache) *Fetcher {
	cfg := model.DefaultConfig()
	cfg.API.BaseURL = serverURL
	cfg.API.PathPrefix = "/api/data/taxon/"
	cfg.HTTP.Timeout = 5 * time.Second

	f := NewFetcher(cfg, store)
	f.SetProgress(io.Discard)
	return f
}

func TestFetch_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/data/taxon/ELEMENT_GLOBAL.2.100925" {
			t.Errorf("Unexpected path: %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = fmt.Fprint(w, `{"scientificName": "Canis lupus", "elementGlobalId": 100925}`)
	}))
	defer server.Close()

	fetcher := testFetcher(server.URL, nil)
	outcome := fetcher.Fetch(context.Background(), "ELEMENT_GLOBAL.2.100925", 0, 1)

	if outcome.Failed() {
		t.Fatalf("Expected success, got error %q", outcome.Err)
	}
	if outcome.Data.ScientificName != "Canis lupus" {
		t.Errorf("ScientificName = %q", outcome.Data.ScientificName)
	}
	if outcome.Data.ElementGlobalID != "100925" {
		t.Errorf("ElementGlobalID = %q", outcome.Data.ElementGlobalID)
	}
	if outcome.URL != server.URL+"/api/data/taxon/ELEMENT_GLOBAL.2.100925" {
		t.Errorf("URL = %q", outcome.URL)
	}
}

func TestFetch_NotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	fetcher := testFetcher(server.URL, nil)
	outcome := fetcher.Fetch(context.Background(), "missing", 0, 1)

	if !outcome.Failed() {
		t.Fatal("Expected failure for 404")
	}
	if outcome.Err != "404 Not Found" {
		t.Errorf("Err = %q, want %q", outcome.Err, "404 Not Found")
	}
	if outcome.Data != nil {
		t.Errorf("Data should be nil on failure, got %+v", outcome.Data)
	}
}

func TestFetch_MalformedJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = fmt.Fprint(w, `{"scientificName": `)
	}))
	defer server.Close()

	fetcher := testFetcher(server.URL, nil)
	outcome := fetcher.Fetch(context.Background(), "broken", 0, 1)

	if !outcome.Failed() {
		t.Fatal("Expected failure for malformed body")
	}
}

func TestFetch_TransportError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close() // connection refused from here on

	fetcher := testFetcher(server.URL, nil)
	outcome := fetcher.Fetch(context.Background(), "anything", 0, 1)

	if !outcome.Failed() {
		t.Fatal("Expected failure for transport error")
	}
	if outcome.Err == "" {
		t.Error("Expected error message for transport failure")
	}
}

func TestFetch_FailureRowWidth(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	fetcher := testFetcher(server.URL, nil)
	outcome := fetcher.Fetch(context.Background(), "x", 0, 1)

	row := outcome.Row()
	if len(row) != len(model.Columns()) {
		t.Fatalf("Row width = %d, want %d", len(row), len(model.Columns()))
	}
	if row[1] != "500 Internal Server Error" {
		t.Errorf("Error column = %q", row[1])
	}
	for i, v := range row[2:] {
		if v != "" {
			t.Errorf("Column %d = %q, want empty", i+2, v)
		}
	}
}

func TestFetch_CacheHitSkipsNetwork(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		_, _ = fmt.Fprint(w, `{"scientificName": "Lynx lynx"}`)
	}))
	defer server.Close()

	store := cache.NewMemoryCache(time.Minute)
	fetcher := testFetcher(server.URL, store)

	first := fetcher.Fetch(context.Background(), "lynx", 0, 2)
	second := fetcher.Fetch(context.Background(), "lynx", 1, 2)

	if first.Failed() || second.Failed() {
		t.Fatalf("Unexpected failures: %q / %q", first.Err, second.Err)
	}
	if second.Data.ScientificName != "Lynx lynx" {
		t.Errorf("Cached ScientificName = %q", second.Data.ScientificName)
	}
	if hits.Load() != 1 {
		t.Errorf("Expected 1 upstream hit, got %d", hits.Load())
	}
}

func TestFetch_ErrorResponsesNotCached(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = fmt.Fprint(w, `{"scientificName": "Bufo bufo"}`)
	}))
	defer server.Close()

	store := cache.NewMemoryCache(time.Minute)
	fetcher := testFetcher(server.URL, store)

	first := fetcher.Fetch(context.Background(), "toad", 0, 2)
	second := fetcher.Fetch(context.Background(), "toad", 1, 2)

	if !first.Failed() {
		t.Fatal("Expected first fetch to fail")
	}
	if second.Failed() {
		t.Fatalf("Expected second fetch to succeed, got %q", second.Err)
	}
	if hits.Load() != 2 {
		t.Errorf("Expected 2 upstream hits, got %d", hits.Load())
	}
}
