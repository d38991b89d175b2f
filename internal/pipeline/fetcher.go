package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/mkrivoshein/taxopull/internal/cache"
	"github.com/mkrivoshein/taxopull/internal/extract"
	"github.com/mkrivoshein/taxopull/internal/model"
	"github.com/mkrivoshein/taxopull/internal/util"
)

// Fetcher retrieves one taxon record per route and flattens it.
// Any per-route problem - bad status, transport failure, malformed body -
// becomes a failure outcome; Fetch never returns an error.
type Fetcher struct {
	httpClient *http.Client
	baseURL    string
	pathPrefix string
	userAgent  string
	store      cache.Cache
	progress   io.Writer
}

// NewFetcher creates a Fetcher from the configuration. store may be nil to
// disable response caching.
func NewFetcher(cfg *model.Config, store cache.Cache) *Fetcher {
	return &Fetcher{
		httpClient: &http.Client{
			Timeout: cfg.HTTP.Timeout,
			Transport: &http.Transport{
				Proxy: util.NewProxyFunc(cfg.HTTP.HTTPProxy, cfg.HTTP.HTTPSProxy),
			},
		},
		baseURL:    cfg.API.BaseURL,
		pathPrefix: cfg.API.PathPrefix,
		userAgent:  cfg.HTTP.UserAgent,
		store:      store,
		progress:   os.Stderr,
	}
}

// SetProgress redirects per-route progress lines (default os.Stderr).
func (f *Fetcher) SetProgress(w io.Writer) {
	f.progress = w
}

// URLFor builds the request URL for a route. Routes are trusted path
// segments and appended verbatim.
func (f *Fetcher) URLFor(route string) string {
	return f.baseURL + f.pathPrefix + route
}

// Fetch retrieves and flattens the record for one route. index and total
// drive the running counter in the progress output.
func (f *Fetcher) Fetch(ctx context.Context, route string, index, total int) model.FetchOutcome {
	url := f.URLFor(route)
	fmt.Fprintf(f.progress, "Fetching: %s\n", url)

	body, err := f.retrieve(ctx, url)
	if err != nil {
		fmt.Fprintf(f.progress, "✗ Failed to fetch %s: %v\n", url, err)
		return model.FetchOutcome{URL: url, Err: err.Error()}
	}

	raw, err := decodeRecord(body)
	if err != nil {
		fmt.Fprintf(f.progress, "✗ Failed to fetch %s: %v\n", url, err)
		return model.FetchOutcome{URL: url, Err: err.Error()}
	}

	rec := extract.Flatten(raw)
	fmt.Fprintf(f.progress, "✓ Successfully fetched (%d/%d) %s\n", index+1, total, url)
	return model.FetchOutcome{URL: url, Data: &rec}
}

// retrieve returns the raw response body, consulting the cache first.
func (f *Fetcher) retrieve(ctx context.Context, url string) ([]byte, error) {
	key := cache.Key(url)
	if f.store != nil {
		if body, found := f.store.Get(key); found {
			return body, nil
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		// resp.Status is already "<code> <reason>", which is the error
		// column format.
		return nil, errors.New(resp.Status)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if f.store != nil {
		if err := f.store.Set(key, body, 0); err != nil {
			fmt.Fprintf(f.progress, "Warning: cache write failed for %s: %v\n", url, err)
		}
	}

	return body, nil
}

// decodeRecord parses a response body into the schemaless record form.
// UseNumber keeps numeric identifiers as their source literals.
func decodeRecord(body []byte) (map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()

	var raw map[string]any
	if err := dec.Decode(&raw); err != nil {
		return nil, err
	}
	return raw, nil
}
