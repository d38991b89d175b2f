package pipeline

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/mkrivoshein/taxopull/internal/model"
	"github.com/mkrivoshein/taxopull/internal/util"
)

// Failure records one route that produced an error row.
type Failure struct {
	Route string
	URL   string
	Err   string
}

// RunSummary describes a completed (or aborted) run.
type RunSummary struct {
	OutputPath  string
	Total       int
	RowsWritten int
	Failures    []Failure

	// URLs and Species feed the optional post-run digest.
	URLs    []string
	Species []string
}

// Runner drives a harvest: it iterates routes in order, fetching,
// flattening, and durably writing one CSV row per route before moving to
// the next. A kill at any point leaves a valid header-plus-N-rows file.
type Runner struct {
	cfg     *model.Config
	fetcher *Fetcher
	limiter *rate.Limiter
	robots  *util.RobotsChecker
	now     func() time.Time
}

// NewRunner creates a Runner. The limiter paces requests at one per
// configured delay; its single-token burst means the first request is
// never delayed.
func NewRunner(cfg *model.Config, fetcher *Fetcher) *Runner {
	r := &Runner{
		cfg:     cfg,
		fetcher: fetcher,
		limiter: rate.NewLimiter(rate.Every(cfg.RateLimiting.RequestDelay), 1),
		now:     time.Now,
	}
	if cfg.Robots.Respect {
		r.robots = util.NewRobotsChecker(cfg.HTTP.UserAgent, cfg.HTTP.Timeout)
	}
	return r
}

// Run harvests all routes into a timestamped CSV under the output
// directory. Per-route failures become rows and never abort; a write or
// flush error aborts with the partial counts preserved in the returned
// summary.
func (r *Runner) Run(ctx context.Context, datafile string, routes []string) (*RunSummary, error) {
	if err := r.checkRobots(ctx); err != nil {
		return nil, err
	}

	outputPath := r.outputPath(datafile)
	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return nil, fmt.Errorf("create output directory: %w", err)
	}

	file, err := os.Create(outputPath)
	if err != nil {
		return nil, fmt.Errorf("create output file: %w", err)
	}
	defer func() { _ = file.Close() }()

	summary := &RunSummary{OutputPath: outputPath, Total: len(routes)}
	writer := csv.NewWriter(file)

	if err := writeRow(writer, file, model.Columns()); err != nil {
		return summary, fmt.Errorf("write header: %w", err)
	}

	for i, route := range routes {
		if err := r.limiter.Wait(ctx); err != nil {
			return summary, fmt.Errorf("rate limit wait: %w", err)
		}

		outcome := r.fetcher.Fetch(ctx, route, i, len(routes))
		summary.URLs = append(summary.URLs, outcome.URL)
		if outcome.Failed() {
			summary.Failures = append(summary.Failures, Failure{Route: route, URL: outcome.URL, Err: outcome.Err})
		} else if outcome.Data.ScientificName != "" {
			summary.Species = append(summary.Species, outcome.Data.ScientificName)
		}

		if err := writeRow(writer, file, outcome.Row()); err != nil {
			return summary, fmt.Errorf("write row for %s: %w", route, err)
		}
		summary.RowsWritten++
	}

	return summary, nil
}

// writeRow writes and flushes one row all the way to disk, so every
// completed row survives a crash.
func writeRow(w *csv.Writer, f *os.File, row []string) error {
	if err := w.Write(row); err != nil {
		return err
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return err
	}
	return f.Sync()
}

// checkRobots verifies the taxon path is allowed and widens the request
// delay if the host asks for a larger Crawl-delay.
func (r *Runner) checkRobots(ctx context.Context) error {
	if r.robots == nil {
		return nil
	}

	apiURL := r.fetcher.URLFor("")
	allowed, crawlDelay, err := r.robots.Check(ctx, apiURL)
	if err != nil {
		return fmt.Errorf("robots.txt check: %w", err)
	}
	if !allowed {
		return fmt.Errorf("robots.txt disallows fetching %s", apiURL)
	}
	if crawlDelay > r.cfg.RateLimiting.RequestDelay {
		r.limiter.SetLimit(rate.Every(crawlDelay))
	}

	return nil
}

// outputPath derives results/<stem>_<YYYYMMDD_HHMMSS>.csv from the
// datafile name and the run start time.
func (r *Runner) outputPath(datafile string) string {
	base := filepath.Base(datafile)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	stamp := r.now().Format("20060102_150405")
	return filepath.Join(r.cfg.Output.Dir, fmt.Sprintf("%s_%s.csv", stem, stamp))
}
