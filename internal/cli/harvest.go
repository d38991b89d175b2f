package cli

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/mkrivoshein/taxopull/internal/cache"
	"github.com/mkrivoshein/taxopull/internal/llm"
	"github.com/mkrivoshein/taxopull/internal/model"
	"github.com/mkrivoshein/taxopull/internal/pipeline"
)

var (
	outputDir    string
	requestDelay time.Duration
	httpTimeout  time.Duration
	userAgent    string
	noCache      bool
	httpProxy    string
	httpsProxy   string
	ignoreRobots bool
	llmEnabled   bool
	llmModel     string
)

// harvestCmd represents the harvest command
var harvestCmd = &cobra.Command{
	Use:   "harvest <datafile>",
	Short: "Fetch taxon records for every route in a datafile and write a CSV",
	Long: `Harvest reads species routes from a single-column CSV file (one route
per row, no header), fetches each record sequentially from the taxon API,
and appends one row per route to results/<datafile-stem>_<timestamp>.csv.

Failed requests become rows carrying the error message; only a write
error or a missing datafile aborts the run. Every row is flushed to disk
before the next request, so a killed run keeps everything fetched so far.

Example:
  taxopull harvest animals_set_1.csv
  taxopull harvest animals_set_1.csv --delay 1s --output-dir ./results
  taxopull harvest animals_set_1.csv --llm --llm-model gpt-4o-mini`,
	Args: cobra.ExactArgs(1),
	RunE: runHarvest,
}

func init() {
	rootCmd.AddCommand(harvestCmd)

	harvestCmd.Flags().StringVar(&outputDir, "output-dir", "results", "output directory for CSV files")
	harvestCmd.Flags().DurationVar(&requestDelay, "delay", 500*time.Millisecond, "delay between requests")
	harvestCmd.Flags().DurationVar(&httpTimeout, "timeout", 10*time.Second, "per-request timeout")
	harvestCmd.Flags().StringVar(&userAgent, "ua", "taxopull/0.1 (+https://github.com/mkrivoshein/taxopull)", "HTTP User-Agent")
	harvestCmd.Flags().BoolVar(&noCache, "no-cache", false, "disable the response cache (force fresh fetches)")
	harvestCmd.Flags().StringVar(&httpProxy, "http-proxy", "", "HTTP proxy URL (overrides HTTP_PROXY env var)")
	harvestCmd.Flags().StringVar(&httpsProxy, "https-proxy", "", "HTTPS proxy URL (overrides HTTPS_PROXY env var)")
	harvestCmd.Flags().BoolVar(&ignoreRobots, "ignore-robots", false, "skip the robots.txt check")

	// LLM flags
	harvestCmd.Flags().BoolVar(&llmEnabled, "llm", false, "generate a post-run digest with an LLM")
	harvestCmd.Flags().StringVar(&llmModel, "llm-model", "gpt-4o-mini", "LLM model name")
}

func runHarvest(cmd *cobra.Command, args []string) error {
	datafile := args[0]
	ctx := context.Background()

	// Load routes before touching the output directory: a missing
	// datafile must not leave an empty CSV behind.
	routes, err := pipeline.LoadRoutes(datafile)
	if err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "Loaded %d routes from %s\n\n", len(routes), datafile)

	cfg := model.DefaultConfig()
	cfg.Output.Dir = outputDir
	cfg.Output.Verbose = verbose
	cfg.RateLimiting.RequestDelay = requestDelay
	cfg.HTTP.Timeout = httpTimeout
	cfg.HTTP.UserAgent = userAgent
	cfg.HTTP.HTTPProxy = httpProxy
	cfg.HTTP.HTTPSProxy = httpsProxy
	cfg.Cache.Enabled = !noCache
	cfg.Robots.Respect = !ignoreRobots

	if llmEnabled {
		cfg.LLM.Provider = "openai"
		cfg.LLM.Model = llmModel
		cfg.LLM.APIKey = os.Getenv("OPENAI_API_KEY")
		if cfg.LLM.APIKey == "" {
			return fmt.Errorf("OPENAI_API_KEY environment variable not set")
		}
	}

	var store cache.Cache
	if cfg.Cache.Enabled {
		store = cache.NewLayeredCache(cfg.Cache.MemoryTTL, cfg.Cache.Dir, cfg.Cache.DiskTTL)
	}

	fetcher := pipeline.NewFetcher(cfg, store)
	runner := pipeline.NewRunner(cfg, fetcher)

	summary, err := runner.Run(ctx, datafile, routes)
	if err != nil {
		if summary != nil && summary.OutputPath != "" {
			fmt.Fprintf(os.Stderr, "\n✗ Incomplete: only %d/%d rows written to %s\n", summary.RowsWritten, summary.Total, summary.OutputPath)
			fmt.Fprintf(os.Stderr, "Partial results have been saved and can be found at: %s\n", summary.OutputPath)
		}
		return err
	}

	fmt.Fprintf(os.Stderr, "\n✓ Complete: successfully wrote all %d/%d rows to %s\n", summary.RowsWritten, summary.Total, summary.OutputPath)
	if len(summary.Failures) > 0 {
		fmt.Fprintf(os.Stderr, "  %d of those are failure rows; see the error column.\n", len(summary.Failures))
	}

	if llmEnabled {
		writeDigest(ctx, cfg, datafile, summary)
	}

	return nil
}

// writeDigest generates the optional LLM digest. Digest problems are
// warnings; the harvest already succeeded.
func writeDigest(ctx context.Context, cfg *model.Config, datafile string, summary *pipeline.RunSummary) {
	provider, err := llm.NewProvider(llm.ConfigFromModel(cfg.LLM))
	if err != nil || provider == nil {
		if err != nil {
			fmt.Fprintf(os.Stderr, "Warning: LLM digest skipped: %v\n", err)
		}
		return
	}

	failures := make([]string, 0, len(summary.Failures))
	for _, f := range summary.Failures {
		failures = append(failures, fmt.Sprintf("%s: %s", f.URL, f.Err))
	}

	resp, err := provider.Digest(ctx, llm.DigestRequest{
		Datafile:   datafile,
		OutputPath: summary.OutputPath,
		Total:      summary.Total,
		Written:    summary.RowsWritten,
		Failures:   failures,
		Species:    summary.Species,
		SourceURLs: summary.URLs,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: LLM digest generation failed: %v\n", err)
		return
	}

	digestPath := strings.TrimSuffix(summary.OutputPath, ".csv") + ".summary.md"
	if err := os.WriteFile(digestPath, []byte(resp.Digest+"\n"), 0o644); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to write digest: %v\n", err)
		return
	}

	fmt.Fprintf(os.Stderr, "✓ Wrote digest: %s\n", digestPath)
}
