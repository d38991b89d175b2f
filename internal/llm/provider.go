// Package llm generates an optional natural-language digest of a harvest
// run. The digest is written next to the CSV and never affects the run's
// outcome - a provider failure is a warning, not an error.
package llm

import (
	"context"
	"fmt"
)

// Provider is one digest backend.
type Provider interface {
	// Name returns the provider name
	Name() string

	// Digest generates a run digest in Markdown
	Digest(ctx context.Context, req DigestRequest) (*DigestResponse, error)

	// IsAvailable checks if the provider is configured and reachable
	IsAvailable(ctx context.Context) bool
}

// DigestRequest carries everything the model may talk about.
type DigestRequest struct {
	// Datafile is the input file the run was driven by
	Datafile string

	// OutputPath is where the CSV landed
	OutputPath string

	// Total and Written are the requested and persisted row counts
	Total   int
	Written int

	// Failures are "url: message" lines for routes that produced error rows
	Failures []string

	// Species are the scientific names harvested this run
	Species []string

	// SourceURLs is the STRICT allowlist of URLs the digest may cite.
	// Anything outside this list is treated as a hallucination.
	SourceURLs []string

	// Model overrides the provider's configured model when non-empty
	Model string

	// MaxTokens limits the response length
	MaxTokens int
}

// DigestResponse is the provider's output.
type DigestResponse struct {
	Digest     string
	CitedURLs  []string
	Model      string
	TokensUsed int
}

// Config holds provider configuration.
type Config struct {
	// Provider name: "openai" or "" (disabled)
	Provider string

	// Model name (provider-specific)
	Model string

	// APIKey authenticates against the provider
	APIKey string

	// BaseURL for custom endpoints
	BaseURL string

	// Timeout for API requests, seconds
	Timeout int

	// MaxTokens for response generation
	MaxTokens int
}

// BuildPrompt constructs the default digest prompt with the source
// allowlist inlined.
func BuildPrompt(req DigestRequest) string {
	prompt := fmt.Sprintf(`You are summarizing a species data harvest run for a field notebook.

CRITICAL RULES:
1. You MUST ONLY cite URLs from this allowed list:
%s

2. DO NOT infer, speculate, or cite external sources beyond this list.
3. Report counts exactly as given; do not recalculate or embellish.
4. If requests failed, state how many and why, without guessing at causes
   beyond the recorded messages.

Run summary:
- Input file: %s
- Output CSV: %s
- Rows written: %d of %d requested
- Failed requests: %d
`, joinLines(req.SourceURLs, 20), req.Datafile, req.OutputPath, req.Written, req.Total, len(req.Failures))

	if len(req.Species) > 0 {
		prompt += "\nSpecies harvested:" + joinLines(req.Species, 30) + "\n"
	}
	if len(req.Failures) > 0 {
		prompt += "\nRecorded failures:" + joinLines(req.Failures, 10) + "\n"
	}

	prompt += "\nProvide a 3-5 sentence Markdown digest of what this run collected."

	return prompt
}

func joinLines(items []string, limit int) string {
	if len(items) == 0 {
		return "\n(none)"
	}
	result := ""
	for i, item := range items {
		if i >= limit {
			result += fmt.Sprintf("\n... and %d more", len(items)-limit)
			break
		}
		result += "\n- " + item
	}
	return result
}
