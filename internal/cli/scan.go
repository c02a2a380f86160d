package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/safelens/safelens/internal/cache"
	"github.com/safelens/safelens/internal/model"
	"github.com/safelens/safelens/internal/pipeline"
	"github.com/spf13/cobra"
)

var (
	outJSON       string
	timeout       time.Duration
	userAgent     string
	maxBytes      int64
	noCache       bool
	screenshot    bool
	screenshotDir string
	llmEnabled    bool
	llmProvider   string
	llmModel      string
)

// scanCmd represents the scan command
var scanCmd = &cobra.Command{
	Use:   "scan <url>",
	Short: "Scan a single URL and produce an itemized trust score",
	Long: `Scan runs a URL through the full evidence pipeline:
- Resolve the redirect chain in a headless browser
- Check every hop against the known-threat database
- Score the URL with the two-model ML ensemble
- Analyze page content for risk signals
- Inspect the TLS certificate

Each stage reports a penalty or bonus; the trust score is 100 minus the
sum, clamped to 0-100.

Example:
  safelens scan https://example.com
  safelens scan https://example.com --json result.json
  safelens scan https://bit.ly/abc123 --llm --llm-provider openai --screenshot`,
	Args: cobra.ExactArgs(1),
	RunE: runScan,
}

func init() {
	rootCmd.AddCommand(scanCmd)

	// Output flags
	scanCmd.Flags().StringVar(&outJSON, "json", "", "output JSON path (optional)")

	// HTTP flags
	scanCmd.Flags().DurationVar(&timeout, "timeout", 2*time.Minute, "overall scan timeout")
	scanCmd.Flags().StringVar(&userAgent, "ua", "SafeLens/0.1 (+https://github.com/safelens/safelens)", "HTTP User-Agent")
	scanCmd.Flags().Int64Var(&maxBytes, "max-bytes", 2_000_000, "max response bytes to read")
	scanCmd.Flags().BoolVar(&noCache, "no-cache", false, "disable result cache (force fresh scan)")
	scanCmd.Flags().BoolVar(&screenshot, "screenshot", false, "capture a screenshot of the final page")
	scanCmd.Flags().StringVar(&screenshotDir, "screenshot-dir", "screenshots", "directory for captured screenshots")

	// LLM flags
	scanCmd.Flags().BoolVar(&llmEnabled, "llm", false, "enable AI content analysis and summaries")
	scanCmd.Flags().StringVar(&llmProvider, "llm-provider", "openai", "LLM provider (openai, anthropic, ollama)")
	scanCmd.Flags().StringVar(&llmModel, "llm-model", "gpt-4o-mini", "LLM model name")
}

func runScan(cmd *cobra.Command, args []string) error {
	url := args[0]
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if verbose {
		fmt.Fprintf(os.Stderr, "Scanning: %s\n", url)
		fmt.Fprintf(os.Stderr, "Timeout: %v\n", timeout)
		fmt.Fprintf(os.Stderr, "Cache: %v\n", !noCache)
		fmt.Fprintln(os.Stderr)
	}

	cfg, err := buildConfig()
	if err != nil {
		return err
	}

	target := model.NewURLTarget(url)
	store := resultStore(cfg)
	if store != nil {
		if entry, ok, err := cache.Lookup(ctx, store, target); err == nil && ok {
			if verbose {
				fmt.Fprintf(os.Stderr, "✓ Cached result from %s\n", entry.CreatedAt.Format(time.RFC3339))
			}
			result := entry.Result
			printResult(&result)
			return writeResult(&result)
		}
	}

	p := pipeline.New(cfg)

	result, err := p.Evaluate(ctx, url)
	if err != nil {
		return fmt.Errorf("scan failed: %w", err)
	}

	if store != nil {
		if err := store.Insert(ctx, cache.NewEntry(target, *result)); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: cache insert failed: %v\n", err)
		}
	}

	printResult(result)
	return writeResult(result)
}

func writeResult(result *model.AggregateResult) error {
	if outJSON == "" {
		return nil
	}
	return writeJSON(result, outJSON)
}

// buildConfig assembles the runtime configuration from defaults and flags,
// pulling LLM credentials from the environment.
func buildConfig() (*model.Config, error) {
	cfg := model.DefaultConfig()
	cfg.HTTP.Timeout = timeout
	cfg.HTTP.UserAgent = userAgent
	cfg.HTTP.MaxBodyBytes = maxBytes
	cfg.Redirect.Screenshot = screenshot
	cfg.Redirect.ScreenshotDir = screenshotDir

	if err := configureLLM(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// configureLLM wires the generative provider from flags and environment.
// With --llm absent the provider is cleared and every AI stage degrades.
func configureLLM(cfg *model.Config) error {
	if !llmEnabled {
		cfg.LLM.Provider = ""
		return nil
	}

	cfg.LLM.Provider = llmProvider
	cfg.LLM.Model = llmModel

	// Get API key from environment
	switch llmProvider {
	case "openai":
		cfg.LLM.APIKey = os.Getenv("OPENAI_API_KEY")
		if cfg.LLM.APIKey == "" {
			return fmt.Errorf("OPENAI_API_KEY environment variable not set")
		}
	case "anthropic", "claude":
		cfg.LLM.APIKey = os.Getenv("ANTHROPIC_API_KEY")
		if cfg.LLM.APIKey == "" {
			return fmt.Errorf("ANTHROPIC_API_KEY environment variable not set")
		}
	case "ollama":
		// Ollama doesn't need an API key
		baseURL := os.Getenv("OLLAMA_BASE_URL")
		if baseURL != "" {
			cfg.LLM.BaseURL = baseURL
		}
	}
	return nil
}

// resultStore opens the configured cache backend, or nil with --no-cache.
func resultStore(cfg *model.Config) cache.Store {
	if noCache {
		return nil
	}
	return cache.NewStore(cfg.Cache)
}
