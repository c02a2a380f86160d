package cli

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/safelens/safelens/internal/channel"
	"github.com/safelens/safelens/internal/llm"
	"github.com/safelens/safelens/internal/model"
	"github.com/safelens/safelens/internal/pipeline"
	"github.com/spf13/cobra"
)

// buildDeps wires the shared collaborators for a channel adapter. Optional
// capabilities degrade with a warning, matching pipeline construction.
func buildDeps(cfg *model.Config) channel.Deps {
	provider, err := llm.NewProvider(cfg.LLM)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: LLM provider unavailable: %v\n", err)
	}

	var summarizer *pipeline.Summarizer
	if provider != nil {
		summarizer = pipeline.NewSummarizer(provider)
	}

	return channel.Deps{
		Provider:   provider,
		Scanner:    pipeline.New(cfg),
		Store:      resultStore(cfg),
		Summarizer: summarizer,
		Config:     cfg,
	}
}

// channelFlags registers the flags every channel command shares. The flag
// variables themselves live in scan.go; a safelens invocation only ever runs
// one command, so sharing them is safe.
func channelFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&outJSON, "json", "", "output JSON path (optional)")
	cmd.Flags().DurationVar(&timeout, "timeout", 2*time.Minute, "overall analysis timeout")
	cmd.Flags().StringVar(&userAgent, "ua", "SafeLens/0.1 (+https://github.com/safelens/safelens)", "HTTP User-Agent for embedded URL scans")
	cmd.Flags().Int64Var(&maxBytes, "max-bytes", 2_000_000, "max response bytes to read")
	cmd.Flags().BoolVar(&noCache, "no-cache", false, "disable result cache (force fresh analysis)")
	cmd.Flags().BoolVar(&llmEnabled, "llm", false, "enable AI analysis stages and summaries")
	cmd.Flags().StringVar(&llmProvider, "llm-provider", "openai", "LLM provider (openai, anthropic, ollama)")
	cmd.Flags().StringVar(&llmModel, "llm-model", "gpt-4o-mini", "LLM model name")
}

// readInput resolves a command's text input: the literal argument, or the
// contents of --file when given.
func readInput(args []string, file string) (string, error) {
	if file != "" {
		data, err := os.ReadFile(file)
		if err != nil {
			return "", fmt.Errorf("read input file: %w", err)
		}
		return string(data), nil
	}
	if len(args) == 0 || strings.TrimSpace(args[0]) == "" {
		return "", fmt.Errorf("no input: pass text as an argument or use --file")
	}
	return args[0], nil
}
