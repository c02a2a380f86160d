package cli

import (
	"context"
	"fmt"

	"github.com/safelens/safelens/internal/channel"
	"github.com/safelens/safelens/internal/fetch"
	"github.com/spf13/cobra"
)

var (
	qrExpectation    string
	qrSkipComparison bool
)

// qrCmd represents the qr command
var qrCmd = &cobra.Command{
	Use:   "qr <payload>",
	Short: "Analyze a decoded QR payload for quishing",
	Long: `Qr scores the decoded content of a QR code:
- URL payloads (bare hosts get https:// defaulted) run through the full
  URL pipeline, then the landing page is compared against the purpose the
  user expected the code to serve
- Non-URL payloads (wifi:, mailto:, free text) get a single-pass AI
  quishing-probability read

The expectation comparison informs the report but never moves the score.

Example:
  safelens qr "https://pay.example/checkout" --expect "restaurant menu" --llm
  safelens qr "WIFI:T:WPA;S:FreeAirport;P:;;" --llm`,
	Args: cobra.ExactArgs(1),
	RunE: runQR,
}

func init() {
	rootCmd.AddCommand(qrCmd)
	channelFlags(qrCmd)
	qrCmd.Flags().StringVar(&qrExpectation, "expect", "", "the purpose the user expected the code to serve")
	qrCmd.Flags().BoolVar(&qrSkipComparison, "skip-comparison", false, "skip the landing-page expectation comparison")
}

func runQR(cmd *cobra.Command, args []string) error {
	payload := args[0]

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	cfg, err := buildConfig()
	if err != nil {
		return err
	}

	adapter := channel.NewQR(fetch.NewFetcher(cfg.HTTP), buildDeps(cfg))
	result, err := adapter.Analyze(ctx, payload, qrExpectation, qrSkipComparison)
	if err != nil {
		return fmt.Errorf("qr analysis failed: %w", err)
	}

	printResult(result)
	return writeResult(result)
}
