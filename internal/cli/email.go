package cli

import (
	"context"
	"fmt"

	"github.com/safelens/safelens/internal/channel"
	"github.com/spf13/cobra"
)

var emailFile string

// emailCmd represents the email command
var emailCmd = &cobra.Command{
	Use:   "email [body]",
	Short: "Analyze a raw email for phishing",
	Long: `Email scores a raw message, headers included:
- An AI pass reads the whole message, names the threat types it sees and
  extracts URLs worth a full security scan
- Extracted URLs run through the full URL pipeline; a dangerous link drags
  the email's score down to the link's own score

Requires --llm; without a provider the score stays at the neutral midpoint.

Example:
  safelens email --file suspicious.eml --llm
  safelens email --file suspicious.eml --llm --llm-provider anthropic`,
	Args: cobra.MaximumNArgs(1),
	RunE: runEmail,
}

func init() {
	rootCmd.AddCommand(emailCmd)
	channelFlags(emailCmd)
	emailCmd.Flags().StringVar(&emailFile, "file", "", "read the raw email from a file")
}

func runEmail(cmd *cobra.Command, args []string) error {
	body, err := readInput(args, emailFile)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	cfg, err := buildConfig()
	if err != nil {
		return err
	}

	result, err := channel.NewEmail(buildDeps(cfg)).Analyze(ctx, body)
	if err != nil {
		return fmt.Errorf("email analysis failed: %w", err)
	}

	printResult(result)
	return writeResult(result)
}
