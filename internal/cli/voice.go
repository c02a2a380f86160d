package cli

import (
	"context"
	"fmt"

	"github.com/safelens/safelens/internal/channel"
	"github.com/spf13/cobra"
)

var voiceFile string

// voiceCmd represents the voice command
var voiceCmd = &cobra.Command{
	Use:   "voice [transcript]",
	Short: "Analyze a call transcript for vishing",
	Long: `Voice scores the transcript of a phone call or voice message for
voice phishing. Transcription happens upstream; safelens only reads text.

Requires --llm; without a provider the score stays at the neutral midpoint.

Example:
  safelens voice --file call.txt --llm
  safelens voice "This is the prosecutor's office, your account..." --llm`,
	Args: cobra.MaximumNArgs(1),
	RunE: runVoice,
}

func init() {
	rootCmd.AddCommand(voiceCmd)
	channelFlags(voiceCmd)
	voiceCmd.Flags().StringVar(&voiceFile, "file", "", "read the transcript from a file")
}

func runVoice(cmd *cobra.Command, args []string) error {
	transcript, err := readInput(args, voiceFile)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	cfg, err := buildConfig()
	if err != nil {
		return err
	}

	result, err := channel.NewVoice(buildDeps(cfg)).Analyze(ctx, transcript)
	if err != nil {
		return fmt.Errorf("voice analysis failed: %w", err)
	}

	printResult(result)
	return writeResult(result)
}
