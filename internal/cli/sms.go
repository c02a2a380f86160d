package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/safelens/safelens/internal/channel"
	"github.com/safelens/safelens/internal/classify"
	"github.com/spf13/cobra"
)

var smsFile string

// smsCmd represents the sms command
var smsCmd = &cobra.Command{
	Use:   "sms [message]",
	Short: "Analyze a text message for smishing",
	Long: `Sms scores a short message body:
- A local transformer model (Korean or English, routed by script) sets the
  initial phishing penalty
- An AI verification pass can hand part of the penalty back when the model
  verdict looks like a false positive
- Embedded URLs run through the full URL pipeline and add their own penalty

Example:
  safelens sms "Your package is held at customs, pay here: http://bit.ly/x"
  safelens sms --file message.txt --llm`,
	Args: cobra.MaximumNArgs(1),
	RunE: runSMS,
}

func init() {
	rootCmd.AddCommand(smsCmd)
	channelFlags(smsCmd)
	smsCmd.Flags().StringVar(&smsFile, "file", "", "read the message body from a file")
}

func runSMS(cmd *cobra.Command, args []string) error {
	text, err := readInput(args, smsFile)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	cfg, err := buildConfig()
	if err != nil {
		return err
	}

	var classifier classify.TextClassifier
	if hc, err := classify.NewHugotClassifier(cfg.SMS); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: text classifier unavailable: %v\n", err)
	} else {
		classifier = hc
		defer func() { _ = hc.Close() }()
	}

	result, err := channel.NewSMS(classifier, buildDeps(cfg)).Analyze(ctx, text)
	if err != nil {
		return fmt.Errorf("sms analysis failed: %w", err)
	}

	printResult(result)
	return writeResult(result)
}
