package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/safelens/safelens/internal/model"
)

var (
	safeColor       = color.New(color.FgGreen, color.Bold)
	suspiciousColor = color.New(color.FgYellow, color.Bold)
	dangerColor     = color.New(color.FgRed, color.Bold)
	errorColor      = color.New(color.FgMagenta)
	dimColor        = color.New(color.Faint)
)

// statusColor picks the terminal color for a verdict.
func statusColor(status model.StageStatus) *color.Color {
	switch status {
	case model.StatusSafe:
		return safeColor
	case model.StatusSuspicious, model.StatusWarning:
		return suspiciousColor
	case model.StatusDanger:
		return dangerColor
	default:
		return errorColor
	}
}

// printResult renders one scan result to stdout: the verdict line, the
// itemized stage table, and any generated summaries.
func printResult(result *model.AggregateResult) {
	fmt.Println()
	fmt.Printf("  Target:  %s (%s)\n", truncateLine(result.Target.Raw, 80), result.Target.Channel)
	if result.FinalURL != "" && result.FinalURL != result.Target.Raw {
		fmt.Printf("  Final:   %s\n", truncateLine(result.FinalURL, 80))
	}
	fmt.Printf("  Score:   %d/100 ", result.TrustScore)
	_, _ = statusColor(result.Final).Println(string(result.Final))
	if result.Message != "" {
		fmt.Printf("  Verdict: %s\n", result.Message)
	}
	fmt.Println()

	for _, stage := range result.Stages {
		sign := ""
		if stage.Penalty > 0 {
			sign = fmt.Sprintf(" (-%d)", stage.Penalty)
		} else if stage.Penalty < 0 {
			sign = fmt.Sprintf(" (+%d)", -stage.Penalty)
		}
		fmt.Printf("  [%-11s] %-20s", stage.Status, stage.Name)
		_, _ = statusColor(stage.Status).Printf("%s", sign)
		fmt.Println()
		if stage.Message != "" {
			_, _ = dimColor.Printf("                %s\n", truncateLine(stage.Message, 90))
		}
	}

	if result.Screenshot != "" {
		fmt.Printf("\n  Screenshot: %s\n", result.Screenshot)
	}
	if result.EasySummary != "" {
		fmt.Printf("\n  Summary: %s\n", result.EasySummary)
	}
	if verbose && result.ExpertSummary != "" {
		fmt.Printf("\n  Expert:  %s\n", result.ExpertSummary)
	}
	fmt.Println()
}

// writeJSON writes the full result, stages and metadata included, to path.
func writeJSON(result *model.AggregateResult, path string) error {
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal result: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write result: %w", err)
	}
	if verbose {
		fmt.Fprintf(os.Stderr, "✓ Wrote %s\n", path)
	}
	return nil
}

func truncateLine(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max]) + "…"
}
