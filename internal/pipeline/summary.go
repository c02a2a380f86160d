package pipeline

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/safelens/safelens/internal/llm"
	"github.com/safelens/safelens/internal/model"
)

const summarySystemPrompt = `You are a security expert summarizing a scan result in two registers:

1. "easy_summary": 2-3 plain sentences a non-technical user can act on.
2. "expert_summary": 3-5 sentences covering the analysis steps and technical grounds.

Hard rules:
- Never change, exaggerate, round or invent any number from the scan result. Quote the key metrics exactly as given.
- If the ensemble verdict says SAFE, say safe; never flip a verdict.
- If a metric is absent, do not mention it and do not guess.

Respond with JSON only, in this shape:
{"easy_summary": "...", "expert_summary": "..."}`

// Summarizer turns a finished scan result into the two narrative summaries.
// It runs strictly after scoring and never feeds back into it.
type Summarizer struct {
	provider llm.Provider
}

// NewSummarizer creates a summarizer over an LLM provider.
func NewSummarizer(provider llm.Provider) *Summarizer {
	return &Summarizer{provider: provider}
}

// Summarize fills in EasySummary and ExpertSummary on the result. On any
// failure the result is left untouched and the error returned; callers treat
// summaries as best-effort.
func (s *Summarizer) Summarize(ctx context.Context, result *model.AggregateResult) error {
	metrics := keyMetrics(result)

	metricsJSON, err := json.MarshalIndent(metrics, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal metrics: %w", err)
	}
	resultJSON, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal result: %w", err)
	}

	prompt := fmt.Sprintf(`Summarize this %s scan result.

=== Key metrics (quote these values exactly) ===
%s

=== Full scan result ===
%s

Ground the summaries in the concrete findings above. Generic phrases like
"the scan is complete" are not acceptable. The easy summary must state
clearly whether the target is safe, suspicious or dangerous.`,
		result.Target.Channel, metricsJSON, resultJSON)

	raw, err := s.provider.ClassifyJSON(ctx, llm.Request{
		System:    summarySystemPrompt,
		Prompt:    prompt,
		MaxTokens: 500,
	})
	if err != nil {
		return fmt.Errorf("generate summary: %w", err)
	}

	var out struct {
		Easy   string `json:"easy_summary"`
		Expert string `json:"expert_summary"`
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return fmt.Errorf("parse summary: %w", err)
	}
	if out.Easy == "" && out.Expert == "" {
		return fmt.Errorf("empty summary")
	}

	result.EasySummary = out.Easy
	result.ExpertSummary = out.Expert
	return nil
}

// keyMetrics extracts the numbers the model must quote verbatim, so the
// prompt can pin them explicitly instead of trusting the model to fish them
// out of the full result.
func keyMetrics(result *model.AggregateResult) map[string]interface{} {
	metrics := map[string]interface{}{
		"final_trust_score": result.TrustScore,
		"final_status":      result.Final,
	}

	if stage, ok := result.Stage(model.StageClassifier); ok {
		if prob, ok := stage.Meta["probability"].(float64); ok {
			metrics["ml_phishing_probability"] = fmt.Sprintf("%.4f", prob)
			metrics["ml_phishing_percent"] = fmt.Sprintf("%.2f%%", prob*100)
		}
		metrics["ml_verdict"] = stage.Status
	}
	if stage, ok := result.Stage(model.StageContent); ok && stage.Status != model.StatusError {
		if level, ok := stage.Meta["risk_level"].(string); ok {
			metrics["ai_risk_level"] = level
		}
		if conf, ok := stage.Meta["confidence"].(float64); ok {
			metrics["ai_confidence"] = fmt.Sprintf("%.0f%%", conf)
		}
	}

	return metrics
}
