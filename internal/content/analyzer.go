// Package content runs generative risk analysis over rendered page text.
// The stage is strictly advisory and fail-open: any provider failure yields
// an ERROR stage with zero penalty so an unreachable API cannot lower a
// trust score.
package content

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/safelens/safelens/internal/llm"
	"github.com/safelens/safelens/internal/model"
)

const systemPrompt = "You are a website security analyst. You inspect page content and judge whether a site is phishing, malware or spam."

// Analysis is the JSON shape the model is asked to produce.
type Analysis struct {
	RiskLevel          string   `json:"risk_level"`
	IsPhishing         bool     `json:"is_phishing"`
	IsMalware          bool     `json:"is_malware"`
	IsSpam             bool     `json:"is_spam"`
	Confidence         float64  `json:"confidence"`
	Reason             string   `json:"reason"`
	SuspiciousElements []string `json:"suspicious_elements"`
}

// Analyzer scores page content through an LLM provider.
type Analyzer struct {
	provider llm.Provider
	cfg      model.ContentConfig
}

// NewAnalyzer creates a content analyzer. A nil provider disables the stage;
// every call then degrades to an ERROR result.
func NewAnalyzer(provider llm.Provider, cfg model.ContentConfig) *Analyzer {
	return &Analyzer{provider: provider, cfg: cfg}
}

// Analyze classifies the rendered HTML of a page. The caller passes the
// post-redirect URL and the HTML the browser saw; only visible text reaches
// the model.
func (a *Analyzer) Analyze(ctx context.Context, url, title, rawHTML string) model.StageResult {
	if a.provider == nil {
		return a.errored("content analysis disabled: no LLM provider configured")
	}

	text := Truncate(VisibleText(rawHTML), a.cfg.MaxChars)

	prompt := fmt.Sprintf(`The following is text crawled from a website. Analyze the likelihood that this site is a phishing, malware or spam site.

Website title: %s
Website URL: %s

Crawled text:
%s

Analyze the content above and answer in this JSON format:
{
  "risk_level": "high" | "medium" | "low",
  "is_phishing": true/false,
  "is_malware": true/false,
  "is_spam": true/false,
  "confidence": 0-100,
  "reason": "explain the judgement",
  "suspicious_elements": ["list suspicious elements"]
}

Answer with JSON only.`, title, url, text)

	raw, err := a.provider.ClassifyJSON(ctx, llm.Request{
		System: systemPrompt,
		Prompt: prompt,
	})
	if err != nil {
		return a.errored(fmt.Sprintf("content analysis failed: %v", err))
	}

	var analysis Analysis
	if err := json.Unmarshal(raw, &analysis); err != nil {
		return a.errored(fmt.Sprintf("content analysis returned unusable JSON: %v", err))
	}

	return a.scored(analysis, len(text))
}

func (a *Analyzer) scored(analysis Analysis, textLen int) model.StageResult {
	var penalty int
	var status model.StageStatus

	switch analysis.RiskLevel {
	case "high":
		penalty = a.cfg.HighPenalty
		status = model.StatusDanger
	case "medium":
		penalty = a.cfg.MediumPenalty
		status = model.StatusSuspicious
	default:
		penalty = 0
		status = model.StatusSafe
	}

	message := analysis.Reason
	if message == "" {
		message = "content analysis complete"
	}

	return model.StageResult{
		ID:      model.StageContent,
		Name:    "AI content analysis",
		Status:  status,
		Penalty: penalty,
		Message: message,
		Meta: map[string]interface{}{
			"risk_level":          analysis.RiskLevel,
			"is_phishing":         analysis.IsPhishing,
			"is_malware":          analysis.IsMalware,
			"is_spam":             analysis.IsSpam,
			"confidence":          analysis.Confidence,
			"suspicious_elements": analysis.SuspiciousElements,
			"crawled_text_length": textLen,
		},
	}
}

func (a *Analyzer) errored(message string) model.StageResult {
	return model.StageResult{
		ID:      model.StageContent,
		Name:    "AI content analysis",
		Status:  model.StatusError,
		Penalty: 0,
		Message: message,
	}
}
