package channel

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/safelens/safelens/internal/content"
	"github.com/safelens/safelens/internal/fetch"
	"github.com/safelens/safelens/internal/llm"
	"github.com/safelens/safelens/internal/model"
)

const (
	qrQuishingSystem = "You are a QR code security expert. You analyze decoded QR payloads and judge whether they are a quishing (QR phishing) attack."
	qrCompareSystem  = "You are a QR code verification expert. You judge whether the website a QR code leads to matches the purpose the user expected it to serve."
)

// QR scores decoded QR payloads. URL payloads run the full URL pipeline plus
// a comparison of the landing page against the user's stated expectation;
// anything else gets a single-pass quishing-probability read.
type QR struct {
	fetcher *fetch.Fetcher
	deps    Deps
}

// NewQR creates the QR adapter. The fetcher feeds the expectation
// comparison; nil degrades that stage.
func NewQR(fetcher *fetch.Fetcher, deps Deps) *QR {
	return &QR{fetcher: fetcher, deps: deps}
}

// Analyze scores one decoded payload against the user's stated expectation.
// An empty payload is a validation error: the code could not be decoded.
func (a *QR) Analyze(ctx context.Context, payload, expectation string, skipComparison bool) (*model.AggregateResult, error) {
	payload = strings.TrimSpace(payload)
	if payload == "" {
		return nil, fmt.Errorf("empty payload: QR code not decoded")
	}

	target := model.NewPayloadTarget(payload, expectation)
	if res, ok := lookupCached(ctx, a.deps.Store, target); ok {
		return res, nil
	}

	var result *model.AggregateResult
	var err error
	if url, ok := payloadURL(payload); ok {
		result, err = a.analyzeURL(ctx, target, url, expectation, skipComparison)
	} else {
		result, err = a.analyzePayload(ctx, target, payload, expectation)
	}
	if err != nil {
		return nil, err
	}

	summarize(ctx, a.deps.Summarizer, result)
	insertCached(ctx, a.deps.Store, target, result)
	return result, nil
}

// analyzeURL delegates to the full URL pipeline and appends the
// expectation-comparison stage, which informs but never scores.
func (a *QR) analyzeURL(ctx context.Context, target model.Target, url, expectation string, skipComparison bool) (*model.AggregateResult, error) {
	if a.deps.Scanner == nil {
		return nil, fmt.Errorf("no URL scanner configured")
	}

	scanned, err := a.deps.Scanner.Evaluate(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("scan payload url: %w", err)
	}

	result := &model.AggregateResult{
		Target:     target,
		Stages:     scanned.Stages,
		TrustScore: scanned.TrustScore,
		Final:      scanned.Final,
		FinalURL:   scanned.FinalURL,
		Screenshot: scanned.Screenshot,
		Message:    scanned.Message,
	}

	if !skipComparison && expectation != "" {
		result.Stages = append(result.Stages, a.compareStage(ctx, result.FinalURL, expectation))
	}
	return result, nil
}

// compareStage fetches the landing page and asks the LLM whether its content
// matches the user's stated purpose for the code.
func (a *QR) compareStage(ctx context.Context, finalURL, expectation string) model.StageResult {
	if a.deps.Provider == nil {
		return errorStage(model.StageExpectation, "expectation check", "no LLM provider configured")
	}
	if a.fetcher == nil {
		return errorStage(model.StageExpectation, "expectation check", "no fetcher configured")
	}

	page, err := a.fetcher.Fetch(ctx, finalURL)
	if err != nil {
		return errorStage(model.StageExpectation, "expectation check", fmt.Sprintf("content fetch failed: %v", err))
	}
	text := content.Truncate(content.VisibleText(page.HTML), a.deps.Config.Content.MaxChars)

	prompt := fmt.Sprintf(`The following is the content of the website a QR
code links to. Judge whether it matches the purpose the user expected the
code to serve.

Website URL: %s

Website content:
%s

The user's expected purpose for the QR code:
%s

Answer in this JSON format:
{
  "matches": true/false,
  "confidence": 0-100,
  "reason": "grounds for the judgement",
  "suspicious_elements": ["suspicious findings, empty array if none"]
}

Answer with JSON only.`, finalURL, text, expectation)

	raw, err := a.deps.Provider.ClassifyJSON(ctx, llm.Request{System: qrCompareSystem, Prompt: prompt})
	if err != nil {
		return errorStage(model.StageExpectation, "expectation check", fmt.Sprintf("comparison failed: %v", err))
	}

	var cmp struct {
		Matches            bool     `json:"matches"`
		Confidence         float64  `json:"confidence"`
		Reason             string   `json:"reason"`
		SuspiciousElements []string `json:"suspicious_elements"`
	}
	if err := json.Unmarshal(raw, &cmp); err != nil {
		return errorStage(model.StageExpectation, "expectation check", fmt.Sprintf("unusable comparison JSON: %v", err))
	}

	status := model.StatusSafe
	if !cmp.Matches {
		status = model.StatusSuspicious
	}
	return model.StageResult{
		ID:      model.StageExpectation,
		Name:    "expectation check",
		Status:  status,
		Penalty: 0,
		Message: cmp.Reason,
		Meta: map[string]interface{}{
			"matches":             cmp.Matches,
			"confidence":          cmp.Confidence,
			"suspicious_elements": cmp.SuspiciousElements,
		},
	}
}

// analyzePayload is the single-pass quishing read for non-URL payloads.
func (a *QR) analyzePayload(ctx context.Context, target model.Target, payload, expectation string) (*model.AggregateResult, error) {
	result := &model.AggregateResult{Target: target}
	score := 50 // neutral midpoint when the model cannot be asked

	if a.deps.Provider == nil {
		result.Stages = append(result.Stages, errorStage(model.StageAIClassify, "quishing analysis", "no LLM provider configured"))
	} else {
		stage, prob, ok := a.quishingStage(ctx, payload, expectation)
		result.Stages = append(result.Stages, stage)
		if ok {
			score = model.BaseTrustScore - prob
		}
	}

	result.TrustScore = model.ClampScore(score)
	result.Final = model.ClassifyScore(result.TrustScore, a.deps.Config.Trust)
	result.Message = fmt.Sprintf("quishing probability %d%%", model.BaseTrustScore-result.TrustScore)
	return result, nil
}

func (a *QR) quishingStage(ctx context.Context, payload, expectation string) (model.StageResult, int, bool) {
	prompt := fmt.Sprintf(`The following data was decoded from a QR code.
Analyze the likelihood that this code is a quishing attack: QR-based
phishing that lures the user to a hostile destination or steals sensitive
data. Weigh mismatches between the expected purpose and the actual data,
suspicious patterns and malicious elements.

Decoded QR data:
%s

The user's expected purpose for the QR code:
%s

Answer in this JSON format:
{
  "phishing_probability": 0-100,
  "risk_level": "high" | "medium" | "low",
  "confidence": 0-100,
  "reason": "detailed grounds for the judgement",
  "suspicious_elements": ["suspicious findings"]
}

Answer with JSON only.`, payload, expectation)

	raw, err := a.deps.Provider.ClassifyJSON(ctx, llm.Request{System: qrQuishingSystem, Prompt: prompt})
	if err != nil {
		return errorStage(model.StageAIClassify, "quishing analysis", fmt.Sprintf("analysis failed: %v", err)), 0, false
	}

	var q struct {
		PhishingProbability int      `json:"phishing_probability"`
		RiskLevel           string   `json:"risk_level"`
		Confidence          float64  `json:"confidence"`
		Reason              string   `json:"reason"`
		SuspiciousElements  []string `json:"suspicious_elements"`
	}
	if err := json.Unmarshal(raw, &q); err != nil {
		return errorStage(model.StageAIClassify, "quishing analysis", fmt.Sprintf("unusable analysis JSON: %v", err)), 0, false
	}

	status := model.StatusSafe
	switch q.RiskLevel {
	case "high":
		status = model.StatusDanger
	case "medium":
		status = model.StatusSuspicious
	}

	return model.StageResult{
		ID:      model.StageAIClassify,
		Name:    "quishing analysis",
		Status:  status,
		Penalty: q.PhishingProbability,
		Message: q.Reason,
		Meta: map[string]interface{}{
			"phishing_probability": q.PhishingProbability,
			"risk_level":           q.RiskLevel,
			"confidence":           q.Confidence,
			"suspicious_elements":  q.SuspiciousElements,
		},
	}, q.PhishingProbability, true
}

// payloadURL decides whether a decoded payload is a scannable web URL,
// defaulting the scheme for bare hosts. Payloads with a non-web scheme
// (wifi:, mailto:, tel:) take the quishing path instead.
func payloadURL(payload string) (string, bool) {
	if strings.HasPrefix(payload, "http://") || strings.HasPrefix(payload, "https://") {
		return payload, true
	}
	if strings.Contains(payload, "://") || strings.Contains(payload, ":") {
		return "", false
	}
	if strings.ContainsAny(payload, " \t\n") || !strings.Contains(payload, ".") {
		return "", false
	}
	return "https://" + payload, true
}
