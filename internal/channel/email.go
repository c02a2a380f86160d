package channel

import (
	"context"
	"crypto/md5"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/safelens/safelens/internal/content"
	"github.com/safelens/safelens/internal/llm"
	"github.com/safelens/safelens/internal/model"
)

const emailSystem = "You are an email security expert."

// maxEmailChars bounds how much of the raw message reaches the model.
const maxEmailChars = 4000

// Email scores raw email bodies. The LLM reads headers and body in one pass,
// names the threat types it sees and extracts URLs worth a full pipeline
// scan; a dangerous embedded URL drags the whole email down to its score.
type Email struct {
	deps Deps
}

// NewEmail creates the email adapter.
func NewEmail(deps Deps) *Email {
	return &Email{deps: deps}
}

// emailAnalysis is the JSON shape the model is asked to produce.
type emailAnalysis struct {
	Status         string   `json:"status"`
	TrustScore     int      `json:"trust_score"`
	ThreatTypes    []string `json:"threat_types"`
	SuspiciousURLs []string `json:"suspicious_urls"`
	Reason         string   `json:"reason"`
}

// Analyze scores one raw email.
func (a *Email) Analyze(ctx context.Context, body string) (*model.AggregateResult, error) {
	if strings.TrimSpace(body) == "" {
		return nil, fmt.Errorf("empty email body")
	}

	hash := fmt.Sprintf("%x", md5.Sum([]byte(body)))
	target := model.NewEmailTarget(body, hash)
	if res, ok := lookupCached(ctx, a.deps.Store, target); ok {
		return res, nil
	}

	result := &model.AggregateResult{Target: target}

	analysis, stage := a.classifyStage(ctx, body)
	result.Stages = append(result.Stages, stage)
	score := model.ClampScore(analysis.TrustScore)

	if len(analysis.SuspiciousURLs) > 0 {
		demoted, stage := a.delegateStage(ctx, analysis.SuspiciousURLs, score)
		result.Stages = append(result.Stages, stage)
		score = demoted
	}

	result.TrustScore = model.ClampScore(score)
	result.Final = model.ClassifyScore(result.TrustScore, a.deps.Config.Trust)
	result.Message = analysis.Reason
	if result.Message == "" {
		result.Message = verdictMessage(result)
	}

	summarize(ctx, a.deps.Summarizer, result)
	insertCached(ctx, a.deps.Store, target, result)
	return result, nil
}

// classifyStage runs the one-pass AI read of the raw message. Failure keeps
// the neutral midpoint score of 50 rather than acquitting or condemning.
func (a *Email) classifyStage(ctx context.Context, body string) (emailAnalysis, model.StageResult) {
	neutral := emailAnalysis{Status: "UNKNOWN", TrustScore: 50}
	if a.deps.Provider == nil {
		return neutral, errorStage(model.StageAIClassify, "AI classification", "no LLM provider configured")
	}

	prompt := fmt.Sprintf(`The following is a raw email message. Analyze its
headers and body and judge whether it is phishing, spam or otherwise
malicious. Extract any URL from the headers or body that deserves a full
security scan.

Raw email:
%q

Answer only in this JSON format:
{
  "status": "SAFE" | "WARNING" | "DANGER",
  "trust_score": 0-100 (higher is safer),
  "threat_types": any of ["account takeover", "executive impersonation", "credential phishing", "spam", "other"],
  "suspicious_urls": ["http://..."] (empty array if none),
  "reason": "one-sentence judgement"
}`, content.Truncate(body, maxEmailChars))

	raw, err := a.deps.Provider.ClassifyJSON(ctx, llm.Request{System: emailSystem, Prompt: prompt})
	if err != nil {
		return neutral, errorStage(model.StageAIClassify, "AI classification", fmt.Sprintf("classification failed: %v", err))
	}

	var analysis emailAnalysis
	if err := json.Unmarshal(raw, &analysis); err != nil {
		return neutral, errorStage(model.StageAIClassify, "AI classification", fmt.Sprintf("unusable classification JSON: %v", err))
	}

	return analysis, model.StageResult{
		ID:      model.StageAIClassify,
		Name:    "AI classification",
		Status:  mapAIStatus(analysis.Status),
		Penalty: model.BaseTrustScore - model.ClampScore(analysis.TrustScore),
		Message: analysis.Reason,
		Meta: map[string]interface{}{
			"status":          analysis.Status,
			"trust_score":     analysis.TrustScore,
			"threat_types":    analysis.ThreatTypes,
			"suspicious_urls": analysis.SuspiciousURLs,
		},
	}
}

// delegateStage scans the extracted URLs through the full pipeline. A
// DANGER or SUSPICIOUS link pulls the email's score down to the link's own
// score; a clean link never raises it.
func (a *Email) delegateStage(ctx context.Context, urls []string, score int) (int, model.StageResult) {
	if a.deps.Scanner == nil {
		return score, errorStage(model.StageLinks, "embedded URLs", "no URL scanner configured")
	}

	_, verdicts, _ := scanEmbedded(ctx, a.deps, urls)

	demoted := score
	for _, v := range verdicts {
		status, _ := v["status"].(model.StageStatus)
		urlScore, ok := v["trust_score"].(int)
		if !ok {
			continue
		}
		if status == model.StatusDanger || status == model.StatusSuspicious {
			if urlScore < demoted {
				demoted = urlScore
			}
		}
	}

	status := model.StatusSafe
	if demoted < score {
		status = model.StatusSuspicious
	}
	if demoted < a.deps.Config.Trust.SuspiciousThreshold {
		status = model.StatusDanger
	}

	return demoted, model.StageResult{
		ID:      model.StageLinks,
		Name:    "embedded URLs",
		Status:  status,
		Penalty: score - demoted,
		Message: fmt.Sprintf("%d suspicious URLs scanned", len(urls)),
		Meta:    map[string]interface{}{"urls": urls, "results": verdicts},
	}
}

// mapAIStatus converts the model's status vocabulary onto the stage scale.
func mapAIStatus(status string) model.StageStatus {
	switch status {
	case "SAFE":
		return model.StatusSafe
	case "WARNING":
		return model.StatusWarning
	case "DANGER":
		return model.StatusDanger
	case "SUSPICIOUS":
		return model.StatusSuspicious
	default:
		return model.StatusError
	}
}
