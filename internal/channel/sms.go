package channel

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/safelens/safelens/internal/classify"
	"github.com/safelens/safelens/internal/llm"
	"github.com/safelens/safelens/internal/model"
)

const smsVerifySystem = "You are an SMS security expert. You judge phishing messages precisely and verify whether a prior model's verdict holds up."

// SMS scores short message bodies: a local text classifier sets the initial
// penalty, an LLM verification pass can hand back part of it, and embedded
// URLs run through the full URL pipeline.
type SMS struct {
	classifier classify.TextClassifier
	deps       Deps
}

// NewSMS creates the SMS adapter. A nil classifier degrades the model stage
// to an ERROR result.
func NewSMS(classifier classify.TextClassifier, deps Deps) *SMS {
	return &SMS{classifier: classifier, deps: deps}
}

// Analyze scores one message body.
func (a *SMS) Analyze(ctx context.Context, text string) (*model.AggregateResult, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("empty message")
	}

	target := model.NewSMSTarget(text)
	if res, ok := lookupCached(ctx, a.deps.Store, target); ok {
		return res, nil
	}

	result := &model.AggregateResult{Target: target}
	score := model.BaseTrustScore

	language := "en"
	if classify.IsKorean(text) {
		language = "ko"
	}

	prob, modelPenalty, stage := a.modelStage(ctx, text, language)
	result.Stages = append(result.Stages, stage)
	score -= modelPenalty

	if modelPenalty > 0 {
		restitution, stage := a.verifyStage(ctx, text, language, prob, modelPenalty)
		result.Stages = append(result.Stages, stage)
		score += restitution
	}

	urls := ExtractURLs(text)
	urlPenalty, verdicts, screenshot := scanEmbedded(ctx, a.deps, urls)
	result.Stages = append(result.Stages, linksStage(urls, urlPenalty, verdicts))
	score -= urlPenalty
	result.Screenshot = screenshot

	result.TrustScore = model.ClampScore(score)
	result.Final = model.ClassifyScore(result.TrustScore, a.deps.Config.Trust)
	result.Message = verdictMessage(result)

	summarize(ctx, a.deps.Summarizer, result)
	insertCached(ctx, a.deps.Store, target, result)
	return result, nil
}

// modelStage runs the local classifier. A probability above 0.5 converts
// directly into the initial penalty.
func (a *SMS) modelStage(ctx context.Context, text, language string) (float64, int, model.StageResult) {
	if a.classifier == nil {
		return 0, 0, errorStage(model.StageTextModel, "text model", "no text classifier configured")
	}

	prob, err := a.classifier.PhishingProbability(ctx, text)
	if err != nil {
		return 0, 0, errorStage(model.StageTextModel, "text model", fmt.Sprintf("classification failed: %v", err))
	}

	penalty := 0
	status := model.StatusSafe
	if prob > 0.5 {
		penalty = int(prob * 100)
		status = model.StatusDanger
	}

	return prob, penalty, model.StageResult{
		ID:      model.StageTextModel,
		Name:    "text model",
		Status:  status,
		Penalty: penalty,
		Message: fmt.Sprintf("phishing probability %.4f (%s model)", prob, language),
		Meta: map[string]interface{}{
			"language":    language,
			"probability": prob,
		},
	}
}

// verifyStage asks the LLM to double-check the model verdict. The adjusted
// penalty is the original scaled by the verification confidence; the
// difference is handed back as restitution (a negative stage penalty).
func (a *SMS) verifyStage(ctx context.Context, text, language string, prob float64, penalty int) (int, model.StageResult) {
	if a.deps.Provider == nil {
		return 0, errorStage(model.StageVerify, "AI verification", "no LLM provider configured")
	}

	prompt := fmt.Sprintf(`Assess whether this SMS message is phishing.

Message:
%q

First-pass model verdict:
- language: %s
- phishing probability: %.4f

Verify whether the model verdict is correct. Rate your confidence that the
message really is phishing between 0.0 and 1.0: certain phishing is 1.0, a
clear false positive is 0.0.

Answer in this JSON format:
{"is_phishing": true/false, "confidence": 0.0-1.0, "reason": "grounds for the judgement"}`, text, language, prob)

	raw, err := a.deps.Provider.ClassifyJSON(ctx, llm.Request{
		System: smsVerifySystem,
		Prompt: prompt,
	})
	if err != nil {
		return 0, errorStage(model.StageVerify, "AI verification", fmt.Sprintf("verification failed: %v", err))
	}

	var v struct {
		IsPhishing bool    `json:"is_phishing"`
		Confidence float64 `json:"confidence"`
		Reason     string  `json:"reason"`
	}
	if err := json.Unmarshal(raw, &v); err != nil {
		return 0, errorStage(model.StageVerify, "AI verification", fmt.Sprintf("unusable verification JSON: %v", err))
	}

	adjusted := int(float64(penalty) * v.Confidence)
	restitution := penalty - adjusted

	status := model.StatusSafe
	switch {
	case v.IsPhishing && v.Confidence > 0.7:
		status = model.StatusDanger
	case v.IsPhishing && v.Confidence > 0.4:
		status = model.StatusSuspicious
	}

	return restitution, model.StageResult{
		ID:      model.StageVerify,
		Name:    "AI verification",
		Status:  status,
		Penalty: -restitution,
		Message: v.Reason,
		Meta: map[string]interface{}{
			"is_phishing":      v.IsPhishing,
			"confidence":       v.Confidence,
			"original_penalty": penalty,
			"adjusted_penalty": adjusted,
		},
	}
}

func linksStage(urls []string, penalty int, verdicts []map[string]interface{}) model.StageResult {
	status := model.StatusSafe
	switch {
	case penalty >= 50:
		status = model.StatusDanger
	case penalty > 0:
		status = model.StatusSuspicious
	}

	message := "no embedded URLs"
	if len(urls) > 0 {
		message = fmt.Sprintf("%d embedded URLs scanned", len(urls))
	}

	return model.StageResult{
		ID:      model.StageLinks,
		Name:    "embedded URLs",
		Status:  status,
		Penalty: penalty,
		Message: message,
		Meta: map[string]interface{}{
			"urls":    urls,
			"results": verdicts,
		},
	}
}
