package channel

import (
	"context"
	"crypto/md5"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/safelens/safelens/internal/llm"
	"github.com/safelens/safelens/internal/model"
)

const voiceSystem = "You are a voice phishing detection expert."

// Voice scores call transcripts for vishing. Transcription happens upstream;
// the adapter only ever sees text.
type Voice struct {
	deps Deps
}

// NewVoice creates the voice adapter.
func NewVoice(deps Deps) *Voice {
	return &Voice{deps: deps}
}

// Analyze scores one transcript.
func (a *Voice) Analyze(ctx context.Context, transcript string) (*model.AggregateResult, error) {
	if strings.TrimSpace(transcript) == "" {
		return nil, fmt.Errorf("empty transcript")
	}

	hash := fmt.Sprintf("%x", md5.Sum([]byte(transcript)))
	target := model.NewVoiceTarget(transcript, hash)
	if res, ok := lookupCached(ctx, a.deps.Store, target); ok {
		return res, nil
	}

	result := &model.AggregateResult{Target: target}

	score, stage := a.classifyStage(ctx, transcript)
	result.Stages = append(result.Stages, stage)

	result.TrustScore = model.ClampScore(score)
	result.Final = model.ClassifyScore(result.TrustScore, a.deps.Config.Trust)
	result.Message = stage.Message
	if result.Message == "" {
		result.Message = verdictMessage(result)
	}

	summarize(ctx, a.deps.Summarizer, result)
	insertCached(ctx, a.deps.Store, target, result)
	return result, nil
}

func (a *Voice) classifyStage(ctx context.Context, transcript string) (int, model.StageResult) {
	const neutral = 50
	if a.deps.Provider == nil {
		return neutral, errorStage(model.StageAIClassify, "AI classification", "no LLM provider configured")
	}

	prompt := fmt.Sprintf(`The following is the transcript of a phone call or
voice message. Analyze whether it is voice phishing (vishing).

Transcript:
%q

Answer only in this JSON format:
{
  "status": "SAFE" | "WARNING" | "DANGER",
  "trust_score": 0-100 (higher is safer),
  "threat_types": any of ["prosecutor impersonation", "loan fraud", "staged family emergency", "agency impersonation", "other"],
  "reason": "one-sentence judgement"
}`, transcript)

	raw, err := a.deps.Provider.ClassifyJSON(ctx, llm.Request{System: voiceSystem, Prompt: prompt})
	if err != nil {
		return neutral, errorStage(model.StageAIClassify, "AI classification", fmt.Sprintf("classification failed: %v", err))
	}

	var analysis struct {
		Status      string   `json:"status"`
		TrustScore  int      `json:"trust_score"`
		ThreatTypes []string `json:"threat_types"`
		Reason      string   `json:"reason"`
	}
	if err := json.Unmarshal(raw, &analysis); err != nil {
		return neutral, errorStage(model.StageAIClassify, "AI classification", fmt.Sprintf("unusable classification JSON: %v", err))
	}

	score := model.ClampScore(analysis.TrustScore)
	return score, model.StageResult{
		ID:      model.StageAIClassify,
		Name:    "AI classification",
		Status:  mapAIStatus(analysis.Status),
		Penalty: model.BaseTrustScore - score,
		Message: analysis.Reason,
		Meta: map[string]interface{}{
			"status":       analysis.Status,
			"trust_score":  analysis.TrustScore,
			"threat_types": analysis.ThreatTypes,
		},
	}
}
