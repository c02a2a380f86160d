package model

import "time"

// BaseTrustScore is the score every pipeline run starts from before stage
// penalties are applied.
const BaseTrustScore = 100

// AggregateResult is the fused output of one pipeline run. The stage slice
// preserves execution order; stages skipped by an authoritative verdict are
// absent, and their absence is meaningful to callers.
type AggregateResult struct {
	Target     Target        `json:"target"`
	Stages     []StageResult `json:"stages"`
	TrustScore int           `json:"trust_score"`
	Final      StageStatus   `json:"final_status"`
	FinalURL   string        `json:"final_url,omitempty"`
	Screenshot string        `json:"screenshot,omitempty"`
	Message    string        `json:"message,omitempty"`

	// Optional derived narratives, generated after scoring and never
	// feeding back into it.
	EasySummary   string `json:"easy_summary,omitempty"`
	ExpertSummary string `json:"expert_summary,omitempty"`
}

// Stage returns the result for the given stage id, if the stage ran.
func (r *AggregateResult) Stage(id StageID) (StageResult, bool) {
	for _, s := range r.Stages {
		if s.ID == id {
			return s, true
		}
	}
	return StageResult{}, false
}

// ClampScore bounds a running score to [0,100].
func ClampScore(score int) int {
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}

// ClassifyScore maps a clamped trust score to the final verdict scale.
func ClassifyScore(score int, cfg TrustConfig) StageStatus {
	switch {
	case score >= cfg.SafeThreshold:
		return StatusSafe
	case score >= cfg.SuspiciousThreshold:
		return StatusSuspicious
	default:
		return StatusDanger
	}
}

// CacheEntry is the persisted snapshot of one AggregateResult. Entries are
// append-only: a recomputation inserts a fresh entry under the same
// fingerprint instead of updating in place.
type CacheEntry struct {
	ID          string          `json:"id"`
	Fingerprint string          `json:"fingerprint"`
	Channel     Channel         `json:"channel"`
	Result      AggregateResult `json:"result"`
	CreatedAt   time.Time       `json:"created_at"`
}
