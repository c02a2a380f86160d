package model

// StageID identifies an evidence-gathering stage.
type StageID string

const (
	StageRedirect    StageID = "redirect"
	StageKnownThreat StageID = "known_threat"
	StageClassifier  StageID = "ml_ensemble"
	StageContent     StageID = "content_risk"
	StageCert        StageID = "certificate"
	StageScreenshot  StageID = "screenshot"

	// Channel-adapter stages.
	StageTextModel   StageID = "text_classifier"
	StageVerify      StageID = "ai_verification"
	StageLinks       StageID = "embedded_urls"
	StageAIClassify  StageID = "ai_classification"
	StageExpectation StageID = "content_expectation"
)

// StageStatus is the per-stage (and final) verdict scale.
type StageStatus string

const (
	StatusSafe       StageStatus = "SAFE"
	StatusSuspicious StageStatus = "SUSPICIOUS"
	StatusDanger     StageStatus = "DANGER"
	StatusWarning    StageStatus = "WARNING"
	StatusError      StageStatus = "ERROR"
)

// StageResult is the fixed output shape of one evidence stage. It is produced
// exactly once per stage per pipeline run and never mutated afterwards.
// Penalty may be negative for bonuses (certificate stage).
type StageResult struct {
	ID      StageID                `json:"id"`
	Name    string                 `json:"name"`
	Status  StageStatus            `json:"status"`
	Penalty int                    `json:"penalty"`
	Message string                 `json:"message,omitempty"`
	Meta    map[string]interface{} `json:"meta,omitempty"`
}
