package classify

import (
	"fmt"

	"github.com/safelens/safelens/internal/model"
)

// Penalties attached to the ensemble risk tiers.
const (
	highTierPenalty   = 50
	mediumTierPenalty = 30
)

// Ensemble fuses two tabular models into a single weighted probability.
// Model A sees hosting features, model B sees page markup features.
type Ensemble struct {
	modelA Model
	modelB Model
	cfg    model.ClassifierConfig
}

// NewEnsemble creates an ensemble over two loaded models.
func NewEnsemble(a, b Model, cfg model.ClassifierConfig) *Ensemble {
	return &Ensemble{modelA: a, modelB: b, cfg: cfg}
}

// Probability fuses both model outputs into one probability, weighting each
// by its validation accuracy.
func (e *Ensemble) Probability(recA, recB Record) (float64, error) {
	pa, err := e.modelA.Predict(recA)
	if err != nil {
		return 0, fmt.Errorf("model A: %w", err)
	}
	pb, err := e.modelB.Predict(recB)
	if err != nil {
		return 0, fmt.Errorf("model B: %w", err)
	}

	return (pa*e.cfg.WeightA + pb*e.cfg.WeightB) / (e.cfg.WeightA + e.cfg.WeightB), nil
}

// Tier maps a fused probability onto a penalty and stage status.
func Tier(p float64, cfg model.ClassifierConfig) (int, model.StageStatus) {
	switch {
	case p >= cfg.HighThreshold:
		return highTierPenalty, model.StatusDanger
	case p >= cfg.MediumThreshold:
		return mediumTierPenalty, model.StatusSuspicious
	default:
		return 0, model.StatusSafe
	}
}
