// Package classify scores URLs and message text for phishing likelihood.
// Tabular URL features go through a pair of logistic models fused into an
// ensemble; free text goes through a local transformer pipeline.
package classify

import (
	"fmt"
	"math"
	"os"

	"gopkg.in/yaml.v3"
)

// Record is one observation for a tabular model. Numeric features use -1 as
// the "unknown" sentinel for models that opt into substitution; categorical
// features use level names.
type Record struct {
	Numeric     map[string]float64
	Categorical map[string]string
}

// Model predicts a phishing probability in [0,1] for a record.
type Model interface {
	Predict(rec Record) (float64, error)
}

type numericFeature struct {
	Name   string  `yaml:"name"`
	Weight float64 `yaml:"weight"`
	Mean   float64 `yaml:"mean"`
}

type categoricalFeature struct {
	Name    string             `yaml:"name"`
	Levels  map[string]float64 `yaml:"levels"`
	Default float64            `yaml:"default"`
}

type logisticArtifact struct {
	Bias float64 `yaml:"bias"`

	// SubstituteUnknown makes Predict replace the -1 sentinel in numeric
	// features with the training mean. Set on the hosting artifact, whose
	// network-derived features use -1 for "could not observe"; the markup
	// artifact leaves it off because its features encode -1 as a real
	// (benign) level.
	SubstituteUnknown bool `yaml:"substitute_unknown"`

	Numeric     []numericFeature     `yaml:"numeric"`
	Categorical []categoricalFeature `yaml:"categorical"`
}

// LogisticModel is a logistic regression over mixed numeric and categorical
// features, loaded from a YAML weight artifact.
type LogisticModel struct {
	bias              float64
	substituteUnknown bool
	numeric           []numericFeature
	categorical       []categoricalFeature
}

// LoadLogisticModel reads a YAML weight artifact from disk.
func LoadLogisticModel(path string) (*LogisticModel, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read model: %w", err)
	}

	var art logisticArtifact
	if err := yaml.Unmarshal(data, &art); err != nil {
		return nil, fmt.Errorf("parse model %s: %w", path, err)
	}
	if len(art.Numeric) == 0 && len(art.Categorical) == 0 {
		return nil, fmt.Errorf("model %s has no features", path)
	}

	return &LogisticModel{
		bias:              art.Bias,
		substituteUnknown: art.SubstituteUnknown,
		numeric:           art.Numeric,
		categorical:       art.Categorical,
	}, nil
}

// Predict computes the phishing probability for rec. When the artifact
// carries substitute_unknown, a numeric feature at the -1 sentinel is
// replaced with the training mean; otherwise -1 is an ordinary value. An
// unseen categorical level falls back to the default weight.
func (m *LogisticModel) Predict(rec Record) (float64, error) {
	z := m.bias

	for _, f := range m.numeric {
		v, ok := rec.Numeric[f.Name]
		if !ok {
			return 0, fmt.Errorf("missing numeric feature %q", f.Name)
		}
		if m.substituteUnknown && v == -1 {
			v = f.Mean
		}
		z += f.Weight * v
	}

	for _, f := range m.categorical {
		level, ok := rec.Categorical[f.Name]
		if !ok {
			return 0, fmt.Errorf("missing categorical feature %q", f.Name)
		}
		w, found := f.Levels[level]
		if !found {
			w = f.Default
		}
		z += w
	}

	return 1 / (1 + math.Exp(-z)), nil
}
