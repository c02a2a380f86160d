package classify

import (
	"context"
	"fmt"
	"regexp"

	"github.com/knights-analytics/hugot"
	"github.com/knights-analytics/hugot/options"
	"github.com/knights-analytics/hugot/pipelines"

	"github.com/safelens/safelens/internal/model"
)

// TextClassifier scores free text (SMS bodies, decoded QR payloads) for
// phishing likelihood.
type TextClassifier interface {
	PhishingProbability(ctx context.Context, text string) (float64, error)
	Close() error
}

var hangulRe = regexp.MustCompile(`[\x{AC00}-\x{D7A3}]`)

// IsKorean reports whether text contains Hangul syllables.
func IsKorean(text string) bool {
	return hangulRe.MatchString(text)
}

// HugotClassifier runs local transformer inference through ONNX. Two
// pipelines are held, one per supported language; routing is by script.
type HugotClassifier struct {
	session *hugot.Session
	ko      *pipelines.TextClassificationPipeline
	en      *pipelines.TextClassificationPipeline
}

// NewHugotClassifier loads the Korean and English text models. Prefers the
// ONNX Runtime backend when a library path is configured, falling back to
// the pure Go backend.
func NewHugotClassifier(cfg model.SMSConfig) (*HugotClassifier, error) {
	session, err := newSession(cfg.OnnxLibraryPath)
	if err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}

	ko, err := hugot.NewPipeline(session, hugot.TextClassificationConfig{
		ModelPath: cfg.ModelPathKo,
		Name:      "sms-ko",
	})
	if err != nil {
		_ = session.Destroy()
		return nil, fmt.Errorf("load ko model: %w", err)
	}

	en, err := hugot.NewPipeline(session, hugot.TextClassificationConfig{
		ModelPath: cfg.ModelPathEn,
		Name:      "sms-en",
	})
	if err != nil {
		_ = session.Destroy()
		return nil, fmt.Errorf("load en model: %w", err)
	}

	return &HugotClassifier{session: session, ko: ko, en: en}, nil
}

func newSession(onnxLibraryPath string) (*hugot.Session, error) {
	if onnxLibraryPath != "" {
		session, err := hugot.NewORTSession(options.WithOnnxLibraryPath(onnxLibraryPath))
		if err == nil {
			return session, nil
		}
	}
	return hugot.NewGoSession()
}

// PhishingProbability classifies text and returns the probability that it
// is phishing. Hangul text routes to the Korean model.
func (h *HugotClassifier) PhishingProbability(ctx context.Context, text string) (float64, error) {
	pipe := h.en
	if hangulRe.MatchString(text) {
		pipe = h.ko
	}

	result, err := pipe.RunPipeline([]string{text})
	if err != nil {
		return 0, fmt.Errorf("run pipeline: %w", err)
	}
	if len(result.ClassificationOutputs) == 0 || len(result.ClassificationOutputs[0]) == 0 {
		return 0, fmt.Errorf("empty classification output")
	}

	out := result.ClassificationOutputs[0][0]
	prob := float64(out.Score)
	if !isPhishingLabel(out.Label) {
		prob = 1 - prob
	}
	return prob, nil
}

// Close releases the ONNX session.
func (h *HugotClassifier) Close() error {
	if h.session != nil {
		return h.session.Destroy()
	}
	return nil
}

// isPhishingLabel maps model label conventions onto the positive class.
func isPhishingLabel(label string) bool {
	switch label {
	case "phishing", "smishing", "spam", "LABEL_1":
		return true
	default:
		return false
	}
}
