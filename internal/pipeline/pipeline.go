// Package pipeline fuses the evidence stages into a single trust verdict.
// Stages run in a fixed order; each may deduct (or, for certificates, refund)
// points from the base score. Two stages are authoritative: the redirect hop
// ceiling and the known-threat deny-list short-circuit everything after them.
// Stages that did not run are absent from the result, and that absence is
// part of the contract.
package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/safelens/safelens/internal/classify"
	"github.com/safelens/safelens/internal/content"
	"github.com/safelens/safelens/internal/feature"
	"github.com/safelens/safelens/internal/fetch"
	"github.com/safelens/safelens/internal/llm"
	"github.com/safelens/safelens/internal/model"
	"github.com/safelens/safelens/internal/redirect"
	"github.com/safelens/safelens/internal/threatdb"
	"github.com/safelens/safelens/internal/tlscheck"
	"github.com/safelens/safelens/internal/whois"
)

// featureSource produces one classifier model's input record for a URL.
type featureSource interface {
	Record(ctx context.Context, rawURL, finalURL string) classify.Record
}

// certVerifier grades the TLS posture of a landing URL.
type certVerifier interface {
	Verify(ctx context.Context, rawURL string) model.StageResult
}

// capturer takes full-page screenshots.
type capturer interface {
	Screenshot(ctx context.Context, rawURL string) ([]byte, error)
}

// Pipeline runs the evidence stages over a URL and aggregates their verdicts.
type Pipeline struct {
	resolver   *redirect.Resolver
	threats    *threatdb.DB
	hosting    featureSource
	markup     featureSource
	ensemble   *classify.Ensemble
	analyzer   *content.Analyzer
	certs      certVerifier
	fetcher    *fetch.Fetcher
	shots      capturer // nil unless screenshots are enabled
	summarizer *Summarizer
	cfg        *model.Config
}

// New wires a pipeline from configuration. Optional capabilities degrade
// instead of failing construction: missing classifier models disable the
// ensemble stage, a missing LLM provider disables content analysis and
// summaries, and each prints a warning so the operator knows.
func New(cfg *model.Config) *Pipeline {
	fetcher := fetch.NewFetcher(cfg.HTTP)
	whoisClient := whois.NewClient(cfg.HTTP.Timeout)

	browser := redirect.NewBrowser(cfg.HTTP.UserAgent, cfg.Redirect.NavTimeout)
	tracer := redirect.NewTracer(cfg.HTTP.Timeout, cfg.HTTP.UserAgent)

	threats, err := threatdb.Load(cfg.ThreatDB)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: threat database load failed: %v\n", err)
		threats = &threatdb.DB{}
	}

	var ensemble *classify.Ensemble
	modelA, errA := classify.LoadLogisticModel(cfg.Classifier.ModelAPath)
	modelB, errB := classify.LoadLogisticModel(cfg.Classifier.ModelBPath)
	if errA != nil || errB != nil {
		fmt.Fprintf(os.Stderr, "Warning: classifier models unavailable (a: %v, b: %v)\n", errA, errB)
	} else {
		ensemble = classify.NewEnsemble(modelA, modelB, cfg.Classifier)
	}

	provider, err := llm.NewProvider(cfg.LLM)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: LLM provider unavailable: %v\n", err)
	}
	var summarizer *Summarizer
	if provider != nil {
		summarizer = NewSummarizer(provider)
	}

	var shots capturer
	if cfg.Redirect.Screenshot {
		shots = browser
	}

	return &Pipeline{
		resolver:   redirect.NewResolver(browser, tracer, cfg.Redirect),
		threats:    threats,
		hosting:    hostingSource{feature.NewHostingExtractor(fetcher, whoisClient)},
		markup:     markupSource{feature.NewMarkupExtractor(fetcher, whoisClient, feature.LoadShorteners(cfg.Classifier.ShortenerPath))},
		ensemble:   ensemble,
		analyzer:   content.NewAnalyzer(provider, cfg.Content),
		certs:      tlscheck.NewVerifier(cfg.Cert),
		fetcher:    fetcher,
		shots:      shots,
		summarizer: summarizer,
		cfg:        cfg,
	}
}

// Evaluate runs every applicable stage over rawURL and returns the fused
// result. An error is returned only for unusable input; an unreachable or
// hostile target is a result, not an error.
func (p *Pipeline) Evaluate(ctx context.Context, rawURL string) (*model.AggregateResult, error) {
	res, err := p.resolver.Resolve(ctx, rawURL)
	if err != nil {
		return nil, fmt.Errorf("resolve %q: %w", rawURL, err)
	}

	result := &model.AggregateResult{
		Target:   model.NewURLTarget(rawURL),
		FinalURL: res.Chain.FinalURL,
	}
	score := model.BaseTrustScore

	redirectStage := p.redirectStage(res.Chain)
	result.Stages = append(result.Stages, redirectStage)
	score -= redirectStage.Penalty

	if res.Chain.Bombed(p.cfg.Redirect.HopCeiling) {
		result.TrustScore = 0
		result.Final = model.StatusDanger
		result.Message = redirectStage.Message
		p.summarize(ctx, result)
		return result, nil
	}

	threatStage, matched := p.knownThreatStage(res.Chain)
	result.Stages = append(result.Stages, threatStage)
	score -= threatStage.Penalty

	if matched {
		result.TrustScore = model.ClampScore(score)
		result.Final = model.StatusDanger
		result.Message = threatStage.Message
		p.summarize(ctx, result)
		return result, nil
	}

	mlStage := p.classifierStage(ctx, rawURL, res.Chain.FinalURL)
	result.Stages = append(result.Stages, mlStage)
	score -= mlStage.Penalty

	contentStage := p.contentStage(ctx, res)
	result.Stages = append(result.Stages, contentStage)
	score -= contentStage.Penalty

	certStage := p.certs.Verify(ctx, res.Chain.FinalURL)
	result.Stages = append(result.Stages, certStage)
	score -= certStage.Penalty

	if p.shots != nil {
		result.Stages = append(result.Stages, p.screenshotStage(ctx, res.Chain.FinalURL, result))
	}

	result.TrustScore = model.ClampScore(score)
	result.Final = model.ClassifyScore(result.TrustScore, p.cfg.Trust)
	result.Message = fmt.Sprintf("trust score %d (%s)", result.TrustScore, result.Final)

	p.summarize(ctx, result)
	return result, nil
}

func (p *Pipeline) redirectStage(chain model.RedirectChain) model.StageResult {
	penalty, status := p.resolver.Score(chain.Count)

	message := fmt.Sprintf("%d redirects", chain.Count)
	if chain.Bombed(p.cfg.Redirect.HopCeiling) {
		message = fmt.Sprintf("redirect chain reached the %d-hop ceiling; analysis halted", p.cfg.Redirect.HopCeiling)
	}

	return model.StageResult{
		ID:      model.StageRedirect,
		Name:    "redirect resolution",
		Status:  status,
		Penalty: penalty,
		Message: message,
		Meta: map[string]interface{}{
			"chain":     chain.URLs,
			"count":     chain.Count,
			"final_url": chain.FinalURL,
		},
	}
}

// knownThreatStage checks the whole redirect chain, not just the endpoints:
// a deny-listed hop in the middle is as damning as a deny-listed destination.
func (p *Pipeline) knownThreatStage(chain model.RedirectChain) (model.StageResult, bool) {
	match, ok := p.threats.Check(chain.URLs)
	if ok {
		return model.StageResult{
			ID:      model.StageKnownThreat,
			Name:    "known threat lookup",
			Status:  model.StatusDanger,
			Penalty: 100,
			Message: fmt.Sprintf("matched known threat entry %q", match.Entry),
			Meta: map[string]interface{}{
				"matched_entry": match.Entry,
				"matched_url":   match.URL,
				"checked":       len(chain.URLs),
			},
		}, true
	}

	return model.StageResult{
		ID:      model.StageKnownThreat,
		Name:    "known threat lookup",
		Status:  model.StatusSafe,
		Penalty: 0,
		Message: fmt.Sprintf("no match across %d chain URLs", len(chain.URLs)),
		Meta:    map[string]interface{}{"checked": len(chain.URLs), "entries": p.threats.Len()},
	}, false
}

func (p *Pipeline) classifierStage(ctx context.Context, rawURL, finalURL string) model.StageResult {
	if p.ensemble == nil {
		return stageError(model.StageClassifier, "ML ensemble", "classifier models not loaded")
	}

	recA := p.hosting.Record(ctx, rawURL, finalURL)
	recB := p.markup.Record(ctx, rawURL, finalURL)

	prob, err := p.ensemble.Probability(recA, recB)
	if err != nil {
		return stageError(model.StageClassifier, "ML ensemble", fmt.Sprintf("ensemble prediction failed: %v", err))
	}

	penalty, status := classify.Tier(prob, p.cfg.Classifier)
	return model.StageResult{
		ID:      model.StageClassifier,
		Name:    "ML ensemble",
		Status:  status,
		Penalty: penalty,
		Message: fmt.Sprintf("phishing probability %.4f", prob),
		Meta:    map[string]interface{}{"probability": prob},
	}
}

// contentStage prefers the markup the browser already rendered during
// resolution; a plain fetch of the landing URL is the fallback.
func (p *Pipeline) contentStage(ctx context.Context, res *redirect.Resolution) model.StageResult {
	html, title := res.HTML, res.Title
	if html == "" && p.fetcher != nil {
		if page, err := p.fetcher.Fetch(ctx, res.Chain.FinalURL); err == nil {
			html = page.HTML
		}
	}
	return p.analyzer.Analyze(ctx, res.Chain.FinalURL, title, html)
}

func (p *Pipeline) screenshotStage(ctx context.Context, finalURL string, result *model.AggregateResult) model.StageResult {
	img, err := p.shots.Screenshot(ctx, finalURL)
	if err != nil {
		return stageError(model.StageScreenshot, "screenshot capture", fmt.Sprintf("screenshot failed: %v", err))
	}

	if err := os.MkdirAll(p.cfg.Redirect.ScreenshotDir, 0o755); err != nil {
		return stageError(model.StageScreenshot, "screenshot capture", fmt.Sprintf("screenshot dir: %v", err))
	}

	path := filepath.Join(p.cfg.Redirect.ScreenshotDir, uuid.NewString()+".png")
	if err := os.WriteFile(path, img, 0o644); err != nil {
		return stageError(model.StageScreenshot, "screenshot capture", fmt.Sprintf("write screenshot: %v", err))
	}

	result.Screenshot = path
	return model.StageResult{
		ID:      model.StageScreenshot,
		Name:    "screenshot capture",
		Status:  model.StatusSafe,
		Penalty: 0,
		Message: "screenshot captured",
		Meta:    map[string]interface{}{"path": path},
	}
}

// summarize attaches narrative summaries after scoring. Failures are warned
// about and swallowed: a summary can never change or block a verdict.
func (p *Pipeline) summarize(ctx context.Context, result *model.AggregateResult) {
	if p.summarizer == nil {
		return
	}
	if err := p.summarizer.Summarize(ctx, result); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: summary generation failed: %v\n", err)
	}
}

func stageError(id model.StageID, name, message string) model.StageResult {
	return model.StageResult{
		ID:      id,
		Name:    name,
		Status:  model.StatusError,
		Penalty: 0,
		Message: message,
	}
}

// hostingSource and markupSource adapt the feature extractors to the record
// surface the classifier stage consumes.
type hostingSource struct{ x *feature.HostingExtractor }

func (s hostingSource) Record(ctx context.Context, rawURL, finalURL string) classify.Record {
	return s.x.Extract(ctx, rawURL, finalURL).Record()
}

type markupSource struct{ x *feature.MarkupExtractor }

func (s markupSource) Record(ctx context.Context, rawURL, finalURL string) classify.Record {
	return s.x.Extract(ctx, rawURL, finalURL).Record()
}
