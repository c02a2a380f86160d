// Package channel holds the front ends that normalize SMS, email, QR and
// voice input into the shared scoring algebra. Each adapter consults the
// result cache before computing, runs its channel-specific classification,
// delegates embedded URLs to the URL pipeline where it applies, and inserts
// the finished result back into the cache.
package channel

import (
	"context"
	"fmt"
	"os"
	"regexp"

	"github.com/safelens/safelens/internal/cache"
	"github.com/safelens/safelens/internal/llm"
	"github.com/safelens/safelens/internal/model"
	"github.com/safelens/safelens/internal/pipeline"
	"github.com/safelens/safelens/internal/worker"
)

// Deps bundles the collaborators every adapter shares. Any field may be nil;
// the stage that needs it then degrades instead of crashing.
type Deps struct {
	Provider   llm.Provider
	Scanner    URLScanner
	Store      cache.Store
	Summarizer *pipeline.Summarizer
	Config     *model.Config
}

func (d Deps) workers() int {
	if d.Config.Concurrency.URLWorkers > 0 {
		return d.Config.Concurrency.URLWorkers
	}
	return 1
}

// URLScanner runs the full URL evidence pipeline. The pipeline type
// satisfies it; tests substitute fakes.
type URLScanner = worker.Scanner

var urlPattern = regexp.MustCompile(`https?://[^\s"'<>]+`)

// ExtractURLs finds http(s) URLs embedded in free text, in order of
// appearance, without deduplication: a repeated link is repeated evidence.
func ExtractURLs(text string) []string {
	return urlPattern.FindAllString(text, -1)
}

// lookupCached returns a prior result for the target when the store has one
// and the secondary identity check passes. Store errors degrade to a miss.
func lookupCached(ctx context.Context, store cache.Store, target model.Target) (*model.AggregateResult, bool) {
	if store == nil {
		return nil, false
	}
	entry, ok, err := cache.Lookup(ctx, store, target)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: cache lookup failed: %v\n", err)
		return nil, false
	}
	if !ok {
		return nil, false
	}
	result := entry.Result
	return &result, true
}

// insertCached appends the computed result. Failures are warned about, never
// propagated: a broken store must not hide a finished verdict.
func insertCached(ctx context.Context, store cache.Store, target model.Target, result *model.AggregateResult) {
	if store == nil {
		return
	}
	if err := store.Insert(ctx, cache.NewEntry(target, *result)); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: cache insert failed: %v\n", err)
	}
}

// summarize attaches the post-scoring narratives, tolerating failure.
func summarize(ctx context.Context, s *pipeline.Summarizer, result *model.AggregateResult) {
	if s == nil {
		return
	}
	if err := s.Summarize(ctx, result); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: summary generation failed: %v\n", err)
	}
}

func errorStage(id model.StageID, name, message string) model.StageResult {
	return model.StageResult{
		ID:      id,
		Name:    name,
		Status:  model.StatusError,
		Penalty: 0,
		Message: message,
	}
}

func verdictMessage(result *model.AggregateResult) string {
	return fmt.Sprintf("trust score %d (%s)", result.TrustScore, result.Final)
}

// scanEmbedded evaluates embedded URLs concurrently through the pipeline and
// converts their verdicts into one penalty: DangerPenalty per DANGER link,
// SuspectPenalty per SUSPICIOUS one. Scan failures contribute nothing. The
// returned metadata carries one record per URL for the embedded-links stage.
func scanEmbedded(ctx context.Context, d Deps, urls []string) (int, []map[string]interface{}, string) {
	if len(urls) == 0 || d.Scanner == nil {
		return 0, nil, ""
	}

	batch := worker.NewBatchProcessor(d.Scanner, d.workers())
	results := batch.ProcessURLs(ctx, urls)

	penalty := 0
	var verdicts []map[string]interface{}
	var screenshot string
	for _, res := range results {
		if res.Error != nil || res.Result == nil {
			verdicts = append(verdicts, map[string]interface{}{
				"url":   res.URL,
				"error": fmt.Sprintf("%v", res.Error),
			})
			continue
		}
		contribution := 0
		switch res.Result.Final {
		case model.StatusDanger:
			contribution = d.Config.SMS.DangerPenalty
		case model.StatusSuspicious:
			contribution = d.Config.SMS.SuspectPenalty
		}
		penalty += contribution
		if res.Result.Screenshot != "" {
			screenshot = res.Result.Screenshot
		}
		verdicts = append(verdicts, map[string]interface{}{
			"url":         res.URL,
			"status":      res.Result.Final,
			"trust_score": res.Result.TrustScore,
			"penalty":     contribution,
		})
	}
	return penalty, verdicts, screenshot
}
