package worker

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/safelens/safelens/internal/model"
)

// Scanner evaluates a single URL and produces an aggregate trust result.
type Scanner interface {
	Evaluate(ctx context.Context, url string) (*model.AggregateResult, error)
}

// ScanJob evaluates one URL through a Scanner.
type ScanJob struct {
	URL     string
	Scanner Scanner
}

// Execute runs the scan.
func (j *ScanJob) Execute(ctx context.Context) Result {
	result, err := j.Scanner.Evaluate(ctx, j.URL)
	if err != nil {
		return &ScanResult{URL: j.URL, Error: err}
	}
	return &ScanResult{URL: j.URL, Result: result}
}

// ScanResult is the outcome of a single URL evaluation.
type ScanResult struct {
	URL    string
	Result *model.AggregateResult
	Error  error
}

// GetError returns the scan error, if any.
func (r *ScanResult) GetError() error {
	return r.Error
}

// BatchProcessor evaluates multiple URLs concurrently.
type BatchProcessor struct {
	scanner     Scanner
	concurrency int
}

// NewBatchProcessor creates a batch processor.
func NewBatchProcessor(scanner Scanner, concurrency int) *BatchProcessor {
	return &BatchProcessor{
		scanner:     scanner,
		concurrency: concurrency,
	}
}

// ProcessURLs evaluates the given URLs concurrently and returns one result
// per URL, in completion order.
func (b *BatchProcessor) ProcessURLs(ctx context.Context, urls []string) []*ScanResult {
	if len(urls) == 0 {
		return []*ScanResult{}
	}

	pool := NewPool(b.concurrency)
	pool.Start()

	for _, url := range urls {
		pool.Submit(&ScanJob{URL: url, Scanner: b.scanner})
	}

	results := pool.Wait()

	scanResults := make([]*ScanResult, len(results))
	for i, result := range results {
		scanResults[i] = result.(*ScanResult)
	}

	return scanResults
}

// ProcessFile reads URLs from a file (one per line) and evaluates them.
func (b *BatchProcessor) ProcessFile(ctx context.Context, filePath string) ([]*ScanResult, error) {
	urls, err := ReadURLsFromFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("read URLs: %w", err)
	}

	return b.ProcessURLs(ctx, urls), nil
}

// ReadURLsFromFile reads unique URLs from a file, skipping blanks and
// # comments.
func ReadURLsFromFile(filePath string) ([]string, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}
	defer func() { _ = file.Close() }()

	var urls []string
	seen := make(map[string]bool)

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if !seen[line] {
			seen[line] = true
			urls = append(urls, line)
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan file: %w", err)
	}

	return urls, nil
}
