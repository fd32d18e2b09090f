package filter

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/mikey/llm-phish-filter/internal/core"
)

// CliFilter prints a human-readable analysis of single messages
type CliFilter struct {
	analyzer Analyzer
	logger   *zap.Logger
	out      io.Writer
	verbose  bool
}

// NewCliFilter creates a new CLI filter writing to out
func NewCliFilter(analyzer Analyzer, logger *zap.Logger, out io.Writer, verbose bool) *CliFilter {
	return &CliFilter{
		analyzer: analyzer,
		logger:   logger,
		out:      out,
		verbose:  verbose,
	}
}

// ProcessEmail analyses an email and prints the summary
func (f *CliFilter) ProcessEmail(ctx context.Context, email *core.Email) (*core.AnalysisResult, error) {
	f.logger.Debug("Processing email", zap.String("sender", email.From))

	fmt.Fprintf(f.out, "\n=== Email Summary ===\n")
	fmt.Fprintf(f.out, "From: %s\n", email.From)
	fmt.Fprintf(f.out, "To: %s\n", strings.Join(email.To, ", "))
	fmt.Fprintf(f.out, "Subject: %s\n", email.Subject)
	fmt.Fprintf(f.out, "Body length: %d bytes\n", len(email.Body))
	fmt.Fprintf(f.out, "Links: %d\n", len(email.Links))

	if f.verbose {
		preview := []rune(email.Body)
		if len(preview) > 500 {
			preview = append(preview[:500], []rune("...")...)
		}
		fmt.Fprintf(f.out, "\nBody preview:\n%s\n", string(preview))
	}

	start := time.Now()
	result, err := f.analyzer.AnalyzeEmail(ctx, email)
	if err != nil {
		f.logger.Error("Failed to analyze email", zap.Error(err))
		return nil, err
	}
	duration := time.Since(start)

	fmt.Fprintf(f.out, "\n=== Results ===\n")
	fmt.Fprintf(f.out, "Is phishing: %t\n", result.IsPhishing)
	fmt.Fprintf(f.out, "Score: %d/100\n", result.Score)
	fmt.Fprintf(f.out, "Heuristic score: %d\n", result.HeuristicScore)
	if result.RemoteScore != nil {
		fmt.Fprintf(f.out, "Model score: %.0f\n", *result.RemoteScore)
	}
	fmt.Fprintf(f.out, "Confidence: %.2f\n", result.Confidence)
	fmt.Fprintf(f.out, "Explanation: %s\n", result.Explanation)
	fmt.Fprintf(f.out, "Model used: %s\n", result.ModelUsed)
	if len(result.Details) > 0 {
		fmt.Fprintf(f.out, "\nFindings:\n")
		for _, d := range result.Details {
			fmt.Fprintf(f.out, "  - %s\n", d)
		}
	}
	if len(result.SuspiciousElements) > 0 {
		fmt.Fprintf(f.out, "\nSuspicious elements:\n")
		for _, e := range result.SuspiciousElements {
			fmt.Fprintf(f.out, "  - %s\n", e)
		}
	}
	fmt.Fprintf(f.out, "Processing time: %v\n", duration)

	return result, nil
}

// Start is a no-op for the CLI filter
func (f *CliFilter) Start() error {
	return nil
}

// Stop is a no-op for the CLI filter
func (f *CliFilter) Stop() error {
	return nil
}
