package filter

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/mikey/llm-phish-filter/internal/config"
	"github.com/mikey/llm-phish-filter/internal/core"
	"github.com/mikey/llm-phish-filter/internal/scoring"
)

// maxReasonLength bounds the reason header value
const maxReasonLength = 200

// Analyzer scores a parsed email
type Analyzer interface {
	AnalyzeEmail(ctx context.Context, email *core.Email) (*core.AnalysisResult, error)
}

// HeaderNames holds the header names written on analysed messages
type HeaderNames struct {
	Status         string
	Score          string
	HeuristicScore string
	Reason         string
}

// Options holds the settings shared by the mail front ends
type Options struct {
	ListenAddress   string
	BlockPhishing   bool
	SubjectPrefix   string
	Headers         HeaderNames
	AnalysisTimeout time.Duration
}

// OptionsFromConfig maps the server section onto filter options
func OptionsFromConfig(cfg config.ServerConfig, analysisTimeout time.Duration) Options {
	return Options{
		ListenAddress: cfg.ListenAddress,
		BlockPhishing: cfg.BlockPhishing,
		SubjectPrefix: cfg.SubjectPrefix,
		Headers: HeaderNames{
			Status:         cfg.StatusHeader,
			Score:          cfg.ScoreHeader,
			HeuristicScore: cfg.HeuristicScoreHeader,
			Reason:         cfg.ReasonHeader,
		},
		AnalysisTimeout: analysisTimeout,
	}
}

type headerField struct {
	name  string
	value string
}

// verdictFields renders a result as header fields, skipping unnamed headers
func (h HeaderNames) verdictFields(result *core.AnalysisResult) []headerField {
	candidates := []headerField{
		{h.Status, strconv.FormatBool(result.IsPhishing)},
		{h.Score, strconv.Itoa(result.Score)},
		{h.HeuristicScore, strconv.Itoa(result.HeuristicScore)},
		{h.Reason, headerSafe(result.Explanation)},
	}
	fields := candidates[:0]
	for _, f := range candidates {
		if f.name != "" {
			fields = append(fields, f)
		}
	}
	return fields
}

// headerSafe flattens a value onto one line and bounds its length
func headerSafe(value string) string {
	value = strings.Join(strings.Fields(value), " ")
	if r := []rune(value); len(r) > maxReasonLength {
		value = string(r[:maxReasonLength]) + "..."
	}
	return value
}

// analyze runs the analyzer, converting a failure into a non-phishing result
// so mail keeps flowing
func analyze(ctx context.Context, analyzer Analyzer, email *core.Email, timeout time.Duration) (*core.AnalysisResult, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	result, err := analyzer.AnalyzeEmail(ctx, email)
	if err != nil {
		return &core.AnalysisResult{
			Explanation:        fmt.Sprintf("Error during analysis: %v", err),
			Details:            []string{},
			SuspiciousElements: []string{},
			AnalyzedAt:         time.Now(),
			ModelUsed:          "error",
		}, err
	}
	return result, nil
}

// senderDomain returns the sender's domain for logging
func senderDomain(from string) string {
	if domain, ok := scoring.SenderDomain(from); ok {
		return domain
	}
	return "unknown"
}
