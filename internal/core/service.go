package core

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mikey/llm-phish-filter/internal/metrics"
	"github.com/mikey/llm-phish-filter/internal/scoring"
)

// heuristicsOnlyConfidence is reported when no remote assessment contributed
const heuristicsOnlyConfidence = 0.5

// ServiceOptions configures a PhishingFilterService
type ServiceOptions struct {
	CacheEnabled  bool
	CacheTTL      time.Duration
	RemoteTimeout time.Duration
	// Threshold is the 0-100 combined score at or above which a message is phishing
	Threshold int
}

// PhishingFilterService is the core service for phishing detection
type PhishingFilterService struct {
	llmClient LLMClient
	cache     CacheRepository
	safeList  SafeList
	trusted   DomainChecker
	engine    *scoring.Engine
	logger    *zap.Logger
	opts      ServiceOptions
	now       func() time.Time
}

// NewPhishingFilterService creates a new phishing filter service.
// llmClient, cache, safeList and trusted may each be nil.
func NewPhishingFilterService(
	llmClient LLMClient,
	cache CacheRepository,
	safeList SafeList,
	trusted DomainChecker,
	logger *zap.Logger,
	opts ServiceOptions,
) *PhishingFilterService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PhishingFilterService{
		llmClient: llmClient,
		cache:     cache,
		safeList:  safeList,
		trusted:   trusted,
		engine:    scoring.NewEngine(logger),
		logger:    logger,
		opts:      opts,
		now:       time.Now,
	}
}

// AnalyzeEmail scores an email. Remote model failures never fail the analysis;
// the heuristic score is used on its own instead.
func (s *PhishingFilterService) AnalyzeEmail(ctx context.Context, email *Email) (*AnalysisResult, error) {
	if email == nil {
		return nil, errors.New("email is nil")
	}
	processingID := uuid.NewString()
	logger := s.logger.With(
		zap.String("processing_id", processingID),
		zap.String("message_id", email.MessageID),
		zap.String("sender", email.From))

	if s.isMarkedSafe(ctx, email.MessageID, logger) {
		logger.Info("Skipping phishing check for message marked safe",
			zap.String("action", "safe_list_bypass"))
		metrics.Analyses.WithLabelValues("safe", "safe-list").Inc()
		return s.bypassResult(processingID, "Message was marked safe", "safe-list"), nil
	}

	if s.trusted != nil && s.trusted.IsWhitelisted(email.From) {
		logger.Info("Skipping phishing check for trusted domain",
			zap.String("action", "whitelist_bypass"))
		metrics.Analyses.WithLabelValues("safe", "trusted-domain").Inc()
		return s.bypassResult(processingID, "Sender domain is trusted", "trusted-domain"), nil
	}

	if result, ok := s.cachedResult(ctx, email.MessageID, processingID, logger); ok {
		return result, nil
	}

	heuristics := s.engine.Compute(email.Body, email.Header())
	metrics.HeuristicScore.Observe(float64(heuristics.Score))

	remote := s.assessRemote(ctx, email, logger)
	remoteScore := scoring.NoRemoteScore()
	if remote != nil {
		remoteScore = remote.Score
	}
	final := scoring.CombineScores(scoring.NormalizeHeuristic(heuristics.Score), remoteScore)

	result := &AnalysisResult{
		IsPhishing:         final >= s.opts.Threshold,
		Score:              final,
		HeuristicScore:     heuristics.Score,
		Confidence:         heuristicsOnlyConfidence,
		Explanation:        summarize(heuristics.Details),
		Details:            heuristics.Details,
		SuspiciousElements: heuristics.SuspiciousElements,
		AnalyzedAt:         s.now(),
		ModelUsed:          "heuristics",
		ProcessingID:       processingID,
	}
	if remote != nil {
		score := remote.Score
		result.RemoteScore = &score
		result.Confidence = remote.Confidence
		result.ModelUsed = remote.ModelUsed
		if remote.Explanation != "" {
			result.Explanation = remote.Explanation
		}
	}

	logger.Info("Email analysed",
		zap.Bool("is_phishing", result.IsPhishing),
		zap.Int("score", result.Score),
		zap.Int("heuristic_score", result.HeuristicScore),
		zap.String("model", result.ModelUsed))
	metrics.Analyses.WithLabelValues(verdict(result.IsPhishing), "analysis").Inc()
	metrics.FinalScore.Observe(float64(final))

	s.storeResult(ctx, email.MessageID, result, logger)
	return result, nil
}

// IsPhishing determines if a result crosses the configured threshold
func (s *PhishingFilterService) IsPhishing(result *AnalysisResult) bool {
	return result.Score >= s.opts.Threshold
}

// Threshold returns the configured 0-100 threshold
func (s *PhishingFilterService) Threshold() int {
	return s.opts.Threshold
}

// MarkSafe records a message as safe and drops any cached verdict for it
func (s *PhishingFilterService) MarkSafe(ctx context.Context, messageID string) error {
	if s.safeList == nil {
		return errors.New("safe list is not configured")
	}
	if messageID == "" {
		return errors.New("message id is required")
	}
	if err := s.safeList.MarkSafe(ctx, messageID); err != nil {
		return fmt.Errorf("failed to mark message safe: %w", err)
	}
	if s.cache != nil {
		if err := s.cache.Delete(ctx, messageID); err != nil {
			s.logger.Warn("Failed to drop cached verdict", zap.String("message_id", messageID), zap.Error(err))
		}
	}
	return nil
}

// UnmarkSafe removes a message from the safe list
func (s *PhishingFilterService) UnmarkSafe(ctx context.Context, messageID string) error {
	if s.safeList == nil {
		return errors.New("safe list is not configured")
	}
	if err := s.safeList.UnmarkSafe(ctx, messageID); err != nil {
		return fmt.Errorf("failed to unmark message: %w", err)
	}
	return nil
}

// FlagLinks returns the indices of the email's links that should be highlighted
func (s *PhishingFilterService) FlagLinks(email *Email, result *AnalysisResult) []int {
	var suspicious []string
	if result != nil {
		suspicious = result.SuspiciousElements
	}
	return scoring.FlagSuspiciousLinks(email.Links, suspicious)
}

func (s *PhishingFilterService) isMarkedSafe(ctx context.Context, messageID string, logger *zap.Logger) bool {
	if s.safeList == nil || messageID == "" {
		return false
	}
	safe, err := s.safeList.IsSafe(ctx, messageID)
	if err != nil {
		logger.Warn("Safe list lookup failed", zap.Error(err))
		return false
	}
	return safe
}

func (s *PhishingFilterService) cachedResult(ctx context.Context, messageID, processingID string, logger *zap.Logger) (*AnalysisResult, bool) {
	if !s.opts.CacheEnabled || s.cache == nil || messageID == "" {
		return nil, false
	}

	entry, err := s.cache.Get(ctx, messageID)
	switch {
	case errors.Is(err, ErrNotFound):
		metrics.CacheOperations.WithLabelValues("get", "miss").Inc()
		return nil, false
	case err != nil:
		metrics.CacheOperations.WithLabelValues("get", "error").Inc()
		logger.Warn("Cache lookup failed", zap.Error(err))
		return nil, false
	}

	logger.Debug("Cache hit for message", zap.String("cached_model", entry.ModelUsed))
	metrics.CacheOperations.WithLabelValues("get", "hit").Inc()
	metrics.Analyses.WithLabelValues(verdict(entry.IsPhishing), "cache").Inc()
	return &AnalysisResult{
		IsPhishing:         entry.IsPhishing,
		Score:              entry.Score,
		HeuristicScore:     entry.HeuristicScore,
		RemoteScore:        entry.RemoteScore,
		Confidence:         entry.Confidence,
		Explanation:        entry.Explanation,
		Details:            nonNil(entry.Details),
		SuspiciousElements: nonNil(entry.SuspiciousElements),
		AnalyzedAt:         s.now(),
		ModelUsed:          "cache",
		ProcessingID:       processingID,
	}, true
}

func (s *PhishingFilterService) storeResult(ctx context.Context, messageID string, result *AnalysisResult, logger *zap.Logger) {
	if !s.opts.CacheEnabled || s.cache == nil || messageID == "" {
		return
	}
	now := s.now()
	entry := &CacheEntry{
		MessageID:          messageID,
		IsPhishing:         result.IsPhishing,
		Score:              result.Score,
		HeuristicScore:     result.HeuristicScore,
		RemoteScore:        result.RemoteScore,
		Confidence:         result.Confidence,
		Explanation:        result.Explanation,
		Details:            result.Details,
		SuspiciousElements: result.SuspiciousElements,
		ModelUsed:          result.ModelUsed,
		LastSeen:           now,
		ExpiresAt:          now.Add(s.opts.CacheTTL),
	}
	if err := s.cache.Set(ctx, entry); err != nil {
		metrics.CacheOperations.WithLabelValues("set", "error").Inc()
		logger.Error("Failed to update cache", zap.Error(err))
		return
	}
	metrics.CacheOperations.WithLabelValues("set", "ok").Inc()
}

// assessRemote returns nil when no usable remote score is available
func (s *PhishingFilterService) assessRemote(ctx context.Context, email *Email, logger *zap.Logger) *RemoteAssessment {
	if s.llmClient == nil {
		return nil
	}
	provider := s.llmClient.Name()

	if s.opts.RemoteTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.opts.RemoteTimeout)
		defer cancel()
	}

	start := time.Now()
	assessment, err := s.llmClient.AnalyzeEmail(ctx, email)
	metrics.RemoteDuration.WithLabelValues(provider).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.RemoteFailures.WithLabelValues(provider).Inc()
		logger.Warn("Remote assessment failed, using heuristics only",
			zap.String("provider", provider),
			zap.Error(err))
		return nil
	}
	if assessment == nil || math.IsNaN(assessment.Score) || math.IsInf(assessment.Score, 0) {
		metrics.RemoteFailures.WithLabelValues(provider).Inc()
		logger.Warn("Remote assessment returned no usable score", zap.String("provider", provider))
		return nil
	}

	assessment.Score = math.Max(0, math.Min(100, assessment.Score))
	if assessment.ModelUsed == "" {
		assessment.ModelUsed = provider
	}
	return assessment
}

func (s *PhishingFilterService) bypassResult(processingID, explanation, source string) *AnalysisResult {
	return &AnalysisResult{
		IsPhishing:         false,
		Score:              0,
		Confidence:         1.0,
		Explanation:        explanation,
		Details:            []string{},
		SuspiciousElements: []string{},
		AnalyzedAt:         s.now(),
		ModelUsed:          source,
		ProcessingID:       processingID,
	}
}

func summarize(details []string) string {
	if len(details) == 0 {
		return "No phishing indicators found"
	}
	return strings.Join(details, "; ")
}

func verdict(isPhishing bool) string {
	if isPhishing {
		return "phishing"
	}
	return "clean"
}

func nonNil(items []string) []string {
	if items == nil {
		return []string{}
	}
	return items
}
