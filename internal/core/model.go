package core

import (
	"time"

	"github.com/mikey/llm-phish-filter/internal/scoring"
)

// Email represents an email message
type Email struct {
	MessageID string
	From      string
	To        []string
	Subject   string
	// Body is the plain-text rendering used for scoring
	Body    string
	HTML    string
	Headers map[string][]string
	// Auth is nil when the message carries no authentication results
	Auth  *scoring.Authentication
	Links []scoring.Link
}

// Header returns the scoring view of the email headers
func (e *Email) Header() scoring.EmailHeader {
	h := scoring.EmailHeader{
		From:           e.From,
		Subject:        e.Subject,
		Authentication: e.Auth,
	}
	if len(e.To) > 0 {
		h.To = e.To[0]
	}
	return h
}

// RemoteAssessment is a phishing score produced by a remote language model
type RemoteAssessment struct {
	Score       float64 `json:"score"`
	Confidence  float64 `json:"confidence"`
	Explanation string  `json:"explanation"`
	ModelUsed   string  `json:"model_used"`
}

// AnalysisResult represents the result of phishing analysis
type AnalysisResult struct {
	IsPhishing         bool      `json:"is_phishing" yaml:"is_phishing"`
	Score              int       `json:"score" yaml:"score"`
	HeuristicScore     int       `json:"heuristic_score" yaml:"heuristic_score"`
	RemoteScore        *float64  `json:"remote_score,omitempty" yaml:"remote_score,omitempty"`
	Confidence         float64   `json:"confidence" yaml:"confidence"`
	Explanation        string    `json:"explanation" yaml:"explanation"`
	Details            []string  `json:"details" yaml:"details"`
	SuspiciousElements []string  `json:"suspicious_elements" yaml:"suspicious_elements"`
	AnalyzedAt         time.Time `json:"analyzed_at" yaml:"analyzed_at"`
	ModelUsed          string    `json:"model_used" yaml:"model_used"`
	ProcessingID       string    `json:"processing_id" yaml:"processing_id"`
}

// CacheEntry is a stored verdict keyed by message identifier
type CacheEntry struct {
	MessageID          string
	IsPhishing         bool
	Score              int
	HeuristicScore     int
	RemoteScore        *float64
	Confidence         float64
	Explanation        string
	Details            []string
	SuspiciousElements []string
	ModelUsed          string
	LastSeen           time.Time
	ExpiresAt          time.Time
}

// Expired reports whether the entry is no longer valid at now
func (e *CacheEntry) Expired(now time.Time) bool {
	return now.After(e.ExpiresAt)
}
