package core

import (
	"context"
	"errors"
)

// ErrNotFound is returned by stores when no live entry exists for a key
var ErrNotFound = errors.New("not found")

// LLMClient defines the interface for interacting with remote language models
type LLMClient interface {
	// AnalyzeEmail asks the model for a 0-100 phishing score
	AnalyzeEmail(ctx context.Context, email *Email) (*RemoteAssessment, error)

	// Name identifies the provider in logs and metrics
	Name() string
}

// CacheRepository defines the interface for caching analysis results
type CacheRepository interface {
	// Get retrieves a live cached entry for a message
	Get(ctx context.Context, messageID string) (*CacheEntry, error)

	// Set stores a cache entry
	Set(ctx context.Context, entry *CacheEntry) error

	// Delete removes a cache entry
	Delete(ctx context.Context, messageID string) error

	// Cleanup removes expired entries
	Cleanup(ctx context.Context) error
}

// SafeList holds message identifiers the user has marked as safe
type SafeList interface {
	IsSafe(ctx context.Context, messageID string) (bool, error)
	MarkSafe(ctx context.Context, messageID string) error
	UnmarkSafe(ctx context.Context, messageID string) error
}

// DomainChecker decides whether a sender is trusted outright
type DomainChecker interface {
	IsWhitelisted(from string) bool
}

// Store is a backend that holds both cached verdicts and the safe list
type Store interface {
	CacheRepository
	SafeList

	// Stop halts background cleanup and releases the backend
	Stop()
}

// EmailFilter is a mail front end that feeds messages to the service
type EmailFilter interface {
	// ProcessEmail analyses a parsed email
	ProcessEmail(ctx context.Context, email *Email) (*AnalysisResult, error)

	// Start starts accepting mail
	Start() error

	// Stop stops accepting mail
	Stop() error
}
