package core

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mikey/llm-phish-filter/internal/scoring"
)

type fakeLLM struct {
	assessment *RemoteAssessment
	err        error
	block      bool
	calls      int
}

func (f *fakeLLM) AnalyzeEmail(ctx context.Context, _ *Email) (*RemoteAssessment, error) {
	f.calls++
	if f.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if f.err != nil {
		return nil, f.err
	}
	a := *f.assessment
	return &a, nil
}

func (f *fakeLLM) Name() string { return "fake" }

type fakeStore struct {
	mu      sync.Mutex
	entries map[string]*CacheEntry
	safe    map[string]bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{entries: map[string]*CacheEntry{}, safe: map[string]bool{}}
}

func (f *fakeStore) Get(_ context.Context, id string) (*CacheEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.entries[id]
	if !ok {
		return nil, ErrNotFound
	}
	return e, nil
}

func (f *fakeStore) Set(_ context.Context, e *CacheEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries[e.MessageID] = e
	return nil
}

func (f *fakeStore) Delete(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.entries, id)
	return nil
}

func (f *fakeStore) Cleanup(context.Context) error { return nil }

func (f *fakeStore) IsSafe(_ context.Context, id string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.safe[id], nil
}

func (f *fakeStore) MarkSafe(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.safe[id] = true
	return nil
}

func (f *fakeStore) UnmarkSafe(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.safe, id)
	return nil
}

type trustAll bool

func (t trustAll) IsWhitelisted(string) bool { return bool(t) }

func phishingEmail() *Email {
	return &Email{
		MessageID: "<msg-1@example.net>",
		From:      "fake-support@scam.com",
		Subject:   "Account notice",
		Body:      "Urgent: Your account will be suspended. Click here immediately: http://paypal.com.security.login.com",
		Auth: &scoring.Authentication{
			DKIM:  scoring.AuthenticationVerdict{Status: "fail"},
			SPF:   scoring.AuthenticationVerdict{Status: "fail"},
			DMARC: scoring.AuthenticationVerdict{Status: "fail"},
		},
		Links: []scoring.Link{
			{Href: "http://paypal.com.security.login.com", DisplayText: "Click here"},
			{Href: "https://example.org/help", DisplayText: "Help"},
		},
	}
}

func newService(llm LLMClient, store *fakeStore, trusted DomainChecker, opts ServiceOptions) *PhishingFilterService {
	var (
		cache CacheRepository
		safe  SafeList
	)
	if store != nil {
		cache, safe = store, store
	}
	return NewPhishingFilterService(llm, cache, safe, trusted, zap.NewNop(), opts)
}

func TestAnalyzeEmailCombinesRemoteScore(t *testing.T) {
	llm := &fakeLLM{assessment: &RemoteAssessment{Score: 90, Confidence: 0.8, Explanation: "credential harvesting", ModelUsed: "gpt-test"}}
	svc := newService(llm, nil, nil, ServiceOptions{Threshold: 60})

	result, err := svc.AnalyzeEmail(context.Background(), phishingEmail())
	require.NoError(t, err)

	assert.Equal(t, scoring.MaxHeuristicScore, result.HeuristicScore)
	assert.Equal(t, 94, result.Score)
	require.NotNil(t, result.RemoteScore)
	assert.Equal(t, 90.0, *result.RemoteScore)
	assert.True(t, result.IsPhishing)
	assert.True(t, svc.IsPhishing(result))
	assert.Equal(t, "gpt-test", result.ModelUsed)
	assert.Equal(t, "credential harvesting", result.Explanation)
	assert.Equal(t, 0.8, result.Confidence)
	assert.NotEmpty(t, result.ProcessingID)
	assert.Contains(t, result.SuspiciousElements, "paypal.com.security.login.com")
}

func TestAnalyzeEmailFallsBackToHeuristics(t *testing.T) {
	llm := &fakeLLM{err: errors.New("upstream unavailable")}
	svc := newService(llm, nil, nil, ServiceOptions{Threshold: 60})

	result, err := svc.AnalyzeEmail(context.Background(), phishingEmail())
	require.NoError(t, err)

	assert.Equal(t, 100, result.Score)
	assert.Nil(t, result.RemoteScore)
	assert.Equal(t, "heuristics", result.ModelUsed)
	assert.Equal(t, heuristicsOnlyConfidence, result.Confidence)
	assert.Contains(t, result.Explanation, "DKIM authentication failed")
}

func TestAnalyzeEmailRemoteTimeout(t *testing.T) {
	llm := &fakeLLM{block: true}
	svc := newService(llm, nil, nil, ServiceOptions{Threshold: 60, RemoteTimeout: 20 * time.Millisecond})

	result, err := svc.AnalyzeEmail(context.Background(), phishingEmail())
	require.NoError(t, err)
	assert.Equal(t, "heuristics", result.ModelUsed)
	assert.Equal(t, 100, result.Score)
}

func TestAnalyzeEmailClampsRemoteScore(t *testing.T) {
	llm := &fakeLLM{assessment: &RemoteAssessment{Score: 150}}
	svc := newService(llm, nil, nil, ServiceOptions{Threshold: 60})

	email := &Email{MessageID: "clean", From: "colleague@company.com", Body: "See you tomorrow."}
	result, err := svc.AnalyzeEmail(context.Background(), email)
	require.NoError(t, err)

	require.NotNil(t, result.RemoteScore)
	assert.Equal(t, 100.0, *result.RemoteScore)
	assert.Equal(t, 60, result.Score)
	assert.Equal(t, "fake", result.ModelUsed)
	assert.True(t, result.IsPhishing)
}

func TestAnalyzeEmailWithoutRemote(t *testing.T) {
	svc := newService(nil, nil, nil, ServiceOptions{Threshold: 60})

	email := &Email{From: "colleague@company.com", Body: "Hi John, thanks for the meeting today."}
	result, err := svc.AnalyzeEmail(context.Background(), email)
	require.NoError(t, err)

	assert.Zero(t, result.Score)
	assert.False(t, result.IsPhishing)
	assert.Equal(t, "No phishing indicators found", result.Explanation)
}

func TestAnalyzeEmailSafeListBypass(t *testing.T) {
	store := newFakeStore()
	llm := &fakeLLM{assessment: &RemoteAssessment{Score: 99}}
	svc := newService(llm, store, nil, ServiceOptions{Threshold: 60, CacheEnabled: true, CacheTTL: time.Hour})

	email := phishingEmail()
	require.NoError(t, svc.MarkSafe(context.Background(), email.MessageID))

	result, err := svc.AnalyzeEmail(context.Background(), email)
	require.NoError(t, err)
	assert.Equal(t, "safe-list", result.ModelUsed)
	assert.Zero(t, result.Score)
	assert.False(t, result.IsPhishing)
	assert.Zero(t, llm.calls)

	require.NoError(t, svc.UnmarkSafe(context.Background(), email.MessageID))
	result, err = svc.AnalyzeEmail(context.Background(), email)
	require.NoError(t, err)
	assert.NotEqual(t, "safe-list", result.ModelUsed)
	assert.Equal(t, 1, llm.calls)
}

func TestAnalyzeEmailTrustedDomainBypass(t *testing.T) {
	llm := &fakeLLM{assessment: &RemoteAssessment{Score: 99}}
	svc := newService(llm, nil, trustAll(true), ServiceOptions{Threshold: 60})

	result, err := svc.AnalyzeEmail(context.Background(), phishingEmail())
	require.NoError(t, err)
	assert.Equal(t, "trusted-domain", result.ModelUsed)
	assert.Zero(t, llm.calls)
}

func TestAnalyzeEmailUsesCache(t *testing.T) {
	store := newFakeStore()
	llm := &fakeLLM{assessment: &RemoteAssessment{Score: 90, Confidence: 0.9}}
	svc := newService(llm, store, nil, ServiceOptions{Threshold: 60, CacheEnabled: true, CacheTTL: time.Hour})

	first, err := svc.AnalyzeEmail(context.Background(), phishingEmail())
	require.NoError(t, err)

	second, err := svc.AnalyzeEmail(context.Background(), phishingEmail())
	require.NoError(t, err)

	assert.Equal(t, 1, llm.calls)
	assert.Equal(t, "cache", second.ModelUsed)
	assert.Equal(t, first.Score, second.Score)
	assert.Equal(t, first.HeuristicScore, second.HeuristicScore)
	assert.Equal(t, first.IsPhishing, second.IsPhishing)

	require.NoError(t, svc.MarkSafe(context.Background(), "<msg-1@example.net>"))
	_, err = store.Get(context.Background(), "<msg-1@example.net>")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestAnalyzeEmailCacheHitKeepsFindings(t *testing.T) {
	store := newFakeStore()
	llm := &fakeLLM{assessment: &RemoteAssessment{Score: 85, Confidence: 0.75, Explanation: "parcel lure", ModelUsed: "gpt-test"}}
	svc := newService(llm, store, nil, ServiceOptions{Threshold: 60, CacheEnabled: true, CacheTTL: time.Hour})

	email := func() *Email {
		return &Email{
			MessageID: "<ups-1@example.net>",
			From:      "dispatch@parcel-notice.com",
			Subject:   "Delivery attempt failed",
			Body:      "Your package is on hold. Track it here: http://ups-tracking.com/track",
			Links: []scoring.Link{
				{Href: "http://ups-tracking.com/track", DisplayText: "Track your package"},
				{Href: "https://example.org/help", DisplayText: "Help"},
			},
		}
	}

	first, err := svc.AnalyzeEmail(context.Background(), email())
	require.NoError(t, err)
	require.Contains(t, first.SuspiciousElements, "ups-tracking.com")
	require.NotEmpty(t, first.Details)

	second, err := svc.AnalyzeEmail(context.Background(), email())
	require.NoError(t, err)

	assert.Equal(t, 1, llm.calls)
	assert.Equal(t, "cache", second.ModelUsed)
	assert.Equal(t, first.Details, second.Details)
	assert.Equal(t, first.SuspiciousElements, second.SuspiciousElements)
	require.NotNil(t, second.RemoteScore)
	assert.Equal(t, *first.RemoteScore, *second.RemoteScore)
	assert.Equal(t, first.Confidence, second.Confidence)

	cached, err := store.Get(context.Background(), "<ups-1@example.net>")
	require.NoError(t, err)
	assert.Equal(t, first.ModelUsed, cached.ModelUsed)

	assert.Equal(t, []int{0}, svc.FlagLinks(email(), first))
	assert.Equal(t, svc.FlagLinks(email(), first), svc.FlagLinks(email(), second))
}

func TestAnalyzeEmailSkipsCacheWithoutMessageID(t *testing.T) {
	store := newFakeStore()
	svc := newService(nil, store, nil, ServiceOptions{Threshold: 60, CacheEnabled: true, CacheTTL: time.Hour})

	email := phishingEmail()
	email.MessageID = ""
	_, err := svc.AnalyzeEmail(context.Background(), email)
	require.NoError(t, err)
	assert.Empty(t, store.entries)
}

func TestAnalyzeEmailRejectsNil(t *testing.T) {
	svc := newService(nil, nil, nil, ServiceOptions{Threshold: 60})
	_, err := svc.AnalyzeEmail(context.Background(), nil)
	assert.Error(t, err)
}

func TestMarkSafeRequiresSafeList(t *testing.T) {
	svc := newService(nil, nil, nil, ServiceOptions{})
	assert.Error(t, svc.MarkSafe(context.Background(), "id"))
	assert.Error(t, svc.UnmarkSafe(context.Background(), "id"))

	svc = newService(nil, newFakeStore(), nil, ServiceOptions{})
	assert.Error(t, svc.MarkSafe(context.Background(), ""))
}

func TestFlagLinks(t *testing.T) {
	svc := newService(nil, nil, nil, ServiceOptions{Threshold: 60})
	email := phishingEmail()

	result, err := svc.AnalyzeEmail(context.Background(), email)
	require.NoError(t, err)
	assert.Equal(t, []int{0}, svc.FlagLinks(email, result))
	assert.Empty(t, svc.FlagLinks(email, nil))
}

func TestEmailHeader(t *testing.T) {
	email := &Email{From: "a@example.com", To: []string{"b@example.com", "c@example.com"}, Subject: "s"}
	h := email.Header()
	assert.Equal(t, "a@example.com", h.From)
	assert.Equal(t, "b@example.com", h.To)
	assert.Nil(t, h.Authentication)
}
