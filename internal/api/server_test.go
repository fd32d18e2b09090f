package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mikey/llm-phish-filter/internal/adapters/cache"
	"github.com/mikey/llm-phish-filter/internal/adapters/report"
	"github.com/mikey/llm-phish-filter/internal/api/routes"
	"github.com/mikey/llm-phish-filter/internal/config"
	"github.com/mikey/llm-phish-filter/internal/core"
	"github.com/mikey/llm-phish-filter/internal/utils"
)

type fakeMailer struct {
	mu   sync.Mutex
	msgs [][]byte
}

func (m *fakeMailer) Send(_ context.Context, _ string, _ []string, msg []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.msgs = append(m.msgs, msg)
	return nil
}

func (m *fakeMailer) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.msgs)
}

type testEnv struct {
	router   *gin.Engine
	mailer   *fakeMailer
	reporter *report.Reporter
	store    *cache.MemoryCache
	level    zap.AtomicLevel
}

func newTestEnv(t *testing.T, allowlist []string) *testEnv {
	t.Helper()
	logger := zap.NewNop()
	store := cache.NewMemoryCache(logger, 0)
	t.Cleanup(store.Stop)

	service := core.NewPhishingFilterService(nil, store, store, nil, logger, core.ServiceOptions{
		CacheEnabled: true,
		CacheTTL:     time.Hour,
		Threshold:    50,
	})

	mailer := &fakeMailer{}
	reporter := report.NewReporter(mailer, report.NewMemoryDeduper(time.Hour), config.ReportConfig{
		SecurityMailbox: "security@corp.com",
		Sender:          "phish-filter@corp.com",
		Timeout:         time.Second,
	}, logger)

	level := zap.NewAtomicLevelAt(zap.InfoLevel)
	router, err := NewRouter(config.APIConfig{
		Mode:           gin.TestMode,
		AllowedOrigin:  "https://mail.corp.com",
		AllowlistCIDRs: allowlist,
	}, routes.Dependencies{
		Analyzer:      service,
		Reporter:      reporter,
		TextProcessor: utils.NewTextProcessor(logger),
		Level:         level,
		Logger:        logger,
	})
	require.NoError(t, err)

	return &testEnv{router: router, mailer: mailer, reporter: reporter, store: store, level: level}
}

func (e *testEnv) do(method, target, contentType string, body []byte) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, bytes.NewReader(body))
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func reportBody(messageID string) []byte {
	return []byte(`{
		"message_id": "` + messageID + `",
		"subject": "Urgent: account suspended",
		"from_address": "fake-support@scam.com",
		"to_address": "victim@example.com",
		"final_score": 100,
		"heuristic_score": 70,
		"details": ["Urgent language detected"],
		"auth_results": {"dkim": {"status": "fail"}, "spf": {"status": "pass"}}
	}`)
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t, nil)
	w := env.do(http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}

func TestReportAcceptedThenDuplicate(t *testing.T) {
	env := newTestEnv(t, []string{"192.0.2.0/24"})

	w := env.do(http.MethodPost, "/report-phishing", "application/json", reportBody("<r-1@scam.com>"))
	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())
	assert.JSONEq(t, `{"status":"accepted","message_id":"<r-1@scam.com>"}`, w.Body.String())

	w = env.do(http.MethodPost, "/report-phishing", "application/json", reportBody("<r-1@scam.com>"))
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"duplicate_ignored","message_id":"<r-1@scam.com>"}`, w.Body.String())

	env.reporter.Wait()
	assert.Equal(t, 1, env.mailer.count())
}

func TestReportRejectsClientOutsideAllowlist(t *testing.T) {
	env := newTestEnv(t, []string{"10.0.0.0/8", "127.0.0.1"})

	w := env.do(http.MethodPost, "/report-phishing", "application/json", reportBody("<r-2@scam.com>"))
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.JSONEq(t, `{"detail":"Forbidden (IP not allowlisted)"}`, w.Body.String())
	assert.Zero(t, env.mailer.count())
}

func TestReportForwardedForIsIgnored(t *testing.T) {
	env := newTestEnv(t, []string{"10.0.0.0/8"})

	req := httptest.NewRequest(http.MethodPost, "/report-phishing", bytes.NewReader(reportBody("<r-3@scam.com>")))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Forwarded-For", "10.1.2.3")
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestReportValidation(t *testing.T) {
	env := newTestEnv(t, nil)

	cases := map[string]string{
		"missing final score": `{"message_id":"x","from_address":"a@b.com","heuristic_score":10}`,
		"final score range":   `{"message_id":"x","from_address":"a@b.com","final_score":101,"heuristic_score":10}`,
		"heuristic range":     `{"message_id":"x","from_address":"a@b.com","final_score":10,"heuristic_score":71}`,
		"bad sender":          `{"message_id":"x","from_address":"not-an-address","final_score":10,"heuristic_score":10}`,
		"bad auth status":     `{"message_id":"x","from_address":"a@b.com","final_score":10,"heuristic_score":10,"auth_results":{"spf":{"status":"maybe"}}}`,
		"malformed":           `{"message_id":`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			w := env.do(http.MethodPost, "/report-phishing", "application/json", []byte(body))
			assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
		})
	}
	env.reporter.Wait()
	assert.Zero(t, env.mailer.count())
}

func TestAnalyzeJSON(t *testing.T) {
	env := newTestEnv(t, nil)

	body := []byte(`{
		"message_id": "<a-1@scam.com>",
		"from": "\"PayPal Support\" <fake-support@scam.com>",
		"to": ["victim@example.com"],
		"subject": "Urgent: account suspended",
		"body": "Urgent: Your account will be suspended. Click here immediately: http://paypal.com.security.login.com",
		"authentication": {"dkim": {"status": "fail"}, "spf": {"status": "fail"}, "dmarc": {"status": "fail"}}
	}`)
	w := env.do(http.MethodPost, "/analyze", "application/json", body)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp routes.AnalyzeResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Result.IsPhishing)
	assert.Equal(t, 70, resp.Result.HeuristicScore)
	assert.Equal(t, 100, resp.Result.Score)
	assert.Equal(t, "heuristics", resp.Result.ModelUsed)
	assert.Empty(t, resp.FlaggedLinks)
}

func TestAnalyzeHTMLFlagsLinks(t *testing.T) {
	env := newTestEnv(t, nil)

	body := []byte(`{
		"from": "IT Desk <it@portal.example.com>",
		"subject": "Password expiry",
		"html": "<p>Visit <a href=\"http://login-verify.example.ru/reset\">https://portal.example.com</a> now.</p><p><a href=\"https://portal.example.com/help\">Help</a></p>"
	}`)
	w := env.do(http.MethodPost, "/analyze", "application/json", body)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp routes.AnalyzeResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Links, 2)
	assert.Equal(t, "http://login-verify.example.ru/reset", resp.Links[0].Href)
	assert.Contains(t, resp.FlaggedLinks, 0)
	assert.NotContains(t, resp.FlaggedLinks, 1)
}

func TestAnalyzeRawMessage(t *testing.T) {
	env := newTestEnv(t, nil)

	raw := "From: Colleague <colleague@company.com>\r\n" +
		"To: john@company.com\r\n" +
		"Subject: Meeting notes\r\n" +
		"Message-ID: <clean-1@company.com>\r\n" +
		"Content-Type: text/plain; charset=utf-8\r\n" +
		"\r\n" +
		"Hi John, thanks for the meeting today.\r\n"
	w := env.do(http.MethodPost, "/analyze", "message/rfc822", []byte(raw))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp routes.AnalyzeResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.False(t, resp.Result.IsPhishing)
	assert.Less(t, resp.Result.Score, 50)
}

func TestAnalyzeBadJSON(t *testing.T) {
	env := newTestEnv(t, nil)
	w := env.do(http.MethodPost, "/analyze", "application/json", []byte(`{"from":`))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSafeList(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	w := env.do(http.MethodPut, "/safe-list/%3Cs-1@corp.com%3E", "", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	safe, err := env.store.IsSafe(ctx, "<s-1@corp.com>")
	require.NoError(t, err)
	assert.True(t, safe)

	w = env.do(http.MethodDelete, "/safe-list/%3Cs-1@corp.com%3E", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	safe, err = env.store.IsSafe(ctx, "<s-1@corp.com>")
	require.NoError(t, err)
	assert.False(t, safe)

	w = env.do(http.MethodPut, "/safe-list/", "", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestLogLevel(t *testing.T) {
	env := newTestEnv(t, nil)

	w := env.do(http.MethodPost, "/log-level?level=debug", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"new_level":"debug"}`, w.Body.String())
	assert.Equal(t, zap.DebugLevel, env.level.Level())

	w = env.do(http.MethodPost, "/log-level?level=loud", "", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, zap.DebugLevel, env.level.Level())
}

func TestMetricsEndpoint(t *testing.T) {
	env := newTestEnv(t, nil)
	env.do(http.MethodGet, "/health", "", nil)

	w := env.do(http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, strings.Contains(w.Body.String(), "phish_filter_api_request_duration_seconds"))
}

func TestCORSPreflight(t *testing.T) {
	env := newTestEnv(t, nil)

	req := httptest.NewRequest(http.MethodOptions, "/report-phishing", nil)
	req.Header.Set("Origin", "https://mail.corp.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "https://mail.corp.com", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestInvalidAllowlist(t *testing.T) {
	_, err := NewRouter(config.APIConfig{Mode: gin.TestMode, AllowlistCIDRs: []string{"10.0.0.0/99"}},
		routes.Dependencies{Logger: zap.NewNop(), Level: zap.NewAtomicLevel()})
	assert.Error(t, err)
}

func TestServerStartStop(t *testing.T) {
	srv, err := NewServer(config.APIConfig{Mode: gin.TestMode, ListenAddress: "127.0.0.1:0"},
		routes.Dependencies{Logger: zap.NewNop(), Level: zap.NewAtomicLevel()})
	require.NoError(t, err)
	require.NoError(t, srv.Start())

	resp, err := http.Get("http://" + srv.Addr().String() + "/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	assert.NoError(t, srv.Stop(ctx))
}
