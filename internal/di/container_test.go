package di

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mikey/llm-phish-filter/internal/adapters/filter"
	"github.com/mikey/llm-phish-filter/internal/adapters/report"
	"github.com/mikey/llm-phish-filter/internal/api"
	"github.com/mikey/llm-phish-filter/internal/core"
	"github.com/mikey/llm-phish-filter/internal/utils"
)

const testConfig = `
server:
  filter_type: milter
  listen_address: 127.0.0.1:0
scoring:
  threshold: 40
  trusted_domains: [company.com]
cache:
  type: memory
api:
  listen_address: 127.0.0.1:0
  mode: test
logging:
  level: warn
`

func TestBuildContainer(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(testConfig), 0o600))

	container, err := BuildContainer(path)
	require.NoError(t, err)

	err = container.Invoke(func(
		service *core.PhishingFilterService,
		emailFilter core.EmailFilter,
		store core.Store,
		reporter *report.Reporter,
		server *api.Server,
		llmClient core.LLMClient,
	) {
		defer store.Stop()
		assert.Nil(t, llmClient)
		assert.Equal(t, 40, service.Threshold())
		assert.IsType(t, &filter.MilterFilter{}, emailFilter)
		assert.NotNil(t, reporter)
		assert.NotNil(t, server.Handler())

		result, err := service.AnalyzeEmail(context.Background(), &core.Email{
			MessageID: "<trusted-1@company.com>",
			From:      "ceo@company.com",
			Subject:   "Urgent: verify your account",
			Body:      "Click here immediately",
		})
		require.NoError(t, err)
		assert.False(t, result.IsPhishing)
		assert.Equal(t, "trusted-domain", result.ModelUsed)
	})
	require.NoError(t, err)
}

func TestBuildContainerBadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("scoring:\n  threshold: 250\n"), 0o600))

	container, err := BuildContainer(path)
	require.NoError(t, err)

	err = container.Invoke(func(*core.PhishingFilterService) {})
	assert.ErrorContains(t, err, "scoring.threshold")
}

func TestBuildCLIContainer(t *testing.T) {
	var out bytes.Buffer
	container, err := BuildCLIContainer(CLIOptions{
		Provider:  "none",
		Threshold: 50,
		Out:       &out,
	})
	require.NoError(t, err)

	err = container.Invoke(func(f *filter.CliFilter, tp *utils.TextProcessor) {
		raw := "From: \"PayPal Support\" <fake-support@scam.com>\r\n" +
			"To: victim@example.com\r\n" +
			"Subject: Urgent: account suspended\r\n" +
			"\r\n" +
			"Urgent: Your account will be suspended. Click here immediately: http://paypal.com.security.login.com\r\n"
		email, err := filter.ParseEmail(strings.NewReader(raw), tp, zap.NewNop())
		require.NoError(t, err)

		result, err := f.ProcessEmail(context.Background(), email)
		require.NoError(t, err)
		assert.Equal(t, "heuristics", result.ModelUsed)
	})
	require.NoError(t, err)
	assert.Contains(t, out.String(), "=== Results ===")
}

func TestCLIConfigFlagsOverride(t *testing.T) {
	cfg, err := cliConfig(CLIOptions{
		Provider:       "OpenAI",
		Threshold:      35,
		TrustedDomains: []string{"corp.com"},
	}, zap.NewNop())
	require.NoError(t, err)

	llm, err := cfg.GetLLM()
	require.NoError(t, err)
	assert.Equal(t, "openai", llm.Provider)

	sc, err := cfg.GetScoring()
	require.NoError(t, err)
	assert.Equal(t, 35, sc.Threshold)
	assert.Equal(t, []string{"corp.com"}, sc.TrustedDomains)
}
