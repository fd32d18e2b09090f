package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mikey/llm-phish-filter/internal/config"
	"github.com/mikey/llm-phish-filter/internal/core"
	"github.com/mikey/llm-phish-filter/internal/utils"
)

func newCompatibleServer(t *testing.T, content string, status int) (*httptest.Server, *openai.ChatCompletionRequest) {
	t.Helper()
	var captured openai.ChatCompletionRequest

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&captured))

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		if status != http.StatusOK {
			_, _ = w.Write([]byte(`{"error":{"message":"model overloaded","type":"server_error"}}`))
			return
		}
		_ = json.NewEncoder(w).Encode(openai.ChatCompletionResponse{
			ID:    "chatcmpl-test",
			Model: captured.Model,
			Choices: []openai.ChatCompletionChoice{{
				Message: openai.ChatCompletionMessage{Role: openai.ChatMessageRoleAssistant, Content: content},
			}},
		})
	}))
	t.Cleanup(srv.Close)
	return srv, &captured
}

func newTestClient(t *testing.T, baseURL string) core.LLMClient {
	t.Helper()
	cfg := config.NewFromViper(config.NewEmptyViper())
	cfg.Set("openai.base_url", baseURL+"/v1")
	cfg.Set("openai.model_name", "local-model")
	cfg.Set("openai.max_body_size", 16)

	client, err := NewFactory(cfg, zap.NewNop(), utils.NewTextProcessor(zap.NewNop())).CreateLLMClient()
	require.NoError(t, err)
	return client
}

func TestAnalyzeEmailAgainstCompatibleServer(t *testing.T) {
	srv, captured := newCompatibleServer(t, `{"phishing_score": 77, "confidence": 0.6, "explanation": "spoofed brand"}`, http.StatusOK)
	client := newTestClient(t, srv.URL)
	assert.Equal(t, "openai", client.Name())

	email := &core.Email{
		From:    "billing@paypa1.com",
		To:      []string{"victim@example.com"},
		Subject: "Payment failed",
		Body:    "Your payment failed, verify your card details at the link below.",
	}
	got, err := client.AnalyzeEmail(context.Background(), email)
	require.NoError(t, err)

	assert.Equal(t, 77.0, got.Score)
	assert.Equal(t, 0.6, got.Confidence)
	assert.Equal(t, "spoofed brand", got.Explanation)
	assert.Equal(t, "local-model", got.ModelUsed)

	assert.Equal(t, "local-model", captured.Model)
	require.Len(t, captured.Messages, 2)
	assert.Equal(t, utils.SystemPrompt, captured.Messages[0].Content)
	assert.Contains(t, captured.Messages[1].Content, "From: billing@paypa1.com")
	assert.Contains(t, captured.Messages[1].Content, "Content truncated")
}

func TestAnalyzeEmailServerError(t *testing.T) {
	srv, _ := newCompatibleServer(t, "", http.StatusInternalServerError)
	client := newTestClient(t, srv.URL)

	_, err := client.AnalyzeEmail(context.Background(), &core.Email{Body: "hello"})
	assert.Error(t, err)
}

func TestAnalyzeEmailUnparseableReply(t *testing.T) {
	srv, _ := newCompatibleServer(t, "I am not able to answer that.", http.StatusOK)
	client := newTestClient(t, srv.URL)

	_, err := client.AnalyzeEmail(context.Background(), &core.Email{Body: "hello"})
	assert.Error(t, err)
}

func TestFactoryRequiresKeyOrBaseURL(t *testing.T) {
	cfg := config.NewFromViper(config.NewEmptyViper())
	_, err := NewFactory(cfg, zap.NewNop(), utils.NewTextProcessor(nil)).CreateLLMClient()
	assert.Error(t, err)

	cfg.Set("openai.api_key", "sk-test")
	cfg.Set("openai.model_name", "")
	client, err := NewFactory(cfg, zap.NewNop(), utils.NewTextProcessor(nil)).CreateLLMClient()
	require.NoError(t, err)
	assert.Equal(t, defaultModel, client.(*OpenAIClient).modelName)
}
