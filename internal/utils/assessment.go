package utils

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/mikey/llm-phish-filter/internal/core"
)

// SystemPrompt is sent as the system message where the provider supports one
const SystemPrompt = "You are a phishing detection system. Respond only with JSON."

const promptFormat = `You are a phishing detection system. Analyze the following email and estimate how likely it is to be a phishing attempt.
Consider impersonation of brands or colleagues, credential or payment requests, urgency, and links whose text does not match their destination.
Respond with a JSON object containing:
- phishing_score: integer between 0 and 100 (higher means more likely to be phishing)
- confidence: number between 0 and 1 (how confident you are in your assessment)
- explanation: string (brief explanation of the main indicators)

Email:
From: %s
To: %s
Subject: %s
Body:
%s

Respond only with the JSON object and nothing else.`

// BuildPrompt formats the analysis prompt for an email whose body has already been
// truncated and sanitized
func BuildPrompt(email *core.Email, body string) string {
	to := ""
	if len(email.To) > 0 {
		to = email.To[0]
		if len(email.To) > 1 {
			to += fmt.Sprintf(" and %d others", len(email.To)-1)
		}
	}
	return fmt.Sprintf(promptFormat, email.From, to, email.Subject, body)
}

type assessmentResponse struct {
	PhishingScore *float64 `json:"phishing_score"`
	Score         *float64 `json:"score"`
	Confidence    float64  `json:"confidence"`
	Explanation   string   `json:"explanation"`
}

// ParseAssessment extracts a RemoteAssessment from a model reply. The reply may wrap
// the JSON object in prose or code fences. "score" is accepted in place of
// "phishing_score", and a score of at most 1 is read as a probability.
func ParseAssessment(reply, model string) (*core.RemoteAssessment, error) {
	raw, err := extractJSONObject(reply)
	if err != nil {
		return nil, err
	}

	var resp assessmentResponse
	if err := json.Unmarshal([]byte(raw), &resp); err != nil {
		return nil, fmt.Errorf("failed to parse model response as JSON: %w", err)
	}

	score := resp.PhishingScore
	if score == nil {
		score = resp.Score
	}
	if score == nil {
		return nil, errors.New("model response has no phishing_score")
	}

	value := *score
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return nil, errors.New("model response score is not a finite number")
	}
	if value > 0 && value <= 1 {
		value *= 100
	}

	return &core.RemoteAssessment{
		Score:       math.Max(0, math.Min(100, value)),
		Confidence:  math.Max(0, math.Min(1, resp.Confidence)),
		Explanation: strings.TrimSpace(resp.Explanation),
		ModelUsed:   model,
	}, nil
}

// extractJSONObject returns the text between the first '{' and the last '}'
func extractJSONObject(text string) (string, error) {
	start := strings.IndexByte(text, '{')
	end := strings.LastIndexByte(text, '}')
	if start < 0 || end <= start {
		return "", errors.New("failed to extract JSON from model response")
	}
	return text[start : end+1], nil
}
