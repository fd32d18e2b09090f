package routes

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/mikey/llm-phish-filter/internal/adapters/filter"
	"github.com/mikey/llm-phish-filter/internal/core"
	"github.com/mikey/llm-phish-filter/internal/scoring"
	"github.com/mikey/llm-phish-filter/internal/utils"
)

// AnalyzeRequest is a pre-parsed message submitted for scoring
type AnalyzeRequest struct {
	MessageID      string                  `json:"message_id"`
	From           string                  `json:"from"`
	To             []string                `json:"to"`
	Subject        string                  `json:"subject"`
	Body           string                  `json:"body"`
	HTML           string                  `json:"html"`
	Links          []scoring.Link          `json:"links"`
	Authentication *scoring.Authentication `json:"authentication"`
}

// AnalyzeResponse carries the verdict and the indices of flagged links
type AnalyzeResponse struct {
	Result       *core.AnalysisResult `json:"result"`
	Links        []scoring.Link       `json:"links"`
	FlaggedLinks []int                `json:"flagged_links"`
}

type analyzeHandler struct {
	analyzer      Analyzer
	textProcessor *utils.TextProcessor
	logger        *zap.Logger
}

func (h *analyzeHandler) analyze(c *gin.Context) {
	email, err := h.readEmail(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": err.Error()})
		return
	}

	result, err := h.analyzer.AnalyzeEmail(c.Request.Context(), email)
	if err != nil {
		h.logger.Error("Analysis failed", zap.String("message_id", email.MessageID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "analysis failed"})
		return
	}

	flagged := h.analyzer.FlagLinks(email, result)
	if flagged == nil {
		flagged = []int{}
	}
	links := email.Links
	if links == nil {
		links = []scoring.Link{}
	}
	c.JSON(http.StatusOK, AnalyzeResponse{Result: result, Links: links, FlaggedLinks: flagged})
}

// readEmail accepts either a raw RFC 5322 message or a JSON AnalyzeRequest
func (h *analyzeHandler) readEmail(c *gin.Context) (*core.Email, error) {
	if strings.HasPrefix(c.ContentType(), "message/rfc822") {
		return filter.ParseEmail(c.Request.Body, h.textProcessor, h.logger)
	}

	var req AnalyzeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		return nil, err
	}

	email := &core.Email{
		MessageID: req.MessageID,
		From:      req.From,
		To:        req.To,
		Subject:   req.Subject,
		Body:      req.Body,
		HTML:      req.HTML,
		Auth:      req.Authentication,
		Links:     req.Links,
	}
	if email.HTML != "" {
		if email.Body == "" {
			text, err := h.textProcessor.HTMLToText(email.HTML)
			if err != nil {
				return nil, err
			}
			email.Body = text
		}
		if len(email.Links) == 0 {
			email.Links = h.textProcessor.ExtractLinks(email.HTML)
		}
	}
	return email, nil
}

func (h *analyzeHandler) markSafe(c *gin.Context) {
	id := strings.TrimPrefix(c.Param("id"), "/")
	if id == "" {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "message id is required"})
		return
	}
	if err := h.analyzer.MarkSafe(c.Request.Context(), id); err != nil {
		h.logger.Error("Failed to mark message safe", zap.String("message_id", id), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "failed to update safe list"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "safe", "message_id": id})
}

func (h *analyzeHandler) unmarkSafe(c *gin.Context) {
	id := strings.TrimPrefix(c.Param("id"), "/")
	if id == "" {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "message id is required"})
		return
	}
	if err := h.analyzer.UnmarkSafe(c.Request.Context(), id); err != nil {
		h.logger.Error("Failed to unmark message", zap.String("message_id", id), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "failed to update safe list"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "removed", "message_id": id})
}
