package routes

import (
	"context"
	"net/http"
	"net/netip"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/mikey/llm-phish-filter/internal/adapters/report"
	"github.com/mikey/llm-phish-filter/internal/api/middleware"
	"github.com/mikey/llm-phish-filter/internal/core"
	"github.com/mikey/llm-phish-filter/internal/utils"
)

// Analyzer is the part of the phishing service exposed over HTTP
type Analyzer interface {
	AnalyzeEmail(ctx context.Context, email *core.Email) (*core.AnalysisResult, error)
	FlagLinks(email *core.Email, result *core.AnalysisResult) []int
	MarkSafe(ctx context.Context, messageID string) error
	UnmarkSafe(ctx context.Context, messageID string) error
}

// Submitter accepts phishing reports
type Submitter interface {
	Submit(ctx context.Context, rep *report.Report) (report.Outcome, error)
}

// Dependencies holds what the route handlers need. A nil Analyzer or Reporter
// leaves the matching routes unregistered.
type Dependencies struct {
	Analyzer      Analyzer
	Reporter      Submitter
	TextProcessor *utils.TextProcessor
	Allowlist     []netip.Prefix
	Level         zap.AtomicLevel
	Logger        *zap.Logger
}

// SetupRoutes registers the public routes
func SetupRoutes(router *gin.Engine, deps Dependencies) {
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	if deps.Reporter != nil {
		h := &reportHandler{reporter: deps.Reporter, logger: deps.Logger}
		router.POST("/report-phishing", middleware.IPAllowlist(deps.Allowlist, deps.Logger), h.submit)
	}

	if deps.Analyzer != nil {
		h := &analyzeHandler{analyzer: deps.Analyzer, textProcessor: deps.TextProcessor, logger: deps.Logger}
		router.POST("/analyze", h.analyze)
		router.PUT("/safe-list/*id", h.markSafe)
		router.DELETE("/safe-list/*id", h.unmarkSafe)
	}
}
