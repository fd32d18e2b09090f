package routes

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/mikey/llm-phish-filter/internal/adapters/report"
)

type reportHandler struct {
	reporter Submitter
	logger   *zap.Logger
}

func (h *reportHandler) submit(c *gin.Context) {
	var rep report.Report
	if err := c.ShouldBindJSON(&rep); err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"detail": err.Error()})
		return
	}

	outcome, err := h.reporter.Submit(c.Request.Context(), &rep)
	if err != nil {
		h.logger.Error("Failed to accept phishing report",
			zap.String("message_id", rep.MessageID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "failed to accept report"})
		return
	}

	status := http.StatusAccepted
	if outcome == report.OutcomeDuplicate {
		status = http.StatusOK
	}
	c.JSON(status, gin.H{"status": string(outcome), "message_id": rep.MessageID})
}
