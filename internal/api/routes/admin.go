package routes

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// AddAdminRoutes registers the metrics endpoint and runtime log level control
func AddAdminRoutes(router *gin.Engine, level zap.AtomicLevel, logger *zap.Logger) {
	router.POST("/log-level", func(c *gin.Context) {
		var lvl zapcore.Level
		if err := lvl.UnmarshalText([]byte(c.Query("level"))); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid level"})
			return
		}
		level.SetLevel(lvl)
		logger.Info("Log level changed", zap.String("level", lvl.String()))
		c.JSON(http.StatusOK, gin.H{"new_level": lvl.String()})
	})

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
}
