package middleware

import (
	"bytes"
	"io"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const maxLoggedBody = 1024

// LoggingMiddleware logs every request. Bodies and headers are only captured
// when the logger has debug enabled.
func LoggingMiddleware(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		method := c.Request.Method
		debug := logger.Core().Enabled(zap.DebugLevel)

		var blw *bodyLogWriter
		if debug {
			var bodyBytes []byte
			if c.Request.Body != nil {
				b, err := io.ReadAll(c.Request.Body)
				if err != nil {
					logger.Error("failed to read request body", zap.Error(err))
				}
				bodyBytes = b
				c.Request.Body = io.NopCloser(bytes.NewBuffer(b))
			}
			blw = &bodyLogWriter{body: bytes.NewBuffer(nil), ResponseWriter: c.Writer}
			c.Writer = blw

			logger.Debug("Incoming request",
				zap.String("method", method),
				zap.String("path", path),
				zap.String("client_ip", c.ClientIP()),
				zap.Any("headers", c.Request.Header),
				zap.String("body", string(truncateBody(bodyBytes, maxLoggedBody))),
			)
		}

		c.Next()

		fields := []zap.Field{
			zap.String("method", method),
			zap.String("path", path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("duration", time.Since(start)),
		}
		if blw != nil {
			fields = append(fields, zap.String("body", string(truncateBody(blw.body.Bytes(), maxLoggedBody))))
		}
		if len(c.Errors) > 0 {
			fields = append(fields, zap.String("errors", c.Errors.String()))
		}
		logger.Info("Response sent", fields...)
	}
}

type bodyLogWriter struct {
	gin.ResponseWriter
	body *bytes.Buffer
}

func (w bodyLogWriter) Write(b []byte) (int, error) {
	w.body.Write(b)
	return w.ResponseWriter.Write(b)
}

func (w bodyLogWriter) WriteString(s string) (int, error) {
	w.body.WriteString(s)
	return w.ResponseWriter.WriteString(s)
}

func truncateBody(body []byte, limit int) []byte {
	if len(body) > limit {
		return append(body[:limit:limit], []byte("...")...)
	}
	return body
}
