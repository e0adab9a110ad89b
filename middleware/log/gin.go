package logger

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/Gopher0727/LiveChat/internal/protocol"
)

// RequestIDHeader carries the trace ID in and out of the HTTP API.
const RequestIDHeader = "X-Request-ID"

// GinMiddleware tags each request with a trace ID (reusing a usable incoming
// X-Request-ID) and the caller's socket ID, logs it once completed and turns
// panics into 500s.
func GinMiddleware(l *Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		ctx := WithTraceID(c.Request.Context(), c.GetHeader(RequestIDHeader))
		ctx = WithSocketID(ctx, c.GetHeader(protocol.SocketIDHeader))
		c.Request = c.Request.WithContext(ctx)
		c.Header(RequestIDHeader, GetTraceID(ctx))

		reqLogger := l.WithContext(ctx)
		defer func() {
			if r := recover(); r != nil {
				reqLogger.Error("panic recovered",
					zap.Any("error", r),
					zap.String("path", c.Request.URL.Path),
				)
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
			}
			logRequest(reqLogger, c, time.Since(start))
		}()

		c.Next()
	}
}

func logRequest(l *Logger, c *gin.Context, latency time.Duration) {
	status := c.Writer.Status()
	fields := []zap.Field{
		zap.String("method", c.Request.Method),
		zap.String("path", c.Request.URL.Path),
		zap.Int("status", status),
		zap.Duration("latency", latency),
		zap.String("ip", c.ClientIP()),
	}
	if len(c.Errors) > 0 {
		fields = append(fields, zap.String("errors", c.Errors.String()))
	}

	switch {
	case status >= http.StatusInternalServerError:
		l.Error("server error", fields...)
	case status >= http.StatusBadRequest:
		l.Warn("client error", fields...)
	default:
		l.Info("request completed", fields...)
	}
}
