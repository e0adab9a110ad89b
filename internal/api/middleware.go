package api

import (
	"fmt"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/Gopher0727/LiveChat/internal/protocol"
	logger "github.com/Gopher0727/LiveChat/middleware/log"
	"github.com/Gopher0727/LiveChat/utils/ratelimit"
)

// CORS lets a browser front-end on another origin call the API and name its socket.
func CORS() gin.HandlerFunc {
	return cors.New(cors.Config{
		AllowAllOrigins: true,
		AllowMethods:    []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders:    []string{"Origin", "Content-Type", "Accept", protocol.SocketIDHeader, logger.RequestIDHeader},
		ExposeHeaders:   []string{logger.RequestIDHeader, rateLimitHeader, rateRemainingHeader, "Retry-After"},
		MaxAge:          12 * time.Hour,
	})
}

const (
	rateLimitHeader     = "X-RateLimit-Limit"
	rateRemainingHeader = "X-RateLimit-Remaining"
)

// RateLimit caps requests per client IP for one endpoint. Allowed requests
// carry the limit and the requests left in the current window.
func RateLimit(limiter ratelimit.Limiter, endpoint string, limitPerMinute int, log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		key := fmt.Sprintf("ip:%s:%s", c.ClientIP(), endpoint)

		allowed, err := limiter.Allow(ctx, key, limitPerMinute, time.Minute)
		if err != nil {
			log.ErrorContext(ctx, "rate limit check failed", zap.String("key", key), zap.Error(err))
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "rate limit check failed"})
			return
		}
		if !allowed {
			retryAfter := int(math.Ceil(limiter.RetryAfter(time.Minute).Seconds()))
			c.Header("Retry-After", strconv.Itoa(retryAfter))
			c.Header(rateLimitHeader, strconv.Itoa(limitPerMinute))
			c.Header(rateRemainingHeader, "0")
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error":       "rate limit exceeded",
				"retry_after": retryAfter,
			})
			return
		}

		c.Header(rateLimitHeader, strconv.Itoa(limitPerMinute))
		if remaining, err := limiter.Remaining(ctx, key, limitPerMinute, time.Minute); err != nil {
			log.WarnContext(ctx, "failed to read remaining requests", zap.String("key", key), zap.Error(err))
		} else {
			c.Header(rateRemainingHeader, strconv.Itoa(remaining))
		}
		c.Next()
	}
}
