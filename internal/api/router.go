package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Gopher0727/LiveChat/config"
	"github.com/Gopher0727/LiveChat/internal/gateway"
	"github.com/Gopher0727/LiveChat/internal/handler"
	logger "github.com/Gopher0727/LiveChat/middleware/log"
	"github.com/Gopher0727/LiveChat/utils/ratelimit"
)

// Router bundles what NewRouter wires onto the engine. Limiter may be nil,
// which disables rate limiting.
type Router struct {
	Config         *config.Config
	Logger         *logger.Logger
	MessageHandler *handler.MessageHandler
	GatewayHandler *gateway.Handler
	Limiter        ratelimit.Limiter
}

func NewRouter(r Router) *gin.Engine {
	gin.SetMode(r.Config.Server.Mode)

	engine := gin.New()
	engine.Use(logger.GinMiddleware(r.Logger))
	engine.Use(CORS())

	engine.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	messages := engine.Group("/messages")
	{
		messages.GET("", r.MessageHandler.ListMessages)

		create := []gin.HandlerFunc{r.MessageHandler.CreateMessage}
		if r.Limiter != nil && r.Config.RateLimit.CreatePerMinute > 0 {
			create = append([]gin.HandlerFunc{
				RateLimit(r.Limiter, "create", r.Config.RateLimit.CreatePerMinute, r.Logger),
			}, create...)
		}
		messages.POST("", create...)
	}

	engine.GET("/app/:key", r.GatewayHandler.ServeWs)

	return engine
}
