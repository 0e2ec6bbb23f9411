package api

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/relnotes/widget-tracker/internal/config"
	"github.com/relnotes/widget-tracker/internal/handler"
	"github.com/relnotes/widget-tracker/internal/middleware"
)

// SetupRoutes registers the widget API routes with bot filtering and per-IP
// rate limiting. Health routes are registered by NewServer.
func SetupRoutes(
	router *gin.Engine,
	widget *handler.WidgetHandler,
	proxy *handler.ProxyHandler,
	cfg *config.Config,
	done <-chan struct{},
) {
	window := time.Duration(cfg.RateLimit.WindowSeconds) * time.Second

	widgetGroup := router.Group("/api/widget")
	widgetGroup.Use(middleware.BotFilter())
	widgetGroup.Use(middleware.RateLimiter(cfg.RateLimit.MaxRequestsPerMinute, window, done))
	widgetGroup.GET("/posts", widget.GetPosts)
	widgetGroup.POST("/increment-views", widget.IncrementViews)

	router.POST("/api/ai-proxy", proxy.Relay)
}
