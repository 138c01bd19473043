// Package api exposes a small control surface over a running harness:
// container state, lifecycle, and console streaming. It is meant to bind
// loopback while a long integration session is running.
package api

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/jarness/jarness/internal/history"
	"github.com/jarness/jarness/internal/runner"
	"github.com/jarness/jarness/pkg/config"
)

// NewRouter configures the control API router
func NewRouter(cfg config.ControlAPIConfig, r *runner.Runner, store *history.Store) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestLogger())
	if cfg.Token != "" {
		router.Use(tokenAuth(cfg.Token))
	}

	h := newHandler(r, store)

	apiGroup := router.Group("/api")
	{
		apiGroup.GET("/containers", h.listContainers)
		apiGroup.GET("/containers/:id", h.getContainer)
		apiGroup.POST("/containers/:id/start", h.startContainer)
		apiGroup.POST("/containers/:id/stop", h.stopContainer)
		apiGroup.GET("/containers/:id/console", h.consoleTail)
	}
	router.GET("/ws/console/:id", h.consoleStream)

	return router
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		slog.Debug("control api request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration", time.Since(start))
	}
}

func tokenAuth(token string) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if !strings.HasPrefix(header, "Bearer ") || strings.TrimPrefix(header, "Bearer ") != token {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		c.Next()
	}
}
