package router

import (
	"net/http"
	"os"
	"time"

	"github.com/gin-gonic/gin"
)

// Track server start time for uptime calculations
var startTime = time.Now()

// setupHealthRoutes registers health check endpoints
func (r *Router) setupHealthRoutes() {
	readiness := gin.WrapF(r.Container.Health.HTTPHandler())

	// Register both health endpoint paths for compatibility
	r.Engine.GET("/health", readiness)
	r.Engine.GET("/api/v1/health", readiness)

	// Liveness only reports that the process serves requests
	r.Engine.GET("/livez", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"version": os.Getenv("APP_VERSION"),
			"env":     r.Config.Server.Env,
			"uptime":  time.Since(startTime).Round(time.Second).String(),
		})
	})
}
