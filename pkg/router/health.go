package router

import (
	"net/http"
	"os"
	"runtime"
	"time"

	"github.com/gin-gonic/gin"
)

// setupHealthRoutes registers health check endpoints
func (r *Router) setupHealthRoutes(v1 *gin.RouterGroup) {
	checks := r.Container.Health.GinHandler()

	// Register both health endpoint paths for compatibility
	r.Engine.GET("/health", checks)
	v1.GET("/health", checks)
	r.Engine.GET("/health/live", r.livenessHandler)
}

// livenessHandler answers as long as the process serves requests
func (r *Router) livenessHandler(c *gin.Context) {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	telegram := "disabled"
	if r.Container.Poller != nil {
		telegram = "polling"
	}

	c.JSON(http.StatusOK, gin.H{
		"status":    "ok",
		"version":   os.Getenv("APP_VERSION"),
		"env":       r.Config.Server.Env,
		"uptime":    time.Since(startTime).Round(time.Second).String(),
		"timestamp": time.Now().Format(time.RFC3339),
		"components": gin.H{
			"websocket": gin.H{
				"status":             "ok",
				"active_connections": r.Hub.ClientCount(),
			},
			"telegram": telegram,
		},
		"memory": gin.H{
			"alloc_mb":  memStats.Alloc / 1024 / 1024,
			"sys_mb":    memStats.Sys / 1024 / 1024,
			"gc_cycles": memStats.NumGC,
		},
	})
}
