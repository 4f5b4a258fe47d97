package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/PratikDhanave/capi-relay/internal/config"
)

// LivenessMessage is the body of GET /.
const LivenessMessage = "CAPI relay is running!"

// RegisterHealthRoutes registers the public probe endpoints.
//
// GET /       plain-text liveness for humans and uptime checkers
// GET /health liveness: the process is serving
// GET /ready  readiness: Conversions API credentials are configured
func RegisterHealthRoutes(r gin.IRoutes, cfg config.Config) {
	r.GET("/", func(c *gin.Context) {
		c.String(http.StatusOK, LivenessMessage)
	})

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	r.GET("/ready", func(c *gin.Context) {
		if err := cfg.Validate(); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not_ready", "error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
}
