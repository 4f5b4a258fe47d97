package httpserver

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-chi/cors"

	"github.com/PratikDhanave/capi-relay/internal/clientinfo"
	"github.com/PratikDhanave/capi-relay/internal/config"
	"github.com/PratikDhanave/capi-relay/internal/handlers"
)

// NewRouter wires the public endpoints.
// Probes: /, /health, /ready
// Relay:  POST /api/trigger-capi (called cross-origin from the landing page)
func NewRouter(cfg config.Config, sender handlers.EventSender, logger *slog.Logger, opts ...handlers.Option) http.Handler {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(requestLogger(logger))
	r.Use(clientinfo.Middleware())

	handlers.RegisterHealthRoutes(r, cfg)

	relay := handlers.NewRelay(cfg, sender, append([]handlers.Option{handlers.WithLogger(logger)}, opts...)...)
	handlers.RegisterTriggerRoutes(r, relay)

	return cors.Handler(cors.Options{
		AllowedOrigins: cfg.CORSOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type"},
		MaxAge:         300,
	})(r)
}

// NewServer returns an http.Server for handler. The write timeout leaves room
// for a full outbound Meta call.
func NewServer(cfg config.Config, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              cfg.Addr(),
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      cfg.Timeout + 10*time.Second,
		IdleTimeout:       60 * time.Second,
	}
}

// requestLogger logs one line per request.
func requestLogger(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		logger.Info("request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
			"bytes", c.Writer.Size(),
		)
	}
}
