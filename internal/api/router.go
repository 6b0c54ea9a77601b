package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/qubiclite/iam/internal/health"
	"go.uber.org/zap"
)

// Readiness reports the state of the services iamd depends on.
type Readiness interface {
	Ready() bool
	Snapshot() []health.DependencyStatus
}

// RouterConfig holds the HTTP surface configuration of iamd.
type RouterConfig struct {
	CORSOrigins  []string
	Limiter      *ClientLimiter // nil disables rate limiting
	MaxBodyBytes int64          // 0 means 64 KiB
	Readiness    Readiness      // nil always reports ready
}

// NewRouter builds the iamd Gin engine with health, metrics and the
// versioned stream API.
func NewRouter(cfg RouterConfig, streams *StreamHandler, logger *zap.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(requestLogger(logger))
	r.Use(PrometheusMiddleware())
	if len(cfg.CORSOrigins) > 0 {
		r.Use(cors.New(cors.Config{
			AllowOrigins:     cfg.CORSOrigins,
			AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowHeaders:     []string{"Origin", "Content-Type", "Accept"},
			AllowCredentials: !containsWildcard(cfg.CORSOrigins),
			MaxAge:           12 * time.Hour,
		}))
	}

	maxBody := cfg.MaxBodyBytes
	if maxBody <= 0 {
		maxBody = 64 << 10
	}
	r.Use(func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBody)
		c.Next()
	})

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "service": "iamd"})
	})
	r.GET("/readyz", func(c *gin.Context) {
		if cfg.Readiness == nil {
			c.JSON(http.StatusOK, gin.H{"status": "ready"})
			return
		}
		code, status := http.StatusOK, "ready"
		if !cfg.Readiness.Ready() {
			code, status = http.StatusServiceUnavailable, "degraded"
		}
		c.JSON(code, gin.H{"status": status, "dependencies": cfg.Readiness.Snapshot()})
	})
	r.GET("/metrics", MetricsHandler())

	v1 := r.Group("/api/v1")
	if cfg.Limiter != nil {
		v1.Use(cfg.Limiter.Middleware())
	}
	streams.Register(v1)
	return r
}

// requestLogger logs one line per request.
func requestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Info("http",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
		)
	}
}

func containsWildcard(origins []string) bool {
	for _, o := range origins {
		if strings.TrimSpace(o) == "*" {
			return true
		}
	}
	return false
}
