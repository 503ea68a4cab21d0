package server

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	commonmw "coderun/internal/common/http/middleware"
	"coderun/pkg/utils/logger"
)

// RouterConfig lists the handlers mounted on the router. Nil entries are skipped.
type RouterConfig struct {
	Socket   *SocketHandler
	Runs     *RunsController
	Health   *HealthController
	Gatherer prometheus.Gatherer
	CORS     commonmw.CORSConfig
}

// NewRouter builds the gin engine for service mode.
func NewRouter(cfg RouterConfig) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(commonmw.TraceContextMiddleware())
	router.Use(requestLogger())
	router.Use(commonmw.CORSMiddleware(cfg.CORS))

	if cfg.Socket != nil {
		router.GET("/ws", cfg.Socket.Serve)
	}
	if cfg.Health != nil {
		router.GET("/health", cfg.Health.Health)
	}
	if cfg.Gatherer != nil {
		router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{})))
	}
	if cfg.Runs != nil {
		api := router.Group("/api/v1/runs")
		api.GET("", cfg.Runs.ListRuns)
		api.GET("/:id", cfg.Runs.GetRun)
	}
	return router
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Addr         string        `yaml:"addr"`
	ReadTimeout  time.Duration `yaml:"readTimeout"`
	WriteTimeout time.Duration `yaml:"writeTimeout"`
	IdleTimeout  time.Duration `yaml:"idleTimeout"`
}

// NewHTTPServer wraps handler with the configured timeouts.
func NewHTTPServer(cfg ServerConfig, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:         cfg.Addr,
		Handler:      handler,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}

		logger.Info(
			c.Request.Context(),
			"request completed",
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
		)
	}
}
