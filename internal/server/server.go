package server

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"path/filepath"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"swsmreport/internal/api"
	"swsmreport/internal/config"
	"swsmreport/internal/observability"
	"swsmreport/internal/report"
	"swsmreport/internal/store"
)

//go:embed all:dist
var staticFiles embed.FS

// Options server dependencies; zero values get production defaults
type Options struct {
	Logger *zap.Logger
	Clock  clockwork.Clock

	// Metrics and Gatherer default to the global Prometheus registry.
	Metrics  *observability.Metrics
	Gatherer prometheus.Gatherer
}

// Server HTTP server
type Server struct {
	router     *gin.Engine
	httpServer *http.Server
	store      *store.Store
	api        *api.Handler
	logger     *zap.Logger
}

// NewServer creates the server, opening the run log when it is enabled.
func NewServer(cfg *config.AppConfig, opts Options) (*Server, error) {
	if !cfg.Server.DevMode {
		gin.SetMode(gin.ReleaseMode)
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Metrics == nil {
		opts.Metrics = observability.NewMetrics()
	}
	if opts.Gatherer == nil {
		opts.Gatherer = prometheus.DefaultGatherer
	}

	dataDir, err := config.EnsureDataDir(cfg)
	if err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	var st *store.Store
	if cfg.Data.RunLog {
		st, err = store.New(filepath.Join(dataDir, store.DBFileName))
		if err != nil {
			return nil, fmt.Errorf("open run log: %w", err)
		}
	}

	coord := report.NewCoordinator(st, opts.Metrics, opts.Logger, opts.Clock)
	handler := api.NewHandler(cfg, st, coord, filepath.Join(dataDir, "exports"), opts.Metrics, opts.Logger, opts.Clock)

	s := &Server{
		router: gin.New(),
		store:  st,
		api:    handler,
		logger: opts.Logger,
	}
	s.router.MaxMultipartMemory = int64(cfg.Report.MaxUploadMB) << 20
	s.setupRoutes(opts.Gatherer)

	s.httpServer = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s, nil
}

func (s *Server) setupRoutes(gatherer prometheus.Gatherer) {
	s.router.Use(gin.Recovery(), s.requestLogger())

	// CORS
	s.router.Use(func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PATCH, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	})

	s.router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy"})
	})
	s.router.GET("/readyz", s.handleReady)
	s.router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))

	apiGroup := s.router.Group("/api")
	{
		s.api.RegisterRoutes(apiGroup)
	}

	sub, _ := fs.Sub(staticFiles, "dist")
	index := func(c *gin.Context) {
		data, err := fs.ReadFile(sub, "index.html")
		if err != nil {
			c.Status(http.StatusNotFound)
			return
		}
		c.Data(http.StatusOK, "text/html; charset=utf-8", data)
	}
	s.router.GET("/", index)
	s.router.NoRoute(func(c *gin.Context) {
		if c.Request.Method != http.MethodGet {
			c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
			return
		}
		index(c)
	})
}

func (s *Server) handleReady(c *gin.Context) {
	if s.store == nil {
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
		return
	}
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()
	if err := s.store.Ping(ctx); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not ready", "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}

// requestLogger logs each request at debug level, failures at warn.
func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
		}
		if c.Writer.Status() >= http.StatusInternalServerError {
			s.logger.Warn("request failed", fields...)
			return
		}
		s.logger.Debug("request", fields...)
	}
}

// ServeHTTP serves one request, for tests.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Addr listen address
func (s *Server) Addr() string {
	return s.httpServer.Addr
}

// Run listens until Shutdown; returns nil after a graceful shutdown.
func (s *Server) Run() error {
	s.logger.Info("http server starting", zap.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown drains connections, drops undownloaded reports and closes the run log.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.httpServer.Shutdown(ctx)
	s.api.Close()
	if s.store != nil {
		err = errors.Join(err, s.store.Close())
	}
	return err
}

// GetStore returns the run log store, nil when disabled (for tests).
func (s *Server) GetStore() *store.Store {
	return s.store
}
