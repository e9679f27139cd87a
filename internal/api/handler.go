package api

import (
	"github.com/gin-gonic/gin"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"swsmreport/internal/config"
	"swsmreport/internal/observability"
	"swsmreport/internal/report"
	"swsmreport/internal/store"
)

// Version reported by /api/status; set at build time by the cmd package.
var Version = "dev"

// Handler report API handler
type Handler struct {
	cfg       *config.AppConfig
	store     *store.Store
	coord     *report.Coordinator
	downloads *downloadStore
	metrics   *observability.Metrics
	logger    *zap.Logger
	clock     clockwork.Clock
}

// NewHandler creates the API handler. exportDir holds generated reports until
// they are downloaded; metrics may be nil.
func NewHandler(cfg *config.AppConfig, st *store.Store, coord *report.Coordinator, exportDir string, metrics *observability.Metrics, logger *zap.Logger, clock clockwork.Clock) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Handler{
		cfg:       cfg,
		store:     st,
		coord:     coord,
		downloads: newDownloadStore(exportDir, clock, metrics),
		metrics:   metrics,
		logger:    logger,
		clock:     clock,
	}
}

// RegisterRoutes registers the API routes
func (h *Handler) RegisterRoutes(router *gin.RouterGroup) {
	router.GET("/status", h.GetStatus)

	router.GET("/config", h.GetConfig)
	router.PATCH("/config", h.UpdateConfig)

	router.POST("/report", h.GenerateReport)
	router.POST("/report/stream", h.GenerateReportStream)
	router.GET("/report/download/:token", h.DownloadReport)

	router.GET("/runs", h.ListRuns)
}

// Close removes reports that were never downloaded.
func (h *Handler) Close() {
	h.downloads.clear()
}
