package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"swsmreport/internal/parser"
)

// StatusResponse service status
type StatusResponse struct {
	Version          string             `json:"version"`
	DefaultThreshold float64            `json:"defaultThreshold"`
	ZeroDemand       string             `json:"zeroDemand"`
	RunLog           bool               `json:"runLog"`
	TotalRuns        int                `json:"totalRuns"`
	MaxUploadMB      int                `json:"maxUploadMb"`
	Rules            []parser.MatchRule `json:"rules"` // header matching rules, for the upload page hint
}

// GetStatus returns service status
// GET /api/status
func (h *Handler) GetStatus(c *gin.Context) {
	threshold, err := h.defaultThreshold()
	if err != nil {
		h.logger.Warn("default threshold unavailable", zap.Error(err))
		threshold = h.cfg.Report.Threshold
	}

	resp := StatusResponse{
		Version:          Version,
		DefaultThreshold: threshold,
		ZeroDemand:       string(h.cfg.ZeroDemandPolicy()),
		RunLog:           h.store != nil,
		MaxUploadMB:      h.cfg.Report.MaxUploadMB,
		Rules:            parser.NewFieldMapper().Rules(),
	}
	if h.store != nil {
		if n, err := h.store.CountReportRuns(); err == nil {
			resp.TotalRuns = n
		}
	}
	c.JSON(http.StatusOK, resp)
}
