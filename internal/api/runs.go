package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"swsmreport/internal/model"
)

// ListRuns recent report runs, newest first
// GET /api/runs?limit=50
func (h *Handler) ListRuns(c *gin.Context) {
	if h.store == nil {
		c.JSON(http.StatusOK, gin.H{"items": []*model.ReportRun{}, "total": 0})
		return
	}

	limit := 50
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 500 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be between 1 and 500"})
			return
		}
		limit = n
	}

	runs, err := h.store.ListReportRuns(limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list runs"})
		return
	}
	total, err := h.store.CountReportRuns()
	if err != nil {
		total = len(runs)
	}
	if runs == nil {
		runs = []*model.ReportRun{}
	}
	c.JSON(http.StatusOK, gin.H{"items": runs, "total": total})
}
