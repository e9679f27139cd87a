package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"swsmreport/internal/calculator"
	"swsmreport/internal/store"
)

// ConfigResponse editable settings
type ConfigResponse struct {
	Threshold      float64    `json:"threshold"`
	ThresholdLabel string     `json:"thresholdLabel"`
	UpdatedAt      *time.Time `json:"updatedAt,omitempty"` // nil while the config.toml value applies
	Persisted      bool       `json:"persisted"`           // false when the run log is off and the threshold cannot be changed
}

// UpdateConfigRequest partial update; nil fields are left unchanged
type UpdateConfigRequest struct {
	Threshold *float64 `json:"threshold"`
}

// GetConfig returns the editable settings
// GET /api/config
func (h *Handler) GetConfig(c *gin.Context) {
	threshold, err := h.defaultThreshold()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load config"})
		return
	}
	resp := ConfigResponse{
		Threshold:      threshold,
		ThresholdLabel: calculator.ThresholdLabel(threshold),
		Persisted:      h.store != nil,
	}
	if h.store != nil {
		st, err := h.store.GetSetting(store.KeyDefaultThreshold)
		switch {
		case err == nil:
			resp.UpdatedAt = &st.UpdatedAt
		case !errors.Is(err, store.ErrConfigNotFound):
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load config"})
			return
		}
	}
	c.JSON(http.StatusOK, resp)
}

// UpdateConfig saves the default threshold
// PATCH /api/config
func (h *Handler) UpdateConfig(c *gin.Context) {
	var req UpdateConfigRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	if req.Threshold != nil {
		if err := calculator.ValidateThreshold(*req.Threshold); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if h.store == nil {
			c.JSON(http.StatusConflict, gin.H{"error": "run log is disabled; set report.threshold in config.toml"})
			return
		}
		if err := h.store.SetDefaultThreshold(*req.Threshold); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to save threshold"})
			return
		}
	}

	h.GetConfig(c)
}
