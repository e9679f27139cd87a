package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"swsmreport/internal/calculator"
	"swsmreport/internal/model"
	"swsmreport/internal/parser"
	"swsmreport/internal/report"
	"swsmreport/internal/service/excel"
)

const (
	xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	previewRows     = 50
	maxWarnings     = 100
)

// requestError an invalid request, answered with its status and message
type requestError struct {
	status int
	msg    string
}

func (e *requestError) Error() string { return e.msg }

// ReportResponse result of one generated report
type ReportResponse struct {
	RunID       string             `json:"runId"`
	OutputName  string             `json:"outputName"`
	DownloadURL string             `json:"downloadUrl"`
	Threshold   float64            `json:"threshold"`
	ZeroDemand  string             `json:"zeroDemand"`
	Format      model.SourceFormat `json:"format"`
	SheetName   string             `json:"sheetName,omitempty"`

	TotalRows      int   `json:"totalRows"`
	DeficitCount   int   `json:"deficitCount"`
	InactiveCount  int   `json:"inactiveCount"`
	ZeroDemandRows []int `json:"zeroDemandRows"`

	Mappings    []parser.FieldMapping `json:"mappings"`
	Ambiguities []parser.Ambiguity    `json:"ambiguities"`
	Unmapped    []model.SemanticField `json:"unmapped"`

	WarningCount int      `json:"warningCount"`
	Warnings     []string `json:"warnings"` // first 100

	Deficit  []model.DeficitRow  `json:"deficit"`  // first 50
	Inactive []model.InactiveRow `json:"inactive"` // first 50
}

type streamEvent struct {
	Type      string    `json:"type"` // start/progress/done/error
	Message   string    `json:"message"`
	Data      any       `json:"data"`
	Timestamp time.Time `json:"timestamp"`
}

// GenerateReport generates a report from an uploaded export
// POST /api/report
func (h *Handler) GenerateReport(c *gin.Context) {
	opts, err := h.parseReportRequest(c)
	if err != nil {
		h.respondError(c, err)
		return
	}

	result, err := h.coord.Run(c.Request.Context(), *opts)
	if err != nil {
		h.respondError(c, err)
		return
	}

	resp, err := h.publish(c, result, opts)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// GenerateReportStream generates a report, streaming progress as SSE
// POST /api/report/stream
func (h *Handler) GenerateReportStream(c *gin.Context) {
	opts, err := h.parseReportRequest(c)
	if err != nil {
		h.respondError(c, err)
		return
	}

	flusher, ok := c.Writer.(http.Flusher)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "streaming not supported"})
		return
	}

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)

	send := func(event streamEvent) {
		event.Timestamp = h.clock.Now()
		b, err := json.Marshal(event)
		if err != nil {
			return
		}
		fmt.Fprintf(c.Writer, "data: %s\n\n", b)
		flusher.Flush()
	}

	send(streamEvent{
		Type:    "start",
		Message: "report started",
		Data: map[string]any{
			"fileName":  opts.FileName,
			"threshold": opts.Threshold,
		},
	})

	lastPercent := -1
	opts.Progress = func(p report.ProgressEvent) {
		if p.Percent == lastPercent {
			return
		}
		lastPercent = p.Percent
		send(streamEvent{
			Type:    "progress",
			Message: p.Stage,
			Data:    map[string]any{"percent": p.Percent},
		})
	}

	result, err := h.coord.Run(c.Request.Context(), *opts)
	if err != nil {
		send(streamEvent{Type: "error", Message: err.Error(), Data: errorDetails(err)})
		return
	}

	resp, err := h.publish(c, result, opts)
	if err != nil {
		send(streamEvent{Type: "error", Message: err.Error(), Data: map[string]any{}})
		return
	}
	send(streamEvent{Type: "done", Message: "report ready", Data: resp})
}

// DownloadReport one-time download of a generated report
// GET /api/report/download/:token
func (h *Handler) DownloadReport(c *gin.Context) {
	token := c.Param("token")
	if token == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing token"})
		return
	}

	item, ok := h.downloads.take(token)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "download link expired"})
		return
	}
	defer os.Remove(item.filePath)

	if _, err := os.Stat(item.filePath); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "report file not found"})
		return
	}

	c.Header("Content-Disposition", contentDisposition(item.fileName))
	c.Header("Content-Type", xlsxContentType)
	c.File(item.filePath)
}

func (h *Handler) parseReportRequest(c *gin.Context) (*report.Options, error) {
	fh, err := c.FormFile("file")
	if err != nil {
		return nil, &requestError{http.StatusBadRequest, "missing upload field \"file\""}
	}

	maxBytes := int64(h.cfg.Report.MaxUploadMB) << 20
	if fh.Size > maxBytes {
		return nil, &requestError{http.StatusRequestEntityTooLarge, fmt.Sprintf("file is larger than %d MB", h.cfg.Report.MaxUploadMB)}
	}
	f, err := fh.Open()
	if err != nil {
		return nil, fmt.Errorf("open upload: %w", err)
	}
	defer f.Close()
	data, err := io.ReadAll(io.LimitReader(f, maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read upload: %w", err)
	}
	if int64(len(data)) > maxBytes {
		return nil, &requestError{http.StatusRequestEntityTooLarge, fmt.Sprintf("file is larger than %d MB", h.cfg.Report.MaxUploadMB)}
	}

	threshold, err := h.defaultThreshold()
	if err != nil {
		return nil, err
	}
	if v := strings.TrimSpace(c.PostForm("threshold")); v != "" {
		threshold, err = strconv.ParseFloat(v, 64)
		if err != nil {
			return nil, &requestError{http.StatusBadRequest, fmt.Sprintf("threshold %q is not a number", v)}
		}
	}
	if err := calculator.ValidateThreshold(threshold); err != nil {
		return nil, err
	}

	policy := h.cfg.ZeroDemandPolicy()
	if v := c.PostForm("zeroDemand"); v != "" {
		policy, err = calculator.ParseZeroDemandPolicy(v)
		if err != nil {
			return nil, &requestError{http.StatusBadRequest, err.Error()}
		}
	}

	decode := excel.DecodeOptions{
		Sheet:      h.cfg.Report.Sheet,
		HeaderRows: h.cfg.Report.HeaderRows,
	}
	if v := strings.TrimSpace(c.PostForm("sheet")); v != "" {
		decode.Sheet = v
	}
	if v := strings.TrimSpace(c.PostForm("headerRows")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return nil, &requestError{http.StatusBadRequest, fmt.Sprintf("headerRows %q must be a positive integer", v)}
		}
		decode.HeaderRows = n
	}

	return &report.Options{
		FileName:   fh.Filename,
		Data:       data,
		Threshold:  threshold,
		ZeroDemand: policy,
		Decode:     decode,
		Source:     report.SourceWeb,
	}, nil
}

// defaultThreshold the threshold saved from the UI, else the configured one
func (h *Handler) defaultThreshold() (float64, error) {
	if h.store == nil {
		return h.cfg.Report.Threshold, nil
	}
	t, err := h.store.DefaultThreshold(h.cfg.Report.Threshold)
	if err != nil {
		return 0, fmt.Errorf("load default threshold: %w", err)
	}
	return t, nil
}

// publish stores the workbook for download and builds the response.
func (h *Handler) publish(c *gin.Context, result *report.Result, opts *report.Options) (*ReportResponse, error) {
	token, err := h.downloads.put(result.RunID, result.OutputName, result.Workbook, downloadTTL)
	if err != nil {
		return nil, err
	}
	prefix := strings.TrimSuffix(c.FullPath(), "/report")
	prefix = strings.TrimSuffix(prefix, "/report/stream")
	if prefix == "" {
		prefix = "/api"
	}

	cls := result.Classification
	resp := &ReportResponse{
		RunID:          result.RunID,
		OutputName:     result.OutputName,
		DownloadURL:    fmt.Sprintf("%s/report/download/%s", prefix, token),
		Threshold:      cls.Threshold,
		ZeroDemand:     string(opts.ZeroDemand),
		Format:         result.Format,
		SheetName:      result.SheetName,
		TotalRows:      result.TotalRows,
		DeficitCount:   len(cls.Deficit),
		InactiveCount:  len(cls.Inactive),
		ZeroDemandRows: cls.ZeroDemandRows,
		Mappings:       result.Resolution.Ordered(),
		Ambiguities:    result.Resolution.Ambiguities,
		Unmapped:       result.Resolution.Unmapped,
		WarningCount:   len(result.Warnings),
		Warnings:       []string{},
		Deficit:        cls.Deficit[:min(len(cls.Deficit), previewRows)],
		Inactive:       cls.Inactive[:min(len(cls.Inactive), previewRows)],
	}
	if resp.Ambiguities == nil {
		resp.Ambiguities = []parser.Ambiguity{}
	}
	if resp.ZeroDemandRows == nil {
		resp.ZeroDemandRows = []int{}
	}
	if resp.Unmapped == nil {
		resp.Unmapped = []model.SemanticField{}
	}
	for _, w := range result.Warnings[:min(len(result.Warnings), maxWarnings)] {
		resp.Warnings = append(resp.Warnings, w.String())
	}
	return resp, nil
}

func (h *Handler) respondError(c *gin.Context, err error) {
	var reqErr *requestError
	switch {
	case errors.As(err, &reqErr):
		c.JSON(reqErr.status, gin.H{"error": reqErr.msg})
	case report.IsInputError(err):
		body := gin.H{"error": err.Error()}
		for k, v := range errorDetails(err) {
			body[k] = v
		}
		c.JSON(http.StatusUnprocessableEntity, body)
	default:
		h.logger.Error("report request failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}

// errorDetails extra fields that help fix the source export
func errorDetails(err error) map[string]any {
	details := map[string]any{}
	var unresolved *parser.UnresolvedFieldError
	if errors.As(err, &unresolved) {
		details["missingFields"] = unresolved.Missing
		details["fragments"] = unresolved.Fragments
		details["availableHeaders"] = unresolved.Available
	}
	return details
}

// contentDisposition attachment header with an ASCII fallback and an RFC 5987 name
func contentDisposition(fileName string) string {
	fallback := strings.Map(func(r rune) rune {
		if r < 0x20 || r > 0x7e || r == '"' || r == '\\' {
			return '_'
		}
		return r
	}, fileName)
	return fmt.Sprintf("attachment; filename=\"%s\"; filename*=UTF-8''%s", fallback, url.PathEscape(fileName))
}
