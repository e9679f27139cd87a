package report

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"swsmreport/internal/calculator"
	"swsmreport/internal/model"
	"swsmreport/internal/observability"
	"swsmreport/internal/parser"
	"swsmreport/internal/service/excel"
	"swsmreport/internal/store"
)

// Run sources recorded in the run log.
const (
	SourceWeb = "web"
	SourceCLI = "cli"
)

// Options one report generation
type Options struct {
	FileName   string
	Data       []byte
	Threshold  float64
	ZeroDemand calculator.ZeroDemandPolicy
	Decode     excel.DecodeOptions
	Source     string

	Progress func(ProgressEvent)
}

// Result a generated report
type Result struct {
	RunID       string    `json:"runId"`
	OutputName  string    `json:"outputName"`
	GeneratedAt time.Time `json:"generatedAt"`

	Format     model.SourceFormat `json:"format"`
	SheetName  string             `json:"sheetName,omitempty"`
	TotalRows  int                `json:"totalRows"`
	Resolution *parser.Resolution `json:"resolution"`

	Classification *model.Classification    `json:"classification"`
	Warnings       []model.CoercionWarning `json:"warnings"`

	// Workbook is the xlsx file content.
	Workbook []byte `json:"-"`
}

// Coordinator runs decode, resolve, classify and export for one upload at a time.
// It holds no per-report state, so one Coordinator serves concurrent requests.
type Coordinator struct {
	store    *store.Store
	metrics  *observability.Metrics
	logger   *zap.Logger
	clock    clockwork.Clock
	exporter *excel.Exporter
}

// NewCoordinator creates a coordinator. store and metrics may be nil to
// disable the run log and metrics; a nil logger or clock gets a no-op logger
// and the real clock.
func NewCoordinator(store *store.Store, metrics *observability.Metrics, logger *zap.Logger, clock clockwork.Clock) *Coordinator {
	if logger == nil {
		logger = zap.NewNop()
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Coordinator{
		store:    store,
		metrics:  metrics,
		logger:   logger,
		clock:    clock,
		exporter: excel.NewExporter(),
	}
}

// Inspect decodes the input and resolves its columns without classifying.
func Inspect(data []byte, opts excel.DecodeOptions) (*model.RawTable, *parser.Resolution, error) {
	table, err := excel.Decode(data, opts)
	if err != nil {
		return nil, nil, err
	}
	res, err := parser.Resolve(table.Headers)
	if err != nil {
		return table, nil, err
	}
	return table, res, nil
}

// Run generates one report. Any decode, resolve or threshold error aborts the
// whole run; no partial report is produced.
func (c *Coordinator) Run(ctx context.Context, opts Options) (*Result, error) {
	start := c.clock.Now()
	run := c.startRun(opts, start)
	log := c.logger.With(zap.String("run_id", run.ID), zap.String("file", opts.FileName))

	result, err := c.generate(ctx, opts, run.ID, log)
	c.finishRun(run, result, err, log)
	c.observe(result, err, c.clock.Since(start))

	if err != nil {
		log.Warn("report generation failed", zap.Error(err))
		return nil, err
	}

	log.Info("report generated",
		zap.String("output", result.OutputName),
		zap.Int("rows", result.TotalRows),
		zap.Int("deficit", len(result.Classification.Deficit)),
		zap.Int("inactive", len(result.Classification.Inactive)),
		zap.Int("warnings", len(result.Warnings)),
		zap.Duration("elapsed", c.clock.Since(start)),
	)
	return result, nil
}

func (c *Coordinator) generate(ctx context.Context, opts Options, runID string, log *zap.Logger) (*Result, error) {
	if err := calculator.ValidateThreshold(opts.Threshold); err != nil {
		return nil, err
	}

	reportProgress(opts.Progress, 5, StageDecode)
	table, err := excel.Decode(opts.Data, opts.Decode)
	if err != nil {
		return nil, err
	}
	log.Debug("input decoded",
		zap.String("format", string(table.Format)),
		zap.String("sheet", table.SheetName),
		zap.Int("columns", len(table.Headers)),
		zap.Int("rows", len(table.Rows)),
	)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	reportProgress(opts.Progress, 30, StageResolve)
	res, err := parser.Resolve(table.Headers)
	if err != nil {
		return nil, err
	}
	for _, a := range res.Ambiguities {
		log.Warn("several columns match a field, using the first",
			zap.String("field", string(a.Field)),
			zap.String("chosen", a.Chosen),
			zap.Strings("ignored", a.Ignored),
		)
	}
	for _, f := range res.Unmapped {
		log.Warn("optional column not found", zap.String("field", string(f)))
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	reportProgress(opts.Progress, 50, StageClassify)
	rows, warnings := calculator.Project(table, res)
	cls, err := calculator.Classify(rows, opts.Threshold, calculator.Options{ZeroDemand: opts.ZeroDemand})
	if err != nil {
		return nil, err
	}
	for _, w := range warnings {
		log.Debug("numeric cell treated as null", zap.Stringer("warning", w))
	}
	if n := len(cls.ZeroDemandRows); n > 0 {
		log.Warn("rows with zero daily water demand need review",
			zap.Int("count", n),
			zap.Ints("rows", cls.ZeroDemandRows),
			zap.String("policy", string(opts.ZeroDemand)),
		)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	reportProgress(opts.Progress, 75, StageExport)
	var buf bytes.Buffer
	if err := c.exporter.WriteTo(&buf, cls); err != nil {
		return nil, fmt.Errorf("write report: %w", err)
	}

	now := c.clock.Now()
	result := &Result{
		RunID:          runID,
		OutputName:     excel.ReportFileName(opts.Threshold, now),
		GeneratedAt:    now,
		Format:         table.Format,
		SheetName:      table.SheetName,
		TotalRows:      len(rows),
		Resolution:     res,
		Classification: cls,
		Warnings:       warnings,
		Workbook:       buf.Bytes(),
	}
	if result.Warnings == nil {
		result.Warnings = []model.CoercionWarning{}
	}

	reportProgress(opts.Progress, 100, StageDone)
	return result, nil
}

func (c *Coordinator) startRun(opts Options, start time.Time) *model.ReportRun {
	sum := sha256.Sum256(opts.Data)
	source := opts.Source
	if source == "" {
		source = SourceWeb
	}
	policy := opts.ZeroDemand
	if policy == "" {
		policy = calculator.ZeroDemandExclude
	}
	run := &model.ReportRun{
		ID:         uuid.New().String(),
		Source:     source,
		FileName:   filepath.Base(opts.FileName),
		FileSize:   int64(len(opts.Data)),
		FileHash:   hex.EncodeToString(sum[:]),
		Threshold:  opts.Threshold,
		ZeroDemand: string(policy),
		Status:     model.RunStatusProcessing,
		StartedAt:  start,
	}
	if c.store == nil {
		return run
	}
	if err := c.store.CreateReportRun(run); err != nil {
		c.logger.Warn("run log unavailable", zap.Error(err))
	}
	return run
}

func (c *Coordinator) finishRun(run *model.ReportRun, result *Result, runErr error, log *zap.Logger) {
	if runErr != nil {
		run.Status = model.RunStatusFailed
		run.ErrorMessage = runErr.Error()
	} else {
		run.Status = model.RunStatusSuccess
		run.Format = result.Format
		run.SheetName = result.SheetName
		run.TotalRows = result.TotalRows
		run.DeficitRows = len(result.Classification.Deficit)
		run.InactiveRows = len(result.Classification.Inactive)
		run.ZeroDemandRows = len(result.Classification.ZeroDemandRows)
		run.Warnings = len(result.Warnings)
		run.OutputName = result.OutputName
	}
	if c.store == nil {
		return
	}
	if err := c.store.FinishReportRun(run, c.clock.Now()); err != nil {
		log.Warn("failed to record run", zap.Error(err))
	}
}

func (c *Coordinator) observe(result *Result, err error, elapsed time.Duration) {
	if c.metrics == nil {
		return
	}
	c.metrics.ReportsGenerated.WithLabelValues(Outcome(err)).Inc()
	c.metrics.ReportDuration.Observe(elapsed.Seconds())
	if err != nil {
		return
	}
	c.metrics.RowsClassified.WithLabelValues(observability.SetInput).Add(float64(result.TotalRows))
	c.metrics.RowsClassified.WithLabelValues(observability.SetDeficit).Add(float64(len(result.Classification.Deficit)))
	c.metrics.RowsClassified.WithLabelValues(observability.SetInactive).Add(float64(len(result.Classification.Inactive)))
	c.metrics.CoercionWarnings.Add(float64(len(result.Warnings)))
	c.metrics.ZeroDemandRows.Add(float64(len(result.Classification.ZeroDemandRows)))
}

// Outcome maps a run error to its metrics label.
func Outcome(err error) string {
	var (
		decodeErr     *excel.DecodeError
		unresolvedErr *parser.UnresolvedFieldError
	)
	switch {
	case err == nil:
		return observability.OutcomeSuccess
	case errors.As(err, &decodeErr):
		return observability.OutcomeDecodeError
	case errors.As(err, &unresolvedErr):
		return observability.OutcomeUnresolved
	case errors.Is(err, calculator.ErrInvalidThreshold):
		return observability.OutcomeInvalid
	default:
		return observability.OutcomeError
	}
}

// IsInputError reports whether err comes from the uploaded file or the
// requested threshold rather than from the server.
func IsInputError(err error) bool {
	switch Outcome(err) {
	case observability.OutcomeDecodeError, observability.OutcomeUnresolved, observability.OutcomeInvalid:
		return true
	default:
		return false
	}
}
