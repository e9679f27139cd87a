package report

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"swsmreport/internal/calculator"
	"swsmreport/internal/model"
	"swsmreport/internal/observability"
	"swsmreport/internal/parser"
	"swsmreport/internal/service/excel"
	"swsmreport/internal/store"
)

func buildInput(t *testing.T, rows ...[]any) []byte {
	t.Helper()
	wb := excelize.NewFile()
	defer wb.Close()

	header := []any{
		"Scheme ID",
		"Scheme Name",
		"Daily Water Demand (Meter3)",
		"OHT Water Supply (Meter3) Yesterday",
		"Today Water Production (Meter3)",
		"Last Data Receive Date",
	}
	require.NoError(t, wb.SetSheetRow("Sheet1", "A1", &header))
	for i, row := range rows {
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		row := row
		require.NoError(t, wb.SetSheetRow("Sheet1", cell, &row))
	}
	buf, err := wb.WriteToBuffer()
	require.NoError(t, err)
	return buf.Bytes()
}

type fixture struct {
	coord   *Coordinator
	store   *store.Store
	metrics *observability.Metrics
	clock   *clockwork.FakeClock
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	st, err := store.New(filepath.Join(t.TempDir(), store.DBFileName))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	metrics, _ := observability.NewMetricsForTesting()
	clock := clockwork.NewFakeClockAt(time.Date(2025, 12, 28, 9, 15, 0, 0, time.UTC))
	return fixture{
		coord:   NewCoordinator(st, metrics, zap.NewNop(), clock),
		store:   st,
		metrics: metrics,
		clock:   clock,
	}
}

func TestCoordinator_Run(t *testing.T) {
	fx := newFixture(t)
	data := buildInput(t,
		[]any{"S1", "Alpha", 100, 50, 0, "27-12-2025"},
		[]any{"S2", "Beta", 100, 0, 0, "20-12-2025"},
		[]any{"S3", "Gamma", 100, 90, 80, "27-12-2025"},
		[]any{"S4", "Delta", 0, 10, 10, "27-12-2025"},
		[]any{"S5", "Eps", "n/a", 10, 10, "27-12-2025"},
	)

	var events []ProgressEvent
	result, err := fx.coord.Run(context.Background(), Options{
		FileName:  "uploads/jjmup (32).xlsx",
		Data:      data,
		Threshold: 75,
		Source:    SourceCLI,
		Progress:  func(e ProgressEvent) { events = append(events, e) },
	})
	require.NoError(t, err)

	assert.Equal(t, "ZERO & LESS THAN 75 SITES 2025-12-28.xlsx", result.OutputName)
	assert.Equal(t, model.SourceFormatWorkbook, result.Format)
	assert.Equal(t, 5, result.TotalRows)
	require.Len(t, result.Warnings, 1)
	assert.Equal(t, 5, result.Warnings[0].RowNo)

	// S4 has zero demand and is excluded by default; S5's demand is null so it counts as 0%
	cls := result.Classification
	var deficitIDs []any
	for _, d := range cls.Deficit {
		deficitIDs = append(deficitIDs, d.SchemeID)
	}
	assert.Equal(t, []any{"S1", "S2", "S5"}, deficitIDs)
	require.Len(t, cls.Inactive, 1)
	assert.Equal(t, "S2", cls.Inactive[0].SchemeID)
	assert.Equal(t, "20-12-2025", cls.Inactive[0].LastDataReceiveDate)
	assert.Equal(t, []int{4}, cls.ZeroDemandRows)

	f, err := excelize.OpenReader(bytes.NewReader(result.Workbook))
	require.NoError(t, err)
	defer f.Close()
	assert.Equal(t, excel.SheetNames(75), f.GetSheetList())

	require.NotEmpty(t, events)
	assert.Equal(t, StageDecode, events[0].Stage)
	assert.Equal(t, ProgressEvent{Percent: 100, Stage: StageDone}, events[len(events)-1])
	for i := 1; i < len(events); i++ {
		assert.Greater(t, events[i].Percent, events[i-1].Percent)
	}

	run, err := fx.store.GetReportRun(result.RunID)
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusSuccess, run.Status)
	assert.Equal(t, SourceCLI, run.Source)
	assert.Equal(t, "jjmup (32).xlsx", run.FileName)
	assert.Equal(t, 3, run.DeficitRows)
	assert.Equal(t, 1, run.InactiveRows)
	assert.Equal(t, 1, run.ZeroDemandRows)
	assert.Equal(t, 1, run.Warnings)
	assert.Equal(t, result.OutputName, run.OutputName)
	assert.Len(t, run.FileHash, 64)

	assert.Equal(t, 1.0, testutil.ToFloat64(fx.metrics.ReportsGenerated.WithLabelValues(observability.OutcomeSuccess)))
	assert.Equal(t, 5.0, testutil.ToFloat64(fx.metrics.RowsClassified.WithLabelValues(observability.SetInput)))
	assert.Equal(t, 3.0, testutil.ToFloat64(fx.metrics.RowsClassified.WithLabelValues(observability.SetDeficit)))
	assert.Equal(t, 1.0, testutil.ToFloat64(fx.metrics.CoercionWarnings))
}

func TestCoordinator_ZeroDemandInclude(t *testing.T) {
	fx := newFixture(t)
	data := buildInput(t, []any{"S4", "Delta", 0, 10, 10, ""})

	result, err := fx.coord.Run(context.Background(), Options{
		FileName:   "in.xlsx",
		Data:       data,
		Threshold:  75,
		ZeroDemand: calculator.ZeroDemandInclude,
	})
	require.NoError(t, err)
	require.Len(t, result.Classification.Deficit, 1)

	run, err := fx.store.GetReportRun(result.RunID)
	require.NoError(t, err)
	assert.Equal(t, "include", run.ZeroDemand)
	assert.Equal(t, SourceWeb, run.Source)
}

func TestCoordinator_Failures(t *testing.T) {
	fx := newFixture(t)

	missingDemand := func() []byte {
		wb := excelize.NewFile()
		defer wb.Close()
		header := []any{"Scheme ID", "Scheme Name", "OHT Water Supply (Meter3) Yesterday", "Today Water Production (Meter3)"}
		require.NoError(t, wb.SetSheetRow("Sheet1", "A1", &header))
		buf, err := wb.WriteToBuffer()
		require.NoError(t, err)
		return buf.Bytes()
	}()

	cases := []struct {
		name      string
		data      []byte
		threshold float64
		outcome   string
		check     func(t *testing.T, err error)
	}{
		{
			name: "not a table", data: []byte("hello"), threshold: 75, outcome: observability.OutcomeDecodeError,
			check: func(t *testing.T, err error) {
				var decErr *excel.DecodeError
				assert.True(t, errors.As(err, &decErr))
			},
		},
		{
			name: "missing demand column", data: missingDemand, threshold: 75, outcome: observability.OutcomeUnresolved,
			check: func(t *testing.T, err error) {
				var unresolved *parser.UnresolvedFieldError
				require.True(t, errors.As(err, &unresolved))
				assert.Equal(t, model.FieldDailyWaterDemand, unresolved.Field)
			},
		},
		{
			name: "threshold out of range", data: buildInput(t), threshold: 150, outcome: observability.OutcomeInvalid,
			check: func(t *testing.T, err error) {
				assert.ErrorIs(t, err, calculator.ErrInvalidThreshold)
			},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			result, err := fx.coord.Run(context.Background(), Options{FileName: "bad.xls", Data: tc.data, Threshold: tc.threshold})
			require.Error(t, err)
			assert.Nil(t, result)
			assert.True(t, IsInputError(err))
			assert.Equal(t, tc.outcome, Outcome(err))
			tc.check(t, err)
			assert.Equal(t, 1.0, testutil.ToFloat64(fx.metrics.ReportsGenerated.WithLabelValues(tc.outcome)))
		})
	}

	runs, err := fx.store.ListReportRuns(10)
	require.NoError(t, err)
	require.Len(t, runs, 3)
	for _, r := range runs {
		assert.Equal(t, model.RunStatusFailed, r.Status)
		assert.NotEmpty(t, r.ErrorMessage)
	}
}

func TestCoordinator_CanceledContext(t *testing.T) {
	coord := NewCoordinator(nil, nil, nil, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := coord.Run(ctx, Options{Data: buildInput(t, []any{"S1", "A", 1, 1, 1}), Threshold: 75})
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, IsInputError(err))
}

func TestInspect(t *testing.T) {
	table, res, err := Inspect(buildInput(t, []any{"S1", "A", 1, 1, 1}), excel.DecodeOptions{})
	require.NoError(t, err)
	assert.Len(t, table.Rows, 1)
	assert.Equal(t, 2, res.Column(model.FieldDailyWaterDemand))
	assert.Empty(t, res.Unmapped)
}
