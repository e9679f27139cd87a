package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"swsmreport/internal/calculator"
	"swsmreport/internal/parser"
	"swsmreport/internal/report"
	"swsmreport/internal/service/excel"
)

type generateFlags struct {
	threshold  float64
	zeroDemand string
	sheet      string
	headerRows int
	outDir     string
	out        string
}

func newGenerateCmd(a *app) *cobra.Command {
	var f generateFlags

	cmd := &cobra.Command{
		Use:   "generate <input>",
		Short: "Generate the report workbook from an SWSM export",
		Long: `Reads the SWSM daily export (xlsx, or an HTML table saved as .xls) and
writes "ZERO & LESS THAN <threshold> SITES <date>.xlsx" with two sheets:
sites below the threshold and zero/inactive sites.

Example:
  swsmreport generate "jjmup (32).xls" --threshold 80 --out-dir reports`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGenerate(cmd, a, args[0], f)
		},
	}

	cmd.Flags().Float64VarP(&f.threshold, "threshold", "t", 0, "supply threshold percent, 0 < t <= 100 (default: saved or configured threshold)")
	cmd.Flags().StringVar(&f.zeroDemand, "zero-demand", "", "rows with zero daily demand: exclude or include (default from config)")
	cmd.Flags().StringVar(&f.sheet, "sheet", "", "workbook sheet to read (default: best matching sheet)")
	cmd.Flags().IntVar(&f.headerRows, "header-rows", 0, "number of header rows (default from config)")
	cmd.Flags().StringVarP(&f.outDir, "out-dir", "o", ".", "directory for the report")
	cmd.Flags().StringVar(&f.out, "out", "", "report file path (overrides --out-dir and the default name)")
	return cmd
}

func runGenerate(cmd *cobra.Command, a *app, input string, f generateFlags) error {
	w := cmd.OutOrStdout()

	data, err := os.ReadFile(input)
	if err != nil {
		return fmt.Errorf("read input: %w", err)
	}

	st, err := a.openStore()
	if err != nil {
		a.logger.Warn("run log unavailable", zap.Error(err))
		st = nil
	}
	if st != nil {
		defer st.Close()
	}

	threshold := a.cfg.Report.Threshold
	if cmd.Flags().Changed("threshold") {
		threshold = f.threshold
	} else if st != nil {
		if t, err := st.DefaultThreshold(threshold); err == nil {
			threshold = t
		}
	}

	policy := a.cfg.ZeroDemandPolicy()
	if f.zeroDemand != "" {
		if policy, err = calculator.ParseZeroDemandPolicy(f.zeroDemand); err != nil {
			return err
		}
	}

	decode := excel.DecodeOptions{Sheet: a.cfg.Report.Sheet, HeaderRows: a.cfg.Report.HeaderRows}
	if f.sheet != "" {
		decode.Sheet = f.sheet
	}
	if f.headerRows > 0 {
		decode.HeaderRows = f.headerRows
	}

	coord := report.NewCoordinator(st, nil, a.logger, nil)
	result, err := coord.Run(cmd.Context(), report.Options{
		FileName:   input,
		Data:       data,
		Threshold:  threshold,
		ZeroDemand: policy,
		Decode:     decode,
		Source:     report.SourceCLI,
	})
	if err != nil {
		printUnresolved(w, err)
		return err
	}

	outPath := f.out
	if outPath == "" {
		if err := os.MkdirAll(f.outDir, 0755); err != nil {
			return fmt.Errorf("create output dir: %w", err)
		}
		outPath = filepath.Join(f.outDir, result.OutputName)
	}
	if err := os.WriteFile(outPath, result.Workbook, 0644); err != nil {
		return fmt.Errorf("write report: %w", err)
	}

	printSummary(w, result, outPath, policy)
	return nil
}

func printSummary(w io.Writer, result *report.Result, outPath string, policy calculator.ZeroDemandPolicy) {
	cls := result.Classification
	printTitle(w, "Report written: "+outPath)

	source := string(result.Format)
	if result.SheetName != "" {
		source += " / " + result.SheetName
	}
	fmt.Fprintln(w, renderTable(
		[]string{"Sheet", "Rows"},
		[][]string{
			{"input (" + source + ")", strconv.Itoa(result.TotalRows)},
			{excel.DeficitSheetName(cls.Threshold), strconv.Itoa(len(cls.Deficit))},
			{excel.InactiveSheetName, strconv.Itoa(len(cls.Inactive))},
		},
	))

	if n := len(result.Warnings); n > 0 {
		printWarn(w, "%d numeric cells could not be parsed and were left blank", n)
		for _, warn := range result.Warnings[:min(n, 10)] {
			printMuted(w, "  %s", warn.String())
		}
	}
	if rows := cls.ZeroDemandRows; len(rows) > 0 {
		printWarn(w, "%d rows have zero daily water demand (%sd): rows %v", len(rows), policy, rows)
	}
	for _, amb := range result.Resolution.Ambiguities {
		printWarn(w, "%s matched several columns; using %q, ignoring %q", amb.Field, amb.Chosen, amb.Ignored)
	}
	printMuted(w, "run %s", result.RunID)
}

// printUnresolved lists the headers that were found when a column is missing.
func printUnresolved(w io.Writer, err error) {
	var unresolved *parser.UnresolvedFieldError
	if !errors.As(err, &unresolved) {
		return
	}
	fmt.Fprintln(w, errorStyle.Render("Required columns not found"))
	rows := make([][]string, 0, len(unresolved.Available))
	for i, h := range unresolved.Available {
		rows = append(rows, []string{strconv.Itoa(i + 1), h})
	}
	fmt.Fprintln(w, renderTable([]string{"#", "Header in file"}, rows))
}
