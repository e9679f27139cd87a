package main

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"github.com/xuri/excelize/v2"

	"swsmreport/internal/model"
	"swsmreport/internal/parser"
	"swsmreport/internal/report"
	"swsmreport/internal/service/excel"
)

func newResolveCmd(a *app) *cobra.Command {
	var (
		sheet      string
		headerRows int
	)

	cmd := &cobra.Command{
		Use:   "resolve <input>",
		Short: "Show how the export's headers map to report fields",
		Long: `Decodes the export and prints the sheet candidates, the header each
report field resolved to, and any ambiguous or missing columns. Nothing is
written.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			w := cmd.OutOrStdout()
			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read input: %w", err)
			}

			opts := excel.DecodeOptions{Sheet: a.cfg.Report.Sheet, HeaderRows: a.cfg.Report.HeaderRows}
			if sheet != "" {
				opts.Sheet = sheet
			}
			if headerRows > 0 {
				opts.HeaderRows = headerRows
			}

			if sheets := excel.ListSheets(data, opts.HeaderRows); len(sheets) > 0 {
				printTitle(w, "Sheets")
				rows := make([][]string, 0, len(sheets))
				for _, s := range sheets {
					rows = append(rows, []string{s.Name, strconv.Itoa(s.RowCount), fmt.Sprintf("%.0f%%", s.Score*100), joinFields(s.MissingFields)})
				}
				fmt.Fprintln(w, renderTable([]string{"Sheet", "Rows", "Match", "Missing"}, rows))
			}

			table, res, err := report.Inspect(data, opts)
			if err != nil {
				printUnresolved(w, err)
				return err
			}

			source := string(table.Format)
			if table.SheetName != "" {
				source += " / " + table.SheetName
			}
			printTitle(w, fmt.Sprintf("Columns (%s, %d rows)", source, len(table.Rows)))
			printMapping(w, res)
			return nil
		},
	}

	cmd.Flags().StringVar(&sheet, "sheet", "", "workbook sheet to read (default: best matching sheet)")
	cmd.Flags().IntVar(&headerRows, "header-rows", 0, "number of header rows (default from config)")
	return cmd
}

func printMapping(w io.Writer, res *parser.Resolution) {
	rows := make([][]string, 0, len(model.AllFields))
	for _, f := range model.AllFields {
		m, ok := res.Mappings[f]
		if !ok {
			rows = append(rows, []string{string(f), "-", "(not found)"})
			continue
		}
		col, _ := excelize.ColumnNumberToName(m.ColumnIndex + 1)
		rows = append(rows, []string{string(f), col, m.ColumnName})
	}
	fmt.Fprintln(w, renderTable([]string{"Field", "Column", "Header"}, rows))

	for _, amb := range res.Ambiguities {
		printWarn(w, "%s also matches %s; using %q", amb.Field, strings.Join(amb.Ignored, ", "), amb.Chosen)
	}
}
