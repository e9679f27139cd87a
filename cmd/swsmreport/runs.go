package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

func newRunsCmd(a *app) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List recent report runs from the run log",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			w := cmd.OutOrStdout()
			st, err := a.openStore()
			if err != nil {
				return err
			}
			if st == nil {
				printMuted(w, "run log is disabled (data.run_log = false)")
				return nil
			}
			defer st.Close()

			runs, err := st.ListReportRuns(limit)
			if err != nil {
				return err
			}
			if len(runs) == 0 {
				printMuted(w, "no runs yet")
				return nil
			}

			rows := make([][]string, 0, len(runs))
			for _, r := range runs {
				result := fmt.Sprintf("%d / %d / %d", r.TotalRows, r.DeficitRows, r.InactiveRows)
				if r.ErrorMessage != "" {
					result = r.ErrorMessage
				}
				rows = append(rows, []string{
					r.StartedAt.Local().Format("2006-01-02 15:04:05"),
					r.Source,
					r.FileName,
					strconv.FormatFloat(r.Threshold, 'g', -1, 64),
					string(r.Status),
					result,
				})
			}
			fmt.Fprintln(w, renderTable([]string{"Started", "Source", "File", "Threshold", "Status", "Rows / Deficit / Inactive"}, rows))
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "number of runs to show")
	return cmd
}
