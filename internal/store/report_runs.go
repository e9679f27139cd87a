package store

import (
	"database/sql"
	"fmt"
	"time"

	"swsmreport/internal/model"
)

// CreateReportRun inserts a run in the processing state
func (s *Store) CreateReportRun(run *model.ReportRun) error {
	if run.Status == "" {
		run.Status = model.RunStatusProcessing
	}
	_, err := s.db.Exec(`
		INSERT INTO report_runs (id, source, file_name, file_size, file_hash, threshold, zero_demand, status, started_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, run.ID, run.Source, run.FileName, run.FileSize, run.FileHash, run.Threshold, run.ZeroDemand, string(run.Status), run.StartedAt.UTC())
	if err != nil {
		return fmt.Errorf("failed to create report run: %w", err)
	}
	return nil
}

// FinishReportRun records the outcome of a run
func (s *Store) FinishReportRun(run *model.ReportRun, completedAt time.Time) error {
	completed := completedAt.UTC()
	res, err := s.db.Exec(`
		UPDATE report_runs SET
			format = ?,
			sheet_name = ?,
			total_rows = ?,
			deficit_rows = ?,
			inactive_rows = ?,
			zero_demand_rows = ?,
			warnings = ?,
			output_name = ?,
			status = ?,
			error_message = ?,
			completed_at = ?
		WHERE id = ?
	`, string(run.Format), run.SheetName, run.TotalRows, run.DeficitRows, run.InactiveRows, run.ZeroDemandRows,
		run.Warnings, run.OutputName, string(run.Status), run.ErrorMessage, completed, run.ID)
	if err != nil {
		return fmt.Errorf("failed to update report run: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("report run %s not found", run.ID)
	}
	run.CompletedAt = &completed
	return nil
}

const reportRunColumns = `id, source, file_name, file_size, file_hash, format, sheet_name, threshold, zero_demand,
	total_rows, deficit_rows, inactive_rows, zero_demand_rows, warnings, output_name, status, error_message,
	started_at, completed_at`

// GetReportRun returns one run by id
func (s *Store) GetReportRun(id string) (*model.ReportRun, error) {
	row := s.db.QueryRow(`SELECT `+reportRunColumns+` FROM report_runs WHERE id = ?`, id)
	run, err := scanReportRun(row)
	if err != nil {
		return nil, fmt.Errorf("failed to get report run %s: %w", id, err)
	}
	return run, nil
}

// ListReportRuns returns the latest runs, newest first
func (s *Store) ListReportRuns(limit int) ([]*model.ReportRun, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.Query(`SELECT `+reportRunColumns+` FROM report_runs ORDER BY started_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list report runs: %w", err)
	}
	defer rows.Close()

	runs := []*model.ReportRun{}
	for rows.Next() {
		run, err := scanReportRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// CountReportRuns returns the number of recorded runs
func (s *Store) CountReportRuns() (int, error) {
	var n int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM report_runs`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count report runs: %w", err)
	}
	return n, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanReportRun(row rowScanner) (*model.ReportRun, error) {
	var (
		run       model.ReportRun
		format    string
		status    string
		completed sql.NullTime
	)
	err := row.Scan(
		&run.ID, &run.Source, &run.FileName, &run.FileSize, &run.FileHash, &format, &run.SheetName,
		&run.Threshold, &run.ZeroDemand, &run.TotalRows, &run.DeficitRows, &run.InactiveRows,
		&run.ZeroDemandRows, &run.Warnings, &run.OutputName, &status, &run.ErrorMessage,
		&run.StartedAt, &completed,
	)
	if err != nil {
		return nil, err
	}
	run.Format = model.SourceFormat(format)
	run.Status = model.RunStatus(status)
	if completed.Valid {
		t := completed.Time
		run.CompletedAt = &t
	}
	return &run, nil
}
