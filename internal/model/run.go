package model

import "time"

// RunStatus report run status
type RunStatus string

const (
	RunStatusProcessing RunStatus = "processing"
	RunStatusSuccess    RunStatus = "success"
	RunStatusFailed     RunStatus = "failed"
)

// ReportRun one report generation, as recorded in the run log
type ReportRun struct {
	ID         string       `json:"id"`
	Source     string       `json:"source"` // web, cli
	FileName   string       `json:"fileName"`
	FileSize   int64        `json:"fileSize"`
	FileHash   string       `json:"fileHash"`
	Format     SourceFormat `json:"format,omitempty"`
	SheetName  string       `json:"sheetName,omitempty"`
	Threshold  float64      `json:"threshold"`
	ZeroDemand string       `json:"zeroDemand"`

	TotalRows      int `json:"totalRows"`
	DeficitRows    int `json:"deficitRows"`
	InactiveRows   int `json:"inactiveRows"`
	ZeroDemandRows int `json:"zeroDemandRows"`
	Warnings       int `json:"warnings"`

	OutputName   string     `json:"outputName,omitempty"`
	Status       RunStatus  `json:"status"`
	ErrorMessage string     `json:"errorMessage,omitempty"`
	StartedAt    time.Time  `json:"startedAt"`
	CompletedAt  *time.Time `json:"completedAt,omitempty"`
}
