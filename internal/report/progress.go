package report

// ProgressEvent report generation progress (shown by the UI)
type ProgressEvent struct {
	Percent int    `json:"percent"`
	Stage   string `json:"stage"`
}

// Stage names, in pipeline order.
const (
	StageDecode   = "decode"
	StageResolve  = "resolve"
	StageClassify = "classify"
	StageExport   = "export"
	StageDone     = "done"
)

func reportProgress(progress func(ProgressEvent), percent int, stage string) {
	if progress == nil {
		return
	}
	if percent < 0 {
		percent = 0
	}
	if percent > 100 {
		percent = 100
	}
	progress(ProgressEvent{
		Percent: percent,
		Stage:   stage,
	})
}
