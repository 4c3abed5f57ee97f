package domain

import (
	"fmt"
	"time"
)

// RunStage is a step of a pipeline run.
type RunStage string

const (
	RunStageScrape     RunStage = "scrape"
	RunStageRank       RunStage = "rank"
	RunStageTranscribe RunStage = "transcribe"
	RunStageStore      RunStage = "store"
	RunStageEmbed      RunStage = "embed"
	RunStageDone       RunStage = "done"
	RunStageFailed     RunStage = "failed"
)

// RunStatus is the terminal state of a pipeline run.
type RunStatus string

const (
	RunStatusRunning   RunStatus = "running"
	RunStatusSucceeded RunStatus = "succeeded"
	RunStatusFailed    RunStatus = "failed"
)

// RunError is a single failure recorded during a run.
type RunError struct {
	Stage   RunStage
	Kind    ErrorKind
	Item    string // item URL, empty for stage-level errors
	Message string
}

func (e RunError) String() string {
	if e.Item == "" {
		return fmt.Sprintf("[%s/%s] %s", e.Stage, e.Kind, e.Message)
	}
	return fmt.Sprintf("[%s/%s] %s: %s", e.Stage, e.Kind, e.Item, e.Message)
}

// RunReport describes one pipeline run. It is always returned to the caller.
type RunReport struct {
	RunID              string
	Status             RunStatus
	Stages             []RunStage
	StartedAt          time.Time
	FinishedAt         time.Time
	Elapsed            time.Duration
	Fetched            int
	Kept               int
	Transcribed        int
	Stored             int
	Chunked            int
	UsedFallbackSource bool
	Errors             []RunError
}

// NewRunReport creates a report for a run starting now.
func NewRunReport(runID string, startedAt time.Time) *RunReport {
	return &RunReport{
		RunID:     runID,
		Status:    RunStatusRunning,
		Stages:    make([]RunStage, 0, 6),
		StartedAt: startedAt,
		Errors:    make([]RunError, 0),
	}
}

// Enter records that the run reached stage.
func (r *RunReport) Enter(stage RunStage) {
	r.Stages = append(r.Stages, stage)
}

// AddError records a failure. The kind is taken from err.
func (r *RunReport) AddError(stage RunStage, item string, err error) {
	if err == nil {
		return
	}
	r.Errors = append(r.Errors, RunError{
		Stage:   stage,
		Kind:    KindOf(err),
		Item:    item,
		Message: err.Error(),
	})
}

// Finish stamps the end time and terminal status.
func (r *RunReport) Finish(status RunStatus, finishedAt time.Time) {
	r.Status = status
	r.FinishedAt = finishedAt
	r.Elapsed = finishedAt.Sub(r.StartedAt)
	if status == RunStatusFailed {
		r.Enter(RunStageFailed)
	} else {
		r.Enter(RunStageDone)
	}
}

// Failed reports whether the run halted early.
func (r *RunReport) Failed() bool {
	return r.Status == RunStatusFailed
}

// ErrorStrings renders the recorded errors.
func (r *RunReport) ErrorStrings() []string {
	out := make([]string, 0, len(r.Errors))
	for _, e := range r.Errors {
		out = append(out, e.String())
	}
	return out
}

// CountErrors returns how many recorded errors have the given kind.
func (r *RunReport) CountErrors(kind ErrorKind) int {
	n := 0
	for _, e := range r.Errors {
		if e.Kind == kind {
			n++
		}
	}
	return n
}
