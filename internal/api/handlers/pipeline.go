package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/cloo-solutions/reelrag/internal/api"
	"github.com/cloo-solutions/reelrag/internal/domain"
)

// PipelineTrigger defines the interface for starting pipeline runs
type PipelineTrigger interface {
	RunOnce(ctx context.Context) (*domain.RunReport, error)
	LastReport() *domain.RunReport
}

// PipelineHandler handles pipeline HTTP requests
type PipelineHandler struct {
	trigger PipelineTrigger
}

// NewPipelineHandler creates a new PipelineHandler
func NewPipelineHandler(trigger PipelineTrigger) *PipelineHandler {
	return &PipelineHandler{trigger: trigger}
}

// RunErrorResponse is a single recorded failure
type RunErrorResponse struct {
	Stage   string `json:"stage"`
	Kind    string `json:"kind"`
	Item    string `json:"item,omitempty"`
	Message string `json:"message"`
}

// ReportResponse represents a run report in API responses
type ReportResponse struct {
	RunID              string             `json:"run_id"`
	Status             string             `json:"status"`
	Stages             []string           `json:"stages"`
	StartedAt          string             `json:"started_at"`
	FinishedAt         string             `json:"finished_at,omitempty"`
	ElapsedSeconds     float64            `json:"elapsed_seconds"`
	Fetched            int                `json:"fetched"`
	Kept               int                `json:"kept"`
	Transcribed        int                `json:"transcribed"`
	Stored             int                `json:"stored"`
	Chunked            int                `json:"chunked"`
	UsedFallbackSource bool               `json:"used_fallback_source"`
	Errors             []RunErrorResponse `json:"errors"`
}

// Run executes one pipeline run and returns its report. The run outlives a
// disconnected client so a half-finished run is not left behind.
func (h *PipelineHandler) Run(w http.ResponseWriter, r *http.Request) {
	ctx := context.WithoutCancel(r.Context())

	report, err := h.trigger.RunOnce(ctx)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	status := http.StatusOK
	if report.Failed() {
		status = http.StatusBadGateway
	}
	api.Success(w, status, NewReportResponse(report))
}

// Last returns the report of the most recent run.
func (h *PipelineHandler) Last(w http.ResponseWriter, r *http.Request) {
	report := h.trigger.LastReport()
	if report == nil {
		api.Error(w, http.StatusNotFound, "no pipeline run yet")
		return
	}
	api.Success(w, http.StatusOK, NewReportResponse(report))
}

// NewReportResponse converts a run report to its API shape.
func NewReportResponse(report *domain.RunReport) *ReportResponse {
	stages := make([]string, len(report.Stages))
	for i, s := range report.Stages {
		stages[i] = string(s)
	}

	errs := make([]RunErrorResponse, len(report.Errors))
	for i, e := range report.Errors {
		errs[i] = RunErrorResponse{
			Stage:   string(e.Stage),
			Kind:    string(e.Kind),
			Item:    e.Item,
			Message: e.Message,
		}
	}

	resp := &ReportResponse{
		RunID:              report.RunID,
		Status:             string(report.Status),
		Stages:             stages,
		StartedAt:          report.StartedAt.UTC().Format(time.RFC3339),
		ElapsedSeconds:     report.Elapsed.Seconds(),
		Fetched:            report.Fetched,
		Kept:               report.Kept,
		Transcribed:        report.Transcribed,
		Stored:             report.Stored,
		Chunked:            report.Chunked,
		UsedFallbackSource: report.UsedFallbackSource,
		Errors:             errs,
	}
	if !report.FinishedAt.IsZero() {
		resp.FinishedAt = report.FinishedAt.UTC().Format(time.RFC3339)
	}
	return resp
}
