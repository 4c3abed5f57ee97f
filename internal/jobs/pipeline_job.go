package jobs

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"

	"github.com/cloo-solutions/reelrag/internal/domain"
	"github.com/cloo-solutions/reelrag/internal/telemetry"
	"github.com/getsentry/sentry-go"
)

// PipelineRunner executes one full pipeline run.
type PipelineRunner interface {
	Run(ctx context.Context) *domain.RunReport
}

// PipelineJob serializes pipeline runs within the process. It backs both the
// scheduler and on-demand triggers.
type PipelineJob struct {
	runner PipelineRunner

	running sync.Mutex

	mu   sync.RWMutex
	last *domain.RunReport
}

func NewPipelineJob(runner PipelineRunner) *PipelineJob {
	return &PipelineJob{runner: runner}
}

// RunOnce runs the pipeline unless a run is already in progress, in which
// case it returns domain.ErrPipelineRunning without waiting.
func (j *PipelineJob) RunOnce(ctx context.Context) (*domain.RunReport, error) {
	if j.runner == nil {
		return nil, domain.ErrPipelineUnconfigured
	}
	if !j.running.TryLock() {
		return nil, domain.ErrPipelineRunning
	}
	defer j.running.Unlock()

	ctx, span := telemetry.StartTransaction(ctx, "pipeline.run", "pipeline")
	defer span.End()

	report := j.runner.Run(ctx)
	if report.Failed() {
		span.SetStatus(sentry.SpanStatusInternalError)
	} else {
		span.SetStatus(sentry.SpanStatusOK)
	}

	j.mu.Lock()
	j.last = report
	j.mu.Unlock()

	log.Printf("pipeline: run %s %s in %v (fetched=%d kept=%d transcribed=%d stored=%d chunked=%d errors=%d)",
		report.RunID, report.Status, report.Elapsed, report.Fetched, report.Kept,
		report.Transcribed, report.Stored, report.Chunked, len(report.Errors))

	if !report.Failed() && len(report.Errors) > 0 {
		telemetry.CaptureMessage(ctx, fmt.Sprintf("pipeline run %s finished with %d item errors", report.RunID, len(report.Errors)))
	}

	return report, nil
}

// ProcessJobs implements JobProcessor for the scheduler. An overlapping tick
// is skipped.
func (j *PipelineJob) ProcessJobs(ctx context.Context) error {
	report, err := j.RunOnce(ctx)
	if errors.Is(err, domain.ErrPipelineRunning) {
		log.Println("pipeline: previous run still in progress, skipping tick")
		return nil
	}
	if err != nil {
		return err
	}
	if report.Failed() {
		return fmt.Errorf("pipeline run %s failed: %v", report.RunID, report.ErrorStrings())
	}
	return nil
}

// LastReport returns the most recent run report, or nil before the first run.
func (j *PipelineJob) LastReport() *domain.RunReport {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.last
}
