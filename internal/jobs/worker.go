package jobs

import (
	"context"
	"log"
	"time"
)

// JobProcessor defines the interface for processing jobs
type JobProcessor interface {
	ProcessJobs(ctx context.Context) error
}

// Worker runs a JobProcessor on a fixed interval until stopped.
type Worker struct {
	name         string
	processor    JobProcessor
	pollInterval time.Duration
	runOnStart   bool
	stopChan     chan struct{}
	doneChan     chan struct{}
}

// WorkerOption configures a Worker.
type WorkerOption func(*Worker)

// WithRunOnStart makes the worker process once before the first tick.
func WithRunOnStart() WorkerOption {
	return func(w *Worker) {
		w.runOnStart = true
	}
}

// NewWorker creates a new Worker instance
func NewWorker(name string, processor JobProcessor, pollInterval time.Duration, opts ...WorkerOption) *Worker {
	w := &Worker{
		name:         name,
		processor:    processor,
		pollInterval: pollInterval,
		stopChan:     make(chan struct{}),
		doneChan:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Start blocks, processing on every tick until ctx is done or Stop is called.
func (w *Worker) Start(ctx context.Context) {
	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()
	defer close(w.doneChan)

	log.Printf("%s: worker started with interval %v", w.name, w.pollInterval)

	if w.runOnStart {
		w.process(ctx)
	}

	for {
		select {
		case <-ctx.Done():
			log.Printf("%s: worker stopped: context cancelled", w.name)
			return
		case <-w.stopChan:
			log.Printf("%s: worker stopped: stop signal received", w.name)
			return
		case <-ticker.C:
			w.process(ctx)
		}
	}
}

func (w *Worker) process(ctx context.Context) {
	if err := w.processor.ProcessJobs(ctx); err != nil {
		log.Printf("%s: processing failed: %v", w.name, err)
	}
}

// Stop gracefully stops the worker
func (w *Worker) Stop() {
	close(w.stopChan)
	<-w.doneChan
	log.Printf("%s: worker shutdown complete", w.name)
}
