package transcription

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/cloo-solutions/reelrag/internal/domain"
	"github.com/cloo-solutions/reelrag/internal/restclient"
)

const (
	DefaultAssemblyAIURL = "https://api.assemblyai.com"
	DefaultPollInterval  = 5 * time.Second
	DefaultTimeout       = 5 * time.Minute
)

// AssemblyAI job states.
const (
	statusQueued     = "queued"
	statusProcessing = "processing"
	statusCompleted  = "completed"
	statusError      = "error"
)

var (
	ErrTranscriptionFailed = errors.New("transcription job failed")
	ErrMissingJobID        = errors.New("transcription response has no job id")
	ErrUnknownStatus       = errors.New("transcription job in unknown state")
)

// AssemblyAIConfig configures the AssemblyAI client.
type AssemblyAIConfig struct {
	APIKey       string
	BaseURL      string
	PollInterval time.Duration
	Timeout      time.Duration
}

// AssemblyAI transcribes remote media by submitting a job and polling it.
type AssemblyAI struct {
	client       *restclient.Client
	pollInterval time.Duration
	timeout      time.Duration
}

type transcriptRequest struct {
	AudioURL string `json:"audio_url"`
}

type transcriptResponse struct {
	ID     string  `json:"id"`
	Status string  `json:"status"`
	Text   *string `json:"text"`
	Error  string  `json:"error"`
}

// NewAssemblyAI creates an AssemblyAI client. Zero durations use the defaults.
func NewAssemblyAI(cfg AssemblyAIConfig, opts ...restclient.Option) *AssemblyAI {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultAssemblyAIURL
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	return &AssemblyAI{
		client:       restclient.New(cfg.BaseURL, restclient.HeaderAuth("authorization", cfg.APIKey), opts...),
		pollInterval: cfg.PollInterval,
		timeout:      cfg.Timeout,
	}
}

// Transcribe submits mediaURL and waits for a terminal state or the deadline.
func (a *AssemblyAI) Transcribe(ctx context.Context, mediaURL string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	var job transcriptResponse
	if err := a.client.Post(ctx, "/v2/transcript", nil, transcriptRequest{AudioURL: mediaURL}, &job); err != nil {
		return "", err
	}
	if strings.TrimSpace(job.ID) == "" {
		return "", domain.DataShape("assemblyai", ErrMissingJobID)
	}

	ticker := time.NewTicker(a.pollInterval)
	defer ticker.Stop()

	for {
		switch job.Status {
		case statusCompleted:
			if job.Text == nil {
				return "", nil
			}
			return strings.TrimSpace(*job.Text), nil
		case statusError:
			return "", domain.DataShape("assemblyai", fmt.Errorf("%w: %s", ErrTranscriptionFailed, job.Error))
		case statusQueued, statusProcessing, "":
		default:
			return "", domain.DataShape("assemblyai", fmt.Errorf("%w: %q", ErrUnknownStatus, job.Status))
		}

		select {
		case <-ctx.Done():
			return "", domain.Transient("assemblyai", fmt.Errorf("transcription %s did not finish: %w", job.ID, ctx.Err()))
		case <-ticker.C:
		}

		id := job.ID
		if err := a.client.Get(ctx, "/v2/transcript/"+id, nil, &job); err != nil {
			return "", err
		}
		if job.ID == "" {
			job.ID = id
		}
		log.Printf("assemblyai: job %s status %s", job.ID, job.Status)
	}
}
