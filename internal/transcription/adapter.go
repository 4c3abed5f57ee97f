package transcription

import (
	"context"
	"errors"
	"log"

	"github.com/cloo-solutions/reelrag/internal/domain"
)

// ErrNoTranscriber is returned when neither path is configured.
var ErrNoTranscriber = errors.New("no transcription backend configured")

// Transcriber converts a media URL to spoken text.
type Transcriber interface {
	Transcribe(ctx context.Context, mediaURL string) (string, error)
}

// Adapter tries the primary transcriber and falls back to the secondary.
type Adapter struct {
	primary  Transcriber
	fallback Transcriber
}

// NewAdapter creates an Adapter. Either path may be nil.
func NewAdapter(primary, fallback Transcriber) *Adapter {
	return &Adapter{primary: primary, fallback: fallback}
}

// Transcribe returns an error only when every configured path failed.
func (a *Adapter) Transcribe(ctx context.Context, mediaURL string) (string, error) {
	if a.primary == nil && a.fallback == nil {
		return "", domain.Config("transcribe", ErrNoTranscriber)
	}

	var primaryErr error
	if a.primary != nil {
		text, err := a.primary.Transcribe(ctx, mediaURL)
		if err == nil {
			return text, nil
		}
		primaryErr = err
		log.Printf("transcription: primary failed for %s: %v", mediaURL, err)
	}

	if a.fallback == nil {
		return "", primaryErr
	}

	text, err := a.fallback.Transcribe(ctx, mediaURL)
	if err == nil {
		return text, nil
	}
	if primaryErr == nil {
		return "", err
	}
	return "", domain.NewKindError(domain.KindOf(err), "transcribe", errors.Join(primaryErr, err))
}
