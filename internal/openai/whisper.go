package openai

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/cloo-solutions/reelrag/internal/domain"
	openai "github.com/sashabaranov/go-openai"
)

// MaxAudioFileSize is the largest upload the Whisper endpoint accepts.
const MaxAudioFileSize = 25 * 1024 * 1024

// ErrAudioTooLarge is returned for audio files over MaxAudioFileSize.
var ErrAudioTooLarge = errors.New("audio file exceeds 25MB transcription limit")

// TranscriptionAPI is the subset of the OpenAI client used for speech to text.
type TranscriptionAPI interface {
	CreateTranscription(ctx context.Context, request openai.AudioRequest) (openai.AudioResponse, error)
}

// Whisper transcribes local audio files.
type Whisper struct {
	api TranscriptionAPI
}

// NewWhisper creates a Whisper transcriber from the embedding client settings.
func NewWhisper(cfg Config) *Whisper {
	return &Whisper{api: newAPIClient(cfg)}
}

// NewWhisperWithAPI creates a Whisper transcriber over an arbitrary API.
func NewWhisperWithAPI(api TranscriptionAPI) *Whisper {
	return &Whisper{api: api}
}

// TranscribeFile returns the text spoken in the audio file at path.
func (w *Whisper) TranscribeFile(ctx context.Context, path string) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", domain.Transient("whisper", fmt.Errorf("failed to stat audio file: %w", err))
	}
	if info.Size() > MaxAudioFileSize {
		return "", domain.DataShape("whisper", fmt.Errorf("%w: %d bytes", ErrAudioTooLarge, info.Size()))
	}

	resp, err := w.api.CreateTranscription(ctx, openai.AudioRequest{
		Model:    openai.Whisper1,
		FilePath: path,
		Format:   openai.AudioResponseFormatText,
	})
	if err != nil {
		return "", classify("whisper", fmt.Errorf("failed to transcribe audio: %w", err))
	}

	return strings.TrimSpace(resp.Text), nil
}
