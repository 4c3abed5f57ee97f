package transcription

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/cloo-solutions/reelrag/internal/domain"
)

const DefaultYtDlpPath = "yt-dlp"

// FileTranscriber turns a local audio file into text.
type FileTranscriber interface {
	TranscribeFile(ctx context.Context, path string) (string, error)
}

// CommandRunner runs an external program and returns its combined output.
type CommandRunner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

type execRunner struct{}

func (execRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).CombinedOutput()
}

// Local extracts audio with yt-dlp and sends it to a speech-to-text API.
type Local struct {
	ytDlpPath string
	files     FileTranscriber
	runner    CommandRunner
}

// NewLocal creates a Local transcriber using the yt-dlp binary at ytDlpPath.
func NewLocal(ytDlpPath string, files FileTranscriber) *Local {
	return NewLocalWithRunner(ytDlpPath, files, execRunner{})
}

// NewLocalWithRunner creates a Local transcriber with a custom command runner (for testing)
func NewLocalWithRunner(ytDlpPath string, files FileTranscriber, runner CommandRunner) *Local {
	if ytDlpPath == "" {
		ytDlpPath = DefaultYtDlpPath
	}
	return &Local{ytDlpPath: ytDlpPath, files: files, runner: runner}
}

// Transcribe downloads mediaURL's audio track into a temporary directory and
// transcribes it. The directory is removed afterwards.
func (l *Local) Transcribe(ctx context.Context, mediaURL string) (string, error) {
	if l.files == nil {
		return "", domain.Config("local transcribe", errors.New("speech-to-text client not configured"))
	}

	dir, err := os.MkdirTemp("", "reelrag-audio-*")
	if err != nil {
		return "", domain.Transient("local transcribe", fmt.Errorf("failed to create temp dir: %w", err))
	}
	defer os.RemoveAll(dir)

	output := filepath.Join(dir, "audio.%(ext)s")
	out, err := l.runner.Run(ctx, l.ytDlpPath,
		"--extract-audio",
		"--audio-format", "mp3",
		"--no-playlist",
		"--output", output,
		mediaURL,
	)
	if err != nil {
		if errors.Is(err, exec.ErrNotFound) {
			return "", domain.Config("yt-dlp", err)
		}
		return "", domain.Transient("yt-dlp", fmt.Errorf("%w: %s", err, strings.TrimSpace(string(out))))
	}

	audio := filepath.Join(dir, "audio.mp3")
	if _, err := os.Stat(audio); err != nil {
		return "", domain.DataShape("yt-dlp", fmt.Errorf("no audio produced: %w", err))
	}

	return l.files.TranscribeFile(ctx, audio)
}
