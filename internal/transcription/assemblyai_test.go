package transcription

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cloo-solutions/reelrag/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestAssemblyAI(url string, timeout time.Duration) *AssemblyAI {
	return NewAssemblyAI(AssemblyAIConfig{
		APIKey:       "aai-key",
		BaseURL:      url,
		PollInterval: time.Millisecond,
		Timeout:      timeout,
	})
}

func TestAssemblyAI_PollsUntilCompleted(t *testing.T) {
	var polls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "aai-key", r.Header.Get("authorization"))
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/v2/transcript":
			var body map[string]string
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, "https://cdn.example.com/1.mp4", body["audio_url"])
			w.Write([]byte(`{"id":"job-1","status":"queued"}`))
		case r.Method == http.MethodGet && r.URL.Path == "/v2/transcript/job-1":
			if polls.Add(1) < 3 {
				w.Write([]byte(`{"id":"job-1","status":"processing"}`))
				return
			}
			w.Write([]byte(`{"id":"job-1","status":"completed","text":"  Here is how I scaled.  "}`))
		default:
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
	}))
	defer server.Close()

	text, err := newTestAssemblyAI(server.URL, time.Second).Transcribe(context.Background(), "https://cdn.example.com/1.mp4")
	require.NoError(t, err)
	assert.Equal(t, "Here is how I scaled.", text)
	assert.Equal(t, int32(3), polls.Load())
}

func TestAssemblyAI_ErrorState(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"id":"job-1","status":"error","error":"media download failed"}`))
	}))
	defer server.Close()

	_, err := newTestAssemblyAI(server.URL, time.Second).Transcribe(context.Background(), "https://cdn.example.com/1.mp4")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTranscriptionFailed)
	assert.Contains(t, err.Error(), "media download failed")
}

func TestAssemblyAI_Deadline(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"id":"job-1","status":"processing"}`))
	}))
	defer server.Close()

	_, err := newTestAssemblyAI(server.URL, 20*time.Millisecond).Transcribe(context.Background(), "https://cdn.example.com/1.mp4")
	require.Error(t, err)
	assert.Equal(t, domain.ErrorKindTransient, domain.KindOf(err))
}

func TestAssemblyAI_RejectsMalformedResponses(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr error
	}{
		{"missing id", `{"status":"queued"}`, ErrMissingJobID},
		{"unknown status", `{"id":"job-1","status":"exploded"}`, ErrUnknownStatus},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(tt.body))
			}))
			defer server.Close()

			_, err := newTestAssemblyAI(server.URL, time.Second).Transcribe(context.Background(), "https://cdn.example.com/1.mp4")
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Equal(t, domain.ErrorKindDataShape, domain.KindOf(err))
		})
	}
}

func TestAssemblyAI_BadKeyIsConfigError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":"Authentication error"}`))
	}))
	defer server.Close()

	_, err := newTestAssemblyAI(server.URL, time.Second).Transcribe(context.Background(), "https://cdn.example.com/1.mp4")
	require.Error(t, err)
	assert.Equal(t, domain.ErrorKindConfig, domain.KindOf(err))
}

func TestNewAssemblyAI_Defaults(t *testing.T) {
	a := NewAssemblyAI(AssemblyAIConfig{APIKey: "k"})
	assert.Equal(t, DefaultPollInterval, a.pollInterval)
	assert.Equal(t, DefaultTimeout, a.timeout)
	assert.Equal(t, DefaultAssemblyAIURL, a.client.BaseURL())
}
