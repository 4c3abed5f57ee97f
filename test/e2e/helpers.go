//go:build e2e

package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cloo-solutions/reelrag/internal/api/handlers"
	"github.com/cloo-solutions/reelrag/internal/domain"
	"github.com/cloo-solutions/reelrag/internal/jobs"
	"github.com/cloo-solutions/reelrag/internal/openai"
	"github.com/cloo-solutions/reelrag/internal/repository"
	"github.com/cloo-solutions/reelrag/internal/scraper"
	"github.com/cloo-solutions/reelrag/internal/server"
	"github.com/cloo-solutions/reelrag/internal/service"
	"github.com/cloo-solutions/reelrag/internal/storage"
	"github.com/cloo-solutions/reelrag/internal/testutil"
	"github.com/cloo-solutions/reelrag/internal/transcription"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	embeddingDims  = 8
	archiveBucket  = "test-raw"
	trendingPerSrc = 2
)

// E2ETestEnv holds all resources needed for E2E tests
type E2ETestEnv struct {
	T            *testing.T
	Ctx          context.Context
	PostgresC    *testutil.PostgresContainer
	RustFSC      *testutil.RustFSContainer
	Pool         *pgxpool.Pool
	ServerURL    string
	ServerCloser func()
	Archive      *storage.RawArchive
	Embeddings   *FakeEmbeddings
	Transcripts  *FakeTranscripts
	HTTPClient   *http.Client
}

// SetupE2EEnv starts the containers and fake upstreams, then serves the full
// router over a pipeline that reads the curated items in manual.
func SetupE2EEnv(t *testing.T, manual map[string][]domain.RawItem) *E2ETestEnv {
	ctx := context.Background()

	pgC := testutil.NewPostgresContainer(ctx, t)
	s3C := testutil.NewRustFSContainer(ctx, t)
	pool := testutil.NewTestPool(ctx, t, pgC, "../../migrations")

	s3Client, err := storage.NewS3Client(ctx, storage.S3ClientConfig{
		Endpoint:        s3C.Endpoint(),
		Region:          "us-east-1",
		AccessKeyID:     "rustfsadmin",
		SecretAccessKey: "rustfsadmin",
		Bucket:          archiveBucket,
		UsePathStyle:    true,
	})
	if err != nil {
		t.Fatalf("failed to create S3 client: %v", err)
	}
	if err := s3Client.EnsureBucket(ctx); err != nil {
		t.Fatalf("failed to create bucket: %v", err)
	}

	embeddings := NewFakeEmbeddings()
	transcripts := NewFakeTranscripts(manual)

	manualPath := writeManualSource(t, manual)

	port, err := getFreePort()
	if err != nil {
		t.Fatalf("failed to get free port: %v", err)
	}

	archive := storage.NewRawArchive(s3Client)
	serverURL, serverCloser := startServer(t, pool, archive, embeddings, transcripts, manualPath, port)

	return &E2ETestEnv{
		T:            t,
		Ctx:          ctx,
		PostgresC:    pgC,
		RustFSC:      s3C,
		Pool:         pool,
		ServerURL:    serverURL,
		ServerCloser: serverCloser,
		Archive:      archive,
		Embeddings:   embeddings,
		Transcripts:  transcripts,
		HTTPClient:   &http.Client{Timeout: 60 * time.Second},
	}
}

// Cleanup releases all resources
func (e *E2ETestEnv) Cleanup() {
	if e.ServerCloser != nil {
		e.ServerCloser()
	}
	if e.Embeddings != nil {
		e.Embeddings.Close()
	}
	if e.Transcripts != nil {
		e.Transcripts.Close()
	}
	if e.Pool != nil {
		e.Pool.Close()
	}
	if e.RustFSC != nil {
		e.RustFSC.Terminate(e.Ctx)
	}
	if e.PostgresC != nil {
		e.PostgresC.Terminate(e.Ctx)
	}
}

// APIResponse represents a standard API response
type APIResponse struct {
	StatusCode int             `json:"-"`
	Data       json.RawMessage `json:"data"`
	Error      string          `json:"error,omitempty"`
}

// Get performs a GET request
func (e *E2ETestEnv) Get(path string) (*APIResponse, error) {
	return e.doRequest(http.MethodGet, path, nil)
}

// Post performs a POST request
func (e *E2ETestEnv) Post(path string, body interface{}) (*APIResponse, error) {
	return e.doRequest(http.MethodPost, path, body)
}

func (e *E2ETestEnv) doRequest(method, path string, body interface{}) (*APIResponse, error) {
	var reqBody io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal body: %w", err)
		}
		reqBody = bytes.NewReader(jsonData)
	}

	req, err := http.NewRequest(method, e.ServerURL+path, reqBody)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	apiResp := APIResponse{StatusCode: resp.StatusCode}
	if err := json.Unmarshal(respBody, &apiResp); err != nil {
		return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, string(respBody))
	}
	if resp.StatusCode >= 400 {
		return &apiResp, fmt.Errorf("HTTP %d: %s", resp.StatusCode, apiResp.Error)
	}
	return &apiResp, nil
}

// FakeEmbeddings serves the OpenAI embeddings endpoint with bag-of-words
// vectors, so texts sharing words have positive cosine similarity.
type FakeEmbeddings struct {
	server *httptest.Server
	calls  atomic.Int64
	down   atomic.Bool
}

func NewFakeEmbeddings() *FakeEmbeddings {
	f := &FakeEmbeddings{}
	f.server = httptest.NewServer(http.HandlerFunc(f.handle))
	return f
}

// BaseURL is the OpenAI-compatible base URL of the fake.
func (f *FakeEmbeddings) BaseURL() string {
	return f.server.URL + "/v1"
}

// SetDown makes every request fail with a server error.
func (f *FakeEmbeddings) SetDown(down bool) {
	f.down.Store(down)
}

func (f *FakeEmbeddings) Calls() int64 {
	return f.calls.Load()
}

func (f *FakeEmbeddings) Close() {
	f.server.Close()
}

func (f *FakeEmbeddings) handle(w http.ResponseWriter, r *http.Request) {
	f.calls.Add(1)
	if f.down.Load() {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		io.WriteString(w, `{"error":{"message":"upstream unavailable","type":"server_error"}}`)
		return
	}
	if r.URL.Path != "/v1/embeddings" {
		http.NotFound(w, r)
		return
	}

	var req struct {
		Input []string `json:"input"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	data := make([]map[string]interface{}, len(req.Input))
	for i, text := range req.Input {
		data[i] = map[string]interface{}{
			"object":    "embedding",
			"index":     i,
			"embedding": bagOfWords(text),
		}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"object": "list",
		"data":   data,
		"model":  "text-embedding-3-small",
		"usage":  map[string]int{"prompt_tokens": 1, "total_tokens": 1},
	})
}

func bagOfWords(text string) []float32 {
	vec := make([]float32, embeddingDims)
	for _, word := range strings.Fields(strings.ToLower(text)) {
		word = strings.Trim(word, ".,!?:;\"'#")
		if word == "" {
			continue
		}
		h := fnv.New32a()
		h.Write([]byte(word))
		vec[h.Sum32()%embeddingDims]++
	}
	return vec
}

// FakeTranscripts serves the AssemblyAI transcript endpoints. Each job
// reports processing once, then completes with the transcript registered for
// its audio URL.
type FakeTranscripts struct {
	server *httptest.Server
	texts  map[string]string

	mu     sync.Mutex
	jobs   map[string]string
	polled map[string]bool
	submit atomic.Int64
}

// NewFakeTranscripts registers a transcript for every media URL in manual.
func NewFakeTranscripts(manual map[string][]domain.RawItem) *FakeTranscripts {
	f := &FakeTranscripts{
		texts:  make(map[string]string),
		jobs:   make(map[string]string),
		polled: make(map[string]bool),
	}
	for _, items := range manual {
		for _, item := range items {
			f.texts[item.MediaURL] = "Spoken: " + item.Caption + " Here is the full story about business scaling."
		}
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /v2/transcript", f.create)
	mux.HandleFunc("GET /v2/transcript/{id}", f.get)
	f.server = httptest.NewServer(mux)
	return f
}

func (f *FakeTranscripts) BaseURL() string {
	return f.server.URL
}

// Submitted is the number of transcription jobs created.
func (f *FakeTranscripts) Submitted() int64 {
	return f.submit.Load()
}

func (f *FakeTranscripts) Close() {
	f.server.Close()
}

func (f *FakeTranscripts) create(w http.ResponseWriter, r *http.Request) {
	var req struct {
		AudioURL string `json:"audio_url"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	id := fmt.Sprintf("job-%d", f.submit.Add(1))
	f.mu.Lock()
	f.jobs[id] = req.AudioURL
	f.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"id": id, "status": "queued"})
}

func (f *FakeTranscripts) get(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	f.mu.Lock()
	audioURL, ok := f.jobs[id]
	first := !f.polled[id]
	f.polled[id] = true
	f.mu.Unlock()

	if !ok {
		http.NotFound(w, r)
		return
	}

	resp := map[string]interface{}{"id": id, "status": "processing"}
	if !first {
		resp["status"] = "completed"
		resp["text"] = f.texts[audioURL]
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

func writeManualSource(t *testing.T, manual map[string][]domain.RawItem) string {
	path := filepath.Join(t.TempDir(), "manual.json")
	data, err := json.Marshal(manual)
	if err != nil {
		t.Fatalf("failed to encode manual source: %v", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatalf("failed to write manual source: %v", err)
	}
	return path
}

// startServer wires the pipeline and retrieval the same way reelragd serve
// does, against the fakes, and serves the router on port.
func startServer(
	t *testing.T,
	pool *pgxpool.Pool,
	archive *storage.RawArchive,
	embeddings *FakeEmbeddings,
	transcripts *FakeTranscripts,
	manualPath string,
	port int,
) (string, func()) {
	embedder := openai.NewClientWithConfig(openai.Config{
		APIKey:              "sk-test",
		BaseURL:             embeddings.BaseURL(),
		EmbeddingModel:      "text-embedding-3-small",
		EmbeddingDimensions: embeddingDims,
	})

	items := repository.NewItemRepository(pool)
	chunks := repository.NewChunkRepository(pool)

	transcriber := transcription.NewAdapter(transcription.NewAssemblyAI(transcription.AssemblyAIConfig{
		APIKey:       "aai-test",
		BaseURL:      transcripts.BaseURL(),
		PollInterval: 10 * time.Millisecond,
		Timeout:      10 * time.Second,
	}), nil)

	orchestrator := service.NewOrchestrator(service.OrchestratorDeps{
		Fallback:    scraper.NewManualSource(manualPath),
		Selector:    service.NewTrendingSelector(trendingPerSrc),
		Transcriber: transcriber,
		TxRunner:    repository.NewTxRunner(pool),
		Items:       items,
		Indexer:     service.NewIndexerService(embedder, items, chunks, service.ChunkConfig{TargetTokens: 800}, 0),
		Archive:     archive,
	}, service.PipelineConfig{FetchPerSource: 50})

	retrieval := service.NewRetrievalService(repository.NewRetrievalRepository(pool), embedder, service.DefaultRetrievalConfig())

	router := server.NewRouter(server.RouterConfig{
		RetrievalHandler: handlers.NewRetrievalHandler(retrieval),
		PipelineHandler:  handlers.NewPipelineHandler(jobs.NewPipelineJob(orchestrator)),
	})

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: router,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			t.Logf("server error: %v", err)
		}
	}()

	serverURL := fmt.Sprintf("http://localhost:%d", port)
	waitForServer(t, serverURL, 10*time.Second)

	return serverURL, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(ctx)
	}
}

func waitForServer(t *testing.T, url string, timeout time.Duration) {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		resp, err := http.Get(url + "/health")
		if err == nil {
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return
			}
		}
		time.Sleep(100 * time.Millisecond)
	}
	t.Fatalf("server did not start within %v", timeout)
}

func getFreePort() (int, error) {
	addr, err := net.ResolveTCPAddr("tcp", "localhost:0")
	if err != nil {
		return 0, err
	}

	l, err := net.ListenTCP("tcp", addr)
	if err != nil {
		return 0, err
	}
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port, nil
}
