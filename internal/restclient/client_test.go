package restclient

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/cloo-solutions/reelrag/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClient_PostDecodesResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v2/things", r.URL.Path)
		assert.Equal(t, "abc", r.URL.Query().Get("token"))
		assert.Equal(t, "secret", r.Header.Get("authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		w.Write([]byte(`{"id":"t-1"}`))
	}))
	defer server.Close()

	c := New(server.URL+"/", HeaderAuth("authorization", "secret"))
	var out struct {
		ID string `json:"id"`
	}
	err := c.Post(context.Background(), "/v2/things", url.Values{"token": {"abc"}}, map[string]string{"a": "b"}, &out)
	require.NoError(t, err)
	assert.Equal(t, "t-1", out.ID)
}

func TestClient_BearerAuth(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	c := New(server.URL, BearerAuth("tok"))
	require.NoError(t, c.Get(context.Background(), "/", nil, nil))
}

func TestClient_ErrorKinds(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		kind   domain.ErrorKind
	}{
		{"unauthorized", http.StatusUnauthorized, "bad key", domain.ErrorKindConfig},
		{"forbidden", http.StatusForbidden, "nope", domain.ErrorKindConfig},
		{"throttled", http.StatusTooManyRequests, "slow down", domain.ErrorKindTransient},
		{"server error", http.StatusBadGateway, "oops", domain.ErrorKindTransient},
		{"bad request", http.StatusBadRequest, "invalid", domain.ErrorKindDataShape},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer server.Close()

			err := New(server.URL, nil).Get(context.Background(), "/x", nil, nil)
			require.Error(t, err)
			assert.Equal(t, tt.kind, domain.KindOf(err))
			assert.Equal(t, tt.status, StatusCode(err))
			assert.Contains(t, err.Error(), tt.body)
		})
	}
}

func TestClient_MalformedJSONIsDataShape(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{not json`))
	}))
	defer server.Close()

	var out map[string]any
	err := New(server.URL, nil).Get(context.Background(), "/x", nil, &out)
	require.Error(t, err)
	assert.Equal(t, domain.ErrorKindDataShape, domain.KindOf(err))
	assert.Equal(t, 0, StatusCode(err))
}

func TestClient_CanceledContextIsTransient(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := New(server.URL, nil).Get(ctx, "/x", nil, nil)
	require.Error(t, err)
	assert.Equal(t, domain.ErrorKindTransient, domain.KindOf(err))
}
