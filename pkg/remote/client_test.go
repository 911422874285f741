package remote

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompress_FullLifecycle(t *testing.T) {
	var polls atomic.Int32
	var deleted atomic.Bool
	result := []byte("%PDF-1.4 compressed")

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/v1/tasks":
			require.NoError(t, r.ParseMultipartForm(1<<20))
			file, header, err := r.FormFile("file")
			require.NoError(t, err)
			file.Close()
			assert.Equal(t, "scan.pdf", header.Filename)
			json.NewEncoder(w).Encode(map[string]string{"task_id": "t-1"})

		case r.Method == http.MethodGet && r.URL.Path == "/v1/tasks/t-1":
			status := "processing"
			if polls.Add(1) >= 2 {
				status = "done"
			}
			json.NewEncoder(w).Encode(map[string]string{"task_id": "t-1", "status": status})

		case r.Method == http.MethodGet && r.URL.Path == "/v1/tasks/t-1/result":
			w.Write(result)

		case r.Method == http.MethodDelete && r.URL.Path == "/v1/tasks/t-1":
			deleted.Store(true)
			w.WriteHeader(http.StatusNoContent)

		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	client := NewClient(server.URL, "test-key")
	client.SetPollInterval(10 * time.Millisecond)

	out, err := client.Compress(context.Background(), "scan.pdf", []byte("%PDF-1.4 original"))
	require.NoError(t, err)
	assert.Equal(t, result, out)
	assert.True(t, deleted.Load(), "remote task should be cleaned up")
	assert.GreaterOrEqual(t, polls.Load(), int32(2))
}

func TestCompress_RemoteFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPost:
			json.NewEncoder(w).Encode(map[string]string{"task_id": "t-2"})
		case r.Method == http.MethodGet:
			json.NewEncoder(w).Encode(map[string]string{"task_id": "t-2", "status": "failed", "error": "corrupt xref"})
		default:
			w.WriteHeader(http.StatusNoContent)
		}
	}))
	defer server.Close()

	client := NewClient(server.URL, "")
	client.SetPollInterval(10 * time.Millisecond)

	_, err := client.Compress(context.Background(), "bad.pdf", []byte("x"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "corrupt xref")
}

func TestSubmit_APIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "quota exceeded", http.StatusTooManyRequests)
	}))
	defer server.Close()

	client := NewClient(server.URL, "k")
	_, err := client.Submit(context.Background(), "a.pdf", []byte("x"))
	require.Error(t, err)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusTooManyRequests, apiErr.StatusCode)
}

func TestWait_ContextCancellation(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"task_id": "t-3", "status": "processing"})
	}))
	defer server.Close()

	client := NewClient(server.URL, "")
	client.SetPollInterval(10 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err := client.Wait(ctx, "t-3")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
