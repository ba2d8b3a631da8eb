package segment

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/fyerfyer/doc-chunk-system/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testChunk() models.ChunkMetadata {
	return models.ChunkMetadata{
		ChunkID:     "doc-1_chunk_0",
		ChunkIndex:  0,
		TotalChunks: 2,
		StartPage:   0,
		EndPage:     49,
		PageCount:   50,
		Location:    "chunks/doc-1/doc-1_chunk_0.pdf",
		Status:      models.ChunkStatusPending,
	}
}

func TestHTTPProcessor_Process(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/segments/process", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)

		var req processRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "doc-1", req.DocumentID)
		assert.Equal(t, "doc-1_chunk_0", req.ChunkID)

		page := 3
		json.NewEncoder(w).Encode(processResponse{
			Classification: "invoice",
			Entities: []models.Entity{
				{Type: "date", Value: "2024-01-01", Page: &page},
			},
		})
	}))
	defer server.Close()

	processor := NewHTTPProcessor(DefaultConfig().WithBaseURL(server.URL+"/api"), nil)

	result, err := processor.Process(context.Background(), "doc-1", testChunk())
	require.NoError(t, err)
	assert.Equal(t, 0, result.ChunkIndex)
	assert.Equal(t, "invoice", result.Classification)
	require.Len(t, result.Entities, 1)
	assert.Equal(t, 3, *result.Entities[0].Page)
}

func TestHTTPProcessor_TransientErrors(t *testing.T) {
	tests := []struct {
		name       string
		statusCode int
	}{
		{"throttled", http.StatusTooManyRequests},
		{"server error", http.StatusInternalServerError},
		{"service unavailable", http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, `{"detail":"try again later"}`, tt.statusCode)
			}))
			defer server.Close()

			processor := NewHTTPProcessor(DefaultConfig().WithBaseURL(server.URL+"/api"), nil)

			_, err := processor.Process(context.Background(), "doc-1", testChunk())
			require.Error(t, err)
			assert.True(t, models.IsTransient(err), "status %d should be transient", tt.statusCode)
		})
	}
}

func TestHTTPProcessor_PermanentError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"detail":"unsupported chunk format"}`, http.StatusBadRequest)
	}))
	defer server.Close()

	processor := NewHTTPProcessor(DefaultConfig().WithBaseURL(server.URL+"/api"), nil)

	_, err := processor.Process(context.Background(), "doc-1", testChunk())
	require.Error(t, err)
	assert.False(t, models.IsTransient(err), "4xx should be permanent")

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
	assert.Contains(t, apiErr.Detail, "unsupported chunk format")
}

func TestHTTPProcessor_ConnectionFailure(t *testing.T) {
	// 指向一个未监听的地址
	processor := NewHTTPProcessor(DefaultConfig().WithBaseURL("http://127.0.0.1:1/api"), nil)

	_, err := processor.Process(context.Background(), "doc-1", testChunk())
	require.Error(t, err)
	assert.True(t, models.IsTransient(err), "network failure should be transient")
}
