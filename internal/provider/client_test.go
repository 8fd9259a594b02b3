package provider

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/theaipetcompany/memory-management-sub000/internal/config"
)

func testClient(baseURL string) *Client {
	return NewClient(config.ProviderConfig{
		APIKey:         "test-key",
		BaseURL:        baseURL,
		FineTuneModel:  "gpt-4o-2024-08-06",
		RequestTimeout: 5 * time.Second,
		UploadTimeout:  5 * time.Second,
		RatePerSecond:  1000,
		RateBurst:      1000,
	})
}

func TestUploadFile(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/files", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		require.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, "fine-tune", r.FormValue("purpose"))

		file, header, err := r.FormFile("file")
		require.NoError(t, err)
		defer file.Close()
		assert.Equal(t, "training.jsonl", header.Filename)

		_ = json.NewEncoder(w).Encode(FileInfo{
			ID:       "file-abc123",
			Bytes:    42,
			Filename: "training.jsonl",
			Purpose:  "fine-tune",
		})
	}))
	defer server.Close()

	client := testClient(server.URL)
	info, err := client.UploadFile(context.Background(), "training.jsonl", strings.NewReader(`{"messages":[]}`))
	require.NoError(t, err)
	assert.Equal(t, "file-abc123", info.ID)
	assert.Equal(t, "fine-tune", info.Purpose)
}

func TestCreateFineTune(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/fine_tuning/jobs", r.URL.Path)

		var body fineTuneRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "file-abc123", body.TrainingFile)
		assert.Equal(t, "gpt-4o-2024-08-06", body.Model)

		_ = json.NewEncoder(w).Encode(FineTuneInfo{
			ID:           "ftjob-xyz",
			Status:       "queued",
			Model:        body.Model,
			TrainingFile: body.TrainingFile,
		})
	}))
	defer server.Close()

	client := testClient(server.URL)
	info, err := client.CreateFineTune(context.Background(), "file-abc123", "gpt-4o-2024-08-06")
	require.NoError(t, err)
	assert.Equal(t, "ftjob-xyz", info.ID)
	assert.Equal(t, "queued", info.Status)
	assert.False(t, info.Terminal())
}

func TestGetFineTune(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/v1/fine_tuning/jobs/ftjob-xyz", r.URL.Path)

		_ = json.NewEncoder(w).Encode(FineTuneInfo{
			ID:             "ftjob-xyz",
			Status:         "succeeded",
			FineTunedModel: "ft:gpt-4o-2024-08-06:org::abc",
		})
	}))
	defer server.Close()

	client := testClient(server.URL)
	info, err := client.GetFineTune(context.Background(), "ftjob-xyz")
	require.NoError(t, err)
	assert.Equal(t, "succeeded", info.Status)
	assert.True(t, info.Terminal())
	assert.Equal(t, "ft:gpt-4o-2024-08-06:org::abc", info.FineTunedModel)
}

func TestCancelFineTune(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/fine_tuning/jobs/ftjob-xyz/cancel", r.URL.Path)

		_ = json.NewEncoder(w).Encode(FineTuneInfo{ID: "ftjob-xyz", Status: "cancelled"})
	}))
	defer server.Close()

	client := testClient(server.URL)
	info, err := client.CancelFineTune(context.Background(), "ftjob-xyz")
	require.NoError(t, err)
	assert.Equal(t, "cancelled", info.Status)
	assert.True(t, info.Terminal())
}

func TestEmbedImage(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/embeddings", r.URL.Path)

		var body embeddingRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "vision-embedding-3", body.Model)
		assert.True(t, strings.HasPrefix(body.Input, "data:image/jpeg;base64,"))

		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"data": []map[string]interface{}{
				{"embedding": []float64{0.1, 0.2, 0.3}},
			},
		})
	}))
	defer server.Close()

	client := testClient(server.URL)
	vec, err := client.EmbedImage(context.Background(), "vision-embedding-3", "image/jpeg", []byte{0xFF, 0xD8, 0xFF})
	require.NoError(t, err)
	assert.Equal(t, []float32{0.1, 0.2, 0.3}, vec)
}

func TestEmbedImage_EmptyResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]interface{}{"data": []interface{}{}})
	}))
	defer server.Close()

	client := testClient(server.URL)
	_, err := client.EmbedImage(context.Background(), "vision-embedding-3", "image/png", []byte{0x89})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "empty embedding")
}

func TestAPIErrorParsing(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error": {"message": "invalid training file", "type": "invalid_request_error"}}`))
	}))
	defer server.Close()

	client := testClient(server.URL)
	_, err := client.CreateFineTune(context.Background(), "file-bad", "gpt-4o-2024-08-06")
	require.Error(t, err)

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
	assert.Equal(t, "invalid_request_error", apiErr.Type)
	assert.Equal(t, "invalid training file", apiErr.Message)
	assert.False(t, apiErr.Retriable())
}

func TestAPIErrorRawBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte("upstream timeout"))
	}))
	defer server.Close()

	client := testClient(server.URL)
	_, err := client.GetFineTune(context.Background(), "ftjob-1")
	require.Error(t, err)

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusBadGateway, apiErr.StatusCode)
	assert.Equal(t, "upstream timeout", apiErr.Message)
	assert.True(t, apiErr.Retriable())
}

func TestCircuitBreakerOpensOnServerErrors(t *testing.T) {
	var hits atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error": {"message": "boom", "type": "server_error"}}`))
	}))
	defer server.Close()

	client := testClient(server.URL)
	for i := 0; i < 3; i++ {
		_, err := client.GetFineTune(context.Background(), "ftjob-1")
		require.Error(t, err)
		assert.False(t, errors.Is(err, ErrUnavailable))
	}
	assert.Equal(t, int64(3), hits.Load())
	assert.Equal(t, "open", client.BreakerState())

	_, err := client.GetFineTune(context.Background(), "ftjob-1")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnavailable))
	assert.Equal(t, int64(3), hits.Load(), "open circuit must not reach the provider")
}

func TestCircuitBreakerIgnoresClientErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error": {"message": "bad request", "type": "invalid_request_error"}}`))
	}))
	defer server.Close()

	client := testClient(server.URL)
	for i := 0; i < 5; i++ {
		_, err := client.GetFineTune(context.Background(), "ftjob-1")
		require.Error(t, err)
	}
	assert.Equal(t, "closed", client.BreakerState())
}

func TestFineTuneInfoTerminal(t *testing.T) {
	tests := []struct {
		status   string
		terminal bool
	}{
		{"validating_files", false},
		{"queued", false},
		{"running", false},
		{"succeeded", true},
		{"failed", true},
		{"cancelled", true},
	}
	for _, tt := range tests {
		t.Run(tt.status, func(t *testing.T) {
			info := &FineTuneInfo{Status: tt.status}
			assert.Equal(t, tt.terminal, info.Terminal())
		})
	}
}
