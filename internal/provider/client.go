// Package provider is the REST client for an OpenAI-compatible API: file
// uploads, vision fine-tuning jobs and image embeddings. Every call passes
// through a client-side rate limiter and a circuit breaker so a degraded
// provider cannot cascade into the recognition path.
package provider

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"github.com/theaipetcompany/memory-management-sub000/internal/config"
)

type Client struct {
	baseURL      string
	apiKey       string
	httpClient   *http.Client
	uploadClient *http.Client
	breaker      *gobreaker.CircuitBreaker
	limiter      *rate.Limiter
}

func NewClient(cfg config.ProviderConfig) *Client {
	settings := gobreaker.Settings{
		Name:        "provider",
		MaxRequests: 2,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
		IsSuccessful: func(err error) bool {
			if err == nil {
				return true
			}
			// Request validation failures say nothing about provider health.
			var apiErr *APIError
			if errors.As(err, &apiErr) {
				return !apiErr.Retriable()
			}
			return false
		},
	}

	return &Client{
		baseURL:      cfg.BaseURL,
		apiKey:       cfg.APIKey,
		httpClient:   &http.Client{Timeout: cfg.RequestTimeout},
		uploadClient: &http.Client{Timeout: cfg.UploadTimeout},
		breaker:      gobreaker.NewCircuitBreaker(settings),
		limiter:      rate.NewLimiter(rate.Limit(cfg.RatePerSecond), cfg.RateBurst),
	}
}

// FileInfo is the provider's record of an uploaded file.
type FileInfo struct {
	ID       string `json:"id"`
	Bytes    int64  `json:"bytes"`
	Filename string `json:"filename"`
	Purpose  string `json:"purpose"`
}

// FineTuneInfo is the provider's record of a fine-tuning job.
type FineTuneInfo struct {
	ID             string `json:"id"`
	Status         string `json:"status"`
	Model          string `json:"model"`
	FineTunedModel string `json:"fine_tuned_model"`
	TrainingFile   string `json:"training_file"`
	Error          *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// Terminal reports whether the provider-side job has finished.
func (f *FineTuneInfo) Terminal() bool {
	switch f.Status {
	case "succeeded", "failed", "cancelled":
		return true
	}
	return false
}

// UploadFile sends the training file to POST /v1/files with purpose
// "fine-tune" and returns the provider's file record.
func (c *Client) UploadFile(ctx context.Context, filename string, r io.Reader) (*FileInfo, error) {
	body := &bytes.Buffer{}
	w := multipart.NewWriter(body)
	if err := w.WriteField("purpose", "fine-tune"); err != nil {
		return nil, fmt.Errorf("write purpose field: %w", err)
	}
	part, err := w.CreateFormFile("file", filename)
	if err != nil {
		return nil, fmt.Errorf("create file part: %w", err)
	}
	if _, err := io.Copy(part, r); err != nil {
		return nil, fmt.Errorf("copy training file: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("finish multipart body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/files", body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", w.FormDataContentType())

	info := &FileInfo{}
	if err := c.send(c.uploadClient, req, info); err != nil {
		return nil, err
	}
	return info, nil
}

type fineTuneRequest struct {
	TrainingFile string `json:"training_file"`
	Model        string `json:"model"`
}

// CreateFineTune starts a fine-tuning job over a previously uploaded file.
func (c *Client) CreateFineTune(ctx context.Context, fileID, model string) (*FineTuneInfo, error) {
	info := &FineTuneInfo{}
	err := c.postJSON(ctx, "/v1/fine_tuning/jobs", fineTuneRequest{
		TrainingFile: fileID,
		Model:        model,
	}, info)
	if err != nil {
		return nil, err
	}
	return info, nil
}

// GetFineTune fetches the current provider-side state of a job.
func (c *Client) GetFineTune(ctx context.Context, jobID string) (*FineTuneInfo, error) {
	info := &FineTuneInfo{}
	if err := c.getJSON(ctx, "/v1/fine_tuning/jobs/"+jobID, info); err != nil {
		return nil, err
	}
	return info, nil
}

// CancelFineTune asks the provider to cancel a running job.
func (c *Client) CancelFineTune(ctx context.Context, jobID string) (*FineTuneInfo, error) {
	info := &FineTuneInfo{}
	if err := c.postJSON(ctx, "/v1/fine_tuning/jobs/"+jobID+"/cancel", struct{}{}, info); err != nil {
		return nil, err
	}
	return info, nil
}

type embeddingRequest struct {
	Model string `json:"model"`
	Input string `json:"input"`
}

type embeddingResponse struct {
	Data []struct {
		Embedding []float64 `json:"embedding"`
	} `json:"data"`
}

// EmbedImage requests an embedding for an image, passed as a base64 data URL.
func (c *Client) EmbedImage(ctx context.Context, model, contentType string, image []byte) ([]float32, error) {
	input := fmt.Sprintf("data:%s;base64,%s", contentType, base64.StdEncoding.EncodeToString(image))

	respData := &embeddingResponse{}
	if err := c.postJSON(ctx, "/v1/embeddings", embeddingRequest{Model: model, Input: input}, respData); err != nil {
		return nil, err
	}
	if len(respData.Data) == 0 || len(respData.Data[0].Embedding) == 0 {
		return nil, fmt.Errorf("provider returned empty embedding")
	}

	raw := respData.Data[0].Embedding
	vec := make([]float32, len(raw))
	for i, v := range raw {
		vec[i] = float32(v)
	}
	return vec, nil
}

func (c *Client) postJSON(ctx context.Context, path string, payload, out interface{}) error {
	jsonData, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(jsonData))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.send(c.httpClient, req, out)
}

func (c *Client) getJSON(ctx context.Context, path string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	return c.send(c.httpClient, req, out)
}

// send runs one HTTP exchange through the rate limiter and circuit breaker,
// decoding a 2xx body into out and non-2xx bodies into *APIError.
func (c *Client) send(httpClient *http.Client, req *http.Request, out interface{}) error {
	if err := c.limiter.Wait(req.Context()); err != nil {
		return fmt.Errorf("rate limiter: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	_, err := c.breaker.Execute(func() (interface{}, error) {
		resp, err := httpClient.Do(req)
		if err != nil {
			return nil, fmt.Errorf("send request: %w", err)
		}
		defer func() { _ = resp.Body.Close() }()

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return nil, parseAPIError(resp)
		}
		if out != nil {
			if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
				return nil, fmt.Errorf("decode response: %w", err)
			}
		}
		return nil, nil
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		return err
	}
	return nil
}

// BreakerState reports the circuit state for health endpoints.
func (c *Client) BreakerState() string {
	switch c.breaker.State() {
	case gobreaker.StateClosed:
		return "closed"
	case gobreaker.StateOpen:
		return "open"
	case gobreaker.StateHalfOpen:
		return "half-open"
	}
	return "unknown"
}
