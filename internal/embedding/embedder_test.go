package embedding

import (
	"context"
	"encoding/json"
	"image"
	"image/color"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/theaipetcompany/memory-management-sub000/internal/config"
	"github.com/theaipetcompany/memory-management-sub000/internal/provider"
)

var pngMagic = []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A}

func testProviderClient(baseURL string) *provider.Client {
	return provider.NewClient(config.ProviderConfig{
		APIKey:         "test-key",
		BaseURL:        baseURL,
		RequestTimeout: 5 * time.Second,
		UploadTimeout:  5 * time.Second,
		RatePerSecond:  1000,
		RateBurst:      1000,
	})
}

func TestNew_UnknownProvider(t *testing.T) {
	_, err := New(config.EmbeddingConfig{Provider: "quantum"}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "quantum")
}

func TestNew_OpenAI(t *testing.T) {
	emb, err := New(config.EmbeddingConfig{Provider: "openai", Model: "vision-embedding-3", Dim: 768}, testProviderClient("http://localhost:0"))
	require.NoError(t, err)
	assert.IsType(t, &OpenAIEmbedder{}, emb)
	assert.Equal(t, 768, emb.Dimension())
}

func TestOpenAIEmbedder_Embed(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Model string `json:"model"`
			Input string `json:"input"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "vision-embedding-3", body.Model)
		assert.True(t, strings.HasPrefix(body.Input, "data:image/png;base64,"),
			"detected content type should come from the image bytes")

		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"data": []map[string]interface{}{
				{"embedding": []float64{0.6, 0.8, 0}},
			},
		})
	}))
	defer server.Close()

	emb := NewOpenAIEmbedder(testProviderClient(server.URL), "vision-embedding-3", 3)
	vec, err := emb.Embed(context.Background(), pngMagic)
	require.NoError(t, err)
	assert.Equal(t, []float32{0.6, 0.8, 0}, vec)
}

func TestOpenAIEmbedder_DimensionMismatch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"data": []map[string]interface{}{
				{"embedding": []float64{0.1, 0.2}},
			},
		})
	}))
	defer server.Close()

	emb := NewOpenAIEmbedder(testProviderClient(server.URL), "vision-embedding-3", 768)
	_, err := emb.Embed(context.Background(), pngMagic)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "dimension mismatch")
}

func TestOpenAIEmbedder_ProviderErrorSurfaces(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error": {"message": "unsupported image", "type": "invalid_request_error"}}`))
	}))
	defer server.Close()

	emb := NewOpenAIEmbedder(testProviderClient(server.URL), "vision-embedding-3", 768)
	_, err := emb.Embed(context.Background(), pngMagic)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported image")
}

func TestL2Normalize(t *testing.T) {
	v := []float32{3, 4}
	l2Normalize(v)
	assert.InDelta(t, 0.6, v[0], 1e-6)
	assert.InDelta(t, 0.8, v[1], 1e-6)

	zero := []float32{0, 0, 0}
	l2Normalize(zero)
	assert.Equal(t, []float32{0, 0, 0}, zero)
}

func TestImageToTensor(t *testing.T) {
	white := image.NewRGBA(image.Rect(0, 0, 10, 10))
	for y := 0; y < 10; y++ {
		for x := 0; x < 10; x++ {
			white.Set(x, y, color.RGBA{R: 255, G: 255, B: 255, A: 255})
		}
	}

	data := imageToTensor(white, onnxInputW, onnxInputH)
	require.Len(t, data, 3*onnxInputH*onnxInputW)
	for _, v := range data[:10] {
		assert.InDelta(t, 1.0, v, 1e-6)
	}

	black := image.NewRGBA(image.Rect(0, 0, 10, 10))
	data = imageToTensor(black, onnxInputW, onnxInputH)
	for _, v := range data[:10] {
		assert.InDelta(t, -1.0, v, 1e-6)
	}
}

func TestResizeNearest(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 200, 100))
	dst := resizeNearest(src, 112, 112)
	bounds := dst.Bounds()
	assert.Equal(t, 112, bounds.Dx())
	assert.Equal(t, 112, bounds.Dy())
}
