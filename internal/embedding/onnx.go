package embedding

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"sync"
	"time"

	ort "github.com/yalue/onnxruntime_go"

	"github.com/theaipetcompany/memory-management-sub000/internal/observability"
)

// ArcFace-family models expect 112x112 input.
const (
	onnxInputW = 112
	onnxInputH = 112
)

// ONNXEmbedder runs a local face embedding model. The caller is responsible
// for initialising the ONNX runtime environment before constructing one.
type ONNXEmbedder struct {
	mu           sync.Mutex
	session      *ort.AdvancedSession
	inputTensor  *ort.Tensor[float32]
	outputTensor *ort.Tensor[float32]
	dim          int
}

func NewONNXEmbedder(modelPath string, dim int) (*ONNXEmbedder, error) {
	inputShape := ort.NewShape(1, 3, int64(onnxInputH), int64(onnxInputW))
	inputTensor, err := ort.NewEmptyTensor[float32](inputShape)
	if err != nil {
		return nil, fmt.Errorf("create input tensor: %w", err)
	}

	outputShape := ort.NewShape(1, int64(dim))
	outputTensor, err := ort.NewEmptyTensor[float32](outputShape)
	if err != nil {
		inputTensor.Destroy()
		return nil, fmt.Errorf("create output tensor: %w", err)
	}

	// Graph io names of the ArcFace w600k_r50 export.
	session, err := ort.NewAdvancedSession(modelPath,
		[]string{"input.1"},
		[]string{"683"},
		[]ort.Value{inputTensor},
		[]ort.Value{outputTensor},
		nil,
	)
	if err != nil {
		inputTensor.Destroy()
		outputTensor.Destroy()
		return nil, fmt.Errorf("create embedding session: %w", err)
	}

	return &ONNXEmbedder{
		session:      session,
		inputTensor:  inputTensor,
		outputTensor: outputTensor,
		dim:          dim,
	}, nil
}

func (e *ONNXEmbedder) Embed(ctx context.Context, imageData []byte) ([]float32, error) {
	start := time.Now()

	vec, err := e.embed(ctx, imageData)
	if err != nil {
		observability.EmbeddingRequests.WithLabelValues("local", "error").Inc()
		return nil, err
	}

	observability.EmbeddingRequests.WithLabelValues("local", "ok").Inc()
	observability.EmbeddingDuration.WithLabelValues("local").Observe(time.Since(start).Seconds())
	return vec, nil
}

func (e *ONNXEmbedder) embed(ctx context.Context, imageData []byte) ([]float32, error) {
	img, _, err := image.Decode(bytes.NewReader(imageData))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}

	input := imageToTensor(img, onnxInputW, onnxInputH)

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// The session reuses one pair of io tensors; runs must not overlap.
	e.mu.Lock()
	defer e.mu.Unlock()

	copy(e.inputTensor.GetData(), input)
	if err := e.session.Run(); err != nil {
		return nil, fmt.Errorf("run embedding model: %w", err)
	}

	vec := make([]float32, e.dim)
	copy(vec, e.outputTensor.GetData())
	l2Normalize(vec)
	return vec, nil
}

func (e *ONNXEmbedder) Dimension() int {
	return e.dim
}

func (e *ONNXEmbedder) Close() {
	if e.session != nil {
		e.session.Destroy()
	}
	if e.inputTensor != nil {
		e.inputTensor.Destroy()
	}
	if e.outputTensor != nil {
		e.outputTensor.Destroy()
	}
}

// Compile-time assertion.
var _ Embedder = (*ONNXEmbedder)(nil)

// imageToTensor converts an image to CHW float32 with (p-127.5)/127.5
// normalization.
func imageToTensor(img image.Image, targetW, targetH int) []float32 {
	resized := resizeNearest(img, targetW, targetH)
	bounds := resized.Bounds()
	w := bounds.Dx()
	h := bounds.Dy()

	data := make([]float32, 3*h*w)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			r, g, b, _ := resized.At(x+bounds.Min.X, y+bounds.Min.Y).RGBA()

			rf := float32(r >> 8)
			gf := float32(g >> 8)
			bf := float32(b >> 8)

			idx := y*w + x
			data[0*h*w+idx] = (rf - 127.5) / 127.5
			data[1*h*w+idx] = (gf - 127.5) / 127.5
			data[2*h*w+idx] = (bf - 127.5) / 127.5
		}
	}
	return data
}

// resizeNearest performs nearest-neighbour resize, which is fast and good
// enough for model input.
func resizeNearest(img image.Image, targetW, targetH int) image.Image {
	bounds := img.Bounds()
	srcW := bounds.Dx()
	srcH := bounds.Dy()

	dst := image.NewRGBA(image.Rect(0, 0, targetW, targetH))
	for y := 0; y < targetH; y++ {
		for x := 0; x < targetW; x++ {
			srcX := bounds.Min.X + x*srcW/targetW
			srcY := bounds.Min.Y + y*srcH/targetH
			dst.Set(x, y, img.At(srcX, srcY))
		}
	}
	return dst
}
