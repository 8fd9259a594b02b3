package dataset

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/theaipetcompany/memory-management-sub000/internal/observability"
)

// Provider-side vision fine-tuning limits.
const (
	MaxExamples         = 50000
	MaxImagesPerExample = 10
)

var (
	ErrTooManyExamples = errors.New("training file is full")
	ErrTooManyImages   = errors.New("too many images in one example")
)

// Skip records one example left out of the file, with the input index it
// arrived at.
type Skip struct {
	Index  int        `json:"index"`
	Reason SkipReason `json:"reason"`
	Detail string     `json:"detail"`
}

// Report summarises a finished build.
type Report struct {
	Built   int    `json:"built"`
	Skipped []Skip `json:"skipped"`
}

type chatMessage struct {
	Role    string      `json:"role"`
	Content interface{} `json:"content"`
}

type contentPart struct {
	Type     string    `json:"type"`
	ImageURL *imageURL `json:"image_url,omitempty"`
}

type imageURL struct {
	URL string `json:"url"`
}

type trainingRecord struct {
	Messages []chatMessage `json:"messages"`
}

// Builder accumulates training examples into a newline-delimited JSON
// document. Each valid example becomes one record of the fixed shape:
// a system prompt, a user message carrying the images as base64 data URLs,
// and an assistant message with the annotation text. Invalid examples are
// skipped with a reason; only the aggregate limits abort a batch.
type Builder struct {
	systemPrompt string
	buf          bytes.Buffer
	built        int
	skipped      []Skip
	index        int
}

func NewBuilder(systemPrompt string) *Builder {
	return &Builder{systemPrompt: systemPrompt}
}

// Add appends a single-image example.
func (b *Builder) Add(image []byte, annotation string) error {
	return b.AddExample([][]byte{image}, annotation)
}

// AddExample appends a multi-image example. Limit violations return an
// error; a bad image or empty annotation records a skip and returns nil.
func (b *Builder) AddExample(images [][]byte, annotation string) error {
	idx := b.index
	b.index++

	if len(images) > MaxImagesPerExample {
		return fmt.Errorf("%w: example %d has %d images, max %d", ErrTooManyImages, idx, len(images), MaxImagesPerExample)
	}
	if b.built >= MaxExamples {
		return fmt.Errorf("%w: max %d examples", ErrTooManyExamples, MaxExamples)
	}

	if strings.TrimSpace(annotation) == "" {
		b.skip(idx, SkipNoAnnotation, "empty annotation")
		return nil
	}

	parts := make([]contentPart, 0, len(images))
	for _, img := range images {
		info, err := ValidateImage(img)
		if err != nil {
			var verr *ValidationError
			if errors.As(err, &verr) {
				b.skip(idx, verr.Reason, verr.Message)
			} else {
				b.skip(idx, SkipUndecodable, err.Error())
			}
			return nil
		}
		parts = append(parts, contentPart{
			Type:     "image_url",
			ImageURL: &imageURL{URL: dataURL(info.ContentType, img)},
		})
	}

	record := trainingRecord{Messages: []chatMessage{
		{Role: "system", Content: b.systemPrompt},
		{Role: "user", Content: parts},
		{Role: "assistant", Content: annotation},
	}}
	line, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("marshal record: %w", err)
	}
	b.buf.Write(line)
	b.buf.WriteByte('\n')
	b.built++
	observability.DatasetRecordsBuilt.Inc()
	return nil
}

// Bytes returns the JSONL document assembled so far.
func (b *Builder) Bytes() []byte {
	return b.buf.Bytes()
}

// Report returns built/skipped counts for the batch.
func (b *Builder) Report() Report {
	return Report{Built: b.built, Skipped: b.skipped}
}

func (b *Builder) skip(idx int, reason SkipReason, detail string) {
	b.skipped = append(b.skipped, Skip{Index: idx, Reason: reason, Detail: detail})
	observability.DatasetRecordsSkipped.WithLabelValues(string(reason)).Inc()
}

func dataURL(contentType string, data []byte) string {
	return fmt.Sprintf("data:%s;base64,%s", contentType, base64.StdEncoding.EncodeToString(data))
}
