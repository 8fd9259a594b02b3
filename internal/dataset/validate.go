// Package dataset validates annotation images and assembles vision
// fine-tuning training files in the provider's JSONL chat format.
package dataset

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	_ "image/jpeg"
	_ "image/png"

	"github.com/gabriel-vasile/mimetype"
	_ "golang.org/x/image/webp"
)

const (
	MaxImageBytes = 10 << 20
	MinDimension  = 64
)

// SkipReason classifies why a record was left out of a training file.
type SkipReason string

const (
	SkipTooLarge     SkipReason = "too_large"
	SkipBadFormat    SkipReason = "bad_format"
	SkipTooSmall     SkipReason = "too_small"
	SkipUndecodable  SkipReason = "undecodable"
	SkipColorModel   SkipReason = "color_model"
	SkipNoAnnotation SkipReason = "no_annotation"
)

// ValidationError rejects a single image; callers map Reason to a skip
// counter or an HTTP 400.
type ValidationError struct {
	Reason  SkipReason
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

var allowedMIMEs = map[string]struct{}{
	"image/jpeg": {},
	"image/png":  {},
	"image/webp": {},
}

// ImageInfo describes a validated image.
type ImageInfo struct {
	ContentType string
	Width       int
	Height      int
}

// ValidateImage checks an uploaded image against the training-data rules:
// sniffed MIME in the allowed set, bounded size, decodable header, plausible
// dimensions and an RGB-compatible color model.
func ValidateImage(data []byte) (*ImageInfo, error) {
	if len(data) > MaxImageBytes {
		return nil, &ValidationError{
			Reason:  SkipTooLarge,
			Message: fmt.Sprintf("image is %d bytes, max %d", len(data), MaxImageBytes),
		}
	}

	mtype := mimetype.Detect(data).String()
	if _, ok := allowedMIMEs[mtype]; !ok {
		return nil, &ValidationError{
			Reason:  SkipBadFormat,
			Message: fmt.Sprintf("unsupported image format %s", mtype),
		}
	}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, &ValidationError{
			Reason:  SkipUndecodable,
			Message: fmt.Sprintf("undecodable image: %v", err),
		}
	}

	if cfg.Width < MinDimension || cfg.Height < MinDimension {
		return nil, &ValidationError{
			Reason:  SkipTooSmall,
			Message: fmt.Sprintf("image is %dx%d, min %dx%d", cfg.Width, cfg.Height, MinDimension, MinDimension),
		}
	}

	if !rgbCompatible(cfg.ColorModel) {
		return nil, &ValidationError{
			Reason:  SkipColorModel,
			Message: "image color model is not RGB-compatible",
		}
	}

	return &ImageInfo{
		ContentType: mtype,
		Width:       cfg.Width,
		Height:      cfg.Height,
	}, nil
}

// rgbCompatible rejects grayscale, alpha-only and CMYK images. YCbCr,
// RGBA variants and palettes all decode to RGB.
func rgbCompatible(m color.Model) bool {
	switch m {
	case color.GrayModel, color.Gray16Model, color.AlphaModel, color.Alpha16Model, color.CMYKModel:
		return false
	}
	return true
}
