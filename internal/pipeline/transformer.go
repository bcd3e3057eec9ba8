package pipeline

import (
	"context"
	"errors"
	"fmt"
)

var (
	ErrDecode         = errors.New("decode source image")
	ErrInvalidWidth   = errors.New("target width must be > 0")
	ErrDegenerateSize = errors.New("computed output height is zero")
)

// Rendition is an encoded PNG together with the dimensions it was resampled to.
type Rendition struct {
	Data         []byte
	Width        int
	Height       int
	SourceWidth  int
	SourceHeight int
	SourceMode   ColorMode
}

type Transformer interface {
	Transform(ctx context.Context, input []byte, targetWidth int) (Rendition, error)
}

// TargetSize keeps the source aspect ratio at a fixed width. The height is
// truncated toward zero, never rounded.
func TargetSize(srcW, srcH, targetWidth int) (int, int, error) {
	if targetWidth <= 0 {
		return 0, 0, fmt.Errorf("%w: %d", ErrInvalidWidth, targetWidth)
	}
	if srcW <= 0 || srcH <= 0 {
		return 0, 0, fmt.Errorf("source image has invalid dimensions %dx%d", srcW, srcH)
	}

	aspect := float64(srcH) / float64(srcW)
	height := int(float64(targetWidth) * aspect)
	if height < 1 {
		return 0, 0, fmt.Errorf("%w: %dx%d at width %d", ErrDegenerateSize, srcW, srcH, targetWidth)
	}
	return targetWidth, height, nil
}
