package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"

	"github.com/disintegration/imaging"
)

type stdlibTransformer struct{}

func (t stdlibTransformer) Transform(ctx context.Context, input []byte, targetWidth int) (Rendition, error) {
	select {
	case <-ctx.Done():
		return Rendition{}, ctx.Err()
	default:
	}

	src, _, err := image.Decode(bytes.NewReader(input))
	if err != nil {
		return Rendition{}, fmt.Errorf("%w: %v", ErrDecode, err)
	}

	srcBounds := src.Bounds()
	width, height, err := TargetSize(srcBounds.Dx(), srcBounds.Dy(), targetWidth)
	if err != nil {
		return Rendition{}, err
	}

	rgb, mode := ToRGB(src)
	out := resizeLanczos(rgb, width, height)

	data, err := encodePNG(out)
	if err != nil {
		return Rendition{}, err
	}

	return Rendition{
		Data:         data,
		Width:        out.Bounds().Dx(),
		Height:       out.Bounds().Dy(),
		SourceWidth:  srcBounds.Dx(),
		SourceHeight: srcBounds.Dy(),
		SourceMode:   mode,
	}, nil
}

// resizeLanczos resamples src and returns an opaque RGBA image. imaging works
// in NRGBA; with an opaque source every channel value is already straight.
func resizeLanczos(src *image.RGBA, width, height int) *image.RGBA {
	var resized *image.NRGBA
	if src.Bounds().Dx() == width && src.Bounds().Dy() == height {
		resized = imaging.Clone(src)
	} else {
		resized = imaging.Resize(src, width, height, imaging.Lanczos)
	}

	for i := 3; i < len(resized.Pix); i += 4 {
		resized.Pix[i] = 0xff
	}
	return &image.RGBA{
		Pix:    resized.Pix,
		Stride: resized.Stride,
		Rect:   resized.Rect,
	}
}

func encodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	encoder := png.Encoder{CompressionLevel: png.BestCompression}
	if err := encoder.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}
