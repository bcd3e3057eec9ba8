//go:build govips && cgo

package pipeline

import (
	"context"
	"fmt"

	"github.com/davidbyttow/govips/v2/vips"
)

type govipsTransformer struct{}

func (t govipsTransformer) Transform(ctx context.Context, input []byte, targetWidth int) (Rendition, error) {
	select {
	case <-ctx.Done():
		return Rendition{}, ctx.Err()
	default:
	}

	img, err := vips.NewImageFromBuffer(input)
	if err != nil {
		return Rendition{}, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	defer img.Close()

	srcW, srcH := img.Width(), img.Height()
	width, height, err := TargetSize(srcW, srcH, targetWidth)
	if err != nil {
		return Rendition{}, err
	}

	mode := govipsMode(img)
	if err := flattenGovips(img); err != nil {
		return Rendition{}, err
	}

	hScale := float64(width) / float64(srcW)
	vScale := float64(height) / float64(srcH)
	if err := img.ResizeWithVScale(hScale, vScale, vips.KernelLanczos3); err != nil {
		return Rendition{}, fmt.Errorf("resize image: %w", err)
	}
	if img.Width() != width || img.Height() != height {
		return Rendition{}, fmt.Errorf("resize produced %dx%d, want %dx%d", img.Width(), img.Height(), width, height)
	}

	params := vips.NewPngExportParams()
	params.Compression = 9
	params.StripMetadata = true
	data, _, err := img.ExportPng(params)
	if err != nil {
		return Rendition{}, fmt.Errorf("encode png: %w", err)
	}

	return Rendition{
		Data:         data,
		Width:        width,
		Height:       height,
		SourceWidth:  srcW,
		SourceHeight: srcH,
		SourceMode:   mode,
	}, nil
}

func govipsMode(img *vips.ImageRef) ColorMode {
	gray := img.Interpretation() == vips.InterpretationBW || img.Interpretation() == vips.InterpretationGrey16
	switch {
	case gray && img.HasAlpha():
		return ModeGrayAlpha
	case gray:
		return ModeGray
	case img.HasAlpha():
		return ModeRGBA
	default:
		return ModeRGB
	}
}

// flattenGovips converts to sRGB and keeps only the first three bands, which
// drops alpha without compositing it onto a background.
func flattenGovips(img *vips.ImageRef) error {
	if err := img.ToColorSpace(vips.InterpretationSRGB); err != nil {
		return fmt.Errorf("convert to srgb: %w", err)
	}
	if img.Bands() > 3 {
		if err := img.ExtractBand(0, 3); err != nil {
			return fmt.Errorf("drop alpha band: %w", err)
		}
	}
	return nil
}
