package pipeline

import (
	"image"
	"image/color"
	"testing"
)

func TestClassifyMode(t *testing.T) {
	rect := image.Rect(0, 0, 2, 2)

	gray := image.NewGray(rect)
	if got := ClassifyMode(gray); got != ModeGray {
		t.Fatalf("expected L for gray, got %s", got)
	}

	ycc := image.NewYCbCr(rect, image.YCbCrSubsampleRatio420)
	if got := ClassifyMode(ycc); got != ModeRGB {
		t.Fatalf("expected RGB for ycbcr, got %s", got)
	}

	opaque := image.NewNRGBA(rect)
	fill(opaque, color.NRGBA{R: 10, G: 20, B: 30, A: 255})
	if got := ClassifyMode(opaque); got != ModeRGB {
		t.Fatalf("expected RGB for opaque nrgba, got %s", got)
	}

	translucent := image.NewNRGBA(rect)
	fill(translucent, color.NRGBA{R: 10, G: 20, B: 30, A: 128})
	if got := ClassifyMode(translucent); got != ModeRGBA {
		t.Fatalf("expected RGBA, got %s", got)
	}

	grayAlpha := image.NewNRGBA(rect)
	fill(grayAlpha, color.NRGBA{R: 90, G: 90, B: 90, A: 128})
	if got := ClassifyMode(grayAlpha); got != ModeGrayAlpha {
		t.Fatalf("expected LA, got %s", got)
	}

	pal := image.NewPaletted(rect, color.Palette{color.Black, color.White})
	if got := ClassifyMode(pal); got != ModePalette {
		t.Fatalf("expected P, got %s", got)
	}
}

func TestToRGBGray(t *testing.T) {
	src := image.NewGray(image.Rect(0, 0, 3, 1))
	src.SetGray(1, 0, color.Gray{Y: 77})

	dst, mode := ToRGB(src)
	if mode != ModeGray {
		t.Fatalf("expected L, got %s", mode)
	}
	if got := dst.RGBAAt(1, 0); got != (color.RGBA{R: 77, G: 77, B: 77, A: 255}) {
		t.Fatalf("expected replicated gray, got %v", got)
	}
}

func TestToRGBPaletteDropsAlpha(t *testing.T) {
	palette := color.Palette{
		color.NRGBA{R: 255, G: 0, B: 0, A: 255},
		color.NRGBA{R: 0, G: 128, B: 255, A: 0},
	}
	src := image.NewPaletted(image.Rect(0, 0, 2, 1), palette)
	src.SetColorIndex(0, 0, 0)
	src.SetColorIndex(1, 0, 1)

	dst, mode := ToRGB(src)
	if mode != ModePalette {
		t.Fatalf("expected P, got %s", mode)
	}
	if got := dst.RGBAAt(0, 0); got != (color.RGBA{R: 255, A: 255}) {
		t.Fatalf("expected opaque red, got %v", got)
	}
	if got := dst.RGBAAt(1, 0); got != (color.RGBA{R: 0, G: 128, B: 255, A: 255}) {
		t.Fatalf("expected transparent entry to keep its colour, got %v", got)
	}
}

func TestToRGBRebasesOffsetBounds(t *testing.T) {
	src := image.NewNRGBA(image.Rect(5, 5, 7, 7))
	src.SetNRGBA(6, 6, color.NRGBA{R: 1, G: 2, B: 3, A: 10})

	dst, _ := ToRGB(src)
	if dst.Bounds() != image.Rect(0, 0, 2, 2) {
		t.Fatalf("expected origin-anchored bounds, got %v", dst.Bounds())
	}
	if got := dst.RGBAAt(1, 1); got != (color.RGBA{R: 1, G: 2, B: 3, A: 255}) {
		t.Fatalf("expected straight colour at (1,1), got %v", got)
	}
	if !dst.Opaque() {
		t.Fatal("expected opaque result")
	}
}

func TestTargetSizeFloors(t *testing.T) {
	cases := []struct {
		srcW, srcH, target int
		wantH              int
	}{
		{1200, 1600, 2048, 2730},
		{1200, 1600, 512, 682},
		{1600, 1200, 512, 384},
		{1000, 3000, 100, 300},
	}
	for _, tc := range cases {
		w, h, err := TargetSize(tc.srcW, tc.srcH, tc.target)
		if err != nil {
			t.Fatalf("TargetSize(%d,%d,%d): %v", tc.srcW, tc.srcH, tc.target, err)
		}
		if w != tc.target || h != tc.wantH {
			t.Fatalf("TargetSize(%d,%d,%d) = %dx%d, want %dx%d", tc.srcW, tc.srcH, tc.target, w, h, tc.target, tc.wantH)
		}
	}

	if _, _, err := TargetSize(10000, 1, 512); err == nil {
		t.Fatal("expected degenerate size error")
	}
}

func fill(img *image.NRGBA, c color.NRGBA) {
	b := img.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			img.SetNRGBA(x, y, c)
		}
	}
}
