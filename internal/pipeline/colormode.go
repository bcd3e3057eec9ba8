package pipeline

import (
	"image"
	"image/color"

	xdraw "golang.org/x/image/draw"
)

// ColorMode is the closed set of source colour layouts the converter accepts.
type ColorMode int

const (
	ModeRGB ColorMode = iota
	ModeGray
	ModeGrayAlpha
	ModeRGBA
	ModePalette
)

func (m ColorMode) String() string {
	switch m {
	case ModeGray:
		return "L"
	case ModeGrayAlpha:
		return "LA"
	case ModeRGBA:
		return "RGBA"
	case ModePalette:
		return "P"
	default:
		return "RGB"
	}
}

type opaquer interface {
	Opaque() bool
}

// ClassifyMode maps a decoded image onto a ColorMode. The image/png decoder
// has no gray+alpha type and yields NRGBA for it, so a translucent image whose
// pixels are all neutral is reported as ModeGrayAlpha.
func ClassifyMode(img image.Image) ColorMode {
	switch m := img.(type) {
	case *image.Gray, *image.Gray16:
		return ModeGray
	case *image.Paletted:
		return ModePalette
	case *image.YCbCr, *image.CMYK:
		return ModeRGB
	case *image.NYCbCrA:
		if m.Opaque() {
			return ModeRGB
		}
		return ModeRGBA
	}

	switch img.ColorModel() {
	case color.GrayModel, color.Gray16Model:
		return ModeGray
	}

	if o, ok := img.(opaquer); ok && o.Opaque() {
		return ModeRGB
	}
	if isNeutral(img) {
		return ModeGrayAlpha
	}
	return ModeRGBA
}

// ToRGB returns an opaque copy of img anchored at the origin. Alpha is
// discarded rather than composited: every pixel keeps its straight colour.
func ToRGB(img image.Image) (*image.RGBA, ColorMode) {
	mode := ClassifyMode(img)
	b := img.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))

	switch mode {
	case ModeGray, ModeRGB:
		xdraw.Draw(dst, dst.Bounds(), img, b.Min, xdraw.Src)
	case ModePalette:
		paletteToRGB(dst, img.(*image.Paletted))
	default:
		dropAlpha(dst, img)
	}
	return dst, mode
}

func paletteToRGB(dst *image.RGBA, src *image.Paletted) {
	table := make([]color.RGBA, len(src.Palette))
	for i, c := range src.Palette {
		table[i] = straightRGB(c)
	}

	b := src.Bounds()
	for y := 0; y < b.Dy(); y++ {
		row := src.Pix[y*src.Stride : y*src.Stride+b.Dx()]
		for x, idx := range row {
			c := color.RGBA{A: 0xff}
			if int(idx) < len(table) {
				c = table[idx]
			}
			dst.SetRGBA(x, y, c)
		}
	}
}

func dropAlpha(dst *image.RGBA, src image.Image) {
	b := src.Bounds()
	if n, ok := src.(*image.NRGBA); ok {
		for y := 0; y < b.Dy(); y++ {
			srcRow := n.Pix[y*n.Stride : y*n.Stride+4*b.Dx()]
			dstRow := dst.Pix[y*dst.Stride : y*dst.Stride+4*b.Dx()]
			copy(dstRow, srcRow)
			for i := 3; i < len(dstRow); i += 4 {
				dstRow[i] = 0xff
			}
		}
		return
	}

	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			dst.SetRGBA(x-b.Min.X, y-b.Min.Y, straightRGB(src.At(x, y)))
		}
	}
}

func straightRGB(c color.Color) color.RGBA {
	switch v := c.(type) {
	case color.NRGBA:
		return color.RGBA{R: v.R, G: v.G, B: v.B, A: 0xff}
	case color.NRGBA64:
		return color.RGBA{R: uint8(v.R >> 8), G: uint8(v.G >> 8), B: uint8(v.B >> 8), A: 0xff}
	}
	n := color.NRGBA64Model.Convert(c).(color.NRGBA64)
	return color.RGBA{
		R: uint8(n.R >> 8),
		G: uint8(n.G >> 8),
		B: uint8(n.B >> 8),
		A: 0xff,
	}
}

func isNeutral(img image.Image) bool {
	b := img.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			c := straightRGB(img.At(x, y))
			if c.R != c.G || c.G != c.B {
				return false
			}
		}
	}
	return true
}
