package pipeline

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/dunamismax/levelforge/internal/domain"
)

func TestConvertAndResize_PortraitJPEG(t *testing.T) {
	tmp := t.TempDir()
	inputPath := filepath.Join(tmp, "puzzle_a.jpg")
	writeFile(t, inputPath, buildTestJPEG(t, 1200, 1600))

	fullPath := filepath.Join(tmp, "level_01.png")
	w, h, err := ConvertAndResize(context.Background(), inputPath, fullPath, 2048)
	if err != nil {
		t.Fatalf("convert full size: %v", err)
	}
	if w != 2048 || h != 2730 {
		t.Fatalf("expected 2048x2730, got %dx%d", w, h)
	}
	verifyPNG(t, fullPath, 2048, 2730)

	thumbPath := filepath.Join(tmp, "level_01_thumb.png")
	w, h, err = ConvertAndResize(context.Background(), inputPath, thumbPath, 512)
	if err != nil {
		t.Fatalf("convert thumbnail: %v", err)
	}
	if w != 512 || h != 682 {
		t.Fatalf("expected 512x682, got %dx%d", w, h)
	}
	verifyPNG(t, thumbPath, 512, 682)
}

func TestConvertAndResize_TranslucentPNGBecomesRGB(t *testing.T) {
	tmp := t.TempDir()
	inputPath := filepath.Join(tmp, "puzzle_alpha.png")

	src := image.NewNRGBA(image.Rect(0, 0, 40, 30))
	for y := 0; y < 30; y++ {
		for x := 0; x < 40; x++ {
			src.SetNRGBA(x, y, color.NRGBA{R: 200, G: 40, B: 10, A: 60})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, src); err != nil {
		t.Fatalf("encode source png: %v", err)
	}
	writeFile(t, inputPath, buf.Bytes())

	outputPath := filepath.Join(tmp, "out.png")
	if _, _, err := ConvertAndResize(context.Background(), inputPath, outputPath, 20); err != nil {
		t.Fatalf("convert: %v", err)
	}
	img := verifyPNG(t, outputPath, 20, 15)

	r, g, b, a := img.At(10, 7).RGBA()
	if a != 0xffff {
		t.Fatalf("expected opaque output, got alpha %d", a)
	}
	if r>>8 != 200 || g>>8 != 40 || b>>8 != 10 {
		t.Fatalf("expected straight colour 200,40,10 to survive, got %d,%d,%d", r>>8, g>>8, b>>8)
	}
}

func TestConvertAndResize_OverwritesAtomically(t *testing.T) {
	tmp := t.TempDir()
	inputPath := filepath.Join(tmp, "puzzle1.jpg")
	writeFile(t, inputPath, buildTestJPEG(t, 300, 200))

	outputPath := filepath.Join(tmp, "level_01.png")
	writeFile(t, outputPath, []byte("stale"))

	if _, _, err := ConvertAndResize(context.Background(), inputPath, outputPath, 150); err != nil {
		t.Fatalf("first convert: %v", err)
	}
	first, err := os.ReadFile(outputPath)
	if err != nil {
		t.Fatalf("read first output: %v", err)
	}
	if _, _, err := ConvertAndResize(context.Background(), inputPath, outputPath, 150); err != nil {
		t.Fatalf("second convert: %v", err)
	}
	second, err := os.ReadFile(outputPath)
	if err != nil {
		t.Fatalf("read second output: %v", err)
	}
	if !bytes.Equal(first, second) {
		t.Fatal("expected identical output for identical input")
	}

	entries, err := os.ReadDir(tmp)
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected only input and output in dir, got %d entries", len(entries))
	}
}

func TestConvertAndResize_DecodeFailure(t *testing.T) {
	tmp := t.TempDir()
	inputPath := filepath.Join(tmp, "puzzle1.jpg")
	writeFile(t, inputPath, []byte("not an image"))

	_, _, err := ConvertAndResize(context.Background(), inputPath, filepath.Join(tmp, "out.png"), 64)
	if !errors.Is(err, ErrDecode) {
		t.Fatalf("expected ErrDecode, got %v", err)
	}
}

func TestConvertAndResize_MissingOutputDir(t *testing.T) {
	tmp := t.TempDir()
	inputPath := filepath.Join(tmp, "puzzle1.jpg")
	writeFile(t, inputPath, buildTestJPEG(t, 64, 64))

	_, _, err := ConvertAndResize(context.Background(), inputPath, filepath.Join(tmp, "missing", "out.png"), 32)
	if !errors.Is(err, ErrWrite) {
		t.Fatalf("expected ErrWrite, got %v", err)
	}
}

func TestConvertAndResize_InvalidWidth(t *testing.T) {
	_, _, err := ConvertAndResize(context.Background(), "in.jpg", "out.png", 0)
	if !errors.Is(err, ErrInvalidWidth) {
		t.Fatalf("expected ErrInvalidWidth, got %v", err)
	}
}

func TestResizerRunsExtraEmitters(t *testing.T) {
	tmp := t.TempDir()
	inputPath := filepath.Join(tmp, "puzzle1.jpg")
	writeFile(t, inputPath, buildTestJPEG(t, 100, 50))

	store := &memoryObjects{objects: map[string][]byte{}}
	resizer, err := NewResizer(ObjectStoreEmitter{Storage: store, OutputPrefix: "xmas"})
	if err != nil {
		t.Fatalf("new resizer: %v", err)
	}

	out, err := resizer.Convert(context.Background(), domain.ConversionRequest{
		Level:       3,
		Variant:     domain.VariantThumb,
		InputPath:   inputPath,
		OutputPath:  filepath.Join(tmp, "level_03_thumb.png"),
		TargetWidth: 40,
	})
	if err != nil {
		t.Fatalf("convert: %v", err)
	}

	mirrored, ok := store.objects["xmas/thumbnails/level_03_thumb.png"]
	if !ok {
		t.Fatalf("expected mirrored object, got keys %v", store.keys())
	}
	if int64(len(mirrored)) != out.Bytes {
		t.Fatalf("expected mirrored size %d, got %d", out.Bytes, len(mirrored))
	}
	if store.contentType != "image/png" {
		t.Fatalf("expected image/png content type, got %s", store.contentType)
	}
}

type memoryObjects struct {
	objects     map[string][]byte
	contentType string
}

func (m *memoryObjects) WriteObject(_ context.Context, key string, data []byte, contentType string) error {
	m.objects[key] = append([]byte(nil), data...)
	m.contentType = contentType
	return nil
}

func (m *memoryObjects) keys() []string {
	keys := make([]string, 0, len(m.objects))
	for k := range m.objects {
		keys = append(keys, k)
	}
	return keys
}

func buildTestJPEG(t testing.TB, w, h int) []byte {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{
				R: uint8((x * 255) / w),
				G: uint8((y * 255) / h),
				B: 140,
				A: 255,
			})
		}
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 90}); err != nil {
		t.Fatalf("encode source jpeg: %v", err)
	}
	return buf.Bytes()
}

func writeFile(t *testing.T, path string, data []byte) {
	t.Helper()
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

// verifyPNG checks dimensions and that the IHDR colour type is 8-bit truecolor.
func verifyPNG(t *testing.T, path string, wantW, wantH int) image.Image {
	t.Helper()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	if len(data) < 26 {
		t.Fatalf("png %s too short", path)
	}
	if depth, colorType := data[24], data[25]; depth != 8 || colorType != 2 {
		t.Fatalf("expected 8-bit RGB png, got depth=%d color_type=%d", depth, colorType)
	}

	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("decode %s: %v", path, err)
	}
	if got := img.Bounds(); got.Dx() != wantW || got.Dy() != wantH {
		t.Fatalf("expected %dx%d, got %dx%d", wantW, wantH, got.Dx(), got.Dy())
	}
	return img
}
