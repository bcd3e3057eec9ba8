package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/dunamismax/levelforge/internal/domain"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var ErrWrite = errors.New("write output image")

type Fetcher interface {
	Fetch(ctx context.Context, req domain.ConversionRequest) ([]byte, error)
}

type Emitter interface {
	Emit(ctx context.Context, req domain.ConversionRequest, data []byte) error
}

// Resizer turns one source image into one PNG rendition. The local file
// emitter always runs first; extra emitters see the same bytes afterwards.
type Resizer struct {
	fetcher     Fetcher
	transformer Transformer
	emitters    []Emitter
	tracer      trace.Tracer
}

func NewResizer(extra ...Emitter) (*Resizer, error) {
	transformer, err := newTransformer()
	if err != nil {
		return nil, fmt.Errorf("build transformer: %w", err)
	}

	emitters := []Emitter{LocalFileEmitter{}}
	for _, e := range extra {
		if e != nil {
			emitters = append(emitters, e)
		}
	}

	return &Resizer{
		fetcher:     LocalFileFetcher{},
		transformer: transformer,
		emitters:    emitters,
		tracer:      otel.Tracer("levelforge/pipeline"),
	}, nil
}

// ConvertAndResize is the single-call form used outside a batch run.
func ConvertAndResize(ctx context.Context, inputPath, outputPath string, targetWidth int) (int, int, error) {
	r, err := NewResizer()
	if err != nil {
		return 0, 0, err
	}
	out, err := r.Convert(ctx, domain.ConversionRequest{
		Level:       0,
		Variant:     domain.VariantFull,
		InputPath:   inputPath,
		OutputPath:  outputPath,
		TargetWidth: targetWidth,
	})
	if err != nil {
		return 0, 0, err
	}
	return out.Width, out.Height, nil
}

func (r *Resizer) Convert(ctx context.Context, req domain.ConversionRequest) (domain.Output, error) {
	if err := req.Validate(); err != nil {
		if req.TargetWidth <= 0 {
			return domain.Output{}, fmt.Errorf("%w: %v", ErrInvalidWidth, err)
		}
		return domain.Output{}, err
	}

	ctx, span := r.tracer.Start(ctx, "pipeline.convert")
	span.SetAttributes(
		attribute.String("conversion.input", filepath.Base(req.InputPath)),
		attribute.String("conversion.output", filepath.Base(req.OutputPath)),
		attribute.String("conversion.variant", req.Variant),
		attribute.Int("conversion.target_width", req.TargetWidth),
	)
	defer span.End()

	out, err := r.convert(ctx, req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "conversion failed")
		return domain.Output{}, err
	}

	span.SetAttributes(
		attribute.Int("conversion.width", out.Width),
		attribute.Int("conversion.height", out.Height),
	)
	span.SetStatus(codes.Ok, "converted")
	return out, nil
}

func (r *Resizer) convert(ctx context.Context, req domain.ConversionRequest) (domain.Output, error) {
	sourceBytes, err := r.fetcher.Fetch(ctx, req)
	if err != nil {
		return domain.Output{}, fmt.Errorf("fetch stage: %w", err)
	}

	rendition, err := r.transformer.Transform(ctx, sourceBytes, req.TargetWidth)
	if err != nil {
		return domain.Output{}, fmt.Errorf("transform stage input=%s: %w", req.InputPath, err)
	}

	for _, emitter := range r.emitters {
		if err := emitter.Emit(ctx, req, rendition.Data); err != nil {
			return domain.Output{}, fmt.Errorf("emit stage output=%s: %w", req.OutputPath, err)
		}
	}

	return domain.Output{
		Variant: req.Variant,
		Path:    req.OutputPath,
		Width:   rendition.Width,
		Height:  rendition.Height,
		Bytes:   int64(len(rendition.Data)),
	}, nil
}

type LocalFileFetcher struct{}

func (LocalFileFetcher) Fetch(ctx context.Context, req domain.ConversionRequest) ([]byte, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	data, err := os.ReadFile(req.InputPath)
	if err != nil {
		return nil, fmt.Errorf("read input file %s: %w", req.InputPath, err)
	}
	return data, nil
}

// LocalFileEmitter replaces OutputPath atomically: the PNG is written to a
// temp file in the same directory and renamed over the destination.
type LocalFileEmitter struct{}

func (LocalFileEmitter) Emit(_ context.Context, req domain.ConversionRequest, data []byte) error {
	if strings.TrimSpace(req.OutputPath) == "" {
		return errors.New("output path is required")
	}
	if err := writeFileAtomic(req.OutputPath, data, 0o644); err != nil {
		return fmt.Errorf("%w %s: %v", ErrWrite, req.OutputPath, err)
	}
	return nil
}

func writeFileAtomic(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, perm); err != nil {
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		return err
	}
	committed = true
	return nil
}
