package batch

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/dunamismax/levelforge/internal/config"
	"github.com/dunamismax/levelforge/internal/domain"
	"github.com/dunamismax/levelforge/internal/store"
	"github.com/dunamismax/levelforge/internal/webhook"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var ErrNoInputs = errors.New("no input files found")

type converter interface {
	Convert(ctx context.Context, req domain.ConversionRequest) (domain.Output, error)
}

type notifier interface {
	Send(ctx context.Context, event string, payload any) error
}

// Driver converts every matching source image into one full-size and one
// thumbnail PNG. Levels are numbered by position in the sorted input list.
type Driver struct {
	logger    *log.Logger
	runID     string
	sourceDir string
	pattern   string
	variants  []domain.Variant
	resizer   converter
	manifest  store.ManifestStore
	notifier  notifier
	metrics   *metrics
	tracer    trace.Tracer
}

func NewDriver(
	logger *log.Logger,
	runID string,
	cfg config.BatchConfig,
	resizer converter,
	manifest store.ManifestStore,
	notifier notifier,
) (*Driver, error) {
	if resizer == nil {
		return nil, errors.New("resizer is required")
	}

	return &Driver{
		logger:    logger,
		runID:     runID,
		sourceDir: cfg.SourceDir,
		pattern:   cfg.Pattern,
		variants: []domain.Variant{
			{Name: domain.VariantFull, Width: cfg.FullWidth, OutputDir: cfg.LevelsDir},
			{Name: domain.VariantThumb, Width: cfg.ThumbWidth, OutputDir: cfg.ThumbnailsDir},
		},
		resizer:  resizer,
		manifest: manifest,
		notifier: notifier,
		metrics:  newMetrics(),
		tracer:   otel.Tracer("levelforge/batch"),
	}, nil
}

func (d *Driver) WriteMetrics(path string) error {
	return d.metrics.writeTextfile(path)
}

func (d *Driver) Run(ctx context.Context) (domain.RunSummary, error) {
	summary := domain.RunSummary{
		RunID:     d.runID,
		SourceDir: d.sourceDir,
		StartedAt: time.Now().UTC(),
	}

	ctx, span := d.tracer.Start(ctx, "batch.run")
	span.SetAttributes(
		attribute.String("batch.run_id", d.runID),
		attribute.String("batch.source_dir", d.sourceDir),
	)
	defer span.End()

	err := d.run(ctx, &summary)
	summary.FinishedAt = time.Now().UTC()

	d.metrics.lastRunDuration.Set(summary.FinishedAt.Sub(summary.StartedAt).Seconds())
	d.metrics.lastRunTimestamp.Set(float64(summary.FinishedAt.Unix()))
	span.SetAttributes(attribute.Int("batch.levels", summary.Levels))

	if err != nil {
		d.metrics.lastRunSuccess.Set(0)
		span.RecordError(err)
		span.SetStatus(codes.Error, "batch failed")
		d.notify(ctx, webhook.EventBatchFailed, map[string]any{
			"summary": summary,
			"error":   err.Error(),
		})
		return summary, err
	}

	d.metrics.lastRunSuccess.Set(1)
	span.SetStatus(codes.Ok, "converted")
	d.notify(ctx, webhook.EventBatchCompleted, map[string]any{
		"summary": summary,
	})
	return summary, nil
}

func (d *Driver) run(ctx context.Context, summary *domain.RunSummary) error {
	for _, v := range d.variants {
		if err := os.MkdirAll(v.OutputDir, 0o755); err != nil {
			return fmt.Errorf("create output dir %s: %w", v.OutputDir, err)
		}
	}

	files, err := Discover(d.sourceDir, d.pattern)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return fmt.Errorf("%w: %s in %s", ErrNoInputs, d.pattern, d.sourceDir)
	}

	d.logger.Printf("converting run_id=%s inputs=%d source=%s", d.runID, len(files), d.sourceDir)
	for _, v := range d.variants {
		d.logger.Printf("target variant=%s width=%d dir=%s", v.Name, v.Width, v.OutputDir)
	}

	for i, path := range files {
		if err := ctx.Err(); err != nil {
			return err
		}

		level := i + 1
		d.warnIfRenumbered(level, path)

		record, err := d.convertLevel(ctx, level, path)
		if err != nil {
			return err
		}
		summary.Levels++
		summary.Outputs += len(record.Outputs)
		d.metrics.levelsTotal.Inc()

		if d.manifest != nil {
			if err := d.manifest.RecordLevel(ctx, record); err != nil {
				return fmt.Errorf("record level %d: %w", level, err)
			}
		}
	}

	d.logger.Printf("converted %d puzzle images: %d full-size PNGs and %d thumbnails", summary.Levels, summary.Levels, summary.Levels)
	return nil
}

func (d *Driver) convertLevel(ctx context.Context, level int, sourcePath string) (domain.LevelRecord, error) {
	sourceName := filepath.Base(sourcePath)

	ctx, span := d.tracer.Start(ctx, "batch.convert_level")
	span.SetAttributes(
		attribute.Int("level.number", level),
		attribute.String("level.source", sourceName),
	)
	defer span.End()

	d.logger.Printf("processing level=%02d source=%s", level, sourceName)

	record := domain.LevelRecord{
		RunID:      d.runID,
		Level:      level,
		SourceName: sourceName,
		Outputs:    make([]domain.Output, 0, len(d.variants)),
	}
	for _, v := range d.variants {
		if err := ctx.Err(); err != nil {
			return domain.LevelRecord{}, err
		}

		req := domain.ConversionRequest{
			Level:       level,
			Variant:     v.Name,
			InputPath:   sourcePath,
			OutputPath:  v.OutputPath(level),
			TargetWidth: v.Width,
		}

		startedAt := time.Now()
		out, err := d.resizer.Convert(ctx, req)
		d.metrics.conversionDuration.WithLabelValues(v.Name).Observe(time.Since(startedAt).Seconds())
		if err != nil {
			d.metrics.conversionsTotal.WithLabelValues(v.Name, "failed").Inc()
			span.RecordError(err)
			span.SetStatus(codes.Error, "conversion failed")
			return domain.LevelRecord{}, fmt.Errorf("level %d %s from %s: %w", level, v.Name, sourceName, err)
		}
		d.metrics.conversionsTotal.WithLabelValues(v.Name, "succeeded").Inc()
		d.metrics.outputBytesTotal.WithLabelValues(v.Name).Add(float64(out.Bytes))

		d.logger.Printf("  [OK] variant=%s output=%s size=%dx%d", v.Name, filepath.Base(out.Path), out.Width, out.Height)
		record.Outputs = append(record.Outputs, out)
	}

	record.ConvertedAt = time.Now().UTC()
	return record, nil
}

var embeddedNumberPattern = regexp.MustCompile(`(\d+)`)

// warnIfRenumbered flags a source whose own number disagrees with its
// sort-order level, e.g. puzzle10.jpg sorting ahead of puzzle2.jpg.
func (d *Driver) warnIfRenumbered(level int, sourcePath string) {
	name := filepath.Base(sourcePath)
	stem := strings.TrimSuffix(name, filepath.Ext(name))
	matches := embeddedNumberPattern.FindAllString(stem, -1)
	if len(matches) == 0 {
		return
	}
	n, err := strconv.Atoi(matches[len(matches)-1])
	if err != nil || n == level {
		return
	}
	d.logger.Printf("warning: source=%s embeds number %d but becomes level=%02d (levels follow sorted file order)", name, n, level)
}

func (d *Driver) notify(ctx context.Context, event string, payload map[string]any) {
	if d.notifier == nil {
		return
	}
	if err := d.notifier.Send(ctx, event, payload); err != nil {
		d.logger.Printf("webhook delivery failed run_id=%s event=%s err=%v", d.runID, event, err)
	}
}

// Discover lists regular files in dir whose base name matches pattern,
// sorted lexicographically. A missing dir yields no files.
func Discover(dir, pattern string) ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(dir, pattern))
	if err != nil {
		return nil, fmt.Errorf("match %s: %w", pattern, err)
	}

	files := make([]string, 0, len(matches))
	for _, m := range matches {
		info, err := os.Stat(m)
		if err != nil {
			return nil, fmt.Errorf("stat %s: %w", m, err)
		}
		if info.Mode().IsRegular() {
			files = append(files, m)
		}
	}
	sort.Strings(files)
	return files, nil
}
