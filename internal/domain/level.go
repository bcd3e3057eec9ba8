package domain

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"
)

const (
	VariantFull  = "full"
	VariantThumb = "thumb"
)

// Variant is one output rendition produced for every level.
type Variant struct {
	Name      string
	Width     int
	OutputDir string
}

// OutputName returns the file name of this variant for the given 1-based level.
func (v Variant) OutputName(level int) string {
	if v.Name == VariantThumb {
		return fmt.Sprintf("level_%02d_thumb.png", level)
	}
	return fmt.Sprintf("level_%02d.png", level)
}

func (v Variant) OutputPath(level int) string {
	return filepath.Join(v.OutputDir, v.OutputName(level))
}

type ConversionRequest struct {
	Level       int
	Variant     string
	InputPath   string
	OutputPath  string
	TargetWidth int
}

func (r ConversionRequest) Validate() error {
	if strings.TrimSpace(r.InputPath) == "" {
		return errors.New("input_path is required")
	}
	if strings.TrimSpace(r.OutputPath) == "" {
		return errors.New("output_path is required")
	}
	if r.TargetWidth <= 0 {
		return fmt.Errorf("target_width must be > 0, got %d", r.TargetWidth)
	}
	return nil
}

type Output struct {
	Variant string `json:"variant"`
	Path    string `json:"path"`
	Width   int    `json:"width"`
	Height  int    `json:"height"`
	Bytes   int64  `json:"bytes"`
}

// LevelRecord describes the assets produced for one source image in a run.
type LevelRecord struct {
	RunID       string
	Level       int
	SourceName  string
	Outputs     []Output
	ConvertedAt time.Time
}

type RunSummary struct {
	RunID      string    `json:"run_id"`
	Levels     int       `json:"levels"`
	Outputs    int       `json:"outputs"`
	SourceDir  string    `json:"source_dir"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
}
