package pipeline

import (
	"context"
	"errors"
	"fmt"
	"path"
	"path/filepath"
	"strings"

	"github.com/dunamismax/levelforge/internal/domain"
)

const pngContentType = "image/png"

type objectWriter interface {
	WriteObject(ctx context.Context, objectKey string, data []byte, contentType string) error
}

// ObjectStoreEmitter mirrors every written PNG into a bucket, keeping the
// full-size/thumbnail split as key prefixes.
type ObjectStoreEmitter struct {
	Storage      objectWriter
	OutputPrefix string
}

func (e ObjectStoreEmitter) Emit(ctx context.Context, req domain.ConversionRequest, data []byte) error {
	if e.Storage == nil {
		return errors.New("storage client is required")
	}

	objectKey := e.ObjectKey(req)
	if err := e.Storage.WriteObject(ctx, objectKey, data, pngContentType); err != nil {
		return fmt.Errorf("mirror %s: %w", objectKey, err)
	}
	return nil
}

func (e ObjectStoreEmitter) ObjectKey(req domain.ConversionRequest) string {
	return path.Join(
		defaultOutputPrefix(e.OutputPrefix),
		variantFolder(req.Variant),
		filepath.Base(req.OutputPath),
	)
}

func defaultOutputPrefix(prefix string) string {
	prefix = strings.Trim(strings.TrimSpace(prefix), "/")
	if prefix == "" {
		return "assets"
	}
	return prefix
}

func variantFolder(variant string) string {
	if variant == domain.VariantThumb {
		return "thumbnails"
	}
	return "levels"
}
