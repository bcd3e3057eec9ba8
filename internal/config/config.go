package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	DefaultSourceDir  = "ref/puzzles"
	DefaultLevelsDir  = "save-the-christmas/assets/levels"
	DefaultPattern    = "puzzle*.jpg"
	DefaultFullWidth  = 2048
	DefaultThumbWidth = 512
)

type Config struct {
	Batch     BatchConfig     `yaml:"batch"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	Storage   StorageConfig   `yaml:"storage"`
	Database  DatabaseConfig  `yaml:"database"`
	Webhook   WebhookConfig   `yaml:"webhook"`
}

type BatchConfig struct {
	SourceDir     string `yaml:"source_dir"`
	LevelsDir     string `yaml:"levels_dir"`
	ThumbnailsDir string `yaml:"thumbnails_dir"`
	Pattern       string `yaml:"pattern"`
	FullWidth     int    `yaml:"full_width"`
	ThumbWidth    int    `yaml:"thumb_width"`
}

type TelemetryConfig struct {
	MetricsFile   string `yaml:"metrics_file"`
	TraceExporter string `yaml:"trace_exporter"`
	OTLPEndpoint  string `yaml:"otlp_endpoint"`
	OTLPInsecure  bool   `yaml:"otlp_insecure"`
}

// StorageConfig enables mirroring of generated assets when Bucket is set.
type StorageConfig struct {
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	Bucket    string `yaml:"bucket"`
	Prefix    string `yaml:"prefix"`
	UseSSL    bool   `yaml:"use_ssl"`
}

func (s StorageConfig) Enabled() bool {
	return strings.TrimSpace(s.Bucket) != ""
}

type DatabaseConfig struct {
	DSN string `yaml:"dsn"`
}

type WebhookConfig struct {
	URL    string `yaml:"url"`
	Secret string `yaml:"secret"`
}

func Defaults() Config {
	return Config{
		Batch: BatchConfig{
			SourceDir:  DefaultSourceDir,
			LevelsDir:  DefaultLevelsDir,
			Pattern:    DefaultPattern,
			FullWidth:  DefaultFullWidth,
			ThumbWidth: DefaultThumbWidth,
		},
		Telemetry: TelemetryConfig{
			TraceExporter: "none",
		},
		Storage: StorageConfig{
			Endpoint:  "localhost:9000",
			AccessKey: "minioadmin",
			SecretKey: "minioadmin",
			Prefix:    "assets",
		},
	}
}

// Load layers the optional YAML file named by LEVELFORGE_CONFIG and then the
// environment over Defaults.
func Load() (Config, error) {
	cfg := Defaults()

	if path := env("LEVELFORGE_CONFIG", ""); path != "" {
		if err := loadFile(path, &cfg); err != nil {
			return Config{}, err
		}
	}

	cfg.Batch.SourceDir = env("LEVELFORGE_SOURCE_DIR", cfg.Batch.SourceDir)
	cfg.Batch.LevelsDir = env("LEVELFORGE_LEVELS_DIR", cfg.Batch.LevelsDir)
	cfg.Batch.ThumbnailsDir = env("LEVELFORGE_THUMBNAILS_DIR", cfg.Batch.ThumbnailsDir)
	cfg.Batch.Pattern = env("LEVELFORGE_PATTERN", cfg.Batch.Pattern)
	cfg.Batch.FullWidth = envInt("LEVELFORGE_FULL_WIDTH", cfg.Batch.FullWidth)
	cfg.Batch.ThumbWidth = envInt("LEVELFORGE_THUMB_WIDTH", cfg.Batch.ThumbWidth)
	if cfg.Batch.ThumbnailsDir == "" {
		cfg.Batch.ThumbnailsDir = filepath.Join(cfg.Batch.LevelsDir, "thumbnails")
	}

	cfg.Telemetry.MetricsFile = env("LEVELFORGE_METRICS_FILE", cfg.Telemetry.MetricsFile)
	cfg.Telemetry.TraceExporter = env("LEVELFORGE_TRACE_EXPORTER", cfg.Telemetry.TraceExporter)
	cfg.Telemetry.OTLPEndpoint = env("OTEL_EXPORTER_OTLP_ENDPOINT", cfg.Telemetry.OTLPEndpoint)
	cfg.Telemetry.OTLPInsecure = envBool("LEVELFORGE_OTLP_INSECURE", cfg.Telemetry.OTLPInsecure)

	cfg.Storage.Endpoint = env("MINIO_ENDPOINT", cfg.Storage.Endpoint)
	cfg.Storage.AccessKey = env("MINIO_ACCESS_KEY", cfg.Storage.AccessKey)
	cfg.Storage.SecretKey = env("MINIO_SECRET_KEY", cfg.Storage.SecretKey)
	cfg.Storage.UseSSL = envBool("MINIO_USE_SSL", cfg.Storage.UseSSL)
	cfg.Storage.Bucket = env("LEVELFORGE_ASSET_BUCKET", cfg.Storage.Bucket)
	cfg.Storage.Prefix = env("LEVELFORGE_ASSET_PREFIX", cfg.Storage.Prefix)

	cfg.Database.DSN = env("LEVELFORGE_POSTGRES_DSN", cfg.Database.DSN)

	cfg.Webhook.URL = env("LEVELFORGE_WEBHOOK_URL", cfg.Webhook.URL)
	cfg.Webhook.Secret = env("LEVELFORGE_WEBHOOK_SECRET", cfg.Webhook.Secret)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.Batch.SourceDir) == "" {
		return errors.New("batch.source_dir is required")
	}
	if strings.TrimSpace(c.Batch.LevelsDir) == "" {
		return errors.New("batch.levels_dir is required")
	}
	if strings.TrimSpace(c.Batch.Pattern) == "" {
		return errors.New("batch.pattern is required")
	}
	if _, err := filepath.Match(c.Batch.Pattern, ""); err != nil {
		return fmt.Errorf("batch.pattern %q: %w", c.Batch.Pattern, err)
	}
	if c.Batch.FullWidth <= 0 {
		return fmt.Errorf("batch.full_width must be > 0, got %d", c.Batch.FullWidth)
	}
	if c.Batch.ThumbWidth <= 0 {
		return fmt.Errorf("batch.thumb_width must be > 0, got %d", c.Batch.ThumbWidth)
	}
	return nil
}

func loadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}
	return nil
}

func env(key, fallback string) string {
	value, ok := os.LookupEnv(key)
	if !ok || value == "" {
		return fallback
	}
	return value
}

func envInt(key string, fallback int) int {
	value := env(key, "")
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func envBool(key string, fallback bool) bool {
	value := env(key, "")
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return parsed
}
