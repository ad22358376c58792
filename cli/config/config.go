package config

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/pithecene-io/reel/log"
)

// Config represents a reel.yaml configuration file.
// All values are optional and act as defaults for reel serve flags.
// CLI flags always override config values.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Transform TransformConfig `yaml:"transform"`
	Log       log.Config      `yaml:"log"`
	Ledger    LedgerConfig    `yaml:"ledger"`
	Adapter   AdapterConfig   `yaml:"adapter"`
}

// ServerConfig holds listener and session defaults.
type ServerConfig struct {
	Address       string   `yaml:"address" validate:"omitempty,hostname_port"`
	UploadDir     string   `yaml:"upload_dir"`
	OutputDir     string   `yaml:"output_dir"`
	CapacityBytes int64    `yaml:"capacity_bytes" validate:"gte=0"`
	ChunkSize     int      `yaml:"chunk_size" validate:"gte=0,lte=16777216"`
	MaxSessions   int64    `yaml:"max_sessions" validate:"gte=0"`
	MaxTransforms int64    `yaml:"max_transforms" validate:"gte=0"`
	ReadTimeout   Duration `yaml:"read_timeout"`
	WriteTimeout  Duration `yaml:"write_timeout"`
	LingerTimeout Duration `yaml:"linger_timeout"`
	ShutdownGrace Duration `yaml:"shutdown_grace"`
}

// TransformConfig holds transform tool settings.
type TransformConfig struct {
	FFmpegPath string `yaml:"ffmpeg_path"`
}

// LedgerConfig holds job ledger defaults from the config file.
type LedgerConfig struct {
	Dataset     string `yaml:"dataset"`
	Backend     string `yaml:"backend" validate:"omitempty,oneof=fs s3"`
	Path        string `yaml:"path" validate:"required_with=Backend"`
	Region      string `yaml:"region"`
	Endpoint    string `yaml:"endpoint" validate:"omitempty,url"`
	S3PathStyle bool   `yaml:"s3_path_style"`
}

// AdapterConfig holds completion notification defaults from the config file.
type AdapterConfig struct {
	Type    string            `yaml:"type" validate:"omitempty,oneof=webhook redis"`
	URL     string            `yaml:"url" validate:"required_with=Type"`
	Channel string            `yaml:"channel,omitempty"`
	Headers map[string]string `yaml:"headers,omitempty"`
	Secret  string            `yaml:"secret,omitempty"`
	Timeout Duration          `yaml:"timeout,omitempty"`
	Retries *int              `yaml:"retries,omitempty" validate:"omitempty,gte=0,lte=20"`

	HistoryKey   string `yaml:"history_key,omitempty"`
	HistoryLimit int64  `yaml:"history_limit,omitempty" validate:"gte=0"`
}

// Duration wraps time.Duration for YAML string parsing (e.g. "10s", "5m").
type Duration struct {
	time.Duration
}

// UnmarshalYAML parses a duration string like "10s" or "5m30s".
func (d *Duration) UnmarshalYAML(unmarshal func(any) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	if s == "" {
		return nil
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	if parsed < 0 {
		return fmt.Errorf("invalid duration %q: must not be negative", s)
	}
	d.Duration = parsed
	return nil
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("yaml"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Validate checks field constraints. Errors name the YAML path of the field.
func (c *Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, describe(fe))
	}
	return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
}

func describe(fe validator.FieldError) string {
	_, path, _ := strings.Cut(fe.Namespace(), ".")
	switch fe.Tag() {
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s], got %q", path, fe.Param(), fe.Value())
	case "required_with":
		return fmt.Sprintf("%s is required when %s is set", path, strings.ToLower(fe.Param()))
	case "gte":
		return fmt.Sprintf("%s must be >= %s", path, fe.Param())
	case "lte":
		return fmt.Sprintf("%s must be <= %s", path, fe.Param())
	case "hostname_port":
		return fmt.Sprintf("%s must be host:port, got %q", path, fe.Value())
	case "url":
		return fmt.Sprintf("%s must be a URL, got %q", path, fe.Value())
	default:
		return fmt.Sprintf("%s failed %s validation", path, fe.Tag())
	}
}
