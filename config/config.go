// Package config loads service settings from defaults, an optional YAML
// file and the environment, in that order.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Host           string        `yaml:"host" validate:"required"`
	Port           int           `yaml:"port" validate:"min=1,max=65535"`
	Workers        int           `yaml:"workers" validate:"min=1,max=64"`
	DataDir        string        `yaml:"data_dir" validate:"required"`
	StaticDir      string        `yaml:"static_dir"`
	TemplatesDir   string        `yaml:"templates_dir"`
	OCRLanguages   string        `yaml:"ocr_languages" validate:"required"`
	FontPath       string        `yaml:"font_path"`
	PaperSize      string        `yaml:"paper_size" validate:"oneof=a4 letter"`
	MaxUploadBytes int64         `yaml:"max_upload_bytes" validate:"min=1024"`
	Retention      time.Duration `yaml:"retention" validate:"min=0"`
	SweepInterval  time.Duration `yaml:"sweep_interval" validate:"min=1s"`
	LogLevel       string        `yaml:"log_level" validate:"oneof=debug info warn warning error"`
	LogFormat      string        `yaml:"log_format" validate:"oneof=json text"`
}

// FontCandidates are probed in order when no font path is configured. They
// cover the Debian/Ubuntu, Fedora and Alpine font package layouts.
var FontCandidates = []string{
	"/usr/share/fonts/truetype/dejavu/DejaVuSans.ttf",
	"/usr/share/fonts/dejavu/DejaVuSans.ttf",
	"/usr/share/fonts/dejavu-sans-fonts/DejaVuSans.ttf",
	"/usr/share/fonts/TTF/DejaVuSans.ttf",
	"/usr/share/fonts/truetype/liberation/LiberationSans-Regular.ttf",
	"/usr/share/fonts/liberation-sans/LiberationSans-Regular.ttf",
	"/usr/share/fonts/truetype/noto/NotoSans-Regular.ttf",
	"/usr/share/fonts/noto/NotoSans-Regular.ttf",
}

func Default() Config {
	return Config{
		Host:           "0.0.0.0",
		Port:           8000,
		Workers:        1,
		DataDir:        "data",
		StaticDir:      "static",
		TemplatesDir:   "templates",
		OCRLanguages:   "ukr+eng",
		PaperSize:      "a4",
		MaxUploadBytes: 20 << 20,
		Retention:      24 * time.Hour,
		SweepInterval:  10 * time.Minute,
		LogLevel:       "info",
		LogFormat:      "json",
	}
}

// Load applies the YAML file at path (skipped when path is empty or the file
// does not exist) and then the environment on top of Default.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		raw, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(raw, &cfg); err != nil {
				return Config{}, fmt.Errorf("parse config file: %w", err)
			}
		case errors.Is(err, fs.ErrNotExist):
		default:
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
	}

	env := envReader{}
	cfg.Host = env.String("HOST", cfg.Host)
	cfg.Port = env.Int("PORT", cfg.Port)
	cfg.Workers = env.Int("WEB_CONCURRENCY", cfg.Workers)
	cfg.DataDir = env.String("DATA_DIR", cfg.DataDir)
	cfg.StaticDir = env.String("STATIC_DIR", cfg.StaticDir)
	cfg.TemplatesDir = env.String("TEMPLATES_DIR", cfg.TemplatesDir)
	cfg.OCRLanguages = env.String("OCR_LANGUAGES", cfg.OCRLanguages)
	cfg.FontPath = env.String("FONT_PATH", cfg.FontPath)
	cfg.PaperSize = strings.ToLower(env.String("PAPER_SIZE", cfg.PaperSize))
	cfg.MaxUploadBytes = int64(env.Int("MAX_UPLOAD_BYTES", int(cfg.MaxUploadBytes)))
	cfg.Retention = env.Duration("RETENTION", cfg.Retention)
	cfg.SweepInterval = env.Duration("SWEEP_INTERVAL", cfg.SweepInterval)
	cfg.LogLevel = strings.ToLower(env.String("LOG_LEVEL", cfg.LogLevel))
	cfg.LogFormat = strings.ToLower(env.String("LOG_FORMAT", cfg.LogFormat))
	if err := errors.Join(env.errs...); err != nil {
		return Config{}, err
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks field ranges and enumerations.
func (c Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if len(c.Languages()) == 0 {
		return fmt.Errorf("invalid config: no OCR languages in %q", c.OCRLanguages)
	}
	return nil
}

// Addr is the listen address.
func (c Config) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// Languages splits OCRLanguages ("ukr+eng", "ukr,eng" or "ukr eng").
func (c Config) Languages() []string {
	return strings.FieldsFunc(c.OCRLanguages, func(r rune) bool {
		return r == '+' || r == ',' || r == ' ' || r == '\t'
	})
}

func (c Config) OutputDir() string { return filepath.Join(c.DataDir, "outputs") }

func (c Config) DatabasePath() string { return filepath.Join(c.DataDir, "scanpdf.db") }

// EnsureDirs creates the data and output directories. The static directory is
// left alone: it is served only when it already exists.
func (c Config) EnsureDirs() error {
	for _, dir := range []string{c.DataDir, c.OutputDir()} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create %s: %w", dir, err)
		}
	}
	return nil
}

// ResolveFont returns the configured font path, or the first installed
// candidate, or "" when the built-in standard font must be used.
func ResolveFont(c Config) string {
	if c.FontPath != "" {
		return c.FontPath
	}
	for _, p := range FontCandidates {
		if info, err := os.Stat(p); err == nil && !info.IsDir() {
			return p
		}
	}
	return ""
}

// envReader overlays environment variables and collects parse failures so
// that every bad value is reported at once.
type envReader struct {
	errs []error
}

func (r *envReader) String(name, fallback string) string {
	if raw := strings.TrimSpace(os.Getenv(name)); raw != "" {
		return raw
	}
	return fallback
}

func (r *envReader) Int(name string, fallback int) int {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		r.errs = append(r.errs, fmt.Errorf("%s: %w", name, err))
		return fallback
	}
	return v
}

func (r *envReader) Duration(name string, fallback time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return fallback
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		r.errs = append(r.errs, fmt.Errorf("%s: %w", name, err))
		return fallback
	}
	return v
}
