// Package config loads process settings from NOTESYNTH_* environment variables.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const prefix = "notesynth"

// Storage drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

type Config struct {
	Port          int    `default:"8080"`
	StorageDriver string `split_words:"true" default:"sqlite"`
	SQLitePath    string `envconfig:"SQLITE_PATH" default:"notesynth.db"`
	DatabaseURL   string `split_words:"true"`

	ModelServerURL     string        `split_words:"true" default:"http://localhost:8501"`
	DetectorModel      string        `split_words:"true" default:"glyph_detector"`
	ClassifierModel    string        `split_words:"true" default:"pitch_classifier"`
	DetectionThreshold float64       `split_words:"true" default:"0.01"`
	ModelTimeout       time.Duration `split_words:"true" default:"30s"`

	FluidSynthPath   string        `split_words:"true" default:"fluidsynth"`
	SoundFontPath    string        `split_words:"true" default:"GeneralUser-GS.sf2"`
	SynthesisTimeout time.Duration `split_words:"true" default:"2m"`

	ScratchDir         string `split_words:"true"`
	RecognitionWorkers int    `split_words:"true" default:"2"`
	MaxUploadBytes     int64  `split_words:"true" default:"33554432"`
	DefaultPageSize    int    `split_words:"true" default:"3"`

	LogLevel    string   `split_words:"true" default:"info"`
	CORSOrigins []string `envconfig:"CORS_ORIGINS" default:"*"`
}

// Load reads the environment and validates the result.
func Load() (Config, error) {
	var cfg Config
	if err := envconfig.Process(prefix, &cfg); err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Addr is the listen address for the HTTP server.
func (c Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}

func (c Config) Validate() error {
	var errs []error
	switch c.StorageDriver {
	case DriverSQLite:
		if c.SQLitePath == "" {
			errs = append(errs, errors.New("NOTESYNTH_SQLITE_PATH is required for the sqlite driver"))
		}
	case DriverPostgres:
		if c.DatabaseURL == "" {
			errs = append(errs, errors.New("NOTESYNTH_DATABASE_URL is required for the postgres driver"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown storage driver %q", c.StorageDriver))
	}
	if c.Port <= 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("port %d out of range", c.Port))
	}
	if c.DetectionThreshold <= 0 || c.DetectionThreshold > 1 {
		errs = append(errs, fmt.Errorf("detection threshold %v outside (0,1]", c.DetectionThreshold))
	}
	if c.ModelTimeout <= 0 {
		errs = append(errs, errors.New("model timeout must be positive"))
	}
	if c.SynthesisTimeout <= 0 {
		errs = append(errs, errors.New("synthesis timeout must be positive"))
	}
	if c.RecognitionWorkers <= 0 {
		errs = append(errs, errors.New("recognition workers must be positive"))
	}
	if c.MaxUploadBytes <= 0 {
		errs = append(errs, errors.New("max upload bytes must be positive"))
	}
	if c.DefaultPageSize <= 0 {
		errs = append(errs, errors.New("default page size must be positive"))
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}
