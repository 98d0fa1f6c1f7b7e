// Package config loads and validates the daemon configuration.
//
// Precedence, highest to lowest:
//  1. Environment variables (COMPRESSD_ prefix, COMPRESSD_PIPELINE_MAX_LENGTH)
//  2. YAML config file
//  3. Hardcoded defaults
//
// Validation happens once at load time; a config that fails validation is
// rejected before any document processing begins.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"

	"github.com/fyrsmithlabs/compressd/internal/chunker"
	"github.com/fyrsmithlabs/compressd/internal/logging"
	"github.com/fyrsmithlabs/compressd/internal/pipeline"
	"github.com/fyrsmithlabs/compressd/internal/summarizer"
)

const envPrefix = "COMPRESSD_"

var (
	// ErrMaxLengthTooSmall signals a document summary bound smaller than the
	// minimum chunk size, which could never be satisfied.
	ErrMaxLengthTooSmall = errors.New("max_length must be at least chunker min_words")

	// ErrTargetRatioRange signals a target ratio outside (0, 1].
	ErrTargetRatioRange = errors.New("target_ratio must be in (0, 1]")
)

// ServerConfig holds the HTTP server settings.
type ServerConfig struct {
	Addr            string        `koanf:"addr" json:"addr"`
	ReadTimeout     time.Duration `koanf:"read_timeout" json:"read_timeout"`
	WriteTimeout    time.Duration `koanf:"write_timeout" json:"write_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout" json:"shutdown_timeout"`
}

// Config is the root configuration.
type Config struct {
	Chunker    chunker.Config    `koanf:"chunker" json:"chunker"`
	Summarizer summarizer.Config `koanf:"summarizer" json:"summarizer"`
	Pipeline   pipeline.Config   `koanf:"pipeline" json:"pipeline"`
	Server     ServerConfig      `koanf:"server" json:"server"`
	Logging    logging.Config    `koanf:"logging" json:"logging"`
}

// Default returns the hardcoded defaults.
func Default() Config {
	return Config{
		Chunker:    chunker.DefaultConfig(),
		Summarizer: summarizer.DefaultConfig(),
		Pipeline:   pipeline.DefaultConfig(),
		Server: ServerConfig{
			Addr:            ":8080",
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    60 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		Logging: logging.DefaultConfig(),
	}
}

// Load builds the configuration from defaults, the optional YAML file at
// path, and COMPRESSD_-prefixed environment variables, then validates it.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if path != "" {
		content, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		if err := k.Load(rawbytes.Provider(content), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	// COMPRESSD_PIPELINE_MAX_LENGTH -> pipeline.max_length: the first
	// underscore after the prefix separates section from field.
	if err := k.Load(env.Provider(envPrefix, ".", func(s string) string {
		lower := strings.ToLower(strings.TrimPrefix(s, envPrefix))
		parts := strings.SplitN(lower, "_", 2)
		if len(parts) == 1 {
			return lower
		}
		return parts[0] + "." + parts[1]
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	cfg := Default()
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{
		Tag: "koanf",
		DecoderConfig: &mapstructure.DecoderConfig{
			DecodeHook: mapstructure.ComposeDecodeHookFunc(
				mapstructure.StringToTimeDurationHookFunc(),
			),
			Result:           &cfg,
			WeaklyTypedInput: true,
		},
	}); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &cfg, nil
}

// Validate checks every section plus the cross-section constraints.
func (c *Config) Validate() error {
	if err := c.Chunker.Validate(); err != nil {
		return err
	}
	if err := c.Pipeline.Validate(); err != nil {
		return err
	}
	if err := c.Logging.Validate(); err != nil {
		return err
	}
	if c.Summarizer.TargetRatio <= 0 || c.Summarizer.TargetRatio > 1 {
		return ErrTargetRatioRange
	}
	if c.Pipeline.MaxLength < c.Chunker.MinWords {
		return ErrMaxLengthTooSmall
	}
	return nil
}
