// Package config loads the mobimeta command configuration.
package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Output formats accepted by Output.Format.
const (
	FormatYAML = "yaml"
	FormatJSON = "json"
)

// Config is the mobimeta configuration.
type Config struct {
	Output OutputConfig `yaml:"output" json:"output"`
	Limits LimitsConfig `yaml:"limits" json:"limits"`
	S3     S3Config     `yaml:"s3" json:"s3"`
}

// OutputConfig controls how book reports are written.
type OutputConfig struct {
	Format string `yaml:"format" json:"format"` // "yaml" or "json"
	Text   bool   `yaml:"text" json:"text"`     // include plain text
}

// LimitsConfig bounds the work done per book.
type LimitsConfig struct {
	MaxTextSize   int64 `yaml:"max_text_size" json:"max_text_size"`     // bytes
	MaxObjectSize int64 `yaml:"max_object_size" json:"max_object_size"` // bytes, remote objects only
}

// S3Config configures access to books stored in S3-compatible storage.
type S3Config struct {
	Endpoint        string `yaml:"endpoint" json:"endpoint"`
	Region          string `yaml:"region" json:"region"`
	AccessKeyID     string `yaml:"access_key_id" json:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key" json:"-"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Output: OutputConfig{
			Format: FormatYAML,
		},
		Limits: LimitsConfig{
			MaxTextSize:   256 << 20,
			MaxObjectSize: 512 << 20,
		},
		S3: S3Config{
			Region: "us-east-1",
		},
	}
}

// Load reads the configuration file at path on top of Default.
// An empty path skips the file. Environment variables prefixed with MOBI_
// override file values.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// Validate checks that the configuration is usable.
func Validate(cfg *Config) error {
	switch cfg.Output.Format {
	case FormatYAML, FormatJSON:
	default:
		return fmt.Errorf("invalid output format: %q (must be 'yaml' or 'json')", cfg.Output.Format)
	}

	if cfg.Limits.MaxTextSize <= 0 {
		return fmt.Errorf("invalid max_text_size: %d", cfg.Limits.MaxTextSize)
	}
	if cfg.Limits.MaxObjectSize <= 0 {
		return fmt.Errorf("invalid max_object_size: %d", cfg.Limits.MaxObjectSize)
	}

	if (cfg.S3.AccessKeyID == "") != (cfg.S3.SecretAccessKey == "") {
		return fmt.Errorf("s3 access_key_id and secret_access_key must be set together")
	}
	return nil
}

// applyEnvOverrides applies MOBI_* environment variables.
func applyEnvOverrides(cfg *Config) error {
	if val := os.Getenv("MOBI_OUTPUT_FORMAT"); val != "" {
		cfg.Output.Format = val
	}
	if val := os.Getenv("MOBI_OUTPUT_TEXT"); val != "" {
		b, err := strconv.ParseBool(val)
		if err != nil {
			return fmt.Errorf("invalid MOBI_OUTPUT_TEXT: %w", err)
		}
		cfg.Output.Text = b
	}
	if val := os.Getenv("MOBI_MAX_TEXT_SIZE"); val != "" {
		n, err := strconv.ParseInt(val, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid MOBI_MAX_TEXT_SIZE: %w", err)
		}
		cfg.Limits.MaxTextSize = n
	}
	if val := os.Getenv("MOBI_MAX_OBJECT_SIZE"); val != "" {
		n, err := strconv.ParseInt(val, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid MOBI_MAX_OBJECT_SIZE: %w", err)
		}
		cfg.Limits.MaxObjectSize = n
	}

	if val := os.Getenv("MOBI_S3_ENDPOINT"); val != "" {
		cfg.S3.Endpoint = val
	}
	if val := os.Getenv("MOBI_S3_REGION"); val != "" {
		cfg.S3.Region = val
	}
	if val := os.Getenv("MOBI_S3_ACCESS_KEY_ID"); val != "" {
		cfg.S3.AccessKeyID = val
	}
	if val := os.Getenv("MOBI_S3_SECRET_ACCESS_KEY"); val != "" {
		cfg.S3.SecretAccessKey = val
	}
	return nil
}
