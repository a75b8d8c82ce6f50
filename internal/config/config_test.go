package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "mobimeta.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
output:
  format: json
  text: true
limits:
  max_text_size: 1048576
s3:
  endpoint: "http://localhost:9000"
  region: "eu-west-1"
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, FormatJSON, cfg.Output.Format)
	assert.True(t, cfg.Output.Text)
	assert.Equal(t, int64(1048576), cfg.Limits.MaxTextSize)
	assert.Equal(t, Default().Limits.MaxObjectSize, cfg.Limits.MaxObjectSize, "unset keys keep defaults")
	assert.Equal(t, "http://localhost:9000", cfg.S3.Endpoint)
	assert.Equal(t, "eu-west-1", cfg.S3.Region)
}

func TestLoadEmptyPath(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestLoadInvalidYAML(t *testing.T) {
	path := writeConfig(t, "output: [unterminated")
	_, err := Load(path)
	assert.ErrorContains(t, err, "failed to parse config")
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("MOBI_OUTPUT_FORMAT", "json")
	t.Setenv("MOBI_OUTPUT_TEXT", "true")
	t.Setenv("MOBI_MAX_TEXT_SIZE", "4096")
	t.Setenv("MOBI_S3_REGION", "ap-south-1")
	t.Setenv("MOBI_S3_ACCESS_KEY_ID", "AKID")
	t.Setenv("MOBI_S3_SECRET_ACCESS_KEY", "secret")

	path := writeConfig(t, "output:\n  format: yaml\n")
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, FormatJSON, cfg.Output.Format)
	assert.True(t, cfg.Output.Text)
	assert.Equal(t, int64(4096), cfg.Limits.MaxTextSize)
	assert.Equal(t, "ap-south-1", cfg.S3.Region)
	assert.Equal(t, "AKID", cfg.S3.AccessKeyID)
	assert.Equal(t, "secret", cfg.S3.SecretAccessKey)
}

func TestLoadEnvOverrideInvalid(t *testing.T) {
	t.Setenv("MOBI_MAX_TEXT_SIZE", "lots")
	_, err := Load("")
	assert.ErrorContains(t, err, "MOBI_MAX_TEXT_SIZE")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr bool
	}{
		{
			name:   "valid config",
			modify: func(c *Config) {},
		},
		{
			name:    "unknown format",
			modify:  func(c *Config) { c.Output.Format = "xml" },
			wantErr: true,
		},
		{
			name:    "zero text limit",
			modify:  func(c *Config) { c.Limits.MaxTextSize = 0 },
			wantErr: true,
		},
		{
			name:    "negative object limit",
			modify:  func(c *Config) { c.Limits.MaxObjectSize = -1 },
			wantErr: true,
		},
		{
			name:    "access key without secret",
			modify:  func(c *Config) { c.S3.AccessKeyID = "AKID" },
			wantErr: true,
		},
		{
			name: "static credentials",
			modify: func(c *Config) {
				c.S3.AccessKeyID = "AKID"
				c.S3.SecretAccessKey = "secret"
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.modify(cfg)
			err := Validate(cfg)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
