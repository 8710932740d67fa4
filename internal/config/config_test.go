package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	configPath := filepath.Join(t.TempDir(), "keel.yml")
	require.NoError(t, os.WriteFile(configPath, []byte(content), 0644))
	return configPath
}

func TestLoad_ValidConfig(t *testing.T) {
	configPath := writeConfig(t, `version: "1.0"
project:
  name: "acme-books"
redis:
  addr: "redis.internal:6379"
monitoring:
  interval: "30m"
  sample_window: 20
stakeholders:
  - alex
  - sam
`)

	config, err := Load(configPath)
	require.NoError(t, err)
	assert.Equal(t, "1.0", config.Version)
	assert.Equal(t, "acme-books", config.Project.Name)
	assert.Equal(t, "redis.internal:6379", config.Redis.Addr)
	assert.Equal(t, 30*time.Minute, config.Interval())
	assert.Equal(t, 20, config.Monitoring.SampleWindow)
	assert.Equal(t, []string{"alex", "sam"}, config.Stakeholders)
}

func TestLoad_AppliesDefaults(t *testing.T) {
	configPath := writeConfig(t, `version: "1.0"
project:
  name: "acme-books"
`)

	config, err := Load(configPath)
	require.NoError(t, err)
	assert.Equal(t, DefaultRedisAddr, config.Redis.Addr)
	assert.Equal(t, DefaultInterval, config.Monitoring.Interval)
	assert.Equal(t, DefaultSampleWindow, config.Monitoring.SampleWindow)
	assert.Empty(t, config.Stakeholders)
}

func TestLoad_FileNotFound(t *testing.T) {
	config, err := Load("/nonexistent/keel.yml")
	assert.Error(t, err)
	assert.Nil(t, config)
	assert.Contains(t, err.Error(), "failed to read config")
}

func TestLoad_InvalidYAML(t *testing.T) {
	configPath := writeConfig(t, `version: "1.0"
project:
  - this is invalid
    yaml syntax
`)

	config, err := Load(configPath)
	assert.Error(t, err)
	assert.Nil(t, config)
	assert.Contains(t, err.Error(), "failed to parse YAML")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{
			name: "unsupported version",
			content: `version: "2.0"
project:
  name: "acme-books"
`,
			wantErr: "unsupported version",
		},
		{
			name:    "missing project name",
			content: `version: "1.0"`,
			wantErr: "project.name is required",
		},
		{
			name: "invalid interval",
			content: `version: "1.0"
project:
  name: "acme-books"
monitoring:
  interval: "often"
`,
			wantErr: "not a valid duration",
		},
		{
			name: "interval too short",
			content: `version: "1.0"
project:
  name: "acme-books"
monitoring:
  interval: "5s"
`,
			wantErr: "at least 1m",
		},
		{
			name: "negative sample window",
			content: `version: "1.0"
project:
  name: "acme-books"
monitoring:
  sample_window: -3
`,
			wantErr: "sample_window must be >= 1",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config, err := Load(writeConfig(t, tt.content))
			require.Error(t, err)
			assert.Nil(t, config)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
