package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ManuGH/posereview/internal/validate"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("XDG_DATA_HOME", dir)
	return dir
}

func writeConfig(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	xdg := isolate(t)

	cfg, err := NewLoader("", "v1.2.3").Load()
	require.NoError(t, err)

	want := Defaults()
	want.Version = "v1.2.3"
	assert.Empty(t, cmp.Diff(want, cfg))
	assert.Equal(t, filepath.Join(xdg, "posereview"), cfg.DataDir)
	assert.Equal(t, int64(30*1024*1024), cfg.Upload.MaxSizeBytes)
	assert.Equal(t, "http://localhost:8000", cfg.API.BaseURL)
	assert.Equal(t, 30*time.Second, cfg.API.Timeout)
	assert.True(t, cfg.History.Enabled)
	assert.False(t, cfg.Telemetry.Enabled)
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	isolate(t)
	data := t.TempDir()
	path := writeConfig(t, "posereview.yaml", `
api:
  baseURL: https://pose.example.com
  timeout: 45s
upload:
  maxSizeBytes: 1048576
  acceptedTypes:
    video/mp4: [MP4, .m4v]
locale: en
dataDir: `+data+`
history:
  enabled: false
log:
  level: debug
telemetry:
  enabled: true
  exporter: http
  endpoint: collector:4318
  sampling: 0.5
mockServer:
  listenAddr: 127.0.0.1:9000
  rateLimit: 0
`)

	cfg, err := NewLoader(path, "dev").Load()
	require.NoError(t, err)

	assert.Equal(t, "https://pose.example.com", cfg.API.BaseURL)
	assert.Equal(t, 45*time.Second, cfg.API.Timeout)
	assert.Equal(t, DefaultUploadPath, cfg.API.UploadPath, "untouched keys keep defaults")
	assert.Equal(t, int64(1048576), cfg.Upload.MaxSizeBytes)
	assert.Equal(t, map[string][]string{"video/mp4": {".mp4", ".m4v"}}, cfg.Upload.AcceptedTypes)
	assert.Equal(t, "en", cfg.Locale)
	assert.Equal(t, data, cfg.DataDir)
	assert.False(t, cfg.History.Enabled)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.True(t, cfg.Telemetry.Enabled)
	assert.Equal(t, "http", cfg.Telemetry.Exporter)
	assert.InDelta(t, 0.5, cfg.Telemetry.Sampling, 1e-9)
	assert.Equal(t, "127.0.0.1:9000", cfg.MockServer.ListenAddr)
	assert.Equal(t, 0, cfg.MockServer.RateLimit)
	assert.Equal(t, filepath.Clean(path), cfg.Source)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	isolate(t)
	path := writeConfig(t, "posereview.yml", `
api:
  baseURL: https://file.example.com
  timeout: 10s
upload:
  maxSizeBytes: 1000
`)
	t.Setenv(EnvBaseURL, "http://env.example.com:8080")
	t.Setenv(EnvMaxVideoSize, "2048")
	t.Setenv(EnvHistoryEnabled, "false")

	l := NewLoader(path, "")
	cfg, err := l.Load()
	require.NoError(t, err)

	assert.Equal(t, "http://env.example.com:8080", cfg.API.BaseURL)
	assert.Equal(t, 10*time.Second, cfg.API.Timeout, "file value survives when env is unset")
	assert.Equal(t, int64(2048), cfg.Upload.MaxSizeBytes)
	assert.False(t, cfg.History.Enabled)
	assert.Contains(t, l.ConsumedEnvKeys, EnvBaseURL)
	assert.Contains(t, l.ConsumedEnvKeys, EnvMockMaxBody)
}

func TestLoad_StrictFile(t *testing.T) {
	isolate(t)

	t.Run("unknown key", func(t *testing.T) {
		path := writeConfig(t, "c.yaml", "api:\n  baseUrl: http://x\n")
		_, err := NewLoader(path, "").Load()
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrUnknownConfigField)
	})

	t.Run("multiple documents", func(t *testing.T) {
		path := writeConfig(t, "c.yaml", "locale: en\n---\nlocale: ja\n")
		_, err := NewLoader(path, "").Load()
		assert.ErrorIs(t, err, ErrMultipleDocuments)
	})

	t.Run("unsupported extension", func(t *testing.T) {
		path := writeConfig(t, "c.json", "{}")
		_, err := NewLoader(path, "").Load()
		assert.ErrorIs(t, err, ErrUnsupportedFormat)
	})

	t.Run("empty file", func(t *testing.T) {
		path := writeConfig(t, "c.yaml", "")
		_, err := NewLoader(path, "").Load()
		assert.NoError(t, err)
	})

	t.Run("bad duration", func(t *testing.T) {
		path := writeConfig(t, "c.yaml", "api:\n  timeout: soon\n")
		_, err := NewLoader(path, "").Load()
		assert.ErrorContains(t, err, "api.timeout")
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := NewLoader(filepath.Join(t.TempDir(), "absent.yaml"), "").Load()
		assert.ErrorIs(t, err, os.ErrNotExist)
	})
}

func TestValidate(t *testing.T) {
	isolate(t)

	tests := []struct {
		name   string
		mutate func(*AppConfig)
		field  string
	}{
		{"base url scheme", func(c *AppConfig) { c.API.BaseURL = "ftp://host" }, "api.baseURL"},
		{"timeout too short", func(c *AppConfig) { c.API.Timeout = time.Millisecond }, "api.timeout"},
		{"upload path", func(c *AppConfig) { c.API.UploadPath = "process" }, "api.uploadPath"},
		{"max size", func(c *AppConfig) { c.Upload.MaxSizeBytes = 0 }, "upload.maxSizeBytes"},
		{"field name", func(c *AppConfig) { c.Upload.FieldName = " " }, "upload.fieldName"},
		{"no types", func(c *AppConfig) { c.Upload.AcceptedTypes = nil }, "upload.acceptedTypes"},
		{"non-video type", func(c *AppConfig) {
			c.Upload.AcceptedTypes = map[string][]string{"image/png": {".png"}}
		}, "upload.acceptedTypes"},
		{"locale", func(c *AppConfig) { c.Locale = "not a tag!" }, "locale"},
		{"log level", func(c *AppConfig) { c.Log.Level = "loud" }, "log.level"},
		{"exporter", func(c *AppConfig) {
			c.Telemetry.Enabled = true
			c.Telemetry.Exporter = "zipkin"
		}, "telemetry.exporter"},
		{"sampling", func(c *AppConfig) {
			c.Telemetry.Enabled = true
			c.Telemetry.Sampling = 2
		}, "telemetry.sampling"},
		{"listen addr", func(c *AppConfig) { c.MockServer.ListenAddr = "8000" }, "mockServer.listenAddr"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Defaults()
			tt.mutate(&cfg)
			err := Validate(cfg)
			require.Error(t, err)

			var ve validate.ValidationError
			require.ErrorAs(t, err, &ve)
			fields := make([]string, 0, len(ve.Errors()))
			for _, e := range ve.Errors() {
				fields = append(fields, e.Field)
			}
			assert.Contains(t, fields, tt.field)
		})
	}
}

func TestValidate_TelemetryIgnoredWhenDisabled(t *testing.T) {
	isolate(t)
	cfg := Defaults()
	cfg.Telemetry.Exporter = "zipkin"
	assert.NoError(t, Validate(cfg))
}

func TestAppConfig_ConstraintsAndClone(t *testing.T) {
	isolate(t)
	cfg := Defaults()
	cfg.Upload.MaxSizeBytes = 99

	c := cfg.Constraints()
	assert.Equal(t, int64(99), c.MaxSizeBytes)
	c.AcceptedTypes["video/mp4"][0] = ".changed"
	assert.Equal(t, ".mp4", cfg.Upload.AcceptedTypes["video/mp4"][0])

	clone := cfg.Clone()
	clone.Upload.AcceptedTypes["video/webm"] = nil
	_, ok := cfg.Upload.AcceptedTypes["video/webm"]
	assert.True(t, ok)
	clone.Upload.AcceptedTypes["video/mp4"][0] = ".x"
	assert.Equal(t, ".mp4", cfg.Upload.AcceptedTypes["video/mp4"][0])
}
