// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ManuGH/posereview/internal/videofile"
	"gopkg.in/yaml.v3"
)

// Environment keys. Env values take precedence over the YAML file.
const (
	EnvBaseURL          = "POSEREVIEW_API_BASE_URL"
	EnvTimeout          = "POSEREVIEW_API_TIMEOUT"
	EnvUploadPath       = "POSEREVIEW_API_UPLOAD_PATH"
	EnvHealthPath       = "POSEREVIEW_API_HEALTH_PATH"
	EnvMaxVideoSize     = "POSEREVIEW_MAX_VIDEO_SIZE"
	EnvUploadField      = "POSEREVIEW_UPLOAD_FIELD"
	EnvLocale           = "POSEREVIEW_LOCALE"
	EnvDataDir          = "POSEREVIEW_DATA"
	EnvHistoryEnabled   = "POSEREVIEW_HISTORY_ENABLED"
	EnvLogLevel         = "POSEREVIEW_LOG_LEVEL"
	EnvLogService       = "POSEREVIEW_LOG_SERVICE"
	EnvTelemetryEnabled = "POSEREVIEW_TELEMETRY_ENABLED"
	EnvTelemetryExport  = "POSEREVIEW_TELEMETRY_EXPORTER"
	EnvTelemetryTarget  = "POSEREVIEW_TELEMETRY_ENDPOINT"
	EnvTelemetrySample  = "POSEREVIEW_TELEMETRY_SAMPLING"
	EnvMockListen       = "POSEREVIEW_MOCK_LISTEN"
	EnvMockRateLimit    = "POSEREVIEW_MOCK_RATE_LIMIT"
	EnvMockMaxBody      = "POSEREVIEW_MOCK_MAX_BODY"
)

// Loader handles configuration loading with precedence
type Loader struct {
	configPath      string
	version         string
	ConsumedEnvKeys map[string]struct{}
}

// NewLoader creates a new configuration loader. An empty configPath skips the
// file layer.
func NewLoader(configPath, version string) *Loader {
	return &Loader{
		configPath:      configPath,
		version:         version,
		ConsumedEnvKeys: make(map[string]struct{}),
	}
}

func (l *Loader) envString(key, defaultVal string) string {
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseString(key, defaultVal)
}

func (l *Loader) envBool(key string, defaultVal bool) bool {
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseBool(key, defaultVal)
}

func (l *Loader) envInt(key string, defaultVal int) int {
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseInt(key, defaultVal)
}

func (l *Loader) envInt64(key string, defaultVal int64) int64 {
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseInt64(key, defaultVal)
}

func (l *Loader) envDuration(key string, defaultVal time.Duration) time.Duration {
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseDuration(key, defaultVal)
}

func (l *Loader) envFloat(key string, defaultVal float64) float64 {
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseFloat(key, defaultVal)
}

// Load merges defaults, the YAML file and the environment, then validates.
func (l *Loader) Load() (AppConfig, error) {
	cfg := Defaults()
	cfg.Version = l.version

	if l.configPath != "" {
		fileCfg, err := l.loadFile(l.configPath)
		if err != nil {
			return AppConfig{}, fmt.Errorf("load config file %s: %w", l.configPath, err)
		}
		if err := mergeFile(&cfg, fileCfg); err != nil {
			return AppConfig{}, fmt.Errorf("merge config file %s: %w", l.configPath, err)
		}
		cfg.Source = filepath.Clean(l.configPath)
	}

	l.mergeEnv(&cfg)

	if err := Validate(cfg); err != nil {
		return AppConfig{}, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Defaults returns the built-in configuration.
func Defaults() AppConfig {
	return AppConfig{
		API: APIConfig{
			BaseURL:    DefaultBaseURL,
			Timeout:    DefaultTimeout,
			UploadPath: DefaultUploadPath,
			HealthPath: DefaultHealthPath,
		},
		Upload: UploadConfig{
			MaxSizeBytes:  videofile.DefaultMaxSizeBytes,
			FieldName:     DefaultFieldName,
			AcceptedTypes: videofile.DefaultConstraints().AcceptedTypes,
		},
		Locale:  DefaultLocale,
		DataDir: defaultDataDir(),
		History: HistoryConfig{Enabled: true},
		Log: LogConfig{
			Level:   DefaultLogLevel,
			Service: DefaultService,
		},
		Telemetry: TelemetryConfig{
			Exporter: DefaultExporter,
			Endpoint: DefaultEndpoint,
			Sampling: DefaultSampling,
		},
		MockServer: MockServerConfig{
			ListenAddr:   DefaultListenAddr,
			RateLimit:    DefaultRateLimit,
			MaxBodyBytes: DefaultMaxBodyBytes,
		},
	}
}

func defaultDataDir() string {
	if xdg := strings.TrimSpace(os.Getenv("XDG_DATA_HOME")); xdg != "" {
		return filepath.Join(xdg, DefaultService)
	}
	if home, err := os.UserHomeDir(); err == nil && home != "" {
		return filepath.Join(home, ".local", "share", DefaultService)
	}
	return filepath.Join(os.TempDir(), DefaultService)
}

func (l *Loader) loadFile(path string) (*FileConfig, error) {
	path = filepath.Clean(path)

	ext := strings.ToLower(filepath.Ext(path))
	if ext != ".yaml" && ext != ".yml" {
		return nil, fmt.Errorf("%w: %q (only YAML supported)", ErrUnsupportedFormat, ext)
	}

	// #nosec G304 -- configuration file paths are provided by the operator via CLI/ENV
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}
	return parseFile(data)
}

func parseFile(data []byte) (*FileConfig, error) {
	var fileCfg FileConfig
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	if err := dec.Decode(&fileCfg); err != nil {
		if errors.Is(err, io.EOF) {
			return &FileConfig{}, nil
		}
		if strings.Contains(err.Error(), "field") && strings.Contains(err.Error(), "not found") {
			return nil, fmt.Errorf("strict config parse error: %w: %v", ErrUnknownConfigField, err)
		}
		return nil, fmt.Errorf("strict config parse error: %w", err)
	}

	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return nil, ErrMultipleDocuments
	}
	return &fileCfg, nil
}

func mergeFile(cfg *AppConfig, f *FileConfig) error {
	if f.API != nil {
		setString(&cfg.API.BaseURL, f.API.BaseURL)
		setString(&cfg.API.UploadPath, f.API.UploadPath)
		setString(&cfg.API.HealthPath, f.API.HealthPath)
		if f.API.Timeout != nil {
			d, err := time.ParseDuration(strings.TrimSpace(*f.API.Timeout))
			if err != nil {
				return fmt.Errorf("api.timeout: %w", err)
			}
			cfg.API.Timeout = d
		}
	}
	if f.Upload != nil {
		if f.Upload.MaxSizeBytes != nil {
			cfg.Upload.MaxSizeBytes = *f.Upload.MaxSizeBytes
		}
		setString(&cfg.Upload.FieldName, f.Upload.FieldName)
		if f.Upload.AcceptedTypes != nil {
			cfg.Upload.AcceptedTypes = normalizeTypes(f.Upload.AcceptedTypes)
		}
	}
	setString(&cfg.Locale, f.Locale)
	setString(&cfg.DataDir, f.DataDir)
	if f.History != nil && f.History.Enabled != nil {
		cfg.History.Enabled = *f.History.Enabled
	}
	if f.Log != nil {
		setString(&cfg.Log.Level, f.Log.Level)
		setString(&cfg.Log.Service, f.Log.Service)
	}
	if t := f.Telemetry; t != nil {
		if t.Enabled != nil {
			cfg.Telemetry.Enabled = *t.Enabled
		}
		setString(&cfg.Telemetry.Exporter, t.Exporter)
		setString(&cfg.Telemetry.Endpoint, t.Endpoint)
		if t.Sampling != nil {
			cfg.Telemetry.Sampling = *t.Sampling
		}
	}
	if m := f.MockServer; m != nil {
		setString(&cfg.MockServer.ListenAddr, m.ListenAddr)
		if m.RateLimit != nil {
			cfg.MockServer.RateLimit = *m.RateLimit
		}
		if m.MaxBodyBytes != nil {
			cfg.MockServer.MaxBodyBytes = *m.MaxBodyBytes
		}
	}
	return nil
}

func (l *Loader) mergeEnv(cfg *AppConfig) {
	cfg.API.BaseURL = l.envString(EnvBaseURL, cfg.API.BaseURL)
	cfg.API.Timeout = l.envDuration(EnvTimeout, cfg.API.Timeout)
	cfg.API.UploadPath = l.envString(EnvUploadPath, cfg.API.UploadPath)
	cfg.API.HealthPath = l.envString(EnvHealthPath, cfg.API.HealthPath)

	cfg.Upload.MaxSizeBytes = l.envInt64(EnvMaxVideoSize, cfg.Upload.MaxSizeBytes)
	cfg.Upload.FieldName = l.envString(EnvUploadField, cfg.Upload.FieldName)

	cfg.Locale = l.envString(EnvLocale, cfg.Locale)
	cfg.DataDir = l.envString(EnvDataDir, cfg.DataDir)
	cfg.History.Enabled = l.envBool(EnvHistoryEnabled, cfg.History.Enabled)

	cfg.Log.Level = l.envString(EnvLogLevel, cfg.Log.Level)
	cfg.Log.Service = l.envString(EnvLogService, cfg.Log.Service)

	cfg.Telemetry.Enabled = l.envBool(EnvTelemetryEnabled, cfg.Telemetry.Enabled)
	cfg.Telemetry.Exporter = l.envString(EnvTelemetryExport, cfg.Telemetry.Exporter)
	cfg.Telemetry.Endpoint = l.envString(EnvTelemetryTarget, cfg.Telemetry.Endpoint)
	cfg.Telemetry.Sampling = l.envFloat(EnvTelemetrySample, cfg.Telemetry.Sampling)

	cfg.MockServer.ListenAddr = l.envString(EnvMockListen, cfg.MockServer.ListenAddr)
	cfg.MockServer.RateLimit = l.envInt(EnvMockRateLimit, cfg.MockServer.RateLimit)
	cfg.MockServer.MaxBodyBytes = l.envInt64(EnvMockMaxBody, cfg.MockServer.MaxBodyBytes)
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = strings.TrimSpace(*v)
	}
}

// normalizeTypes lowercases MIME types and extensions and adds a missing
// leading dot to extensions.
func normalizeTypes(in map[string][]string) map[string][]string {
	out := make(map[string][]string, len(in))
	for mimeType, exts := range in {
		key := strings.ToLower(strings.TrimSpace(mimeType))
		for _, ext := range exts {
			ext = strings.ToLower(strings.TrimSpace(ext))
			if ext == "" {
				continue
			}
			if !strings.HasPrefix(ext, ".") {
				ext = "." + ext
			}
			out[key] = append(out[key], ext)
		}
		if _, ok := out[key]; !ok {
			out[key] = nil
		}
	}
	return out
}
