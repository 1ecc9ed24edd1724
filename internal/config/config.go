// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package config loads posereview settings from defaults, a YAML file and
// POSEREVIEW_* environment variables, in increasing precedence.
package config

import (
	"maps"
	"slices"
	"time"

	"github.com/ManuGH/posereview/internal/videofile"
)

const (
	DefaultBaseURL      = "http://localhost:8000"
	DefaultTimeout      = 30 * time.Second
	DefaultUploadPath   = "/api/v1/process"
	DefaultHealthPath   = "/api/v1/health"
	DefaultFieldName    = "video"
	DefaultLocale       = "ja"
	DefaultLogLevel     = "info"
	DefaultService      = "posereview"
	DefaultListenAddr   = ":8000"
	DefaultRateLimit    = 60
	DefaultMaxBodyBytes = 32 << 20
	DefaultExporter     = "grpc"
	DefaultEndpoint     = "localhost:4317"
	DefaultSampling     = 1.0
)

// AppConfig is the effective configuration after all sources are merged.
type AppConfig struct {
	API        APIConfig
	Upload     UploadConfig
	Locale     string
	DataDir    string
	History    HistoryConfig
	Log        LogConfig
	Telemetry  TelemetryConfig
	MockServer MockServerConfig

	// Source is the YAML file that contributed to this config, if any.
	Source  string
	Version string
}

type APIConfig struct {
	BaseURL    string
	Timeout    time.Duration
	UploadPath string
	HealthPath string
}

type UploadConfig struct {
	MaxSizeBytes  int64
	FieldName     string
	AcceptedTypes map[string][]string
}

type HistoryConfig struct {
	Enabled bool
}

type LogConfig struct {
	Level   string
	Service string
}

type TelemetryConfig struct {
	Enabled  bool
	Exporter string
	Endpoint string
	Sampling float64
}

type MockServerConfig struct {
	ListenAddr   string
	RateLimit    int
	MaxBodyBytes int64
}

// Constraints returns the file validation rules for this configuration.
func (c AppConfig) Constraints() videofile.Constraints {
	types := make(map[string][]string, len(c.Upload.AcceptedTypes))
	for mimeType, exts := range c.Upload.AcceptedTypes {
		types[mimeType] = slices.Clone(exts)
	}
	return videofile.Constraints{
		MaxSizeBytes:  c.Upload.MaxSizeBytes,
		AcceptedTypes: types,
	}
}

// Clone returns a deep copy of c.
func (c AppConfig) Clone() AppConfig {
	out := c
	out.Upload.AcceptedTypes = maps.Clone(c.Upload.AcceptedTypes)
	for k, v := range out.Upload.AcceptedTypes {
		out.Upload.AcceptedTypes[k] = slices.Clone(v)
	}
	return out
}

// FileConfig mirrors the YAML layout. Pointer fields distinguish an absent
// key from an explicit zero value.
type FileConfig struct {
	API        *FileAPI        `yaml:"api,omitempty"`
	Upload     *FileUpload     `yaml:"upload,omitempty"`
	Locale     *string         `yaml:"locale,omitempty"`
	DataDir    *string         `yaml:"dataDir,omitempty"`
	History    *FileHistory    `yaml:"history,omitempty"`
	Log        *FileLog        `yaml:"log,omitempty"`
	Telemetry  *FileTelemetry  `yaml:"telemetry,omitempty"`
	MockServer *FileMockServer `yaml:"mockServer,omitempty"`
}

type FileAPI struct {
	BaseURL    *string `yaml:"baseURL,omitempty"`
	Timeout    *string `yaml:"timeout,omitempty"`
	UploadPath *string `yaml:"uploadPath,omitempty"`
	HealthPath *string `yaml:"healthPath,omitempty"`
}

type FileUpload struct {
	MaxSizeBytes  *int64              `yaml:"maxSizeBytes,omitempty"`
	FieldName     *string             `yaml:"fieldName,omitempty"`
	AcceptedTypes map[string][]string `yaml:"acceptedTypes,omitempty"`
}

type FileHistory struct {
	Enabled *bool `yaml:"enabled,omitempty"`
}

type FileLog struct {
	Level   *string `yaml:"level,omitempty"`
	Service *string `yaml:"service,omitempty"`
}

type FileTelemetry struct {
	Enabled  *bool    `yaml:"enabled,omitempty"`
	Exporter *string  `yaml:"exporter,omitempty"`
	Endpoint *string  `yaml:"endpoint,omitempty"`
	Sampling *float64 `yaml:"sampling,omitempty"`
}

type FileMockServer struct {
	ListenAddr   *string `yaml:"listenAddr,omitempty"`
	RateLimit    *int    `yaml:"rateLimit,omitempty"`
	MaxBodyBytes *int64  `yaml:"maxBodyBytes,omitempty"`
}
