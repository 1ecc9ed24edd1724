// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"mime"
	"strings"
	"time"

	"github.com/ManuGH/posereview/internal/validate"
	"golang.org/x/text/language"
)

// Exporters lists the supported telemetry exporters.
var Exporters = []string{"grpc", "http"}

// Validate validates an AppConfig using the centralized validation package.
func Validate(cfg AppConfig) error {
	v := validate.New()

	v.URL("api.baseURL", cfg.API.BaseURL, []string{"http", "https"})
	v.Duration("api.timeout", cfg.API.Timeout, time.Second, 10*time.Minute)
	v.URLPath("api.uploadPath", cfg.API.UploadPath)
	v.URLPath("api.healthPath", cfg.API.HealthPath)

	v.Positive("upload.maxSizeBytes", cfg.Upload.MaxSizeBytes)
	v.NotEmpty("upload.fieldName", cfg.Upload.FieldName)
	if len(cfg.Upload.AcceptedTypes) == 0 {
		v.AddError("upload.acceptedTypes", "at least one type is required", cfg.Upload.AcceptedTypes)
	}
	for mimeType, exts := range cfg.Upload.AcceptedTypes {
		media, _, err := mime.ParseMediaType(mimeType)
		if err != nil || !strings.HasPrefix(media, "video/") {
			v.AddError("upload.acceptedTypes", "must be a video/* MIME type", mimeType)
		}
		if len(exts) == 0 {
			v.AddError("upload.acceptedTypes", "at least one extension is required", mimeType)
		}
	}

	if _, err := language.Parse(cfg.Locale); err != nil {
		v.AddError("locale", "invalid language tag", cfg.Locale)
	}

	if cfg.History.Enabled {
		v.Directory("dataDir", cfg.DataDir, false)
	}

	if _, err := validate.ParseLogLevel(cfg.Log.Level); err != nil {
		v.OneOf("log.level", cfg.Log.Level, validate.LogLevels)
	}
	v.NotEmpty("log.service", cfg.Log.Service)

	if cfg.Telemetry.Enabled {
		v.OneOf("telemetry.exporter", cfg.Telemetry.Exporter, Exporters)
		v.NotEmpty("telemetry.endpoint", cfg.Telemetry.Endpoint)
		v.FloatRange("telemetry.sampling", cfg.Telemetry.Sampling, 0, 1)
	}

	v.ListenAddr("mockServer.listenAddr", cfg.MockServer.ListenAddr)
	v.Range("mockServer.rateLimit", cfg.MockServer.RateLimit, 0, 100000)
	v.Positive("mockServer.maxBodyBytes", cfg.MockServer.MaxBodyBytes)

	return v.Err()
}
