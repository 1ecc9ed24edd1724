// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package model holds the wire types exchanged with the inference backend.
package model

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// ErrInvalidResult is returned when a success body does not match the
// expected result shape.
var ErrInvalidResult = errors.New("invalid process result")

// VideoMeta describes the annotated output video.
type VideoMeta struct {
	Width       int     `json:"width"`
	Height      int     `json:"height"`
	FPS         float64 `json:"fps"`
	DurationSec float64 `json:"duration_sec"`
	HasAudio    bool    `json:"has_audio"`
}

// ProcessResult is the successful response of the process endpoint.
type ProcessResult struct {
	SignedURL         string    `json:"signed_url"`
	VideoMeta         VideoMeta `json:"video_meta"`
	TotalPoses        int       `json:"total_poses"`
	ProcessingTimeSec float64   `json:"processing_time_sec"`
}

// Health is the response of the health endpoint.
type Health struct {
	Status  string `json:"status"`
	Version string `json:"version"`
}

// Healthy reports whether the backend declared itself healthy.
func (h Health) Healthy() bool {
	switch strings.ToLower(h.Status) {
	case "ok", "healthy", "up":
		return true
	}
	return false
}

type rawVideoMeta struct {
	Width       *int     `json:"width"`
	Height      *int     `json:"height"`
	FPS         *float64 `json:"fps"`
	DurationSec *float64 `json:"duration_sec"`
	HasAudio    *bool    `json:"has_audio"`
}

type rawResult struct {
	SignedURL         *string       `json:"signed_url"`
	VideoMeta         *rawVideoMeta `json:"video_meta"`
	TotalPoses        *int          `json:"total_poses"`
	ProcessingTimeSec *float64      `json:"processing_time_sec"`
}

// DecodeProcessResult decodes and structurally validates a success body.
// Missing fields, wrong types and non-absolute URLs are rejected.
func DecodeProcessResult(body []byte) (ProcessResult, error) {
	var raw rawResult
	dec := json.NewDecoder(bytes.NewReader(body))
	if err := dec.Decode(&raw); err != nil {
		return ProcessResult{}, fmt.Errorf("%w: %v", ErrInvalidResult, err)
	}

	var missing []string
	if raw.SignedURL == nil {
		missing = append(missing, "signed_url")
	}
	if raw.VideoMeta == nil {
		missing = append(missing, "video_meta")
	} else {
		m := raw.VideoMeta
		if m.Width == nil {
			missing = append(missing, "video_meta.width")
		}
		if m.Height == nil {
			missing = append(missing, "video_meta.height")
		}
		if m.FPS == nil {
			missing = append(missing, "video_meta.fps")
		}
		if m.DurationSec == nil {
			missing = append(missing, "video_meta.duration_sec")
		}
		if m.HasAudio == nil {
			missing = append(missing, "video_meta.has_audio")
		}
	}
	if raw.TotalPoses == nil {
		missing = append(missing, "total_poses")
	}
	if raw.ProcessingTimeSec == nil {
		missing = append(missing, "processing_time_sec")
	}
	if len(missing) > 0 {
		return ProcessResult{}, fmt.Errorf("%w: missing %s", ErrInvalidResult, strings.Join(missing, ", "))
	}

	res := ProcessResult{
		SignedURL: *raw.SignedURL,
		VideoMeta: VideoMeta{
			Width:       *raw.VideoMeta.Width,
			Height:      *raw.VideoMeta.Height,
			FPS:         *raw.VideoMeta.FPS,
			DurationSec: *raw.VideoMeta.DurationSec,
			HasAudio:    *raw.VideoMeta.HasAudio,
		},
		TotalPoses:        *raw.TotalPoses,
		ProcessingTimeSec: *raw.ProcessingTimeSec,
	}
	if err := res.Validate(); err != nil {
		return ProcessResult{}, err
	}
	return res, nil
}

// Validate checks value ranges of a decoded result.
func (r ProcessResult) Validate() error {
	u, err := url.Parse(r.SignedURL)
	if err != nil || !u.IsAbs() || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return fmt.Errorf("%w: signed_url %q is not an absolute http(s) URL", ErrInvalidResult, r.SignedURL)
	}
	m := r.VideoMeta
	switch {
	case m.Width < 1 || m.Height < 1:
		return fmt.Errorf("%w: invalid dimensions %dx%d", ErrInvalidResult, m.Width, m.Height)
	case m.FPS <= 0:
		return fmt.Errorf("%w: fps must be positive", ErrInvalidResult)
	case m.DurationSec < 0:
		return fmt.Errorf("%w: duration_sec must not be negative", ErrInvalidResult)
	case r.TotalPoses < 0:
		return fmt.Errorf("%w: total_poses must not be negative", ErrInvalidResult)
	case r.ProcessingTimeSec < 0:
		return fmt.Errorf("%w: processing_time_sec must not be negative", ErrInvalidResult)
	}
	return nil
}
