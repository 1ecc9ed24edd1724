// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package mockapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/ManuGH/posereview/internal/metrics"
	"github.com/ManuGH/posereview/internal/model"
	"github.com/ManuGH/posereview/internal/videofile"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
)

// uploadField is the multipart field carrying the video.
const uploadField = "video"

type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

func writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	if rid := middleware.GetReqID(r.Context()); rid != "" {
		w.Header().Set("X-Request-ID", rid)
	}
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
	metrics.RecordMockRequest(routeOf(r), status)
}

func routeOf(r *http.Request) string {
	if rc := chi.RouteContext(r.Context()); rc != nil {
		if p := rc.RoutePattern(); p != "" {
			return p
		}
	}
	return "unmatched"
}

func writeError(w http.ResponseWriter, r *http.Request, status int, code, message string, details any) {
	writeJSON(w, r, status, errorBody{Error: errorDetail{Code: code, Message: message, Details: details}})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, model.Health{Status: "ok", Version: Version})
}

func (s *Server) handleProcess(w http.ResponseWriter, r *http.Request) {
	s.requests.Add(1)
	b := s.currentBehavior()
	start := time.Now()

	if r.ContentLength > s.opts.MaxBodyBytes {
		writeError(w, r, http.StatusRequestEntityTooLarge, "FILE_TOO_LARGE", "request body exceeds the upload limit", map[string]any{"limit_bytes": s.opts.MaxBodyBytes})
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, s.opts.MaxBodyBytes)
	mr, err := r.MultipartReader()
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "INVALID_REQUEST", "multipart/form-data body required", nil)
		return
	}

	var (
		name, contentType string
		size              int64
		found             bool
	)
	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			s.bodyError(w, r, err)
			return
		}
		if part.FormName() != uploadField || part.FileName() == "" {
			_, _ = io.Copy(io.Discard, part)
			continue
		}
		name, contentType = part.FileName(), part.Header.Get("Content-Type")
		size, err = io.Copy(io.Discard, part)
		if err != nil {
			s.bodyError(w, r, err)
			return
		}
		found = true
	}
	if !found {
		writeError(w, r, http.StatusBadRequest, "INVALID_REQUEST", "missing video file field \""+uploadField+"\"", nil)
		return
	}

	file := videofile.New(name, size, contentType, nil)
	if err := videofile.Validate(file, s.opts.Constraints); err != nil {
		var rej *videofile.Rejection
		code, status := "INVALID_REQUEST", http.StatusBadRequest
		if errors.As(err, &rej) {
			switch rej.Rule {
			case videofile.RuleTooLarge:
				code, status = "FILE_TOO_LARGE", http.StatusRequestEntityTooLarge
			case videofile.RuleType:
				code = "INVALID_FILE_TYPE"
			}
		}
		writeError(w, r, status, code, err.Error(), nil)
		return
	}

	if b.Delay > 0 {
		select {
		case <-time.After(b.Delay):
		case <-r.Context().Done():
			return
		}
	}

	switch {
	case b.FailCode != "":
		status := b.FailStatus
		if status == 0 {
			status = http.StatusInternalServerError
		}
		msg := b.FailMessage
		if msg == "" {
			msg = strings.ToLower(strings.ReplaceAll(b.FailCode, "_", " "))
		}
		writeError(w, r, status, b.FailCode, msg, nil)
		return
	case b.MinBytes > 0 && size < b.MinBytes:
		writeError(w, r, http.StatusBadRequest, "VIDEO_TOO_SHORT", "Video must be at least 1 second long", map[string]any{"min_bytes": b.MinBytes})
		return
	case b.Poses <= 0:
		writeError(w, r, http.StatusUnprocessableEntity, "NO_POSE_DETECTED", "No person detected in the video", nil)
		return
	case b.Malformed:
		writeJSON(w, r, http.StatusOK, map[string]any{"signed_url": "not-a-url", "total_poses": "many"})
		return
	}

	base := strings.TrimRight(b.SignedURLBase, "/")
	if base == "" {
		base = DefaultBehavior().SignedURLBase
	}
	duration := float64(b.Poses) / 30.0
	writeJSON(w, r, http.StatusOK, model.ProcessResult{
		SignedURL: base + "/" + uuid.NewString() + ".mp4?X-Goog-Expires=3600",
		VideoMeta: model.VideoMeta{
			Width:       1280,
			Height:      720,
			FPS:         30,
			DurationSec: duration,
			HasAudio:    false,
		},
		TotalPoses:        b.Poses,
		ProcessingTimeSec: time.Since(start).Seconds(),
	})
}

func (s *Server) bodyError(w http.ResponseWriter, r *http.Request, err error) {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		writeError(w, r, http.StatusRequestEntityTooLarge, "FILE_TOO_LARGE", "request body exceeds the upload limit", map[string]any{"limit_bytes": tooLarge.Limit})
		return
	}
	writeError(w, r, http.StatusBadRequest, "INVALID_REQUEST", "malformed multipart body", nil)
}
