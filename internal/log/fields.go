// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package log

// Canonical field name constants for structured logging.
const (
	// Identity fields
	FieldRequestID = "request_id"
	FieldSessionID = "session_id"
	FieldTraceID   = "trace_id"
	FieldSpanID    = "span_id"

	// Process fields
	FieldEvent     = "event"
	FieldComponent = "component"

	// State fields
	FieldOldState = "old_state"
	FieldNewState = "new_state"
	FieldProgress = "progress"
	FieldReason   = "reason"

	// Error fields
	FieldCode   = "code"
	FieldStatus = "status"

	// File fields
	FieldFileName    = "file_name"
	FieldFileSize    = "file_size"
	FieldContentType = "content_type"
	FieldPath        = "path"

	// Network fields
	FieldBaseURL  = "base_url"
	FieldURL      = "url"
	FieldDuration = "duration"
)
