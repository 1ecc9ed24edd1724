// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package telemetry

import (
	"go.opentelemetry.io/otel/attribute"
)

// Attribute keys shared by client spans.
const (
	HTTPMethodKey     = "http.method"
	HTTPStatusCodeKey = "http.status_code"
	HTTPURLKey        = "http.url"

	RequestIDKey = "posereview.request_id"

	UploadFileNameKey    = "upload.file_name"
	UploadFileSizeKey    = "upload.file_size"
	UploadContentTypeKey = "upload.content_type"

	ResultTotalPosesKey = "result.total_poses"
	ResultDurationKey   = "result.duration_sec"

	ErrorCodeKey   = "error.code"
	ErrorKindKey   = "error.kind"
	ErrorStatusKey = "error.status"
)

// HTTPAttributes creates common HTTP span attributes.
func HTTPAttributes(method, url string, statusCode int) []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		attribute.String(HTTPMethodKey, method),
		attribute.String(HTTPURLKey, url),
	}
	if statusCode > 0 {
		attrs = append(attrs, attribute.Int(HTTPStatusCodeKey, statusCode))
	}
	return attrs
}

// UploadAttributes describes the file being uploaded.
func UploadAttributes(requestID, name, contentType string, size int64) []attribute.KeyValue {
	attrs := make([]attribute.KeyValue, 0, 4)
	if requestID != "" {
		attrs = append(attrs, attribute.String(RequestIDKey, requestID))
	}
	attrs = append(attrs,
		attribute.String(UploadFileNameKey, name),
		attribute.Int64(UploadFileSizeKey, size),
	)
	if contentType != "" {
		attrs = append(attrs, attribute.String(UploadContentTypeKey, contentType))
	}
	return attrs
}

// ResultAttributes describes a successful processing result.
func ResultAttributes(totalPoses int, durationSec float64) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.Int(ResultTotalPosesKey, totalPoses),
		attribute.Float64(ResultDurationKey, durationSec),
	}
}

// ErrorAttributes describes a classified failure.
func ErrorAttributes(code, kind string, status int) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(ErrorCodeKey, code),
		attribute.String(ErrorKindKey, kind),
		attribute.Int(ErrorStatusKey, status),
	}
}
