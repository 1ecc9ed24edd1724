// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Code is the machine classification of an AppError.
type Code string

// Backend codes, declared by the inference API in its error envelope.
const (
	CodeVideoTooShort       Code = "VIDEO_TOO_SHORT"
	CodeVideoTooLong        Code = "VIDEO_TOO_LONG"
	CodeFileTooLarge        Code = "FILE_TOO_LARGE"
	CodeInvalidFileType     Code = "INVALID_FILE_TYPE"
	CodeInvalidRequest      Code = "INVALID_REQUEST"
	CodeVideoDecodeError    Code = "VIDEO_DECODE_ERROR"
	CodeNoPoseDetected      Code = "NO_POSE_DETECTED"
	CodeModelInferenceError Code = "MODEL_INFERENCE_ERROR"
	CodeStorageError        Code = "STORAGE_ERROR"
	CodeInternalServerError Code = "INTERNAL_SERVER_ERROR"
)

// Client codes, assigned locally.
const (
	CodeNetworkError    Code = "NETWORK_ERROR"
	CodeTimeoutError    Code = "TIMEOUT_ERROR"
	CodeValidationError Code = "VALIDATION_ERROR"
	CodeClientError     Code = "CLIENT_ERROR"
	CodeUnknownError    Code = "UNKNOWN_ERROR"
)

// BackendCodes lists the closed set of codes the backend may declare.
var BackendCodes = []Code{
	CodeVideoTooShort,
	CodeVideoTooLong,
	CodeFileTooLarge,
	CodeInvalidFileType,
	CodeInvalidRequest,
	CodeVideoDecodeError,
	CodeNoPoseDetected,
	CodeModelInferenceError,
	CodeStorageError,
	CodeInternalServerError,
}

// ClientCodes lists the codes assigned by the client itself.
var ClientCodes = []Code{
	CodeNetworkError,
	CodeTimeoutError,
	CodeValidationError,
	CodeClientError,
	CodeUnknownError,
}

// Kind is the tagged variant of an AppError.
type Kind int

const (
	// KindValidation marks pre-flight failures; no request was sent.
	KindValidation Kind = iota + 1
	// KindTransport marks structured backend errors and network/timeout failures.
	KindTransport
	// KindUnknown marks unstructured responses and request-construction failures.
	KindUnknown
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindTransport:
		return "transport"
	case KindUnknown:
		return "unknown"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Status values used for client codes.
const (
	StatusNetwork    = 0
	StatusTimeout    = http.StatusRequestTimeout
	StatusValidation = http.StatusBadRequest
	StatusClient     = http.StatusBadRequest
)

// AppError is the structured error stored in the processing state.
type AppError struct {
	Kind    Kind
	Code    Code
	Message string // developer-facing diagnostic text
	Status  int    // HTTP-like status; 0 for pure network failures
	Details any    // optional structured payload
	Err     error  // underlying cause, if any
}

func (e *AppError) Error() string {
	msg := string(e.Code)
	if e.Status > 0 {
		msg = fmt.Sprintf("%s (HTTP %d)", msg, e.Status)
	}
	if e.Message != "" {
		msg = fmt.Sprintf("%s: %s", msg, e.Message)
	}
	return msg
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// UserMessage returns the localized guidance for the error code in the
// default locale.
func (e *AppError) UserMessage() string {
	return UserMessage(e.Code)
}

// New creates an AppError. The kind is derived from the code.
func New(code Code, status int, message string, details any) *AppError {
	return &AppError{
		Kind:    kindOf(code),
		Code:    code,
		Message: message,
		Status:  status,
		Details: details,
	}
}

// Validation builds the error reported for pre-flight validation failures.
func Validation(reason string, details any) *AppError {
	if reason == "" {
		reason = "invalid video file"
	}
	return New(CodeValidationError, StatusValidation, reason, details)
}

// Client builds a CLIENT_ERROR for failures that happen before a request is sent.
func Client(message string, cause error) *AppError {
	e := New(CodeClientError, StatusClient, message, nil)
	e.Err = cause
	return e
}

// As reports whether err is (or wraps) an *AppError and returns it.
func As(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// IsCode reports whether err is an *AppError with the given code.
func IsCode(err error, code Code) bool {
	appErr, ok := As(err)
	return ok && appErr.Code == code
}

func kindOf(code Code) Kind {
	switch code {
	case CodeValidationError:
		return KindValidation
	case CodeUnknownError, CodeClientError:
		return KindUnknown
	default:
		return KindTransport
	}
}
