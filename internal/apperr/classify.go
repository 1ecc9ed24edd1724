// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package apperr

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"os"
)

// envelope is the structured backend error body:
// {"error":{"code":"...","message":"...","details":...}}
type envelope struct {
	Error *struct {
		Code    *string         `json:"code"`
		Message *string         `json:"message"`
		Details json.RawMessage `json:"details"`
	} `json:"error"`
}

// Classify converts any failure into an *AppError.
//
// Rules, in priority order: an existing AppError is returned unchanged; a
// response carrying the backend envelope keeps its code, message and details
// with the response status; any other response becomes UNKNOWN_ERROR with the
// raw body as details; a sent request without response becomes TIMEOUT_ERROR
// (408) when aborted or timed out and NETWORK_ERROR (0) otherwise; everything
// else is a CLIENT_ERROR (400).
func Classify(err error) *AppError {
	if err == nil {
		return nil
	}
	if appErr, ok := As(err); ok {
		return appErr
	}

	var failure *TransportFailure
	if !errors.As(err, &failure) {
		if isAbort(err) {
			return withCause(New(CodeTimeoutError, StatusTimeout, "Request timeout", nil), err)
		}
		return Client(err.Error(), err)
	}

	if resp := failure.Response; resp != nil {
		if structured, ok := parseEnvelope(resp); ok {
			return withCause(structured, err)
		}
		msg := fmt.Sprintf("request failed with status code %d", resp.Status)
		if failure.Err != nil {
			msg = fmt.Sprintf("%s: %v", msg, failure.Err)
		} else if snippet := bodySnippet(resp.Body); snippet != "" {
			msg = fmt.Sprintf("%s: %s", msg, snippet)
		}
		return withCause(New(CodeUnknownError, resp.Status, msg, string(resp.Body)), err)
	}

	if failure.Sent {
		if isAbort(failure.Err) {
			return withCause(New(CodeTimeoutError, StatusTimeout, "Request timeout", nil), err)
		}
		return withCause(New(CodeNetworkError, StatusNetwork, "Network error", nil), err)
	}

	msg := "request could not be created"
	if failure.Err != nil {
		msg = failure.Err.Error()
	}
	return Client(msg, err)
}

func parseEnvelope(resp *Response) (*AppError, bool) {
	if len(resp.Body) == 0 {
		return nil, false
	}
	var env envelope
	if err := json.Unmarshal(resp.Body, &env); err != nil {
		return nil, false
	}
	if env.Error == nil || env.Error.Code == nil || env.Error.Message == nil || *env.Error.Code == "" {
		return nil, false
	}

	var details any
	if len(env.Error.Details) > 0 && string(env.Error.Details) != "null" {
		if err := json.Unmarshal(env.Error.Details, &details); err != nil {
			details = string(env.Error.Details)
		}
	}
	return New(Code(*env.Error.Code), resp.Status, *env.Error.Message, details), true
}

// isAbort reports whether err represents an aborted or timed-out exchange.
func isAbort(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) || errors.Is(err, os.ErrDeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func withCause(e *AppError, cause error) *AppError {
	e.Err = cause
	return e
}
