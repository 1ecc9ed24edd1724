// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package apperr

import (
	"fmt"
	"strings"
)

// Response is the part of an HTTP response kept for classification.
type Response struct {
	Status int
	Body   []byte
}

// TransportFailure describes a failed exchange with the backend.
//
// Response is set when an HTTP response was received (non-2xx status or a 2xx
// body that failed schema validation). Sent reports whether the request left
// the client; a failure without response and with Sent=false happened while
// building the request.
type TransportFailure struct {
	Operation string
	Sent      bool
	Response  *Response
	Err       error
}

func (f *TransportFailure) Error() string {
	op := f.Operation
	if op == "" {
		op = "request"
	}
	msg := fmt.Sprintf("transport: %s", op)
	switch {
	case f.Response != nil:
		msg = fmt.Sprintf("%s: HTTP %d", msg, f.Response.Status)
	case f.Sent:
		msg = fmt.Sprintf("%s: no response", msg)
	default:
		msg = fmt.Sprintf("%s: not sent", msg)
	}
	if f.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, f.Err)
	}
	return msg
}

func (f *TransportFailure) Unwrap() error {
	return f.Err
}

// bodySnippet trims a response body for use in diagnostic messages.
func bodySnippet(body []byte) string {
	const limit = 512
	s := strings.TrimSpace(string(body))
	if len(s) > limit {
		s = s[:limit] + "..."
	}
	return s
}
