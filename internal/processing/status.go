// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package processing holds the lifecycle state of one video-processing
// request and guards its transitions.
package processing

import (
	"github.com/ManuGH/posereview/internal/apperr"
	"github.com/ManuGH/posereview/internal/model"
)

// Status is the lifecycle phase of a processing request.
type Status string

const (
	StatusIdle       Status = "IDLE"
	StatusValidating Status = "VALIDATING"
	StatusUploading  Status = "UPLOADING"
	StatusProcessing Status = "PROCESSING"
	StatusCompleted  Status = "COMPLETED"
	StatusError      Status = "ERROR"
)

// Statuses lists every status in lifecycle order.
var Statuses = []Status{
	StatusIdle,
	StatusValidating,
	StatusUploading,
	StatusProcessing,
	StatusCompleted,
	StatusError,
}

var transitions = map[Status][]Status{
	StatusIdle:       {StatusValidating, StatusUploading},
	StatusValidating: {StatusUploading, StatusError, StatusIdle},
	StatusUploading:  {StatusProcessing, StatusCompleted, StatusError, StatusIdle},
	StatusProcessing: {StatusCompleted, StatusError},
	StatusCompleted:  {StatusIdle},
	StatusError:      {StatusIdle},
}

// Allowed returns the targets reachable from s through the table. IDLE is
// additionally reachable from everywhere.
func Allowed(s Status) []Status {
	return append([]Status(nil), transitions[s]...)
}

// CanTransition reports whether from -> to is legal.
func CanTransition(from, to Status) bool {
	if to == StatusIdle {
		return true
	}
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Terminal reports whether s ends a request.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusError
}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	_, ok := transitions[s]
	return ok
}

// State is an immutable snapshot of the machine.
type State struct {
	Status   Status
	Progress int
	Result   *model.ProcessResult
	Error    *apperr.AppError
}

// Outcome reports what a mutation did. Rejected mutations leave the state
// unchanged and carry a Reason.
type Outcome struct {
	Applied bool
	From    Status
	To      Status
	Reason  string
}
