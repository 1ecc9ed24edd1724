// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package orchestrator runs one processing request end to end: validation,
// upload with progress forwarding, and the terminal state transition.
package orchestrator

import (
	"context"
	"errors"
	"time"

	"github.com/ManuGH/posereview/internal/apperr"
	"github.com/ManuGH/posereview/internal/history"
	xglog "github.com/ManuGH/posereview/internal/log"
	"github.com/ManuGH/posereview/internal/metrics"
	"github.com/ManuGH/posereview/internal/model"
	netx "github.com/ManuGH/posereview/internal/platform/net"
	"github.com/ManuGH/posereview/internal/processing"
	"github.com/ManuGH/posereview/internal/videofile"
	"github.com/google/uuid"
)

// ErrNoUploader is returned by New without an uploader.
var ErrNoUploader = errors.New("orchestrator: uploader is required")

// Uploader sends a validated file to the backend.
type Uploader interface {
	Upload(ctx context.Context, file videofile.File, onProgress func(percent int)) (model.ProcessResult, error)
}

// Recorder persists terminal outcomes.
type Recorder interface {
	Record(ctx context.Context, sess history.Session) error
}

// Options configures an Orchestrator.
type Options struct {
	Machine     *processing.Machine // defaults to a fresh machine
	Uploader    Uploader
	Constraints videofile.Constraints // zero value means videofile.DefaultConstraints
	Recorder    Recorder              // optional
	NewID       func() string         // request id generator; defaults to uuid
}

// Orchestrator coordinates validator, uploader and state machine.
type Orchestrator struct {
	machine     *processing.Machine
	uploader    Uploader
	constraints videofile.Constraints
	recorder    Recorder
	newID       func() string
}

// New returns an Orchestrator.
func New(opts Options) (*Orchestrator, error) {
	if opts.Uploader == nil {
		return nil, ErrNoUploader
	}
	o := &Orchestrator{
		machine:     opts.Machine,
		uploader:    opts.Uploader,
		constraints: opts.Constraints,
		recorder:    opts.Recorder,
		newID:       opts.NewID,
	}
	if o.machine == nil {
		o.machine = processing.NewMachine()
	}
	if o.constraints.MaxSizeBytes == 0 && len(o.constraints.AcceptedTypes) == 0 {
		o.constraints = videofile.DefaultConstraints()
	}
	if o.newID == nil {
		o.newID = uuid.NewString
	}
	return o, nil
}

// Machine returns the state machine driven by o.
func (o *Orchestrator) Machine() *processing.Machine {
	return o.machine
}

// Reset returns the machine to IDLE. In-flight uploads are not cancelled.
func (o *Orchestrator) Reset() {
	o.machine.Reset()
}

// Process validates and uploads file. On failure the returned error is the
// *apperr.AppError also stored in the machine. No retries are attempted.
func (o *Orchestrator) Process(ctx context.Context, file videofile.File) (model.ProcessResult, error) {
	requestID := o.newID()
	ctx = xglog.ContextWithRequestID(ctx, requestID)
	logger := xglog.WithComponentFromContext(ctx, "orchestrator")

	if out := o.machine.SetUploading(0); !out.Applied {
		logger.Warn().
			Str(xglog.FieldEvent, "process.rejected").
			Str(xglog.FieldOldState, string(out.From)).
			Str(xglog.FieldReason, out.Reason).
			Msg("processing request rejected: machine is busy")
		return model.ProcessResult{}, apperr.Client("a processing request is already active: "+out.Reason, nil)
	}

	start := time.Now()
	logger.Info().
		Str(xglog.FieldEvent, "process.start").
		Str(xglog.FieldFileName, file.Name).
		Int64(xglog.FieldFileSize, file.Size).
		Str(xglog.FieldContentType, file.ContentType).
		Msg("processing started")

	if err := videofile.Validate(file, o.constraints); err != nil {
		var details any
		var rej *videofile.Rejection
		if errors.As(err, &rej) {
			details = map[string]any{"rule": string(rej.Rule)}
		}
		return model.ProcessResult{}, o.fail(ctx, requestID, file, apperr.Validation(err.Error(), details), start)
	}

	result, err := o.uploader.Upload(ctx, file, func(p int) {
		o.machine.SetUploading(p)
	})
	if err != nil {
		return model.ProcessResult{}, o.fail(ctx, requestID, file, apperr.Classify(err), start)
	}

	if out := o.machine.SetCompleted(result); !out.Applied {
		logger.Warn().
			Str(xglog.FieldEvent, "process.result_discarded").
			Str(xglog.FieldOldState, string(out.From)).
			Str(xglog.FieldReason, out.Reason).
			Msg("result arrived after the machine left UPLOADING")
	}
	metrics.RecordRequest(string(processing.StatusCompleted))
	logger.Info().
		Str(xglog.FieldEvent, "process.completed").
		Int("total_poses", result.TotalPoses).
		Str("result_url", netx.SanitizeURL(result.SignedURL)).
		Dur(xglog.FieldDuration, time.Since(start)).
		Msg("processing completed")

	o.record(ctx, history.Session{
		ID:         requestID,
		FileName:   file.Name,
		FileSize:   file.Size,
		Status:     string(processing.StatusCompleted),
		Progress:   100,
		SignedURL:  result.SignedURL,
		TotalPoses: result.TotalPoses,
	})
	return result, nil
}

func (o *Orchestrator) fail(ctx context.Context, requestID string, file videofile.File, appErr *apperr.AppError, start time.Time) error {
	logger := xglog.WithComponentFromContext(ctx, "orchestrator")
	if out := o.machine.SetError(appErr); !out.Applied {
		logger.Warn().
			Str(xglog.FieldEvent, "process.error_discarded").
			Str(xglog.FieldOldState, string(out.From)).
			Str(xglog.FieldReason, out.Reason).
			Msg("error arrived after the machine left UPLOADING")
	}
	metrics.RecordRequest(string(processing.StatusError))
	logger.Error().
		Str(xglog.FieldEvent, "process.failed").
		Str(xglog.FieldCode, string(appErr.Code)).
		Int(xglog.FieldStatus, appErr.Status).
		Str("kind", appErr.Kind.String()).
		Str("detail", appErr.Message).
		Dur(xglog.FieldDuration, time.Since(start)).
		Msg("processing failed")

	o.record(ctx, history.Session{
		ID:           requestID,
		FileName:     file.Name,
		FileSize:     file.Size,
		Status:       string(processing.StatusError),
		Progress:     o.machine.Snapshot().Progress,
		ErrorCode:    string(appErr.Code),
		ErrorMessage: appErr.Message,
	})
	return appErr
}

// record stores sess; failures are logged only.
func (o *Orchestrator) record(ctx context.Context, sess history.Session) {
	if o.recorder == nil {
		return
	}
	if err := o.recorder.Record(context.WithoutCancel(ctx), sess); err != nil {
		logger := xglog.WithComponentFromContext(ctx, "orchestrator")
		logger.Warn().Err(err).
			Str(xglog.FieldEvent, "history.record_failed").
			Msg("failed to record session")
	}
}
