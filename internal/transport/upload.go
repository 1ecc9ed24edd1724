// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package transport

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/ManuGH/posereview/internal/apperr"
	xglog "github.com/ManuGH/posereview/internal/log"
	"github.com/ManuGH/posereview/internal/metrics"
	"github.com/ManuGH/posereview/internal/model"
	netx "github.com/ManuGH/posereview/internal/platform/net"
	"github.com/ManuGH/posereview/internal/telemetry"
	"github.com/ManuGH/posereview/internal/videofile"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Upload posts file to the process endpoint and decodes the result.
//
// onProgress, if non-nil, receives upload percentages from the goroutine
// writing the request body. It is never called after Upload returns. Every
// error is an *apperr.TransportFailure.
func (c *Client) Upload(ctx context.Context, file videofile.File, onProgress func(percent int)) (model.ProcessResult, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	ctx, span := telemetry.Tracer().Start(ctx, "transport.upload", trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()
	span.SetAttributes(telemetry.UploadAttributes(xglog.RequestIDFromContext(ctx), file.Name, file.ContentType, file.Size)...)

	logger := xglog.WithComponentFromContext(ctx, "transport")
	target := c.endpoint(c.uploadPath)
	logURL := netx.SanitizeURL(target)
	start := time.Now()

	result, sent, err := c.upload(ctx, target, file, onProgress)
	metrics.AddUploadBytes(sent)

	elapsed := time.Since(start)
	if err != nil {
		outcome := uploadOutcome(err)
		metrics.ObserveUpload(outcome, elapsed)
		span.RecordError(err)
		span.SetStatus(codes.Error, outcome)

		ev := logger.Error().Err(err).
			Str(xglog.FieldEvent, "upload.failed").
			Str(xglog.FieldURL, logURL).
			Dur(xglog.FieldDuration, elapsed)
		var tf *apperr.TransportFailure
		if errors.As(err, &tf) && tf.Response != nil {
			ev = ev.Int(xglog.FieldStatus, tf.Response.Status)
			span.SetAttributes(telemetry.HTTPAttributes(http.MethodPost, logURL, tf.Response.Status)...)
		}
		classified := apperr.Classify(err)
		span.SetAttributes(telemetry.ErrorAttributes(string(classified.Code), classified.Kind.String(), classified.Status)...)
		ev.Msg("upload failed")
		return model.ProcessResult{}, err
	}

	metrics.ObserveUpload("success", elapsed)
	span.SetAttributes(telemetry.HTTPAttributes(http.MethodPost, logURL, http.StatusOK)...)
	span.SetAttributes(telemetry.ResultAttributes(result.TotalPoses, result.VideoMeta.DurationSec)...)
	logger.Debug().
		Str(xglog.FieldEvent, "upload.response").
		Int("total_poses", result.TotalPoses).
		Str("result_url", netx.SanitizeURL(result.SignedURL)).
		Float64("processing_time_sec", result.ProcessingTimeSec).
		Dur(xglog.FieldDuration, elapsed).
		Msg("upload completed")
	return result, nil
}

func (c *Client) upload(ctx context.Context, target string, file videofile.File, onProgress func(int)) (model.ProcessResult, int64, error) {
	fail := func(sent bool, resp *apperr.Response, err error) error {
		return &apperr.TransportFailure{Operation: "upload", Sent: sent, Response: resp, Err: err}
	}

	body, err := newMultipartBody(c.fieldName, file)
	if err != nil {
		return model.ProcessResult{}, 0, fail(false, nil, err)
	}
	defer body.Close()

	progress := newProgressReader(body.reader, body.length, onProgress)
	defer progress.stop()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, progress)
	if err != nil {
		return model.ProcessResult{}, 0, fail(false, nil, err)
	}
	req.ContentLength = body.length
	req.Header.Set("Content-Type", body.contentType)
	c.setHeaders(ctx, req)

	reqLogger := xglog.WithComponentFromContext(ctx, "transport")
	reqLogger.Debug().
		Str(xglog.FieldEvent, "upload.request").
		Str(xglog.FieldURL, netx.SanitizeURL(target)).
		Str(xglog.FieldFileName, file.Name).
		Int64(xglog.FieldFileSize, file.Size).
		Str(xglog.FieldContentType, file.ContentType).
		Msg("sending upload request")

	resp, err := c.http.Do(req)
	progress.stop()
	if err != nil {
		return model.ProcessResult{}, progress.bytesSent(), fail(!errors.Is(err, errSizeMismatch), nil, err)
	}
	defer resp.Body.Close()

	raw, err := readBody(resp)
	if err != nil {
		return model.ProcessResult{}, progress.bytesSent(), fail(true, nil, err)
	}
	payload := &apperr.Response{Status: resp.StatusCode, Body: raw}
	if !isSuccess(resp.StatusCode) {
		return model.ProcessResult{}, progress.bytesSent(), fail(true, payload, nil)
	}

	result, err := model.DecodeProcessResult(raw)
	if err != nil {
		return model.ProcessResult{}, progress.bytesSent(), fail(true, payload, err)
	}
	return result, progress.bytesSent(), nil
}

// uploadOutcome maps a failure onto the metrics outcome label.
func uploadOutcome(err error) string {
	var tf *apperr.TransportFailure
	if !errors.As(err, &tf) {
		return "client"
	}
	switch {
	case tf.Response != nil && isSuccess(tf.Response.Status):
		return "invalid_response"
	case tf.Response != nil:
		return "http_error"
	case !tf.Sent:
		return "client"
	}
	switch apperr.Classify(err).Code {
	case apperr.CodeTimeoutError:
		return "timeout"
	default:
		return "network"
	}
}
