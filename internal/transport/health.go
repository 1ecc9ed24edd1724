// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/ManuGH/posereview/internal/apperr"
	xglog "github.com/ManuGH/posereview/internal/log"
	"github.com/ManuGH/posereview/internal/metrics"
	"github.com/ManuGH/posereview/internal/model"
	netx "github.com/ManuGH/posereview/internal/platform/net"
	"github.com/ManuGH/posereview/internal/telemetry"
	"go.opentelemetry.io/otel/codes"
)

// Health queries the backend health endpoint. Concurrent callers share one
// in-flight request.
func (c *Client) Health(ctx context.Context) (model.Health, error) {
	ch := c.health.DoChan("health", func() (any, error) {
		return c.fetchHealth(context.WithoutCancel(ctx))
	})
	select {
	case <-ctx.Done():
		return model.Health{}, &apperr.TransportFailure{Operation: "health", Sent: true, Err: ctx.Err()}
	case res := <-ch:
		if res.Err != nil {
			metrics.RecordHealthProbe("error")
			return model.Health{}, res.Err
		}
		h := res.Val.(model.Health)
		if h.Healthy() {
			metrics.RecordHealthProbe("healthy")
		} else {
			metrics.RecordHealthProbe("unhealthy")
		}
		return h, nil
	}
}

// Ping reports whether the backend answered its health probe successfully.
func (c *Client) Ping(ctx context.Context) bool {
	h, err := c.Health(ctx)
	return err == nil && h.Healthy()
}

func (c *Client) fetchHealth(ctx context.Context) (model.Health, error) {
	ctx, span := telemetry.Tracer().Start(ctx, "transport.health")
	defer span.End()

	target := c.endpoint(c.healthPath)
	logger := xglog.WithComponentFromContext(ctx, "transport")
	fail := func(sent bool, resp *apperr.Response, err error) error {
		span.SetStatus(codes.Error, "health probe failed")
		return &apperr.TransportFailure{Operation: "health", Sent: sent, Response: resp, Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return model.Health{}, fail(false, nil, err)
	}
	c.setHeaders(ctx, req)

	resp, err := c.probe.Do(req)
	if err != nil {
		logger.Warn().Err(err).Str(xglog.FieldEvent, "health.failed").Str(xglog.FieldURL, netx.SanitizeURL(target)).Msg("health probe failed")
		return model.Health{}, fail(true, nil, err)
	}
	defer resp.Body.Close()

	raw, err := readBody(resp)
	if err != nil {
		return model.Health{}, fail(true, nil, err)
	}
	span.SetAttributes(telemetry.HTTPAttributes(http.MethodGet, netx.SanitizeURL(target), resp.StatusCode)...)
	payload := &apperr.Response{Status: resp.StatusCode, Body: raw}
	if !isSuccess(resp.StatusCode) {
		return model.Health{}, fail(true, payload, nil)
	}

	var h model.Health
	if err := json.Unmarshal(raw, &h); err != nil {
		return model.Health{}, fail(true, payload, fmt.Errorf("decode health: %w", err))
	}
	logger.Debug().Str(xglog.FieldEvent, "health.ok").Str("backend_status", h.Status).Str("backend_version", h.Version).Msg("health probe answered")
	return h, nil
}
