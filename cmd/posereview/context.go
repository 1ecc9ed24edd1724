// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/ManuGH/posereview/internal/config"
	"github.com/ManuGH/posereview/internal/history"
	xglog "github.com/ManuGH/posereview/internal/log"
	"github.com/ManuGH/posereview/internal/orchestrator"
	"github.com/ManuGH/posereview/internal/telemetry"
	"github.com/ManuGH/posereview/internal/transport"
	"github.com/google/uuid"
	"github.com/mattn/go-isatty"
)

type commandContext struct {
	version      string
	configFlag   *string
	logLevelFlag *string

	configOnce sync.Once
	config     config.AppConfig
	configErr  error
}

func newCommandContext(version string, configFlag, logLevelFlag *string) *commandContext {
	return &commandContext{
		version:      version,
		configFlag:   configFlag,
		logLevelFlag: logLevelFlag,
	}
}

// ensureConfig loads the configuration once and reconfigures logging from it.
func (c *commandContext) ensureConfig() (config.AppConfig, error) {
	c.configOnce.Do(func() {
		path := ""
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, err := config.NewLoader(path, c.version).Load()
		if err != nil {
			c.configErr = err
			return
		}
		if c.logLevelFlag != nil && strings.TrimSpace(*c.logLevelFlag) != "" {
			cfg.Log.Level = strings.TrimSpace(*c.logLevelFlag)
		}
		xglog.Configure(xglog.Config{
			Level:   cfg.Log.Level,
			Service: cfg.Log.Service,
			Version: c.version,
			Console: isTerminal(os.Stderr),
		})
		c.config = cfg
	})
	return c.config, c.configErr
}

func (c *commandContext) newClient(cfg config.AppConfig) (*transport.Client, error) {
	return transport.New(transport.Options{
		BaseURL:    cfg.API.BaseURL,
		UploadPath: cfg.API.UploadPath,
		HealthPath: cfg.API.HealthPath,
		FieldName:  cfg.Upload.FieldName,
		Timeout:    cfg.API.Timeout,
		UserAgent:  "posereview/" + c.version,
	})
}

// openHistory returns nil when history is disabled.
func (c *commandContext) openHistory(ctx context.Context, cfg config.AppConfig) (*history.Store, error) {
	if !cfg.History.Enabled {
		return nil, nil
	}
	store, err := history.Open(ctx, cfg.DataDir)
	if err != nil {
		return nil, fmt.Errorf("open history: %w", err)
	}
	return store, nil
}

func (c *commandContext) newOrchestrator(cfg config.AppConfig, client *transport.Client, store *history.Store) (*orchestrator.Orchestrator, error) {
	opts := orchestrator.Options{
		Uploader:    client,
		Constraints: cfg.Constraints(),
	}
	if store != nil {
		opts.Recorder = store
	}
	return orchestrator.New(opts)
}

// startTelemetry installs the tracer provider and returns its shutdown func.
func (c *commandContext) startTelemetry(ctx context.Context, cfg config.AppConfig) (func(), error) {
	provider, err := telemetry.NewProvider(ctx, telemetry.Config{
		Enabled:        cfg.Telemetry.Enabled,
		ServiceName:    cfg.Log.Service,
		ServiceVersion: c.version,
		ExporterType:   cfg.Telemetry.Exporter,
		Endpoint:       cfg.Telemetry.Endpoint,
		SamplingRate:   cfg.Telemetry.Sampling,
	})
	if err != nil {
		return nil, fmt.Errorf("start telemetry: %w", err)
	}
	return func() {
		if err := provider.Shutdown(context.WithoutCancel(ctx)); err != nil {
			logger := xglog.WithComponent("telemetry")
			logger.Warn().Err(err).Msg("telemetry shutdown failed")
		}
	}, nil
}

// runContext tags ctx with a fresh session id shared by every request of
// one command invocation.
func runContext(ctx context.Context) context.Context {
	return xglog.ContextWithSessionID(ctx, uuid.NewString())
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	fd := f.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
