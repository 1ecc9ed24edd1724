// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	xglog "github.com/ManuGH/posereview/internal/log"
	"github.com/ManuGH/posereview/internal/orchestrator"
	"github.com/ManuGH/posereview/internal/videofile"
	"github.com/ManuGH/posereview/internal/watch"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

func newWatchCommand(ctx *commandContext) *cobra.Command {
	var (
		settle       time.Duration
		existing     bool
		writeResults bool
		metricsAddr  string
	)

	cmd := &cobra.Command{
		Use:   "watch <dir>",
		Short: "Process new videos dropped into a directory, one at a time",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			shutdown, err := ctx.startTelemetry(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer shutdown()

			client, err := ctx.newClient(cfg)
			if err != nil {
				return err
			}
			store, err := ctx.openHistory(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			if store != nil {
				defer func() { _ = store.Close() }()
			}
			orch, err := ctx.newOrchestrator(cfg, client, store)
			if err != nil {
				return err
			}

			w, err := watch.New(watch.Options{
				Dir:        args[0],
				Extensions: cfg.Constraints().Extensions(),
				Settle:     settle,
				Existing:   existing,
				Handler:    watchHandler(cmd, orch, writeResults),
			})
			if err != nil {
				return err
			}

			g, gctx := errgroup.WithContext(runContext(cmd.Context()))
			g.Go(func() error {
				return w.Run(gctx)
			})
			if metricsAddr != "" {
				g.Go(func() error {
					return serveMetrics(gctx, metricsAddr)
				})
			}
			return g.Wait()
		},
	}

	cmd.Flags().DurationVar(&settle, "settle", watch.DefaultSettle, "Quiet period before a new file is processed")
	cmd.Flags().BoolVar(&existing, "existing", false, "Also process videos already in the directory")
	cmd.Flags().BoolVar(&writeResults, "write-results", false, "Write <video>.pose.json next to each processed video")
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address (e.g. :9090)")
	return cmd
}

// watchHandler resets the machine before each file so it can be reused.
func watchHandler(cmd *cobra.Command, orch *orchestrator.Orchestrator, writeResults bool) watch.Handler {
	return func(ctx context.Context, path string) error {
		orch.Reset()

		file, err := videofile.FromPath(path)
		if err != nil {
			return err
		}
		res, err := orch.Process(ctx, file)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s: %d poses, %s\n", file.Name, res.TotalPoses, res.SignedURL)
		if writeResults {
			target := strings.TrimSuffix(path, filepath.Ext(path)) + ".pose.json"
			if err := writeResultFile(target, res); err != nil {
				return err
			}
		}
		return nil
	}
}

func serveMetrics(ctx context.Context, addr string) error {
	r := chi.NewRouter()
	r.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		logger := xglog.WithComponent("cli")
		logger.Info().
			Str(xglog.FieldEvent, "metrics.listen").
			Str("addr", addr).
			Msg("serving metrics")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("metrics server: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
