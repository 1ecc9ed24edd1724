// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package main

import (
	"slices"
	"strings"

	"github.com/ManuGH/posereview/internal/apperr"
	"github.com/ManuGH/posereview/internal/mockapi"
	"github.com/spf13/cobra"
)

func newMockServerCommand(ctx *commandContext) *cobra.Command {
	var (
		listen string
		b      = mockapi.DefaultBehavior()
	)

	cmd := &cobra.Command{
		Use:   "mock-server",
		Short: "Run a local backend that speaks the pose-estimation API",
		Args:  cobra.NoArgs,
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

			b.FailCode = strings.ToUpper(strings.TrimSpace(b.FailCode))
			if b.FailCode != "" && !knownCode(b.FailCode) {
				cmd.PrintErrf("warning: %s is not a documented backend error code\n", b.FailCode)
			}

			addr := cfg.MockServer.ListenAddr
			if listen != "" {
				addr = listen
			}
			srv := mockapi.New(mockapi.Options{
				MaxBodyBytes: cfg.MockServer.MaxBodyBytes,
				RateLimit:    cfg.MockServer.RateLimit,
				Constraints:  cfg.Constraints(),
				Behavior:     b,
			})
			return srv.ListenAndServe(cmd.Context(), addr)
		},
	}

	f := cmd.Flags()
	f.StringVar(&listen, "listen", "", "Listen address (overrides mockServer.listenAddr)")
	f.DurationVar(&b.Delay, "delay", 0, "Simulated inference time before answering")
	f.StringVar(&b.FailCode, "fail-code", "", "Answer every upload with this error code")
	f.IntVar(&b.FailStatus, "fail-status", 0, "HTTP status used with --fail-code (default 500)")
	f.StringVar(&b.FailMessage, "fail-message", "", "Message used with --fail-code")
	f.BoolVar(&b.Malformed, "malformed", false, "Answer 200 with a body that breaks the result schema")
	f.Int64Var(&b.MinBytes, "min-bytes", 0, "Reject smaller uploads with VIDEO_TOO_SHORT")
	f.IntVar(&b.Poses, "poses", b.Poses, "Reported total_poses; 0 yields NO_POSE_DETECTED")
	return cmd
}

func knownCode(code string) bool {
	return slices.Contains(apperr.BackendCodes, apperr.Code(code))
}
