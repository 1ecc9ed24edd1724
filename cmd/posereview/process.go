// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package main

import (
	"encoding/json"
	"fmt"

	"github.com/ManuGH/posereview/internal/apperr"
	"github.com/ManuGH/posereview/internal/config"
	xglog "github.com/ManuGH/posereview/internal/log"
	"github.com/ManuGH/posereview/internal/model"
	"github.com/ManuGH/posereview/internal/videofile"
	"github.com/google/renameio/v2"
	"github.com/spf13/cobra"
)

func newProcessCommand(ctx *commandContext) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "process <video>",
		Short: "Upload a video for pose estimation and print the result",
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

			file, err := videofile.FromPath(args[0])
			if err != nil {
				return err
			}
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

			errOut := cmd.ErrOrStderr()
			r := newRenderer(errOut, isTerminal(errOut), file.Name)
			unsubscribe := orch.Machine().Subscribe(r.observe)
			defer unsubscribe()

			res, err := orch.Process(runContext(cmd.Context()), file)
			r.finish()
			if err != nil {
				return reportFailure(cmd, cfg, err)
			}

			printResult(cmd.OutOrStdout(), res)
			if output != "" {
				if err := writeResultFile(output, res); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "  Saved to:        %s\n", output)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "Write the result JSON to this file")
	return cmd
}

// reportFailure prints the localized message for err and returns an exitError.
func reportFailure(cmd *cobra.Command, cfg config.AppConfig, err error) error {
	appErr, ok := apperr.As(err)
	if !ok {
		appErr = apperr.Classify(err)
	}
	printError(cmd.ErrOrStderr(), cfg.Locale, appErr)
	return &exitError{code: 1}
}

// writeResultFile atomically replaces path with the indented result JSON.
func writeResultFile(path string, res model.ProcessResult) error {
	data, err := json.MarshalIndent(res, "", "  ")
	if err != nil {
		return fmt.Errorf("encode result: %w", err)
	}
	data = append(data, '\n')

	pending, err := renameio.NewPendingFile(path, renameio.WithPermissions(0o644))
	if err != nil {
		return fmt.Errorf("create pending result file: %w", err)
	}
	defer func() {
		if err := pending.Cleanup(); err != nil {
			logger := xglog.WithComponent("cli")
			logger.Debug().Err(err).Msg("cleanup pending result file")
		}
	}()

	if _, err := pending.Write(data); err != nil {
		return fmt.Errorf("write result: %w", err)
	}
	if err := pending.CloseAtomicallyReplace(); err != nil {
		return fmt.Errorf("atomically replace result file: %w", err)
	}
	return nil
}
