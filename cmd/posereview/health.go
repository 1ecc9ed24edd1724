// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newHealthCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check that the backend is reachable and healthy",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			client, err := ctx.newClient(cfg)
			if err != nil {
				return err
			}

			h, err := client.Health(cmd.Context())
			if err != nil {
				return reportFailure(cmd, cfg, err)
			}
			if !h.Healthy() {
				fmt.Fprintf(cmd.ErrOrStderr(), "Backend %s is unhealthy (status %q)\n", client.BaseURL(), h.Status)
				return &exitError{code: 1}
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Backend %s is healthy", client.BaseURL())
			if h.Version != "" {
				fmt.Fprintf(cmd.OutOrStdout(), " (version %s)", h.Version)
			}
			fmt.Fprintln(cmd.OutOrStdout())
			return nil
		},
	}
}
