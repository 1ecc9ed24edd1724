// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package main

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/ManuGH/posereview/internal/history"
	"github.com/ManuGH/posereview/internal/videofile"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

var errHistoryDisabled = errors.New("history is disabled (history.enabled=false)")

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	var limit int
	var prune time.Duration

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recent processing sessions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			store, err := ctx.openHistory(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			if store == nil {
				return errHistoryDisabled
			}
			defer func() { _ = store.Close() }()

			if prune > 0 {
				n, err := store.Prune(cmd.Context(), time.Now().Add(-prune))
				if err != nil {
					return fmt.Errorf("prune history: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Removed %d session(s) older than %s\n", n, prune)
			}

			sessions, err := store.List(cmd.Context(), limit)
			if err != nil {
				return fmt.Errorf("list history: %w", err)
			}
			if len(sessions) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No sessions recorded yet.")
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderSessions(sessions, time.Now()))
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Number of sessions to show")
	cmd.Flags().DurationVar(&prune, "prune", 0, "Delete sessions older than this age before listing")
	return cmd
}

func renderSessions(sessions []history.Session, now time.Time) string {
	headers := []string{"ID", "File", "Size", "Status", "Poses", "Result / Error", "When"}
	rows := make([][]string, 0, len(sessions))
	for _, s := range sessions {
		outcome := s.SignedURL
		if s.ErrorCode != "" {
			outcome = s.ErrorCode
		}
		poses := ""
		if s.TotalPoses > 0 {
			poses = strconv.Itoa(s.TotalPoses)
		}
		rows = append(rows, []string{
			shortID(s.ID),
			s.FileName,
			videofile.FormatSize(s.FileSize),
			s.Status,
			poses,
			outcome,
			humanize.RelTime(s.UpdatedAt, now, "ago", "from now"),
		})
	}
	return renderTable(headers, rows, []columnAlignment{alignLeft, alignLeft, alignRight, alignLeft, alignRight})
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
