// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ManuGH/courtrec/internal/acquisition"
	"github.com/spf13/cobra"
)

func newRunCmd(opts *rootOptions) *cobra.Command {
	var date string
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run one acquisition pass and print its summary",
		Long: `Fetches the bookings of a day from the booking API, selects the ones that
have ended without a recording and requests an auto-download for each, one at a
time. The booking API (courtrec serve) must be reachable.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			c, err := opts.bootstrap(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = c.Close(context.WithoutCancel(ctx)) }()

			summary, runErr := c.Scheduler.RunOnce(ctx, date, "manual")
			if summary != nil {
				if err := printSummary(cmd, summary); err != nil {
					return err
				}
			}
			return runErr
		},
	}
	cmd.Flags().StringVar(&date, "date", "", "booking date (YYYY-MM-DD); defaults to today in the configured timezone")
	return cmd
}

func printSummary(cmd *cobra.Command, s *acquisition.RunSummary) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	if err := enc.Encode(s); err != nil {
		return fmt.Errorf("print summary: %w", err)
	}
	return nil
}
