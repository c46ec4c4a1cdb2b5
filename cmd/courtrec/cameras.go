// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package main

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func newCamerasCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "cameras",
		Short: "List cameras known to the surveillance system",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			c, err := opts.bootstrap(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = c.Close(context.WithoutCancel(ctx)) }()

			cams, err := c.Locator.Cameras(ctx)
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tNAME\tENABLED")
			for _, cam := range cams {
				fmt.Fprintf(tw, "%d\t%s\t%t\n", cam.ID, cam.Name, cam.Enabled)
			}
			return tw.Flush()
		},
	}
}
