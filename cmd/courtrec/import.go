// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package main

import (
	"fmt"

	"github.com/ManuGH/courtrec/internal/store"
	"github.com/spf13/cobra"
)

func newImportCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "import <seed.yaml>",
		Short: "Import bookings and court cameras into the store",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			seed, err := store.LoadSeed(args[0])
			if err != nil {
				return err
			}
			cfg, err := opts.load()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			st, err := store.Open(cmd.Context(), cfg.Store.Path, store.DefaultConfig())
			if err != nil {
				return err
			}
			defer func() { _ = st.Close() }()

			if err := st.ApplySeed(cmd.Context(), seed); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "imported %d cameras, %d bookings into %s\n",
				len(seed.Cameras), len(seed.Bookings), cfg.Store.Path)
			return nil
		},
	}
}
