package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ehr/searchindex/internal/platform/db"
	"github.com/ehr/searchindex/internal/platform/reindex"
)

func reindexCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reindex",
		Short: "Rebuild token rows from stored resources",
		RunE: func(cmd *cobra.Command, args []string) error {
			typeFlags, _ := cmd.Flags().GetStringSlice("type")

			a, err := newApp(os.Stderr)
			if err != nil {
				return err
			}
			if err := a.cfg.RequireDatabase(); err != nil {
				return err
			}
			types, err := a.resourceTypes(typeFlags)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			// One connection per worker plus one for job bookkeeping.
			pool, err := db.NewPool(ctx, a.cfg.DatabaseURL, a.cfg.DBSchema, int32(a.cfg.ReindexWorkers+1), 0)
			if err != nil {
				return err
			}
			defer pool.Close()

			runner := reindex.NewRunner(pool, a.store, reindex.Options{
				BatchSize: a.cfg.ReindexBatchSize,
				Workers:   a.cfg.ReindexWorkers,
			}, a.logger)

			report, err := runner.Run(ctx, types)
			if report != nil {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				if encErr := enc.Encode(report); encErr != nil {
					return encErr
				}
			}
			if err != nil {
				return fmt.Errorf("reindex failed: %w", err)
			}
			return nil
		},
	}
	cmd.Flags().StringSlice("type", nil, "Resource types to reindex (default RESOURCE_TYPES or all)")
	return cmd
}
