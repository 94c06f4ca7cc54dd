package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ehr/searchindex/internal/platform/db"
	"github.com/ehr/searchindex/internal/platform/terminology"
)

func valueSetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "valueset",
		Short: "Manage ValueSet expansions used by :in and :not-in",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "import <valueset.json>...",
		Short: "Store the expansion of ValueSet resources",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(os.Stderr)
			if err != nil {
				return err
			}
			if err := a.cfg.RequireDatabase(); err != nil {
				return err
			}

			ctx := cmd.Context()
			pool, err := db.NewPool(ctx, a.cfg.DatabaseURL, a.cfg.DBSchema, a.cfg.DBMaxConns, a.cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer pool.Close()

			writer := terminology.NewExpansionWriter(pool, a.logger)
			for _, path := range args {
				url, codings, err := readValueSet(path)
				if err != nil {
					return err
				}
				if err := writer.Save(ctx, url, codings); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s: %d code(s)\n", url, len(codings))
			}
			return nil
		},
	})

	return cmd
}

func readValueSet(path string) (string, []terminology.Coding, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", nil, fmt.Errorf("read %s: %w", path, err)
	}
	var vs map[string]any
	if err := json.Unmarshal(data, &vs); err != nil {
		return "", nil, fmt.Errorf("decode %s: %w", path, err)
	}
	url, codings, err := terminology.ExpansionFromValueSet(vs)
	if err != nil {
		return "", nil, fmt.Errorf("%s: %w", path, err)
	}
	return url, codings, nil
}
