package main

import (
	"fmt"
	"net/url"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ehr/searchindex/internal/platform/fhir"
	"github.com/ehr/searchindex/internal/platform/sqlexpr"
)

func explainCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "explain <ResourceType> <query-string>",
		Short: "Print the SQL compiled for a search without running it",
		Example: `  search-indexer explain Patient 'identifier=http://example.org|123&_sort=-identifier'
  search-indexer explain Observation 'code:in=http://hl7.org/fhir/ValueSet/observation-codes'`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			strict, _ := cmd.Flags().GetBool("strict")

			a, err := newApp(os.Stderr)
			if err != nil {
				return err
			}
			values, err := url.ParseQuery(strings.TrimPrefix(args[1], "?"))
			if err != nil {
				return fmt.Errorf("parse query string: %w", err)
			}

			handling := fhir.HandlingLenient
			if strict {
				handling = fhir.HandlingStrict
			}
			searcher := fhir.NewSearcher(a.registry, a.compiler, nil, a.logger)
			q, err := searcher.Parse(args[0], values, handling)
			if err != nil {
				return err
			}
			sel, err := searcher.Compile(q)
			if err != nil {
				return err
			}

			sql, params := sqlexpr.Render(sel)
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, sql)
			for i, p := range params {
				fmt.Fprintf(out, "$%d = %#v\n", i+1, p)
			}
			for _, ignored := range q.Ignored {
				fmt.Fprintf(out, "ignored: %s\n", ignored)
			}
			return nil
		},
	}
	cmd.Flags().Bool("strict", false, "Reject unknown or unsupported parameters instead of ignoring them")
	return cmd
}
