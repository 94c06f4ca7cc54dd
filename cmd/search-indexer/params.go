package main

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func paramsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "params [ResourceType...]",
		Short: "List search parameters and their token classification",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(os.Stderr)
			if err != nil {
				return err
			}
			types, err := a.resourceTypes(args)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "RESOURCE\tCODE\tTYPE\tINDEX\tELEMENT TYPES")
			for _, rt := range types {
				params := a.registry.SearchParameters(rt)
				codes := make([]string, 0, len(params))
				for code := range params {
					codes = append(codes, code)
				}
				sort.Strings(codes)
				for _, code := range codes {
					def := params[code]
					fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", rt, code, def.Type,
						a.registry.Classify(def, rt), strings.Join(def.ElementTypes, ","))
				}
			}
			return w.Flush()
		},
	}
}
