package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"circle-core/internal/domain"
)

func newAuthorizeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "authorize <circle-id> <principal> <scope>",
		Short: "Check whether a principal may exercise a scope in a circle",
		Example: `  circlectl authorize c-123 individual:bob manage_events
  circlectl authorize c-123 organization:greenworks view -o json`,
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := domain.ParsePrincipal(args[1])
			if err != nil {
				return err
			}
			eng, err := openEngine(cmd)
			if err != nil {
				return err
			}
			defer eng.close() //nolint:errcheck

			decision, err := eng.authz.Authorize(cmd.Context(), args[0], p, args[2])
			if err != nil {
				return err
			}
			if getOutputFormat(cmd) == "json" {
				return printJSON(os.Stdout, decision)
			}
			if decision.Allowed {
				cmd.Printf("ALLOWED (source: %s)\n", decision.Source)
				return nil
			}
			cmd.Printf("DENIED (source: %s, missing: %s)\n", decision.Source, decision.Missing)
			// A deny is a meaningful result, not a CLI failure, but scripts
			// still want a nonzero exit.
			return fmt.Errorf("principal %s lacks scope %s", p.Key(), args[2])
		},
	}
}

func newScopesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "scopes",
		Short: "Show the scope catalog and its implications",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			eng, err := openEngine(cmd)
			if err != nil {
				return err
			}
			defer eng.close() //nolint:errcheck

			names := eng.catalog.Scopes()
			if getOutputFormat(cmd) == "json" {
				out := make(map[string][]string, len(names))
				for _, name := range names {
					var implied []string
					for _, other := range names {
						if other != name && eng.catalog.Implies(name, other) {
							implied = append(implied, other)
						}
					}
					out[name] = implied
				}
				return printJSON(os.Stdout, map[string]any{
					"version": eng.catalog.Version(),
					"scopes":  out,
				})
			}
			rows := make([][]string, 0, len(names))
			for _, name := range names {
				var implied []string
				for _, other := range names {
					if other != name && eng.catalog.Implies(name, other) {
						implied = append(implied, other)
					}
				}
				rows = append(rows, []string{name, joinOrDash(implied)})
			}
			cmd.Printf("catalog version %s\n", eng.catalog.Version())
			return printTable(os.Stdout, []string{"SCOPE", "IMPLIES"}, rows)
		},
	}
}

func joinOrDash(values []string) string {
	if len(values) == 0 {
		return "-"
	}
	out := values[0]
	for _, v := range values[1:] {
		out += " " + v
	}
	return out
}
