package cli

import (
	"os"
	"strings"

	"github.com/spf13/cobra"

	"circle-core/internal/domain"
)

func newRoleCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "role",
		Short: "Manage circle roles",
	}
	cmd.AddCommand(newRoleCreateCmd())
	cmd.AddCommand(newRoleSetScopesCmd())
	cmd.AddCommand(newRoleListCmd())
	return cmd
}

func newRoleCreateCmd() *cobra.Command {
	var (
		scopeList []string
		level     string
	)
	cmd := &cobra.Command{
		Use:   "create <circle-id> <name>",
		Short: "Create a role in a circle",
		Example: `  circlectl role create c-123 Helper --scope view --as individual:alice
  circlectl role create c-123 Organizer --scope manage_events --scope post_updates --level member --as individual:alice`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			acting, err := actingPrincipal(cmd)
			if err != nil {
				return err
			}
			eng, err := openEngine(cmd)
			if err != nil {
				return err
			}
			defer eng.close() //nolint:errcheck

			role, err := eng.roles.CreateRole(cmd.Context(), args[0], args[1], scopeList, level, acting)
			if err != nil {
				return err
			}
			if getOutputFormat(cmd) == "json" {
				return printJSON(os.Stdout, role)
			}
			return printTable(os.Stdout,
				[]string{"ID", "NAME", "LEVEL", "SCOPES"},
				[][]string{{role.ID, role.Name, role.Level, strings.Join(role.Scopes, " ")}})
		},
	}
	cmd.Flags().StringArrayVar(&scopeList, "scope", nil, "Scope to grant (repeatable)")
	cmd.Flags().StringVar(&level, "level", domain.LevelMember, "Trust level: admin or member")
	return cmd
}

func newRoleSetScopesCmd() *cobra.Command {
	var scopeList []string
	cmd := &cobra.Command{
		Use:   "set-scopes <role-id>",
		Short: "Replace a role's scope set",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			acting, err := actingPrincipal(cmd)
			if err != nil {
				return err
			}
			eng, err := openEngine(cmd)
			if err != nil {
				return err
			}
			defer eng.close() //nolint:errcheck

			if err := eng.roles.UpdateRoleScopes(cmd.Context(), args[0], scopeList, acting); err != nil {
				return err
			}
			cmd.Printf("role %s scopes updated\n", args[0])
			return nil
		},
	}
	cmd.Flags().StringArrayVar(&scopeList, "scope", nil, "Scope to grant (repeatable)")
	return cmd
}

func newRoleListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list <circle-id>",
		Short: "List a circle's roles, owner first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, err := openEngine(cmd)
			if err != nil {
				return err
			}
			defer eng.close() //nolint:errcheck

			roles, err := eng.roles.ListRoles(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if getOutputFormat(cmd) == "json" {
				return printJSON(os.Stdout, roles)
			}
			rows := make([][]string, 0, len(roles))
			for _, r := range roles {
				rows = append(rows, []string{r.ID, r.Name, r.Level, strings.Join(r.Scopes, " ")})
			}
			return printTable(os.Stdout, []string{"ID", "NAME", "LEVEL", "SCOPES"}, rows)
		},
	}
}
