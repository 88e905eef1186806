package cli

import (
	"os"

	"github.com/spf13/cobra"

	"circle-core/internal/domain"
)

func newMemberCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "member",
		Short: "Manage circle memberships",
	}
	cmd.AddCommand(newMemberAddCmd())
	cmd.AddCommand(newMemberRemoveCmd())
	cmd.AddCommand(newMemberSetRoleCmd())
	cmd.AddCommand(newMemberListCmd())
	return cmd
}

func newMemberAddCmd() *cobra.Command {
	var roleID string
	cmd := &cobra.Command{
		Use:   "add <circle-id> <principal>",
		Short: "Add a principal to a circle",
		Example: `  circlectl member add c-123 individual:bob --role r-456 --as individual:alice
  circlectl member add c-123 organization:greenworks --role r-456 --as individual:alice`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			acting, err := actingPrincipal(cmd)
			if err != nil {
				return err
			}
			p, err := domain.ParsePrincipal(args[1])
			if err != nil {
				return err
			}
			eng, err := openEngine(cmd)
			if err != nil {
				return err
			}
			defer eng.close() //nolint:errcheck

			m, err := eng.members.AddMember(cmd.Context(), args[0], p, roleID, acting)
			if err != nil {
				return err
			}
			if getOutputFormat(cmd) == "json" {
				return printJSON(os.Stdout, m)
			}
			return printTable(os.Stdout,
				[]string{"ID", "PRINCIPAL", "ROLE", "JOINED"},
				[][]string{{m.ID, m.Principal.Key(), m.RoleID, formatTime(m.JoinedAt)}})
		},
	}
	cmd.Flags().StringVar(&roleID, "role", "", "Role to bind the member to (required)")
	_ = cmd.MarkFlagRequired("role")
	return cmd
}

func newMemberRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "remove <circle-id> <membership-id>",
		Short: "Deactivate a membership and revoke its issued delegations",
		Args:  cobra.ExactArgs(2),
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

			if err := eng.members.RemoveMember(cmd.Context(), args[0], args[1], acting); err != nil {
				return err
			}
			cmd.Printf("membership %s removed\n", args[1])
			return nil
		},
	}
}

func newMemberSetRoleCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set-role <membership-id> <role-id>",
		Short: "Reassign a membership to another role",
		Args:  cobra.ExactArgs(2),
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

			if err := eng.members.ChangeMemberRole(cmd.Context(), args[0], args[1], acting); err != nil {
				return err
			}
			cmd.Printf("membership %s moved to role %s\n", args[0], args[1])
			return nil
		},
	}
}

func newMemberListCmd() *cobra.Command {
	var (
		maxResults int
		pageToken  string
	)
	cmd := &cobra.Command{
		Use:   "list <circle-id>",
		Short: "List a circle's memberships, history included",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, err := openEngine(cmd)
			if err != nil {
				return err
			}
			defer eng.close() //nolint:errcheck

			page := domain.PageRequest{MaxResults: maxResults, PageToken: pageToken}
			members, total, err := eng.members.ListMembers(cmd.Context(), args[0], page)
			if err != nil {
				return err
			}
			next := domain.NextPageToken(page.Offset(), page.Limit(), total)
			if getOutputFormat(cmd) == "json" {
				return printJSON(os.Stdout, map[string]any{
					"members":         members,
					"total":           total,
					"next_page_token": next,
				})
			}
			rows := make([][]string, 0, len(members))
			for _, m := range members {
				active := "active"
				if !m.IsActive {
					active = "inactive"
				}
				rows = append(rows, []string{m.ID, m.Principal.Key(), m.RoleID, active})
			}
			if err := printTable(os.Stdout, []string{"ID", "PRINCIPAL", "ROLE", "STATUS"}, rows); err != nil {
				return err
			}
			if next != "" {
				cmd.Printf("next page: --page-token %s\n", next)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&maxResults, "max-results", 100, "Maximum number of results")
	cmd.Flags().StringVar(&pageToken, "page-token", "", "Continue from a previous page")
	return cmd
}
