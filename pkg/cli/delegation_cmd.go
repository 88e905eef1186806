package cli

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"circle-core/internal/domain"
)

func newDelegationCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "delegation",
		Aliases: []string{"deleg"},
		Short:   "Manage scope delegations",
	}
	cmd.AddCommand(newDelegationGrantCmd())
	cmd.AddCommand(newDelegationRevokeCmd())
	cmd.AddCommand(newDelegationListCmd())
	return cmd
}

func newDelegationGrantCmd() *cobra.Command {
	var (
		fromMembership string
		toPrincipal    string
		scopeList      []string
		expiresIn      time.Duration
		expiresAt      string
	)
	cmd := &cobra.Command{
		Use:   "grant <circle-id>",
		Short: "Delegate scopes from a membership to a principal",
		Long: `Delegate a subset of the acting member's role scopes to another principal.
The grant is frozen at issuance and is not transitive: the delegatee cannot
re-delegate scopes it only holds by delegation.`,
		Example: `  circlectl delegation grant c-123 --from m-456 --to individual:bob --scope manage_events --expires-in 168h --as individual:alice
  circlectl delegation grant c-123 --from m-456 --to organization:greenworks --scope view --as individual:alice`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			acting, err := actingPrincipal(cmd)
			if err != nil {
				return err
			}
			delegatee, err := domain.ParsePrincipal(toPrincipal)
			if err != nil {
				return err
			}
			var expiry *time.Time
			switch {
			case expiresAt != "" && expiresIn != 0:
				return fmt.Errorf("--expires-at and --expires-in are mutually exclusive")
			case expiresAt != "":
				at, err := time.Parse(time.RFC3339, expiresAt)
				if err != nil {
					return fmt.Errorf("parse --expires-at: %w", err)
				}
				expiry = &at
			case expiresIn != 0:
				at := time.Now().Add(expiresIn)
				expiry = &at
			}
			eng, err := openEngine(cmd)
			if err != nil {
				return err
			}
			defer eng.close() //nolint:errcheck

			d, err := eng.delegations.CreateDelegation(cmd.Context(), args[0], fromMembership, delegatee, scopeList, expiry, acting)
			if err != nil {
				return err
			}
			if getOutputFormat(cmd) == "json" {
				return printJSON(os.Stdout, d)
			}
			return printTable(os.Stdout,
				[]string{"ID", "DELEGATEE", "SCOPES", "STATUS", "EXPIRES"},
				[][]string{{d.ID, d.Delegatee.Key(), strings.Join(d.Scopes, " "), string(d.Status), formatTimePtr(d.ExpiresAt)}})
		},
	}
	cmd.Flags().StringVar(&fromMembership, "from", "", "Delegating membership ID (required)")
	cmd.Flags().StringVar(&toPrincipal, "to", "", "Delegatee principal key (required)")
	cmd.Flags().StringArrayVar(&scopeList, "scope", nil, "Scope to delegate (repeatable)")
	cmd.Flags().DurationVar(&expiresIn, "expires-in", 0, "Expiry as a duration from now, e.g. 168h")
	cmd.Flags().StringVar(&expiresAt, "expires-at", "", "Expiry as an RFC3339 timestamp")
	_ = cmd.MarkFlagRequired("from")
	_ = cmd.MarkFlagRequired("to")
	return cmd
}

func newDelegationRevokeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "revoke <delegation-id>",
		Short: "Revoke a delegation before it expires",
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

			d, err := eng.delegations.RevokeDelegation(cmd.Context(), args[0], acting)
			if err != nil {
				var terminal *domain.TerminalStateError
				if errors.As(err, &terminal) {
					// Already revoked or expired: nothing to undo.
					cmd.Printf("delegation %s is already %s\n", args[0], terminal.Status)
					return nil
				}
				return err
			}
			cmd.Printf("delegation %s revoked\n", d.ID)
			return nil
		},
	}
}

func newDelegationListCmd() *cobra.Command {
	var (
		maxResults int
		pageToken  string
	)
	cmd := &cobra.Command{
		Use:   "list <membership-id>",
		Short: "List delegations issued by a membership",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, err := openEngine(cmd)
			if err != nil {
				return err
			}
			defer eng.close() //nolint:errcheck

			page := domain.PageRequest{MaxResults: maxResults, PageToken: pageToken}
			ds, total, err := eng.delegations.ListDelegationsForDelegator(cmd.Context(), args[0], page)
			if err != nil {
				return err
			}
			next := domain.NextPageToken(page.Offset(), page.Limit(), total)
			if getOutputFormat(cmd) == "json" {
				return printJSON(os.Stdout, map[string]any{
					"delegations":     ds,
					"total":           total,
					"next_page_token": next,
				})
			}
			rows := make([][]string, 0, len(ds))
			now := time.Now()
			for i := range ds {
				d := &ds[i]
				rows = append(rows, []string{
					d.ID,
					d.Delegatee.Key(),
					strings.Join(d.Scopes, " "),
					string(d.EffectiveStatus(now)),
					formatTimePtr(d.ExpiresAt),
					formatStringPtr(d.RevokedBy),
				})
			}
			if err := printTable(os.Stdout, []string{"ID", "DELEGATEE", "SCOPES", "STATUS", "EXPIRES", "REVOKED BY"}, rows); err != nil {
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
