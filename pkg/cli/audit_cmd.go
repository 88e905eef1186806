package cli

import (
	"os"

	"github.com/spf13/cobra"

	"circle-core/internal/domain"
)

func newAuditCmd() *cobra.Command {
	var (
		circleID   string
		principal  string
		action     string
		status     string
		maxResults int
		pageToken  string
	)
	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Query the audit log",
		Example: `  circlectl audit --circle c-123
  circlectl audit --principal individual:bob --status DENIED`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			eng, err := openEngine(cmd)
			if err != nil {
				return err
			}
			defer eng.close() //nolint:errcheck

			filter := domain.AuditFilter{
				Page: domain.PageRequest{MaxResults: maxResults, PageToken: pageToken},
			}
			if circleID != "" {
				filter.CircleID = &circleID
			}
			if principal != "" {
				filter.PrincipalKey = &principal
			}
			if action != "" {
				filter.Action = &action
			}
			if status != "" {
				filter.Status = &status
			}

			entries, total, err := eng.audits.List(cmd.Context(), filter)
			if err != nil {
				return err
			}
			next := domain.NextPageToken(filter.Page.Offset(), filter.Page.Limit(), total)
			if getOutputFormat(cmd) == "json" {
				return printJSON(os.Stdout, map[string]any{
					"entries":         entries,
					"total":           total,
					"next_page_token": next,
				})
			}
			rows := make([][]string, 0, len(entries))
			for i := range entries {
				e := &entries[i]
				rows = append(rows, []string{
					formatTime(e.CreatedAt),
					formatStringPtr(e.CircleID),
					e.PrincipalKey,
					e.Action,
					e.Status,
					e.Detail,
				})
			}
			if err := printTable(os.Stdout, []string{"TIME", "CIRCLE", "PRINCIPAL", "ACTION", "STATUS", "DETAIL"}, rows); err != nil {
				return err
			}
			if next != "" {
				cmd.Printf("next page: --page-token %s\n", next)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&circleID, "circle", "", "Filter by circle ID")
	cmd.Flags().StringVar(&principal, "principal", "", "Filter by acting principal key")
	cmd.Flags().StringVar(&action, "action", "", "Filter by action, e.g. ADD_MEMBER")
	cmd.Flags().StringVar(&status, "status", "", "Filter by status: ALLOWED or DENIED")
	cmd.Flags().IntVar(&maxResults, "max-results", 100, "Maximum number of results")
	cmd.Flags().StringVar(&pageToken, "page-token", "", "Continue from a previous page")
	return cmd
}
