package cli

import (
	"os"

	"github.com/spf13/cobra"

	"circle-core/internal/domain"
)

func newCircleCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "circle",
		Short: "Manage circles",
	}
	cmd.AddCommand(newCircleCreateCmd())
	cmd.AddCommand(newCircleArchiveCmd())
	cmd.AddCommand(newCircleGetCmd())
	cmd.AddCommand(newCircleListCmd())
	return cmd
}

func newCircleCreateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "create <name>",
		Short: "Create a circle owned by the acting principal",
		Example: `  circlectl circle create "Garden Collective" --as individual:alice
  circlectl circle create "River Cleanup Crew" --as organization:greenworks -o json`,
		Args: cobra.ExactArgs(1),
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

			circle, ownerMembership, err := eng.circles.CreateCircleWithOwner(cmd.Context(), args[0], acting)
			if err != nil {
				return err
			}
			if getOutputFormat(cmd) == "json" {
				return printJSON(os.Stdout, map[string]any{
					"circle":           circle,
					"owner_membership": ownerMembership,
				})
			}
			return printTable(os.Stdout,
				[]string{"ID", "NAME", "SLUG", "STATUS", "OWNER MEMBERSHIP"},
				[][]string{{circle.ID, circle.Name, circle.Slug, circle.Status, ownerMembership.ID}})
		},
	}
}

func newCircleArchiveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "archive <circle-id>",
		Short: "Archive a circle, freezing all mutations",
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

			if err := eng.circles.ArchiveCircle(cmd.Context(), args[0], acting); err != nil {
				return err
			}
			cmd.Printf("circle %s archived\n", args[0])
			return nil
		},
	}
}

func newCircleGetCmd() *cobra.Command {
	var bySlug bool
	cmd := &cobra.Command{
		Use:   "get <circle-id>",
		Short: "Show a circle",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, err := openEngine(cmd)
			if err != nil {
				return err
			}
			defer eng.close() //nolint:errcheck

			var circle *domain.Circle
			if bySlug {
				circle, err = eng.circles.GetCircleBySlug(cmd.Context(), args[0])
			} else {
				circle, err = eng.circles.GetCircle(cmd.Context(), args[0])
			}
			if err != nil {
				return err
			}
			if getOutputFormat(cmd) == "json" {
				return printJSON(os.Stdout, circle)
			}
			return printTable(os.Stdout,
				[]string{"ID", "NAME", "SLUG", "STATUS", "CREATED"},
				[][]string{{circle.ID, circle.Name, circle.Slug, circle.Status, formatTime(circle.CreatedAt)}})
		},
	}
	cmd.Flags().BoolVar(&bySlug, "slug", false, "Look the circle up by slug instead of ID")
	return cmd
}

func newCircleListCmd() *cobra.Command {
	var (
		maxResults int
		pageToken  string
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List circles",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			eng, err := openEngine(cmd)
			if err != nil {
				return err
			}
			defer eng.close() //nolint:errcheck

			page := domain.PageRequest{MaxResults: maxResults, PageToken: pageToken}
			circles, total, err := eng.circles.ListCircles(cmd.Context(), page)
			if err != nil {
				return err
			}
			next := domain.NextPageToken(page.Offset(), page.Limit(), total)
			if getOutputFormat(cmd) == "json" {
				return printJSON(os.Stdout, map[string]any{
					"circles":         circles,
					"total":           total,
					"next_page_token": next,
				})
			}
			rows := make([][]string, 0, len(circles))
			for _, c := range circles {
				rows = append(rows, []string{c.ID, c.Name, c.Slug, c.Status})
			}
			if err := printTable(os.Stdout, []string{"ID", "NAME", "SLUG", "STATUS"}, rows); err != nil {
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
