package main

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var verifyProjectCmd = &cobra.Command{
	Use:   "verify-project <project-id>",
	Short: "Check a project's proposals and refunds",
	Long: `Verify that a project has at most one accepted proposal, that no proposal is left
pending once one is accepted, and that every rejected or withdrawn proposal was refunded
exactly the fee it paid.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		projectID, err := uuid.Parse(args[0])
		if err != nil {
			return fmt.Errorf("invalid project id: %w", err)
		}
		_, svc, err := loadServices()
		if err != nil {
			return err
		}

		report, err := svc.Decisions.VerifyProject(cmd.Context(), projectID)
		if err != nil {
			return err
		}

		t := table.NewWriter()
		t.SetOutputMirror(cmd.OutOrStdout())
		t.SetStyle(table.StyleLight)
		t.AppendRows([]table.Row{
			{"Project", report.ProjectID},
			{"Status", report.Status},
			{"Proposals", report.ProposalCount},
			{"Accepted", report.AcceptedCount},
			{"Pending", report.PendingCount},
		})
		t.Render()

		if report.OK {
			fmt.Fprintln(cmd.OutOrStdout(), "OK: no violations")
			return nil
		}
		for _, v := range report.Violations {
			fmt.Fprintf(cmd.OutOrStdout(), "  - %s\n", v)
		}
		return fmt.Errorf("%d violations", len(report.Violations))
	},
}
