package main

import (
	"fmt"

	"freelance-market/internal/services"

	"github.com/google/uuid"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/samber/lo"
	"github.com/spf13/cobra"
)

var (
	reconcileUser      string
	reconcileDriftOnly bool
)

var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Check every balance against its transaction log",
	Long: `For each profile, compare credit - initial_credit with the signed sum of its
ledger transactions. Exits non-zero when any profile drifts.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		_, svc, err := loadServices()
		if err != nil {
			return err
		}
		ctx := cmd.Context()

		var reports []*services.ReconciliationReport
		if reconcileUser != "" {
			id, err := uuid.Parse(reconcileUser)
			if err != nil {
				return fmt.Errorf("invalid --user: %w", err)
			}
			report, err := svc.Ledger.Reconcile(ctx, id)
			if err != nil {
				return err
			}
			reports = append(reports, report)
		} else {
			reports, err = svc.Ledger.ReconcileAll(ctx)
			if err != nil {
				return err
			}
		}

		drifting := lo.Filter(reports, func(r *services.ReconciliationReport, _ int) bool { return !r.Balanced })
		shown := reports
		if reconcileDriftOnly {
			shown = drifting
		}

		t := table.NewWriter()
		t.SetOutputMirror(cmd.OutOrStdout())
		t.SetStyle(table.StyleLight)
		t.AppendHeader(table.Row{"Profile", "Credit", "Initial", "Tx Sum", "Entries", "Drift", "Status"})
		for _, r := range shown {
			status := text.FgGreen.Sprint("ok")
			if !r.Balanced {
				status = text.FgRed.Sprint("DRIFT")
			}
			t.AppendRow(table.Row{r.UserID, r.Credit, r.InitialCredit, r.TransactionSum, r.EntryCount, r.Drift, status})
		}
		t.AppendFooter(table.Row{"", "", "", "", "", "Drifting", fmt.Sprintf("%d/%d", len(drifting), len(reports))})
		t.Render()

		if len(drifting) > 0 {
			return fmt.Errorf("%d profiles out of balance", len(drifting))
		}
		return nil
	},
}

func init() {
	reconcileCmd.Flags().StringVar(&reconcileUser, "user", "", "Reconcile a single profile ID")
	reconcileCmd.Flags().BoolVar(&reconcileDriftOnly, "drift-only", false, "Only list profiles that are out of balance")
}
