package main

import (
	"fmt"
	"log"

	"freelance-market/internal/jobs"
	"freelance-market/internal/models"
	"freelance-market/internal/notify"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var outboxCmd = &cobra.Command{
	Use:   "outbox",
	Short: "Inspect and drain the notification outbox",
}

var outboxStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Count outbox events by status",
	RunE: func(cmd *cobra.Command, args []string) error {
		_, svc, err := loadServices()
		if err != nil {
			return err
		}
		counts, err := svc.Notifications.OutboxStats(cmd.Context())
		if err != nil {
			return err
		}

		t := table.NewWriter()
		t.SetOutputMirror(cmd.OutOrStdout())
		t.SetStyle(table.StyleLight)
		t.AppendHeader(table.Row{"Status", "Events"})
		for _, status := range []models.OutboxStatus{
			models.OutboxStatusPending,
			models.OutboxStatusLeased,
			models.OutboxStatusDelivered,
			models.OutboxStatusDead,
		} {
			t.AppendRow(table.Row{status, counts[status]})
		}
		t.Render()
		return nil
	},
}

var outboxDrainCmd = &cobra.Command{
	Use:   "drain",
	Short: "Deliver every due outbox event now",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, svc, err := loadServices()
		if err != nil {
			return err
		}

		notifiers := notify.MultiNotifier{notify.NewStoreNotifier(svc.Notifications)}
		if cfg.NATS.URL != "" {
			conn, err := notify.Connect(cfg.NATS.URL)
			if err != nil {
				return err
			}
			defer func() {
				if err := conn.Drain(); err != nil {
					log.Printf("Warning: NATS drain failed: %v", err)
				}
			}()
			notifiers = append(notifiers, notify.NewNATSNotifier(conn, cfg.NATS.SubjectPrefix))
		}

		dispatcher := jobs.NewOutboxDispatcher(svc.Notifications, notifiers, jobs.DispatcherConfig{
			Consumer:      "marketctl",
			BatchSize:     cfg.Outbox.BatchSize,
			LeaseTTL:      cfg.Outbox.LeaseTTL,
			MaxAttempts:   cfg.Outbox.MaxAttempts,
			RetryBackoff:  cfg.Outbox.RetryBackoff,
			RetryMaxDelay: cfg.Outbox.RetryMaxDelay,
			Concurrency:   cfg.Outbox.Concurrency,
		})
		stats, err := dispatcher.Drain(cmd.Context())
		fmt.Fprintf(cmd.OutOrStdout(), "leased=%d delivered=%d retrying=%d dead=%d\n",
			stats.Leased, stats.Delivered, stats.Retried, stats.Dead)
		return err
	},
}

func init() {
	outboxCmd.AddCommand(outboxStatsCmd)
	outboxCmd.AddCommand(outboxDrainCmd)
}
