package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

func notificationsCmd() *cobra.Command {
	var (
		status    string
		eventType string
		limit     int
	)

	cmd := &cobra.Command{
		Use:   "notifications",
		Short: "List received eBay notifications",
		Example: `  ebctl notifications --status failed
  ebctl notifications --event ItemSold --limit 10`,
		RunE: func(_ *cobra.Command, _ []string) error {
			resp, err := newClient().ListNotifications(context.Background(), status, eventType, limit)
			if err != nil {
				return err
			}
			if jsonOutput() {
				return outputJSON(resp)
			}
			if len(resp.Notifications) == 0 {
				fmt.Println("No notifications found.")
				return nil
			}
			return printNotificationsTable(resp.Notifications)
		},
	}

	cmd.Flags().StringVar(&status, "status", "", "filter by status (unhandled, handled, failed)")
	cmd.Flags().StringVar(&eventType, "event", "", "filter by eBay event name")
	cmd.Flags().IntVar(&limit, "limit", 50, "number of results")

	return cmd
}

func accountCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "account",
		Short: "Show the caller's account",
		RunE: func(_ *cobra.Command, _ []string) error {
			acc, err := newClient().GetAccount(context.Background())
			if err != nil {
				return err
			}
			if jsonOutput() {
				return outputJSON(acc)
			}
			return printAccountDetail(acc)
		},
	}
}
