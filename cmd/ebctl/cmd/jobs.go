package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

func syncCmd() *cobra.Command {
	return &cobra.Command{
		Use:       "sync <domain>",
		Short:     "Run a sync domain now",
		Long:      "Runs one sync domain for every account and waits for it to finish.",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"products", "orders", "returns", "categories", "shipping"},
		Example: `  ebctl sync orders
  ebctl sync categories`,
		RunE: func(_ *cobra.Command, args []string) error {
			status, err := newClient().TriggerSync(context.Background(), args[0])
			if err != nil {
				return err
			}
			fmt.Println(status)
			return nil
		},
	}
}

func jobsCmd() *cobra.Command {
	jobsRoot := &cobra.Command{
		Use:   "jobs",
		Short: "View sync job history",
		Long: "View the execution history of scheduled sync jobs (products, orders,\n" +
			"returns, categories, shipping). Each run records status, duration and errors.",
	}

	jobsRoot.AddCommand(
		jobsListCmd(),
		jobsHistoryCmd(),
	)

	return jobsRoot
}

func jobsListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List latest run per job",
		Example: `  ebctl jobs list
  ebctl jobs list --output json`,
		RunE: func(_ *cobra.Command, _ []string) error {
			runs, err := newClient().ListJobs(context.Background())
			if err != nil {
				return err
			}
			if jsonOutput() {
				return outputJSON(runs)
			}
			if len(runs) == 0 {
				fmt.Println("No job runs found.")
				return nil
			}
			return printJobRunsTable(runs)
		},
	}
}

func jobsHistoryCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "history <job_name>",
		Short: "Show run history for a job",
		Args:  cobra.ExactArgs(1),
		Example: `  ebctl jobs history orders
  ebctl jobs history categories --output json`,
		RunE: func(_ *cobra.Command, args []string) error {
			runs, err := newClient().GetJobHistory(context.Background(), args[0])
			if err != nil {
				return err
			}
			if jsonOutput() {
				return outputJSON(runs)
			}
			if len(runs) == 0 {
				fmt.Printf("No runs found for job %q.\n", args[0])
				return nil
			}
			return printJobRunsTable(runs)
		},
	}
}

func quotaCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "quota",
		Short: "Show the eBay call budget",
		Example: `  ebctl quota
  ebctl quota --output json`,
		RunE: func(_ *cobra.Command, _ []string) error {
			q, err := newClient().GetQuota(context.Background())
			if err != nil {
				return err
			}
			if jsonOutput() {
				return outputJSON(q)
			}
			return printQuota(q)
		},
	}
}
