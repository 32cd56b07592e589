package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	apiclient "github.com/donaldgifford/ebay-connector/internal/api/client"
)

func listingsCmd() *cobra.Command {
	listingsRoot := &cobra.Command{
		Use:   "listings",
		Short: "Inspect eBay listings",
	}

	listingsRoot.AddCommand(
		listingsListCmd(),
		listingsGetCmd(),
		listingsAttemptsCmd(),
	)

	return listingsRoot
}

func listingsListCmd() *cobra.Command {
	var params apiclient.ListListingsParams

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the account's listings",
		Example: `  ebctl listings list --status failed
  ebctl listings list --product 42 --output json`,
		RunE: func(_ *cobra.Command, _ []string) error {
			resp, err := newClient().ListListings(context.Background(), &params)
			if err != nil {
				return err
			}
			if jsonOutput() {
				return outputJSON(resp)
			}
			if len(resp.Listings) == 0 {
				fmt.Println("No listings found.")
				return nil
			}
			if err := printListingsTable(resp.Listings); err != nil {
				return err
			}
			fmt.Printf("\nShowing %d of %d listings.\n", len(resp.Listings), resp.Total)
			return nil
		},
	}

	cmd.Flags().StringVar(&params.Status, "status", "", "filter by publishing status")
	cmd.Flags().Int64Var(&params.ProductID, "product", 0, "filter by core product id")
	cmd.Flags().IntVar(&params.Limit, "limit", 50, "number of results")
	cmd.Flags().IntVar(&params.Offset, "offset", 0, "pagination offset")
	cmd.Flags().StringVar(&params.OrderBy, "order-by", "", "sort field (created_at, updated_at, published_at)")

	return cmd
}

func listingsGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <listing_id>",
		Short: "Show a listing",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			l, err := newClient().GetListing(context.Background(), args[0])
			if err != nil {
				return err
			}
			if jsonOutput() {
				return outputJSON(l)
			}
			return printListingDetail(l)
		},
	}
}

func listingsAttemptsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "attempts <listing_id>",
		Short: "Show the eBay calls made for a listing",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			attempts, err := newClient().ListAttempts(context.Background(), args[0])
			if err != nil {
				return err
			}
			if jsonOutput() {
				return outputJSON(attempts)
			}
			if len(attempts) == 0 {
				fmt.Println("No eBay calls recorded.")
				return nil
			}
			return printAttemptsTable(attempts)
		},
	}
}
