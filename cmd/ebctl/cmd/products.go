package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	apiclient "github.com/donaldgifford/ebay-connector/internal/api/client"
)

func productsCmd() *cobra.Command {
	productsRoot := &cobra.Command{
		Use:   "products",
		Short: "Publish core products to eBay",
	}

	productsRoot.AddCommand(
		productsPublishCmd(),
		productsUpdateCmd(),
		productsUnpublishCmd(),
	)

	return productsRoot
}

// publishFlags binds the listing overrides shared by publish and update.
func publishFlags(cmd *cobra.Command, category *string, shipping *[]string) {
	cmd.Flags().StringVar(category, "category", "", "eBay category id")
	cmd.Flags().StringSliceVar(shipping, "shipping", nil,
		"shipping service as code=cost (repeatable), e.g. DE_DHLPaket=4.90")
}

func publishOptions(category string, shipping []string) (apiclient.PublishOptions, error) {
	opts := apiclient.PublishOptions{CategoryID: category}
	for _, s := range shipping {
		code, cost, ok := strings.Cut(s, "=")
		if !ok || code == "" || cost == "" {
			return opts, fmt.Errorf("invalid --shipping %q: want code=cost", s)
		}
		opts.Shipping = append(opts.Shipping, apiclient.ShippingOption{ServiceCode: code, Cost: cost})
	}
	return opts, nil
}

func parseProductIDs(args []string) ([]int64, error) {
	ids := make([]int64, 0, len(args))
	for _, a := range args {
		id, err := strconv.ParseInt(a, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid product id %q", a)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func productsPublishCmd() *cobra.Command {
	var (
		category string
		shipping []string
	)

	cmd := &cobra.Command{
		Use:   "publish <product_id>...",
		Short: "Prepare and submit products",
		Long: "Prepares a listing for each product from the core platform and submits it\n" +
			"to eBay. Submission is asynchronous: the listing stays in_progress until\n" +
			"eBay answers.",
		Args: cobra.MinimumNArgs(1),
		Example: `  ebctl products publish 42 --category 9355
  ebctl products publish 1 2 3 --shipping DE_DHLPaket=4.90`,
		RunE: func(_ *cobra.Command, args []string) error {
			ids, err := parseProductIDs(args)
			if err != nil {
				return err
			}
			opts, err := publishOptions(category, shipping)
			if err != nil {
				return err
			}

			c := newClient()
			if len(ids) == 1 {
				st, err := c.Publish(context.Background(), ids[0], opts)
				if err != nil {
					return describeAPIError(err)
				}
				if jsonOutput() {
					return outputJSON(st)
				}
				return printListingStatuses(map[string]apiclient.ListingStatus{args[0]: *st})
			}

			statuses, err := c.PublishBatch(context.Background(), ids, opts)
			if err != nil {
				return describeAPIError(err)
			}
			if jsonOutput() {
				return outputJSON(statuses)
			}
			return printListingStatuses(statuses)
		},
	}
	publishFlags(cmd, &category, &shipping)
	return cmd
}

func productsUpdateCmd() *cobra.Command {
	var (
		category string
		shipping []string
	)

	cmd := &cobra.Command{
		Use:   "update <product_id>",
		Short: "Refresh a listing from the current product",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			ids, err := parseProductIDs(args)
			if err != nil {
				return err
			}
			opts, err := publishOptions(category, shipping)
			if err != nil {
				return err
			}

			l, err := newClient().Update(context.Background(), ids[0], opts)
			if err != nil {
				return describeAPIError(err)
			}
			if jsonOutput() {
				return outputJSON(l)
			}
			return printListingDetail(l)
		},
	}
	publishFlags(cmd, &category, &shipping)
	return cmd
}

func productsUnpublishCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "unpublish <product_id>",
		Short: "End the product's eBay listing",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			ids, err := parseProductIDs(args)
			if err != nil {
				return err
			}
			st, err := newClient().Unpublish(context.Background(), ids[0])
			if err != nil {
				return describeAPIError(err)
			}
			if jsonOutput() {
				return outputJSON(st)
			}
			fmt.Printf("Listing %s is %s.\n", st.ListingID, st.Status)
			return nil
		},
	}
}

// describeAPIError prints validation messages one per line.
func describeAPIError(err error) error {
	var apiErr *apiclient.APIError
	if !errors.As(err, &apiErr) || apiErr.Key == "" {
		return err
	}

	switch d := apiErr.Detail.(type) {
	case []any:
		for _, m := range d {
			fmt.Fprintf(os.Stderr, "  - %v\n", m)
		}
	case map[string]any:
		keys := make([]string, 0, len(d))
		for k := range d {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(os.Stderr, "product %s:\n", k)
			if msgs, ok := d[k].([]any); ok {
				for _, m := range msgs {
					fmt.Fprintf(os.Stderr, "  - %v\n", m)
				}
			}
		}
	default:
		return err
	}
	return fmt.Errorf("request rejected (%s)", apiErr.Key)
}
