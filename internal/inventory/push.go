package inventory

import (
	"context"
	"errors"
	"fmt"

	"github.com/donaldgifford/ebay-connector/internal/ebay"
	domain "github.com/donaldgifford/ebay-connector/pkg/types"
)

// StockGateway publishes per-SKU pickup stock.
type StockGateway interface {
	AddInventory(ctx context.Context, sess ebay.Session, sku, locationID string, qty int) error
	DeleteInventory(ctx context.Context, sess ebay.Session, sku, locationID string) error
}

// PushQuantities publishes the pickup stock of click & collect listings.
// SKUs with stock are added, sold-out SKUs deleted. Every SKU is attempted;
// failures are joined.
func PushQuantities(
	ctx context.Context,
	g StockGateway,
	account *domain.Account,
	listings []domain.Listing,
) error {
	if account.Location == nil || account.Token == nil {
		return nil
	}
	sess := ebay.Session{Token: account.Token.Value, SiteID: account.SiteID}
	loc := account.Location.LocationID

	var errs []error
	push := func(sku string, qty int) {
		var err error
		if qty > 0 {
			err = g.AddInventory(ctx, sess, sku, loc, qty)
		} else {
			err = g.DeleteInventory(ctx, sess, sku, loc)
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("pushing stock of %s: %w", sku, err))
		}
	}

	for i := range listings {
		l := &listings[i]
		if !l.ClickAndCollect {
			continue
		}
		if !l.HasVariations() {
			push(l.SKU, l.Quantity)
			continue
		}
		for _, v := range l.Variations {
			push(v.SKU, v.Quantity)
		}
	}
	return errors.Join(errs...)
}
