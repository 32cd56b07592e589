package inventory

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/donaldgifford/ebay-connector/internal/ebay/wire"
	domain "github.com/donaldgifford/ebay-connector/pkg/types"
)

// ErrLocationMismatch rejects a sanity check naming a location that is not
// the account's pickup location.
var ErrLocationMismatch = errors.New("location does not belong to account")

// QuantitySource answers stock levels for many products in one call.
type QuantitySource interface {
	GetQuantities(ctx context.Context, coreAccountID string, ids []int64) (map[int64]int, error)
}

// Checker answers eBay's availability sanity checks.
type Checker struct {
	quantities QuantitySource
	prefix     string
	log        *slog.Logger
}

// NewChecker creates a Checker for SKUs minted with prefix.
func NewChecker(q QuantitySource, prefix string, log *slog.Logger) *Checker {
	if log == nil {
		log = slog.Default()
	}
	return &Checker{quantities: q, prefix: prefix, log: log}
}

// SanityCheck overlays the current core quantities onto reqs. Every entry
// must name the account's location, otherwise the whole request is
// rejected. SKUs minted by another environment are passed through
// untouched. Core quantities are fetched in a single call.
func (c *Checker) SanityCheck(
	ctx context.Context,
	account *domain.Account,
	reqs []wire.AvailabilityRequest,
) ([]wire.AvailabilityRequest, error) {
	if account.Location == nil {
		return nil, fmt.Errorf("%w: account %s has no pickup location", ErrLocationMismatch, account.ID)
	}
	for _, r := range reqs {
		if r.LocationID != account.Location.LocationID {
			return nil, fmt.Errorf("%w: %q", ErrLocationMismatch, r.LocationID)
		}
	}

	out := make([]wire.AvailabilityRequest, len(reqs))
	copy(out, reqs)

	ids := make([]int64, 0, len(reqs))
	index := make(map[int]int64, len(reqs))
	seen := make(map[int64]bool, len(reqs))
	for i, r := range reqs {
		id, err := ExtractProductID(c.prefix, r.SKU)
		if err != nil {
			c.log.Warn("sanity check for foreign sku", "sku", r.SKU, "account_id", account.ID)
			continue
		}
		index[i] = id
		if !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		return out, nil
	}

	qty, err := c.quantities.GetQuantities(ctx, account.CoreAccountID, ids)
	if err != nil {
		return nil, fmt.Errorf("fetching quantities: %w", err)
	}

	for i, id := range index {
		q := max(qty[id], 0)
		out[i].Quantity = q
		out[i].Availability = wire.AvailabilityFor(q)
	}
	return out, nil
}
