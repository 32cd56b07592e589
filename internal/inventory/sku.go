// Package inventory keeps eBay's view of stock in line with the core
// platform: SKU minting and parsing, the availability sanity check eBay
// calls back with, the in-store pickup location and per-SKU pickup stock.
package inventory

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrInvalidSKU is returned for SKUs that do not end in a numeric product id.
var ErrInvalidSKU = errors.New("invalid sku")

// FormatSKU mints the SKU of a core product: the environment prefix followed
// by the product id, e.g. "invtest_1234".
func FormatSKU(prefix string, productID int64) string {
	return prefix + strconv.FormatInt(productID, 10)
}

// ExtractProductID strips the environment prefix from sku and returns the
// numeric product id. The remainder must be digits only.
func ExtractProductID(prefix, sku string) (int64, error) {
	rest, ok := strings.CutPrefix(sku, prefix)
	if !ok || rest == "" {
		return 0, fmt.Errorf("%w: %q", ErrInvalidSKU, sku)
	}
	for _, r := range rest {
		if r < '0' || r > '9' {
			return 0, fmt.Errorf("%w: %q", ErrInvalidSKU, sku)
		}
	}
	id, err := strconv.ParseInt(rest, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidSKU, sku)
	}
	return id, nil
}

// BelongsToCurrentEnv reports whether sku was minted with prefix.
func BelongsToCurrentEnv(prefix, sku string) bool {
	_, err := ExtractProductID(prefix, sku)
	return err == nil
}
