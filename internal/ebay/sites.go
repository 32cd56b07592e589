package ebay

import (
	"fmt"
	"strings"
)

// Site ids of the marketplaces the connector sells on, keyed by ISO country.
var siteIDs = map[string]int{
	"US": 0,
	"CA": 2,
	"GB": 3,
	"AU": 15,
	"AT": 16,
	"FR": 71,
	"DE": 77,
	"IT": 101,
	"ES": 186,
	"CH": 193,
}

// SiteForCountry returns the eBay site id of an ISO country code.
func SiteForCountry(country string) (int, error) {
	id, ok := siteIDs[strings.ToUpper(strings.TrimSpace(country))]
	if !ok {
		return 0, fmt.Errorf("no eBay site for country %q", country)
	}
	return id, nil
}

// CountryForSite is the inverse of SiteForCountry.
func CountryForSite(siteID int) (string, bool) {
	for c, id := range siteIDs {
		if id == siteID {
			return c, true
		}
	}
	return "", false
}
