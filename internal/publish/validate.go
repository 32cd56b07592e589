package publish

import (
	"fmt"
	"slices"
	"strings"

	"github.com/shopspring/decimal"

	domain "github.com/donaldgifford/ebay-connector/pkg/types"
)

// Validation keys reported to API callers.
const (
	KeyCategoryMissing     = "category.missing"
	KeyCategoryUnknown     = "category.unknown"
	KeyCategoryNotLeaf     = "category.not_leaf"
	KeyShippingMissing     = "shipping.missing"
	KeyPriceTooLow         = "price.too_low"
	KeyLocationMissing     = "location.missing"
	KeyReturnPolicyMissing = "return_policy.missing"
	KeyVariations          = "variations.invalid"
	KeySpecificsMissing    = "specifics.missing"
	KeyQuantityNegative    = "quantity.negative"
	KeyTaxRate             = "tax_rate.invalid"
)

// Variation attribute messages.
const (
	MsgVariationsNoAttributes    = "Variations need to have at least one attribute"
	MsgVariationsAttributeCount  = "All variations needs to have exactly the same number of attributes"
	MsgVariationsAttributeNames  = "All variations need to have the same attribute names"
	MsgVariationsDuplicateValues = "Two variations have the same attribute values"
)

// maxTaxRatePlaces is the precision eBay accepts for VAT percentages.
const maxTaxRatePlaces = 3

// ValidationError is one failed pre-flight rule.
type ValidationError struct {
	Key     string `json:"key"`
	Message string `json:"detail"`
}

func (e ValidationError) Error() string {
	return e.Key + ": " + e.Message
}

// ValidationErrors is the ordered list of failed rules for a listing.
type ValidationErrors []ValidationError

func (v ValidationErrors) Error() string {
	msgs := make([]string, len(v))
	for i, e := range v {
		msgs[i] = e.Error()
	}
	return "validation failed: " + strings.Join(msgs, "; ")
}

// Messages returns the human-readable messages.
func (v ValidationErrors) Messages() []string {
	out := make([]string, len(v))
	for i, e := range v {
		out[i] = e.Message
	}
	return out
}

// ValidationInput is everything Validate looks at. Category and Specifics
// are resolved by the caller for the account's country; a nil Category
// means the assigned id does not exist there.
type ValidationInput struct {
	Listing             *domain.Listing
	Account             *domain.Account
	Category            *domain.Category
	Specifics           []domain.Specific
	MinimumPrice        decimal.Decimal
	RequireReturnPolicy bool
}

// Validate runs the pre-flight rules in a fixed order and returns every
// failure. It never talks to eBay or the store.
func Validate(in ValidationInput) ValidationErrors {
	l, acc := in.Listing, in.Account
	var errs ValidationErrors
	fail := func(key, format string, args ...any) {
		errs = append(errs, ValidationError{Key: key, Message: fmt.Sprintf(format, args...)})
	}

	switch {
	case l.CategoryID == "":
		fail(KeyCategoryMissing, "A category has to be assigned")
	case in.Category == nil || in.Category.Country != acc.Country:
		fail(KeyCategoryUnknown, "Category %s does not exist for %s", l.CategoryID, acc.Country)
	case !in.Category.IsLeaf:
		fail(KeyCategoryNotLeaf, "Category %s is not a leaf category", l.CategoryID)
	}

	if len(l.Shipping) == 0 && len(acc.Shipping) == 0 {
		fail(KeyShippingMissing, "At least one shipping service has to be configured")
	}

	if l.HasVariations() {
		for _, v := range l.Variations {
			if v.Price.LessThan(in.MinimumPrice) {
				fail(KeyPriceTooLow, "Price of %s must be at least %s", v.SKU, in.MinimumPrice.StringFixed(2))
			}
		}
	} else if l.GrossPrice.LessThan(in.MinimumPrice) {
		fail(KeyPriceTooLow, "Price must be at least %s", in.MinimumPrice.StringFixed(2))
	}

	if l.ClickAndCollect && acc.Location == nil {
		fail(KeyLocationMissing, "Click & collect requires a store location")
	}

	if in.RequireReturnPolicy && l.ReturnPolicy == nil && acc.ReturnPolicy == nil {
		fail(KeyReturnPolicyMissing, "A return policy is required for %s", acc.Country)
	}

	if l.HasVariations() {
		if msg := checkVariations(l.Variations); msg != "" {
			fail(KeyVariations, "%s", msg)
		}
	}

	if missing := missingSpecifics(l, in.Specifics); len(missing) > 0 {
		fail(KeySpecificsMissing, "Missing required specifics: %s", strings.Join(missing, ", "))
	}

	if negativeQuantity(l) {
		fail(KeyQuantityNegative, "Quantity must not be negative")
	}
	if l.TaxRate.IsNegative() || !l.TaxRate.Equal(l.TaxRate.Round(maxTaxRatePlaces)) {
		fail(KeyTaxRate, "Tax rate must be a non-negative percentage with at most %d decimals", maxTaxRatePlaces)
	}

	return errs
}

// checkVariations returns the first variation attribute problem, or "".
func checkVariations(vs []domain.Variation) string {
	want := len(vs[0].Specifics)
	for _, v := range vs {
		if len(v.Specifics) == 0 {
			return MsgVariationsNoAttributes
		}
		if len(v.Specifics) != want {
			return MsgVariationsAttributeCount
		}
	}

	names := attributeNames(vs[0].Specifics)
	seen := make(map[string]bool, len(vs))
	for _, v := range vs {
		if !slices.Equal(names, attributeNames(v.Specifics)) {
			return MsgVariationsAttributeNames
		}
		key := attributeKey(v.Specifics)
		if seen[key] {
			return MsgVariationsDuplicateValues
		}
		seen[key] = true
	}
	return ""
}

func attributeNames(nvs []domain.NameValue) []string {
	out := make([]string, len(nvs))
	for i, nv := range nvs {
		out[i] = nv.Name
	}
	slices.Sort(out)
	return out
}

func attributeKey(nvs []domain.NameValue) string {
	parts := make([]string, len(nvs))
	for i, nv := range nvs {
		parts[i] = nv.Name + "=" + nv.Value
	}
	slices.Sort(parts)
	return strings.Join(parts, "\x00")
}

// missingSpecifics lists required specifics present neither on the listing
// nor on every variation.
func missingSpecifics(l *domain.Listing, specs []domain.Specific) []string {
	var missing []string
	for _, s := range specs {
		if !s.Required || hasSpecific(l.Specifics, s.Name) {
			continue
		}
		onAll := l.HasVariations()
		for _, v := range l.Variations {
			if !hasSpecific(v.Specifics, s.Name) {
				onAll = false
				break
			}
		}
		if !onAll {
			missing = append(missing, s.Name)
		}
	}
	return missing
}

func hasSpecific(nvs []domain.NameValue, name string) bool {
	return slices.ContainsFunc(nvs, func(nv domain.NameValue) bool {
		return strings.EqualFold(nv.Name, name) && nv.Value != ""
	})
}

func negativeQuantity(l *domain.Listing) bool {
	if l.Quantity < 0 {
		return true
	}
	return slices.ContainsFunc(l.Variations, func(v domain.Variation) bool {
		return v.Quantity < 0
	})
}
