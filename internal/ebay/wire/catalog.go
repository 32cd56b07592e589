package wire

import (
	"strings"

	domain "github.com/donaldgifford/ebay-connector/pkg/types"
)

// GetCategoriesRequest downloads the category tree of the call's site.
type GetCategoriesRequest struct {
	RequestBase
	CategorySiteID string `xml:"CategorySiteID,omitempty"`
	DetailLevel    string `xml:"DetailLevel,omitempty"`
	LevelLimit     int    `xml:"LevelLimit,omitempty"`
	ViewAllNodes   bool   `xml:"ViewAllNodes"`
}

// CategoryXML is one category node.
type CategoryXML struct {
	CategoryID       string   `xml:"CategoryID"`
	CategoryLevel    int      `xml:"CategoryLevel"`
	CategoryName     string   `xml:"CategoryName"`
	CategoryParentID []string `xml:"CategoryParentID"`
	LeafCategory     bool     `xml:"LeafCategory"`
}

// GetCategoriesResult is the body of a GetCategories response.
type GetCategoriesResult struct {
	ResponseBase
	Categories      []CategoryXML `xml:"CategoryArray>Category"`
	CategoryCount   int           `xml:"CategoryCount"`
	CategoryVersion string        `xml:"CategoryVersion"`
}

// ToDomain converts a category node. Root nodes list themselves as parent.
func (c CategoryXML) ToDomain(country string) domain.Category {
	cat := domain.Category{
		ID:      c.CategoryID,
		Country: country,
		Name:    c.CategoryName,
		Level:   c.CategoryLevel,
		IsLeaf:  c.LeafCategory,
	}
	for _, p := range c.CategoryParentID {
		if p != c.CategoryID {
			cat.ParentID = p
		}
	}
	return cat
}

// GetCategorySpecificsRequest asks for the specifics of several categories.
type GetCategorySpecificsRequest struct {
	RequestBase
	CategoryID           []string `xml:"CategoryID"`
	MaxNames             int      `xml:"MaxNames,omitempty"`
	MaxValuesPerName     int      `xml:"MaxValuesPerName,omitempty"`
	IncludeConfidence    bool     `xml:"IncludeConfidence,omitempty"`
	CategorySpecificInfo bool     `xml:"CategorySpecificsFileInfo,omitempty"`
}

// ValidationRules constrain a category specific.
type ValidationRules struct {
	MaxValues       int    `xml:"MaxValues"`
	SelectionMode   string `xml:"SelectionMode"`
	UsageConstraint string `xml:"UsageConstraint"`
	ValueType       string `xml:"ValueType"`
}

// NameRecommendation is one specific of a category.
type NameRecommendation struct {
	Name            string          `xml:"Name"`
	ValidationRules ValidationRules `xml:"ValidationRules"`
	Values          []string        `xml:"ValueRecommendation>Value"`
}

// Recommendations groups the specifics of one category.
type Recommendations struct {
	CategoryID string               `xml:"CategoryID"`
	Names      []NameRecommendation `xml:"NameRecommendation"`
}

// GetCategorySpecificsResult is the body of a GetCategorySpecifics response.
type GetCategorySpecificsResult struct {
	ResponseBase
	Recommendations []Recommendations `xml:"Recommendations"`
}

// ToDomain converts the recommendations into specifics.
func (r Recommendations) ToDomain(country string) []domain.Specific {
	out := make([]domain.Specific, 0, len(r.Names))
	for _, n := range r.Names {
		out = append(out, domain.Specific{
			CategoryID:    r.CategoryID,
			Country:       country,
			Name:          n.Name,
			Required:      strings.EqualFold(n.ValidationRules.UsageConstraint, "Required"),
			SelectionOnly: strings.EqualFold(n.ValidationRules.SelectionMode, "SelectionOnly"),
			MaxValues:     n.ValidationRules.MaxValues,
			Values:        n.Values,
		})
	}
	return out
}

// GetCategoryFeaturesRequest asks for feature flags of categories.
type GetCategoryFeaturesRequest struct {
	RequestBase
	CategoryID   string   `xml:"CategoryID,omitempty"`
	DetailLevel  string   `xml:"DetailLevel,omitempty"`
	FeatureID    []string `xml:"FeatureID"`
	ViewAllNodes bool     `xml:"ViewAllNodes"`
}

// CategoryFeature carries the feature flags of one category.
type CategoryFeature struct {
	CategoryID        string `xml:"CategoryID"`
	VariationsEnabled bool   `xml:"VariationsEnabled"`
}

// GetCategoryFeaturesResult is the body of a GetCategoryFeatures response.
type GetCategoryFeaturesResult struct {
	ResponseBase
	Categories   []CategoryFeature `xml:"Category"`
	SiteDefaults struct {
		VariationsEnabled bool `xml:"VariationsEnabled"`
	} `xml:"SiteDefaults"`
}

// GeteBayDetailsRequest asks for site metadata such as shipping services.
type GeteBayDetailsRequest struct {
	RequestBase
	DetailName []string `xml:"DetailName"`
}

// ShippingServiceDetails is one shipping service of a site.
type ShippingServiceDetails struct {
	ShippingService      string   `xml:"ShippingService"`
	Description          string   `xml:"Description"`
	ShippingCarrier      []string `xml:"ShippingCarrier"`
	InternationalService bool     `xml:"InternationalService"`
	ValidForSellingFlow  bool     `xml:"ValidForSellingFlow"`
	ShippingServiceID    int      `xml:"ShippingServiceID"`
}

// GeteBayDetailsResult is the body of a GeteBayDetails response.
type GeteBayDetailsResult struct {
	ResponseBase
	ShippingServiceDetails []ShippingServiceDetails `xml:"ShippingServiceDetails"`
}

// ToDomain converts a shipping service entry.
func (s ShippingServiceDetails) ToDomain(country string) domain.ShippingService {
	svc := domain.ShippingService{
		Code:          s.ShippingService,
		Country:       country,
		Description:   s.Description,
		International: s.InternationalService,
		Valid:         s.ValidForSellingFlow,
	}
	if len(s.ShippingCarrier) > 0 {
		svc.Carrier = s.ShippingCarrier[0]
	}
	return svc
}
