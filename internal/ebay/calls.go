package ebay

import (
	"context"
	"fmt"
	"time"

	"github.com/donaldgifford/ebay-connector/internal/ebay/wire"
	domain "github.com/donaldgifford/ebay-connector/pkg/types"
)

// Trading is the full set of eBay operations used by the connector.
// Consumers depend on narrower subsets of it.
type Trading interface {
	AddFixedPriceItem(ctx context.Context, sess Session, item wire.Item) (*wire.AddItemResult, error)
	ReviseFixedPriceItem(ctx context.Context, sess Session, item wire.Item) (*wire.AddItemResult, error)
	EndFixedPriceItem(ctx context.Context, sess Session, itemID, reason string) (*wire.EndItemResult, error)
	ReviseInventoryStatus(ctx context.Context, sess Session, statuses []wire.InventoryStatus) (*wire.ReviseInventoryStatusResult, error)
	GetOrders(ctx context.Context, sess Session, q OrdersQuery) (*wire.GetOrdersResult, error)
	CompleteSale(ctx context.Context, sess Session, req wire.CompleteSaleRequest) error
	ReviseCheckoutStatus(ctx context.Context, sess Session, req wire.ReviseCheckoutStatusRequest) error
	IssueRefund(ctx context.Context, sess Session, req wire.IssueRefundRequest) (*wire.IssueRefundResult, error)
	GetUser(ctx context.Context, sess Session) (*wire.UserResult, error)
	GetUserPreferences(ctx context.Context, sess Session) (*wire.UserPreferencesResult, error)
	GeteBayDetails(ctx context.Context, sess Session, names ...string) (*wire.GeteBayDetailsResult, error)
	GetCategories(ctx context.Context, sess Session) (*wire.GetCategoriesResult, error)
	GetCategorySpecifics(ctx context.Context, sess Session, categoryIDs []string) (*wire.GetCategorySpecificsResult, error)
	GetCategoryFeatures(ctx context.Context, sess Session) (*wire.GetCategoryFeaturesResult, error)
	AddInventoryLocation(ctx context.Context, sess Session, loc *domain.Location) error
	AddInventory(ctx context.Context, sess Session, sku, locationID string, qty int) error
	DeleteInventory(ctx context.Context, sess Session, sku, locationID string) error
}

var _ Trading = (*TradingClient)(nil)

// EndingReason values for EndFixedPriceItem.
const (
	EndingNotAvailable      = "NotAvailable"
	EndingOtherListingError = "OtherListingError"
)

// AddFixedPriceItem creates a listing.
func (c *TradingClient) AddFixedPriceItem(ctx context.Context, sess Session, item wire.Item) (*wire.AddItemResult, error) {
	var res wire.AddItemResult
	if err := c.Execute(ctx, sess, "AddFixedPriceItem", &wire.AddFixedPriceItemRequest{Item: item}, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// ReviseFixedPriceItem revises the listing identified by item.ItemID.
func (c *TradingClient) ReviseFixedPriceItem(ctx context.Context, sess Session, item wire.Item) (*wire.AddItemResult, error) {
	if item.ItemID == "" {
		return nil, fmt.Errorf("revising item: item id is required")
	}
	var res wire.AddItemResult
	if err := c.Execute(ctx, sess, "ReviseFixedPriceItem", &wire.ReviseFixedPriceItemRequest{Item: item}, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// EndFixedPriceItem ends a listing early.
func (c *TradingClient) EndFixedPriceItem(ctx context.Context, sess Session, itemID, reason string) (*wire.EndItemResult, error) {
	if reason == "" {
		reason = EndingNotAvailable
	}
	var res wire.EndItemResult
	req := &wire.EndFixedPriceItemRequest{ItemID: itemID, EndingReason: reason}
	if err := c.Execute(ctx, sess, "EndFixedPriceItem", req, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// ReviseInventoryStatus changes price and quantity of up to
// wire.MaxInventoryStatusPerCall items or variations.
func (c *TradingClient) ReviseInventoryStatus(
	ctx context.Context,
	sess Session,
	statuses []wire.InventoryStatus,
) (*wire.ReviseInventoryStatusResult, error) {
	if len(statuses) == 0 || len(statuses) > wire.MaxInventoryStatusPerCall {
		return nil, fmt.Errorf("revising inventory status: %d entries, want 1 to %d",
			len(statuses), wire.MaxInventoryStatusPerCall)
	}
	var res wire.ReviseInventoryStatusResult
	req := &wire.ReviseInventoryStatusRequest{InventoryStatus: statuses}
	if err := c.Execute(ctx, sess, "ReviseInventoryStatus", req, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// OrdersQuery selects one page of orders modified in [From, To), or the
// orders listed in OrderIDs.
type OrdersQuery struct {
	From     time.Time
	To       time.Time
	OrderIDs []string
	Page     int
	PerPage  int
}

// GetOrders pulls one page of seller orders.
func (c *TradingClient) GetOrders(ctx context.Context, sess Session, q OrdersQuery) (*wire.GetOrdersResult, error) {
	req := &wire.GetOrdersRequest{
		DetailLevel: "ReturnAll",
		OrderRole:   "Seller",
		OrderStatus: "All",
	}
	if len(q.OrderIDs) > 0 {
		req.OrderIDs = &wire.OrderIDs{OrderID: q.OrderIDs}
	} else {
		req.ModTimeFrom = wire.NewTime(q.From)
		req.ModTimeTo = wire.NewTime(q.To)
	}
	if q.Page > 0 {
		perPage := q.PerPage
		if perPage <= 0 {
			perPage = 100
		}
		req.Pagination = &wire.Pagination{EntriesPerPage: perPage, PageNumber: q.Page}
	}

	var res wire.GetOrdersResult
	if err := c.Execute(ctx, sess, "GetOrders", req, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// CompleteSale marks an order paid and/or shipped.
func (c *TradingClient) CompleteSale(ctx context.Context, sess Session, req wire.CompleteSaleRequest) error {
	var res wire.ResponseBase
	return c.Execute(ctx, sess, "CompleteSale", &req, &res)
}

// ReviseCheckoutStatus updates the checkout state of an order.
func (c *TradingClient) ReviseCheckoutStatus(ctx context.Context, sess Session, req wire.ReviseCheckoutStatusRequest) error {
	var res wire.ResponseBase
	return c.Execute(ctx, sess, "ReviseCheckoutStatus", &req, &res)
}

// IssueRefund refunds a buyer.
func (c *TradingClient) IssueRefund(ctx context.Context, sess Session, req wire.IssueRefundRequest) (*wire.IssueRefundResult, error) {
	var res wire.IssueRefundResult
	if err := c.Execute(ctx, sess, "IssueRefund", &req, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// GetUser returns the token owner's user record.
func (c *TradingClient) GetUser(ctx context.Context, sess Session) (*wire.UserResult, error) {
	var res wire.UserResult
	if err := c.Execute(ctx, sess, "GetUser", &wire.GetUserRequest{DetailLevel: "ReturnAll"}, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// GetUserPreferences returns the seller preferences relevant to listing.
func (c *TradingClient) GetUserPreferences(ctx context.Context, sess Session) (*wire.UserPreferencesResult, error) {
	req := &wire.GetUserPreferencesRequest{
		ShowOutOfStockControlPreference: true,
		ShowSellerProfilePreferences:    true,
	}
	var res wire.UserPreferencesResult
	if err := c.Execute(ctx, sess, "GetUserPreferences", req, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// GeteBayDetails returns site metadata. The session's site id selects the
// marketplace.
func (c *TradingClient) GeteBayDetails(ctx context.Context, sess Session, names ...string) (*wire.GeteBayDetailsResult, error) {
	var res wire.GeteBayDetailsResult
	if err := c.Execute(ctx, sess, "GeteBayDetails", &wire.GeteBayDetailsRequest{DetailName: names}, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// GetCategories downloads the full category tree of the session's site.
func (c *TradingClient) GetCategories(ctx context.Context, sess Session) (*wire.GetCategoriesResult, error) {
	req := &wire.GetCategoriesRequest{
		CategorySiteID: fmt.Sprint(sess.SiteID),
		DetailLevel:    "ReturnAll",
		ViewAllNodes:   true,
	}
	var res wire.GetCategoriesResult
	if err := c.Execute(ctx, sess, "GetCategories", req, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// GetCategorySpecifics returns the specifics of a batch of categories.
func (c *TradingClient) GetCategorySpecifics(
	ctx context.Context,
	sess Session,
	categoryIDs []string,
) (*wire.GetCategorySpecificsResult, error) {
	req := &wire.GetCategorySpecificsRequest{
		CategoryID:       categoryIDs,
		MaxNames:         30,
		MaxValuesPerName: 100,
	}
	var res wire.GetCategorySpecificsResult
	if err := c.Execute(ctx, sess, "GetCategorySpecifics", req, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// GetCategoryFeatures reports which categories support variations.
func (c *TradingClient) GetCategoryFeatures(ctx context.Context, sess Session) (*wire.GetCategoryFeaturesResult, error) {
	req := &wire.GetCategoryFeaturesRequest{
		DetailLevel:  "ReturnAll",
		FeatureID:    []string{"VariationsEnabled"},
		ViewAllNodes: true,
	}
	var res wire.GetCategoryFeaturesResult
	if err := c.Execute(ctx, sess, "GetCategoryFeatures", req, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// AddInventoryLocation registers or updates a pickup store.
func (c *TradingClient) AddInventoryLocation(ctx context.Context, sess Session, loc *domain.Location) error {
	var res wire.InventoryResult
	return c.ExecuteInventory(ctx, sess, "AddInventoryLocation", wire.EncodeLocation(loc), &res)
}

// AddInventory publishes the pickup stock of sku at locationID.
func (c *TradingClient) AddInventory(ctx context.Context, sess Session, sku, locationID string, qty int) error {
	var res wire.InventoryResult
	return c.ExecuteInventory(ctx, sess, "AddInventory", wire.EncodeInventory(sku, locationID, qty), &res)
}

// DeleteInventory removes the pickup stock of sku.
func (c *TradingClient) DeleteInventory(ctx context.Context, sess Session, sku, locationID string) error {
	var res wire.InventoryResult
	req := wire.DeleteInventoryRequest{SKU: sku, LocationID: locationID, Confirm: true}
	return c.ExecuteInventory(ctx, sess, "DeleteInventory", req, &res)
}
