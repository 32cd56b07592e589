package wire

import (
	"strings"

	"github.com/shopspring/decimal"

	domain "github.com/donaldgifford/ebay-connector/pkg/types"
)

// Pagination selects one page of a paged call.
type Pagination struct {
	EntriesPerPage int `xml:"EntriesPerPage"`
	PageNumber     int `xml:"PageNumber"`
}

// PaginationResult describes the paging state of a response.
type PaginationResult struct {
	TotalNumberOfPages   int `xml:"TotalNumberOfPages"`
	TotalNumberOfEntries int `xml:"TotalNumberOfEntries"`
}

// GetOrdersRequest pulls orders modified within a time window.
type GetOrdersRequest struct {
	RequestBase
	DetailLevel string      `xml:"DetailLevel,omitempty"`
	ModTimeFrom *Time       `xml:"ModTimeFrom,omitempty"`
	ModTimeTo   *Time       `xml:"ModTimeTo,omitempty"`
	OrderIDs    *OrderIDs   `xml:"OrderIDArray,omitempty"`
	OrderRole   string      `xml:"OrderRole,omitempty"`
	OrderStatus string      `xml:"OrderStatus,omitempty"`
	Pagination  *Pagination `xml:"Pagination,omitempty"`
}

// OrderIDs restricts GetOrders to specific orders.
type OrderIDs struct {
	OrderID []string `xml:"OrderID"`
}

// GetOrdersResult is the body of a GetOrders response.
type GetOrdersResult struct {
	ResponseBase
	PaginationResult PaginationResult `xml:"PaginationResult"`
	HasMoreOrders    bool             `xml:"HasMoreOrders"`
	Orders           []Order          `xml:"OrderArray>Order"`
	PageNumber       int              `xml:"PageNumber"`
}

// CheckoutStatus is the buyer checkout state of an order.
type CheckoutStatus struct {
	Status           string `xml:"Status"`
	PaymentMethod    string `xml:"PaymentMethod"`
	LastModifiedTime *Time  `xml:"LastModifiedTime"`
}

// AddressXML is a postal address.
type AddressXML struct {
	Name            string `xml:"Name"`
	Street1         string `xml:"Street1"`
	Street2         string `xml:"Street2"`
	CityName        string `xml:"CityName"`
	StateOrProvince string `xml:"StateOrProvince"`
	Country         string `xml:"Country"`
	Phone           string `xml:"Phone"`
	PostalCode      string `xml:"PostalCode"`
}

// ShippingServiceSelected is the buyer's chosen shipping service.
type ShippingServiceSelected struct {
	ShippingService     string  `xml:"ShippingService"`
	ShippingServiceCost *Amount `xml:"ShippingServiceCost"`
}

// ShipmentTracking is one tracking record.
type ShipmentTracking struct {
	ShipmentTrackingNumber string `xml:"ShipmentTrackingNumber"`
	ShippingCarrierUsed    string `xml:"ShippingCarrierUsed"`
}

// TransactionItem is the item referenced by a transaction.
type TransactionItem struct {
	ItemID string `xml:"ItemID"`
	SKU    string `xml:"SKU"`
	Title  string `xml:"Title"`
}

// TransactionVariation is the variation bought in a transaction.
type TransactionVariation struct {
	SKU string `xml:"SKU"`
}

// Transaction is one line of an order.
type Transaction struct {
	TransactionID     string                `xml:"TransactionID"`
	Item              TransactionItem       `xml:"Item"`
	Variation         *TransactionVariation `xml:"Variation"`
	QuantityPurchased int                   `xml:"QuantityPurchased"`
	TransactionPrice  *Amount               `xml:"TransactionPrice"`
	Buyer             struct {
		Email string `xml:"Email"`
	} `xml:"Buyer"`
	ShippingDetails struct {
		Tracking []ShipmentTracking `xml:"ShipmentTrackingDetails"`
	} `xml:"ShippingDetails"`
	ActualDeliveryTime *Time `xml:"ShippingServiceSelected>ShippingPackageInfo>ActualDeliveryTime"`
}

// Order is one order of a GetOrders response.
type Order struct {
	OrderID                 string                  `xml:"OrderID"`
	OrderStatus             string                  `xml:"OrderStatus"`
	CheckoutStatus          CheckoutStatus          `xml:"CheckoutStatus"`
	BuyerUserID             string                  `xml:"BuyerUserID"`
	Total                   *Amount                 `xml:"Total"`
	AmountPaid              *Amount                 `xml:"AmountPaid"`
	CreatedTime             *Time                   `xml:"CreatedTime"`
	PaidTime                *Time                   `xml:"PaidTime"`
	ShippedTime             *Time                   `xml:"ShippedTime"`
	ShippingAddress         AddressXML              `xml:"ShippingAddress"`
	ShippingServiceSelected ShippingServiceSelected `xml:"ShippingServiceSelected"`
	Transactions            []Transaction           `xml:"TransactionArray>Transaction"`
	CancelStatus            string                  `xml:"CancelStatus"`
}

// Status derives the independent eBay-side status flags of the order.
func (o *Order) Status() domain.OrderStatus {
	st := domain.OrderStatus{
		IsPaid:    o.PaidTime != nil || o.CheckoutStatus.Status == "Complete",
		IsShipped: o.ShippedTime != nil,
	}

	switch o.OrderStatus {
	case "Cancelled", "CancelPending":
		st.IsCanceled = true
	case "Completed":
		st.IsClosed = st.IsPaid && st.IsShipped
	case "Inactive":
		st.IsClosed = true
	}
	if strings.EqualFold(o.CancelStatus, "CancelComplete") {
		st.IsCanceled = true
	}

	if len(o.Transactions) > 0 {
		delivered := true
		for _, t := range o.Transactions {
			if t.ActualDeliveryTime == nil {
				delivered = false
				break
			}
		}
		st.IsDelivered = delivered
	}
	return st
}

// ToDomain converts the order into the local mirror representation. Ids,
// ownership and core status are left to the caller.
func (o *Order) ToDomain(methods domain.PaymentMethodMapping) domain.Order {
	if methods == nil {
		methods = domain.DefaultPaymentMethods
	}

	out := domain.Order{
		EbayOrderID:     o.OrderID,
		BuyerUserID:     o.BuyerUserID,
		PaymentMethod:   methods.Resolve(o.CheckoutStatus.PaymentMethod),
		ShippingService: o.ShippingServiceSelected.ShippingService,
		ShippingAddress: domain.Address{
			Name:       o.ShippingAddress.Name,
			Street1:    o.ShippingAddress.Street1,
			Street2:    o.ShippingAddress.Street2,
			City:       o.ShippingAddress.CityName,
			Region:     o.ShippingAddress.StateOrProvince,
			PostalCode: o.ShippingAddress.PostalCode,
			Country:    o.ShippingAddress.Country,
			Phone:      o.ShippingAddress.Phone,
		},
		EbayStatus: o.Status(),
	}
	if o.Total != nil {
		out.Total = o.Total.Value
		out.Currency = o.Total.CurrencyID
	}
	if o.CreatedTime != nil {
		out.CreatedTime = o.CreatedTime.Time
	}
	if o.CheckoutStatus.LastModifiedTime != nil {
		out.ModifiedTime = o.CheckoutStatus.LastModifiedTime.Time
	}

	for _, t := range o.Transactions {
		line := domain.OrderLine{
			EbayItemID:    t.Item.ItemID,
			TransactionID: t.TransactionID,
			SKU:           t.Item.SKU,
			Title:         t.Item.Title,
			Quantity:      t.QuantityPurchased,
			Price:         decimal.Zero,
		}
		if t.Variation != nil && t.Variation.SKU != "" {
			line.SKU = t.Variation.SKU
		}
		if t.TransactionPrice != nil {
			line.Price = t.TransactionPrice.Value
		}
		if out.BuyerEmail == "" {
			out.BuyerEmail = t.Buyer.Email
		}
		for _, tr := range t.ShippingDetails.Tracking {
			out.TrackingNumber = tr.ShipmentTrackingNumber
			out.Carrier = tr.ShippingCarrierUsed
		}
		out.Lines = append(out.Lines, line)
	}
	return out
}

// Shipment carries tracking data for CompleteSale.
type Shipment struct {
	ShipmentTrackingDetails *ShipmentTracking `xml:"ShipmentTrackingDetails,omitempty"`
}

// CompleteSaleRequest marks an order paid and/or shipped on eBay.
type CompleteSaleRequest struct {
	RequestBase
	OrderID  string    `xml:"OrderID,omitempty"`
	Paid     *bool     `xml:"Paid,omitempty"`
	Shipped  *bool     `xml:"Shipped,omitempty"`
	Shipment *Shipment `xml:"Shipment,omitempty"`
}

// ReviseCheckoutStatusRequest updates the checkout state of an order.
type ReviseCheckoutStatusRequest struct {
	RequestBase
	OrderID        string  `xml:"OrderID"`
	CheckoutStatus string  `xml:"CheckoutStatus"`
	PaymentMethod  string  `xml:"PaymentMethod,omitempty"`
	AmountPaid     *Amount `xml:"AmountPaid,omitempty"`
}

// IssueRefundRequest refunds a buyer for an order line.
type IssueRefundRequest struct {
	RequestBase
	ItemID        string  `xml:"ItemID"`
	TransactionID string  `xml:"TransactionID"`
	RefundType    string  `xml:"RefundType"`
	RefundReason  string  `xml:"RefundReason"`
	RefundAmount  *Amount `xml:"RefundAmount,omitempty"`
	RefundMessage string  `xml:"RefundMessage,omitempty"`
}

// IssueRefundResult is the body of an IssueRefund response.
type IssueRefundResult struct {
	ResponseBase
	RefundFromSeller   *Amount `xml:"RefundFromSeller"`
	TotalRefundToBuyer *Amount `xml:"TotalRefundToBuyer"`
}

// EncodeRefund builds the refund request for the first line of an order.
func EncodeRefund(o *domain.Order, r *domain.Return) IssueRefundRequest {
	req := IssueRefundRequest{
		RefundReason:  "Other",
		RefundMessage: r.Note,
		RefundType:    "Full",
	}
	if len(o.Lines) > 0 {
		req.ItemID = o.Lines[0].EbayItemID
		req.TransactionID = o.Lines[0].TransactionID
	}
	if r.RefundType == domain.RefundPartial {
		req.RefundType = "CustomOrPartial"
		req.RefundAmount = NewAmount(r.RefundAmount, o.Currency)
	}
	return req
}

// GetUserRequest asks for the token owner's user record.
type GetUserRequest struct {
	RequestBase
	DetailLevel string `xml:"DetailLevel,omitempty"`
}

// UserResult is the body of a GetUser response.
type UserResult struct {
	ResponseBase
	User struct {
		UserID string `xml:"UserID"`
		Email  string `xml:"Email"`
		Site   string `xml:"Site"`
		Status string `xml:"Status"`
	} `xml:"User"`
}

// GetUserPreferencesRequest selects the preference groups to return.
type GetUserPreferencesRequest struct {
	RequestBase
	ShowOutOfStockControlPreference bool `xml:"ShowOutOfStockControlPreference"`
	ShowSellerProfilePreferences    bool `xml:"ShowSellerProfilePreferences"`
}

// UserPreferencesResult is the body of a GetUserPreferences response.
type UserPreferencesResult struct {
	ResponseBase
	OutOfStockControlPreference bool `xml:"OutOfStockControlPreference"`
	SellerProfilePreferences    struct {
		SellerProfileOptedIn bool `xml:"SellerProfileOptedIn"`
	} `xml:"SellerProfilePreferences"`
}
