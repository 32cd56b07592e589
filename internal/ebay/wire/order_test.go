package wire

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domain "github.com/donaldgifford/ebay-connector/pkg/types"
)

const ordersResponse = `<?xml version="1.0" encoding="UTF-8"?>
<GetOrdersResponse xmlns="urn:ebay:apis:eBLBaseComponents">
  <Timestamp>2024-05-01T08:00:00.000Z</Timestamp>
  <Ack>Success</Ack>
  <PaginationResult>
    <TotalNumberOfPages>2</TotalNumberOfPages>
    <TotalNumberOfEntries>3</TotalNumberOfEntries>
  </PaginationResult>
  <HasMoreOrders>true</HasMoreOrders>
  <OrderArray>
    <Order>
      <OrderID>110-220</OrderID>
      <OrderStatus>Completed</OrderStatus>
      <CheckoutStatus>
        <Status>Complete</Status>
        <PaymentMethod>PayPal</PaymentMethod>
        <LastModifiedTime>2024-04-30T12:00:00.000Z</LastModifiedTime>
      </CheckoutStatus>
      <BuyerUserID>buyer1</BuyerUserID>
      <Total currencyID="EUR">59.80</Total>
      <CreatedTime>2024-04-29T09:30:00.000Z</CreatedTime>
      <PaidTime>2024-04-29T09:31:00.000Z</PaidTime>
      <ShippingAddress>
        <Name>Jane Doe</Name>
        <Street1>Main St 1</Street1>
        <CityName>Berlin</CityName>
        <Country>DE</Country>
        <PostalCode>10115</PostalCode>
      </ShippingAddress>
      <ShippingServiceSelected>
        <ShippingService>DE_DHLPaket</ShippingService>
        <ShippingServiceCost currencyID="EUR">4.90</ShippingServiceCost>
      </ShippingServiceSelected>
      <TransactionArray>
        <Transaction>
          <TransactionID>7001</TransactionID>
          <Item><ItemID>555</ItemID><SKU>SHOP-42</SKU><Title>Jeans</Title></Item>
          <Variation><SKU>SHOP-42-1</SKU></Variation>
          <QuantityPurchased>2</QuantityPurchased>
          <TransactionPrice currencyID="EUR">27.45</TransactionPrice>
          <Buyer><Email>jane@example.com</Email></Buyer>
          <ShippingDetails>
            <ShipmentTrackingDetails>
              <ShipmentTrackingNumber>00340</ShipmentTrackingNumber>
              <ShippingCarrierUsed>DHL</ShippingCarrierUsed>
            </ShipmentTrackingDetails>
          </ShippingDetails>
        </Transaction>
      </TransactionArray>
    </Order>
  </OrderArray>
  <PageNumber>1</PageNumber>
</GetOrdersResponse>`

func TestGetOrdersResult_Decode(t *testing.T) {
	t.Parallel()

	var res GetOrdersResult
	require.NoError(t, Decode([]byte(ordersResponse), &res))

	assert.False(t, res.Failed())
	assert.True(t, res.HasMoreOrders)
	assert.Equal(t, 2, res.PaginationResult.TotalNumberOfPages)
	require.Len(t, res.Orders, 1)

	o := res.Orders[0].ToDomain(nil)
	assert.Equal(t, "110-220", o.EbayOrderID)
	assert.Equal(t, "buyer1", o.BuyerUserID)
	assert.Equal(t, "jane@example.com", o.BuyerEmail)
	assert.Equal(t, "EUR", o.Currency)
	assert.True(t, decimal.RequireFromString("59.8").Equal(o.Total))
	assert.Equal(t, "paypal", o.PaymentMethod)
	assert.Equal(t, "Berlin", o.ShippingAddress.City)
	assert.Equal(t, "00340", o.TrackingNumber)
	assert.Equal(t, "DHL", o.Carrier)
	assert.Equal(t, time.Date(2024, 4, 29, 9, 30, 0, 0, time.UTC), o.CreatedTime)

	require.Len(t, o.Lines, 1)
	assert.Equal(t, "SHOP-42-1", o.Lines[0].SKU, "variation SKU wins over the parent")
	assert.Equal(t, 2, o.Lines[0].Quantity)

	assert.Equal(t, domain.OrderStatus{IsPaid: true}, o.EbayStatus)
}

func TestGetOrdersResult_RejectsBadTimestamp(t *testing.T) {
	t.Parallel()

	body := `<GetOrdersResponse><Ack>Success</Ack><OrderArray><Order>
<OrderID>1</OrderID><CreatedTime>2024-04-29 09:30</CreatedTime>
</Order></OrderArray></GetOrdersResponse>`

	var res GetOrdersResult
	assert.Error(t, Decode([]byte(body), &res))
}

func TestOrder_Status(t *testing.T) {
	t.Parallel()

	at := NewTime(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	delivered := Transaction{ActualDeliveryTime: at}

	tests := []struct {
		name  string
		order Order
		want  domain.OrderStatus
	}{
		{
			name:  "active unpaid",
			order: Order{OrderStatus: "Active"},
			want:  domain.OrderStatus{},
		},
		{
			name:  "paid via checkout",
			order: Order{OrderStatus: "Active", CheckoutStatus: CheckoutStatus{Status: "Complete"}},
			want:  domain.OrderStatus{IsPaid: true},
		},
		{
			name:  "completed but not shipped stays open",
			order: Order{OrderStatus: "Completed", PaidTime: at},
			want:  domain.OrderStatus{IsPaid: true},
		},
		{
			name:  "completed paid and shipped is closed",
			order: Order{OrderStatus: "Completed", PaidTime: at, ShippedTime: at},
			want:  domain.OrderStatus{IsPaid: true, IsShipped: true, IsClosed: true},
		},
		{
			name:  "cancelled",
			order: Order{OrderStatus: "Cancelled"},
			want:  domain.OrderStatus{IsCanceled: true},
		},
		{
			name:  "cancel complete on active order",
			order: Order{OrderStatus: "Active", CancelStatus: "CancelComplete"},
			want:  domain.OrderStatus{IsCanceled: true},
		},
		{
			name:  "inactive is closed",
			order: Order{OrderStatus: "Inactive"},
			want:  domain.OrderStatus{IsClosed: true},
		},
		{
			name: "delivered when every line delivered",
			order: Order{
				OrderStatus:  "Completed",
				PaidTime:     at,
				ShippedTime:  at,
				Transactions: []Transaction{delivered, delivered},
			},
			want: domain.OrderStatus{IsPaid: true, IsShipped: true, IsClosed: true, IsDelivered: true},
		},
		{
			name: "partially delivered",
			order: Order{
				OrderStatus:  "Active",
				ShippedTime:  at,
				Transactions: []Transaction{delivered, {}},
			},
			want: domain.OrderStatus{IsShipped: true},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, tt.order.Status())
		})
	}
}

func TestEncodeRefund(t *testing.T) {
	t.Parallel()

	order := &domain.Order{
		Currency: "EUR",
		Lines:    []domain.OrderLine{{EbayItemID: "555", TransactionID: "7001"}},
	}

	full := EncodeRefund(order, &domain.Return{RefundType: domain.RefundFull, Note: "damaged"})
	assert.Equal(t, "Full", full.RefundType)
	assert.Nil(t, full.RefundAmount)
	assert.Equal(t, "555", full.ItemID)
	assert.Equal(t, "damaged", full.RefundMessage)

	partial := EncodeRefund(order, &domain.Return{
		RefundType:   domain.RefundPartial,
		RefundAmount: decimal.RequireFromString("5"),
	})
	assert.Equal(t, "CustomOrPartial", partial.RefundType)
	require.NotNil(t, partial.RefundAmount)
	assert.Equal(t, "5.00", partial.RefundAmount.String())
	assert.Equal(t, "EUR", partial.RefundAmount.CurrencyID)
}
