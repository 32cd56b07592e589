package ebay_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/donaldgifford/ebay-connector/internal/ebay"
	"github.com/donaldgifford/ebay-connector/internal/ebay/wire"
	domain "github.com/donaldgifford/ebay-connector/pkg/types"
)

const addItemSuccess = `<?xml version="1.0" encoding="UTF-8"?>
<AddFixedPriceItemResponse xmlns="urn:ebay:apis:eBLBaseComponents">
  <Timestamp>2024-03-01T10:15:30.123Z</Timestamp>
  <Ack>Success</Ack>
  <ItemID>110022</ItemID>
  <StartTime>2024-03-01T10:15:30.000Z</StartTime>
  <EndTime>2024-03-31T10:15:30.000Z</EndTime>
</AddFixedPriceItemResponse>`

func failureBody(root string, entries ...string) string {
	return `<?xml version="1.0" encoding="UTF-8"?><` + root + ` xmlns="urn:ebay:apis:eBLBaseComponents">` +
		`<Timestamp>2024-03-01T10:15:30.123Z</Timestamp><Ack>Failure</Ack>` +
		strings.Join(entries, "") + `</` + root + `>`
}

func errorEntry(code, class, severity string) string {
	return `<Errors><ShortMessage>msg ` + code + `</ShortMessage><LongMessage>long ` + code + `</LongMessage>` +
		`<ErrorCode>` + code + `</ErrorCode><SeverityCode>` + severity + `</SeverityCode>` +
		`<ErrorClassification>` + class + `</ErrorClassification></Errors>`
}

func newClient(t *testing.T, h http.HandlerFunc, opts ...ebay.TradingOption) *ebay.TradingClient {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	opts = append([]ebay.TradingOption{
		ebay.WithTradingURL(srv.URL),
		ebay.WithInventoryURL(srv.URL + "/inventory"),
	}, opts...)
	return ebay.NewTradingClient(ebay.Credentials{DevID: "dev", AppID: "app", CertID: "cert"}, opts...)
}

func TestTradingClient_AddFixedPriceItem(t *testing.T) {
	t.Parallel()

	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "AddFixedPriceItem", r.Header.Get("X-EBAY-API-CALL-NAME"))
		assert.Equal(t, "77", r.Header.Get("X-EBAY-API-SITEID"))
		assert.Equal(t, "1193", r.Header.Get("X-EBAY-API-COMPATIBILITY-LEVEL"))
		assert.Equal(t, "app", r.Header.Get("X-EBAY-API-APP-NAME"))
		assert.Equal(t, "text/xml", r.Header.Get("Content-Type"))

		body, _ := io.ReadAll(r.Body)
		assert.Contains(t, string(body), "<eBayAuthToken>tok-1</eBayAuthToken>")
		assert.Contains(t, string(body), "<SKU>SHOP-1</SKU>")

		_, _ = w.Write([]byte(addItemSuccess))
	})

	ex := &ebay.Exchange{}
	ctx := ebay.WithExchange(context.Background(), ex)

	item := wire.Item{SKU: "SHOP-1", StartPrice: wire.NewAmount(decimal.NewFromInt(5), "EUR")}
	res, err := c.AddFixedPriceItem(ctx, ebay.Session{Token: "tok-1", SiteID: 77}, item)
	require.NoError(t, err)
	assert.Equal(t, "110022", res.ItemID)
	assert.Equal(t, time.Date(2024, 3, 31, 10, 15, 30, 0, time.UTC), res.EndTime.Time)

	assert.NotContains(t, ex.Request, "tok-1", "tokens are redacted from the audit copy")
	assert.Contains(t, ex.Request, "<eBayAuthToken>***</eBayAuthToken>")
	assert.Contains(t, ex.Response, "<ItemID>110022</ItemID>")
}

func TestTradingClient_Classification(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name          string
		status        int
		body          string
		wantTransport bool
		wantApp       bool
		wantCodes     []string
	}{
		{
			name:      "request error is an application failure",
			status:    http.StatusOK,
			body:      failureBody("AddFixedPriceItemResponse", errorEntry("240", wire.ClassRequest, wire.SeverityError)),
			wantApp:   true,
			wantCodes: []string{"240"},
		},
		{
			name:   "warnings travel with application failures",
			status: http.StatusOK,
			body: failureBody("AddFixedPriceItemResponse",
				errorEntry("21917236", wire.ClassRequest, wire.SeverityWarn),
				errorEntry("240", wire.ClassRequest, wire.SeverityError)),
			wantApp:   true,
			wantCodes: []string{"21917236", "240"},
		},
		{
			name:          "system errors only is a transport failure",
			status:        http.StatusOK,
			body:          failureBody("AddFixedPriceItemResponse", errorEntry("10007", wire.ClassSystem, wire.SeverityError)),
			wantTransport: true,
		},
		{
			name:   "mixed system and request errors is an application failure",
			status: http.StatusOK,
			body: failureBody("AddFixedPriceItemResponse",
				errorEntry("10007", wire.ClassSystem, wire.SeverityError),
				errorEntry("240", wire.ClassRequest, wire.SeverityError)),
			wantApp:   true,
			wantCodes: []string{"10007", "240"},
		},
		{
			name:          "bad gateway",
			status:        http.StatusBadGateway,
			body:          "<html>bad gateway</html>",
			wantTransport: true,
		},
		{
			name:          "throttled",
			status:        http.StatusTooManyRequests,
			wantTransport: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			c := newClient(t, func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			})

			_, err := c.AddFixedPriceItem(context.Background(), ebay.Session{Token: "t"}, wire.Item{})
			require.Error(t, err)

			assert.Equal(t, tt.wantTransport, ebay.IsTransport(err))
			appErr, isApp := ebay.AsApplication(err)
			assert.Equal(t, tt.wantApp, isApp)
			if tt.wantApp {
				codes := make([]string, 0, len(appErr.Details))
				for _, d := range appErr.Details {
					codes = append(codes, d.Code)
				}
				assert.Equal(t, tt.wantCodes, codes)
			}
		})
	}
}

func TestTradingClient_WarningPasses(t *testing.T) {
	t.Parallel()

	c := newClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`<EndFixedPriceItemResponse xmlns="urn:ebay:apis:eBLBaseComponents">
<Timestamp>2024-03-01T10:15:30.123Z</Timestamp><Ack>Warning</Ack>` +
			errorEntry("1", wire.ClassRequest, wire.SeverityWarn) +
			`<EndTime>2024-03-01T10:15:30.000Z</EndTime></EndFixedPriceItemResponse>`))
	})

	res, err := c.EndFixedPriceItem(context.Background(), ebay.Session{Token: "t"}, "110022", "")
	require.NoError(t, err)
	assert.NotNil(t, res.EndTime)
}

func TestTradingClient_NetworkError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := srv.URL
	srv.Close()

	c := ebay.NewTradingClient(ebay.Credentials{}, ebay.WithTradingURL(url))
	_, err := c.GetUser(context.Background(), ebay.Session{Token: "t"})
	require.Error(t, err)
	assert.True(t, ebay.IsTransport(err))
}

func TestTradingClient_Timeout(t *testing.T) {
	t.Parallel()

	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(time.Second):
		case <-r.Context().Done():
		}
	}, ebay.WithTimeout(50*time.Millisecond))

	_, err := c.GetUser(context.Background(), ebay.Session{Token: "t"})
	require.Error(t, err)
	assert.True(t, ebay.IsTransport(err))
}

func TestTradingClient_DailyLimit(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	c := newClient(t, func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		_, _ = w.Write([]byte(`<GetUserResponse><Ack>Success</Ack></GetUserResponse>`))
	}, ebay.WithRateLimiter(ebay.NewRateLimiter(100, 10, 1)))

	_, err := c.GetUser(context.Background(), ebay.Session{Token: "t"})
	require.NoError(t, err)

	_, err = c.GetUser(context.Background(), ebay.Session{Token: "t"})
	require.ErrorIs(t, err, ebay.ErrDailyLimitReached)
	assert.True(t, ebay.IsTransport(err))
	assert.Equal(t, int32(1), calls.Load())
}

func TestTradingClient_UnexpectedStatus(t *testing.T) {
	t.Parallel()

	c := newClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})

	_, err := c.GetUser(context.Background(), ebay.Session{Token: "t"})
	require.Error(t, err)
	assert.False(t, ebay.IsTransport(err))
	assert.Contains(t, err.Error(), "unexpected status 401")
}

func TestTradingClient_ReviseInventoryStatusLimits(t *testing.T) {
	t.Parallel()

	c := newClient(t, func(w http.ResponseWriter, _ *http.Request) {
		t.Error("no request expected")
	})

	_, err := c.ReviseInventoryStatus(context.Background(), ebay.Session{}, nil)
	require.Error(t, err)

	five := make([]wire.InventoryStatus, 5)
	_, err = c.ReviseInventoryStatus(context.Background(), ebay.Session{}, five)
	require.Error(t, err)
}

func TestTradingClient_Inventory(t *testing.T) {
	t.Parallel()

	var (
		mu    sync.Mutex
		paths []string
	)
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		paths = append(paths, r.URL.Path)
		mu.Unlock()
		assert.Equal(t, "tok", r.Header.Get("X-EBAY-API-IAF-TOKEN"))
		body, _ := io.ReadAll(r.Body)
		assert.Contains(t, string(body), wire.InventoryNamespace)
		_, _ = w.Write([]byte(`<Response><Ack>Success</Ack></Response>`))
	})

	sess := ebay.Session{Token: "tok", SiteID: 77}
	require.NoError(t, c.AddInventoryLocation(context.Background(), sess, &domain.Location{LocationID: "store-1"}))
	require.NoError(t, c.AddInventory(context.Background(), sess, "SHOP-1", "store-1", 2))
	require.NoError(t, c.DeleteInventory(context.Background(), sess, "SHOP-1", "store-1"))

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{
		"/inventory/AddInventoryLocation",
		"/inventory/AddInventory",
		"/inventory/DeleteInventory",
	}, paths)
}

func TestSession_WithSite(t *testing.T) {
	t.Parallel()

	base := ebay.Session{Token: "tok", SiteID: 77}
	uk := base.WithSite(3)

	assert.Equal(t, 3, uk.SiteID)
	assert.Equal(t, 77, base.SiteID, "the original session is untouched")
	assert.Equal(t, "tok", uk.Token)
}

func TestSiteForCountry(t *testing.T) {
	t.Parallel()

	id, err := ebay.SiteForCountry("de")
	require.NoError(t, err)
	assert.Equal(t, 77, id)

	_, err = ebay.SiteForCountry("XX")
	assert.Error(t, err)

	country, ok := ebay.CountryForSite(3)
	assert.True(t, ok)
	assert.Equal(t, "GB", country)
}

func TestApplicationError_Codes(t *testing.T) {
	t.Parallel()

	err := &ebay.ApplicationError{Call: "EndFixedPriceItem", Details: []domain.StatusDetail{
		{Code: "1047", Severity: wire.SeverityError},
		{Code: "99", Severity: wire.SeverityWarn},
	}}
	assert.True(t, err.HasCode(ebay.CodeAlreadyClosed))
	assert.True(t, err.OnlyCodes(ebay.CodeAlreadyClosed))
	assert.False(t, err.OnlyCodes("1"))
	assert.Contains(t, err.Error(), "[1047]")
	assert.NotContains(t, err.Error(), "[99]")
}
