// Package main implements a mock eBay API server for local development.
// It answers Trading API and Inventory Management API calls with
// well-formed XML so the connector can publish, revise and end listings
// without real eBay credentials.
package main

import (
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/donaldgifford/ebay-connector/internal/ebay/wire"
)

const (
	mockVersion  = "1193"
	firstItemID  = 110000000000
	listingLife  = 30 * 24 * time.Hour
	errItemEnded = "1047"
	errNoItem    = "17"
	errNoSKU     = "21919"
)

func main() {
	port := flag.Int("port", 8089, "port to listen on")
	ordersFile := flag.String("orders", "", "optional GetOrdersResponse XML served for GetOrders")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))

	srv, err := newMockServer(logger, *ordersFile)
	if err != nil {
		logger.Error("failed to load orders fixture", "path", *ordersFile, "error", err)
		os.Exit(1)
	}

	addr := fmt.Sprintf(":%d", *port)
	logger.Info("starting mock eBay server", "addr", addr,
		"trading_url", "http://localhost"+addr+"/ws/api.dll",
		"inventory_url", "http://localhost"+addr+"/inventory")

	httpSrv := &http.Server{
		Addr:         addr,
		Handler:      requestLogger(logger, srv.routes()),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	if err := httpSrv.ListenAndServe(); err != nil {
		logger.Error("server stopped", "error", err)
		os.Exit(1)
	}
}

// mockServer keeps the listings created since startup.
type mockServer struct {
	logger *slog.Logger
	orders []byte

	mu     sync.Mutex
	nextID int64
	items  map[string]*mockItem
}

type mockItem struct {
	sku   string
	ended bool
}

func newMockServer(logger *slog.Logger, ordersFile string) (*mockServer, error) {
	s := &mockServer{
		logger: logger,
		nextID: firstItemID,
		items:  make(map[string]*mockItem),
	}
	if ordersFile != "" {
		data, err := os.ReadFile(ordersFile) //nolint:gosec // fixture path from trusted CLI flag
		if err != nil {
			return nil, fmt.Errorf("reading orders fixture: %w", err)
		}
		s.orders = data
	}
	return s, nil
}

func (s *mockServer) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /ws/api.dll", s.tradingHandler)
	mux.HandleFunc("POST /inventory/{call}", s.inventoryHandler)
	return mux
}

func requestLogger(logger *slog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		logger.Debug("request", "method", r.Method, "path", r.URL.Path,
			"call", r.Header.Get("X-EBAY-API-CALL-NAME"))
		next.ServeHTTP(w, r)
	})
}

func (s *mockServer) tradingHandler(w http.ResponseWriter, r *http.Request) {
	call := r.Header.Get("X-EBAY-API-CALL-NAME")
	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "reading body", http.StatusBadRequest)
		return
	}

	switch call {
	case "AddFixedPriceItem", "VerifyAddFixedPriceItem":
		var req wire.AddFixedPriceItemRequest
		if err := wire.Decode(body, &req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		s.write(w, call, s.addItem(call, req.Item))
	case "ReviseFixedPriceItem":
		var req wire.ReviseFixedPriceItemRequest
		if err := wire.Decode(body, &req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		s.write(w, call, s.reviseItem(req.Item))
	case "EndFixedPriceItem":
		var req wire.EndFixedPriceItemRequest
		if err := wire.Decode(body, &req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		s.write(w, call, s.endItem(req.ItemID))
	case "GetOrders":
		if s.orders != nil {
			w.Header().Set("Content-Type", "text/xml")
			w.Write(s.orders) //nolint:errcheck,gosec // best-effort write in mock server
			return
		}
		s.write(w, call, &wire.GetOrdersResult{
			ResponseBase:     success(),
			PaginationResult: wire.PaginationResult{TotalNumberOfPages: 1},
			PageNumber:       1,
		})
	default:
		s.write(w, call, &wire.InventoryResult{ResponseBase: success()})
	}
}

func (s *mockServer) inventoryHandler(w http.ResponseWriter, r *http.Request) {
	s.write(w, r.PathValue("call"), &wire.InventoryResult{ResponseBase: success()})
}

func (s *mockServer) addItem(call string, item wire.Item) *wire.AddItemResult {
	if item.SKU == "" {
		return &wire.AddItemResult{ResponseBase: failure(errNoSKU, "The SKU is required.")}
	}

	now := time.Now()
	res := &wire.AddItemResult{
		ResponseBase: success(),
		SKU:          item.SKU,
		StartTime:    wire.NewTime(now),
		EndTime:      wire.NewTime(now.Add(listingLife)),
		Fees: []wire.Fee{
			{Name: "InsertionFee", Fee: wire.NewAmount(decimal.Zero, "EUR")},
			{Name: "ListingFee", Fee: wire.NewAmount(decimal.Zero, "EUR")},
		},
	}
	if call == "VerifyAddFixedPriceItem" {
		return res
	}

	s.mu.Lock()
	id := strconv.FormatInt(s.nextID, 10)
	s.nextID++
	s.items[id] = &mockItem{sku: item.SKU}
	s.mu.Unlock()

	res.ItemID = id
	s.logger.Info("listed item", "item_id", id, "sku", item.SKU)
	return res
}

func (s *mockServer) reviseItem(item wire.Item) *wire.AddItemResult {
	s.mu.Lock()
	defer s.mu.Unlock()

	it, ok := s.items[item.ItemID]
	if !ok {
		return &wire.AddItemResult{ResponseBase: failure(errNoItem, "The specified item could not be found.")}
	}
	if it.ended {
		return &wire.AddItemResult{ResponseBase: failure(errItemEnded, "The listing has already ended.")}
	}
	return &wire.AddItemResult{ResponseBase: success(), ItemID: item.ItemID, SKU: it.sku}
}

func (s *mockServer) endItem(itemID string) *wire.EndItemResult {
	s.mu.Lock()
	defer s.mu.Unlock()

	it, ok := s.items[itemID]
	if !ok {
		return &wire.EndItemResult{ResponseBase: failure(errNoItem, "The specified item could not be found.")}
	}
	if it.ended {
		return &wire.EndItemResult{ResponseBase: failure(errItemEnded, "The listing has already ended.")}
	}
	it.ended = true
	s.logger.Info("ended item", "item_id", itemID)
	return &wire.EndItemResult{ResponseBase: success(), EndTime: wire.NewTime(time.Now())}
}

func (s *mockServer) write(w http.ResponseWriter, call string, body any) {
	data, err := wire.EncodeNS(wire.Namespace, call+"Response", body)
	if err != nil {
		s.logger.Error("encoding response", "call", call, "error", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/xml")
	w.Write(data) //nolint:errcheck,gosec // best-effort write in mock server
}

func success() wire.ResponseBase {
	return wire.ResponseBase{
		Timestamp: wire.FormatTime(time.Now()),
		Ack:       wire.AckSuccess,
		Version:   mockVersion,
		Build:     "mock",
	}
}

func failure(code, msg string) wire.ResponseBase {
	b := success()
	b.Ack = wire.AckFailure
	b.Errors = []wire.ErrorEntry{{
		ShortMessage:        msg,
		LongMessage:         msg,
		ErrorCode:           code,
		SeverityCode:        wire.SeverityError,
		ErrorClassification: wire.ClassRequest,
	}}
	return b
}
