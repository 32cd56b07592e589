package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/donaldgifford/ebay-connector/internal/ebay/wire"
	"github.com/donaldgifford/ebay-connector/internal/inventory"
	"github.com/donaldgifford/ebay-connector/internal/store"
	domain "github.com/donaldgifford/ebay-connector/pkg/types"
)

// AccountGetter loads an account by id.
type AccountGetter interface {
	GetAccount(ctx context.Context, id string) (*domain.Account, error)
}

// SanityChecker overlays current stock onto an availability check.
type SanityChecker interface {
	SanityCheck(ctx context.Context, account *domain.Account, reqs []wire.AvailabilityRequest) ([]wire.AvailabilityRequest, error)
}

// InventoryHandler answers eBay's in-store availability checks. The
// endpoint is public; requests are scoped by the account's pickup location.
type InventoryHandler struct {
	accounts AccountGetter
	checker  SanityChecker
}

// NewInventoryHandler creates a new InventoryHandler.
func NewInventoryHandler(a AccountGetter, c SanityChecker) *InventoryHandler {
	return &InventoryHandler{accounts: a, checker: c}
}

// SanityCheckInput is eBay's availability payload for one account. The
// list may arrive as a bare object.
type SanityCheckInput struct {
	AccountID string `path:"account_id" doc:"Connector account id"`
	RawBody   []byte `contentType:"application/json"`
}

// SanityCheckOutput echoes the payload with current quantities.
type SanityCheckOutput struct {
	Body struct {
		Availability []wire.AvailabilityRequest `json:"availability"`
	}
}

// SanityCheck returns current core quantities for the requested SKUs.
func (h *InventoryHandler) SanityCheck(ctx context.Context, input *SanityCheckInput) (*SanityCheckOutput, error) {
	check, err := wire.DecodeAvailabilityCheck(input.RawBody)
	if err != nil {
		return nil, huma.Error400BadRequest("malformed availability payload: " + err.Error())
	}

	acc, err := h.accounts.GetAccount(ctx, input.AccountID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, huma.Error404NotFound("account not found")
		}
		return nil, huma.Error500InternalServerError("loading account failed: " + err.Error())
	}

	out, err := h.checker.SanityCheck(ctx, acc, check.Items)
	if err != nil {
		if errors.Is(err, inventory.ErrLocationMismatch) {
			return nil, NewDomainError(http.StatusBadRequest, "location.mismatch", err.Error())
		}
		return nil, huma.Error502BadGateway("sanity check failed: " + err.Error())
	}

	resp := &SanityCheckOutput{}
	resp.Body.Availability = out
	if resp.Body.Availability == nil {
		resp.Body.Availability = []wire.AvailabilityRequest{}
	}
	return resp, nil
}

// RegisterInventoryRoutes registers the public availability endpoint.
func RegisterInventoryRoutes(api huma.API, h *InventoryHandler) {
	huma.Register(api, huma.Operation{
		OperationID: "inventory-check",
		Method:      http.MethodPost,
		Path:        "/api/v1/inventory/check/{account_id}",
		Summary:     "Answer an eBay availability check",
		Description: "Overlays current core quantities onto eBay's availability payload. " +
			"Every entry must name the account's pickup location.",
		Tags:   []string{"inventory"},
		Errors: []int{http.StatusBadRequest, http.StatusNotFound},
	}, h.SanityCheck)
}
