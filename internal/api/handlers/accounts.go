package handlers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/shopspring/decimal"

	"github.com/donaldgifford/ebay-connector/internal/inventory"
	domain "github.com/donaldgifford/ebay-connector/pkg/types"
)

// KeyLocationInvalid reports a pickup location eBay rejected.
const KeyLocationInvalid = "location.invalid"

// AccountWriter persists account details.
type AccountWriter interface {
	UpsertAccount(ctx context.Context, a *domain.Account) error
}

// SettingsSource loads the core platform's settings of an account.
type SettingsSource interface {
	GetAccountSettings(ctx context.Context, coreAccountID string) (*domain.AccountSettings, error)
}

// LocationUpdater registers an account's pickup location with eBay.
type LocationUpdater interface {
	CanBeSaved(account *domain.Account, settings *domain.AccountSettings) bool
	Update(ctx context.Context, account *domain.Account, settings *domain.AccountSettings) error
}

// AccountsHandler reads and updates the caller's account.
type AccountsHandler struct {
	store    AccountWriter
	settings SettingsSource
	location LocationUpdater
	log      *slog.Logger
}

// NewAccountsHandler creates a new AccountsHandler.
func NewAccountsHandler(s AccountWriter, ss SettingsSource, l LocationUpdater, log *slog.Logger) *AccountsHandler {
	if log == nil {
		log = slog.Default()
	}
	return &AccountsHandler{store: s, settings: ss, location: l, log: log}
}

// LocationBody is the pickup location. Coordinates are decimal strings.
type LocationBody struct {
	LocationID   string `json:"location_id"`
	Name         string `json:"name"`
	Address1     string `json:"address1"`
	Address2     string `json:"address2,omitempty"`
	City         string `json:"city"`
	Region       string `json:"region,omitempty"`
	PostalCode   string `json:"postal_code"`
	Country      string `json:"country"                 minLength:"2" maxLength:"2"`
	Latitude     string `json:"latitude"                example:"52.520008"`
	Longitude    string `json:"longitude"               example:"13.404954"`
	Phone        string `json:"phone,omitempty"`
	OpeningHours string `json:"opening_hours,omitempty"`
	UTCOffset    string `json:"utc_offset,omitempty"`
}

func (b *LocationBody) toDomain() (*domain.Location, error) {
	lat, err := decimal.NewFromString(b.Latitude)
	if err != nil {
		return nil, fmt.Errorf("latitude: %w", err)
	}
	lng, err := decimal.NewFromString(b.Longitude)
	if err != nil {
		return nil, fmt.Errorf("longitude: %w", err)
	}
	return &domain.Location{
		LocationID:   b.LocationID,
		Name:         b.Name,
		Address1:     b.Address1,
		Address2:     b.Address2,
		City:         b.City,
		Region:       b.Region,
		PostalCode:   b.PostalCode,
		Country:      b.Country,
		Latitude:     lat,
		Longitude:    lng,
		Phone:        b.Phone,
		OpeningHours: b.OpeningHours,
		UTCOffset:    b.UTCOffset,
	}, nil
}

// UpdateAccountInput carries the editable account details.
type UpdateAccountInput struct {
	Body struct {
		Location        *LocationBody        `json:"location,omitempty"          doc:"In-store pickup location"`
		ReturnPolicy    *domain.ReturnPolicy `json:"return_policy,omitempty"`
		Shipping        []ShippingBody       `json:"shipping,omitempty"          doc:"Default shipping services"`
		ClickAndCollect *bool                `json:"click_and_collect,omitempty" doc:"Offer in-store pickup"`
	}
}

// AccountOutput returns the account.
type AccountOutput struct {
	Body domain.Account
}

// GetAccount returns the caller's account.
func (h *AccountsHandler) GetAccount(ctx context.Context, _ *struct{}) (*AccountOutput, error) {
	acc, err := currentAccount(ctx)
	if err != nil {
		return nil, err
	}
	return &AccountOutput{Body: *acc}, nil
}

// UpdateAccount saves the account details. When the account has a
// location and the core platform enables click & collect, the location is
// pushed to eBay as well.
func (h *AccountsHandler) UpdateAccount(ctx context.Context, input *UpdateAccountInput) (*AccountOutput, error) {
	current, err := currentAccount(ctx)
	if err != nil {
		return nil, err
	}
	acc := *current

	if input.Body.Location != nil {
		loc, err := input.Body.Location.toDomain()
		if err != nil {
			return nil, NewDomainError(http.StatusBadRequest, KeyLocationInvalid, err.Error())
		}
		acc.Location = loc
	}
	if input.Body.ReturnPolicy != nil {
		acc.ReturnPolicy = input.Body.ReturnPolicy
	}
	if input.Body.Shipping != nil {
		cfg, err := (&ListingConfigBody{Shipping: input.Body.Shipping}).toDomain()
		if err != nil {
			return nil, huma.Error400BadRequest(err.Error())
		}
		acc.Shipping = cfg.Shipping
	}
	if input.Body.ClickAndCollect != nil {
		acc.ClickAndCollect = *input.Body.ClickAndCollect
	}

	if err := h.store.UpsertAccount(ctx, &acc); err != nil {
		return nil, huma.Error500InternalServerError("saving account failed: " + err.Error())
	}

	if input.Body.Location != nil {
		if err := h.pushLocation(ctx, &acc); err != nil {
			return nil, err
		}
	}
	return &AccountOutput{Body: acc}, nil
}

func (h *AccountsHandler) pushLocation(ctx context.Context, acc *domain.Account) error {
	settings, err := h.settings.GetAccountSettings(ctx, acc.CoreAccountID)
	if err != nil {
		return huma.Error502BadGateway("loading core settings failed: " + err.Error())
	}
	if !h.location.CanBeSaved(acc, settings) {
		h.log.Info("eBay location not pushed", "account_id", acc.ID)
		return nil
	}

	err = h.location.Update(ctx, acc, settings)
	if err == nil {
		return nil
	}
	var lue *inventory.LocationUpdateError
	if errors.As(err, &lue) {
		return NewDomainError(http.StatusBadRequest, KeyLocationInvalid, lue.Message)
	}
	return huma.Error502BadGateway("updating eBay location failed: " + err.Error())
}

// RegisterAccountRoutes registers account endpoints.
func RegisterAccountRoutes(api huma.API, h *AccountsHandler, mw ...func(huma.Context, func(huma.Context))) {
	huma.Register(api, huma.Operation{
		OperationID: "get-account",
		Method:      http.MethodGet,
		Path:        "/api/v1/accounts",
		Summary:     "Get the caller's account",
		Tags:        []string{"accounts"},
		Middlewares: mw,
		Errors:      []int{http.StatusUnauthorized},
	}, h.GetAccount)

	huma.Register(api, huma.Operation{
		OperationID: "update-account",
		Method:      http.MethodPut,
		Path:        "/api/v1/accounts",
		Summary:     "Update the caller's account",
		Description: "Saves location, return policy and shipping defaults. A changed location is " +
			"registered with eBay when the core platform enables click & collect.",
		Tags:        []string{"accounts"},
		Middlewares: mw,
		Errors:      []int{http.StatusBadRequest, http.StatusUnauthorized, http.StatusBadGateway},
	}, h.UpdateAccount)
}
