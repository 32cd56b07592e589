package inventory

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/donaldgifford/ebay-connector/internal/ebay"
	domain "github.com/donaldgifford/ebay-connector/pkg/types"
)

// ErrCannotSave is returned by Update when the preconditions of
// CanBeSaved do not hold.
var ErrCannotSave = errors.New("location cannot be saved to eBay")

// LocationUpdateError carries eBay's validation message when it rejects a
// location payload.
type LocationUpdateError struct {
	Message string
	Details []domain.StatusDetail
	Err     error
}

func (e *LocationUpdateError) Error() string {
	return "updating eBay location: " + e.Message
}

func (e *LocationUpdateError) Unwrap() error {
	return e.Err
}

// LocationGateway registers a pickup location with eBay.
type LocationGateway interface {
	AddInventoryLocation(ctx context.Context, sess ebay.Session, loc *domain.Location) error
}

// LocationUpdateService pushes an account's store location to eBay.
type LocationUpdateService struct {
	gateway LocationGateway
	log     *slog.Logger
}

// NewLocationUpdateService creates a LocationUpdateService.
func NewLocationUpdateService(g LocationGateway, log *slog.Logger) *LocationUpdateService {
	if log == nil {
		log = slog.Default()
	}
	return &LocationUpdateService{gateway: g, log: log}
}

// CanBeSaved reports whether the location of account may be sent to eBay:
// the account has a location and the core platform enables click & collect.
func (s *LocationUpdateService) CanBeSaved(account *domain.Account, settings *domain.AccountSettings) bool {
	return account.Location != nil && settings != nil && settings.ClickAndCollectEnabled
}

// Update registers the account's location with eBay. eBay validation
// failures are returned as *LocationUpdateError.
func (s *LocationUpdateService) Update(
	ctx context.Context,
	account *domain.Account,
	settings *domain.AccountSettings,
) error {
	if !s.CanBeSaved(account, settings) {
		return ErrCannotSave
	}
	if account.Token == nil {
		return fmt.Errorf("updating eBay location: account %s has no token", account.ID)
	}

	sess := ebay.Session{Token: account.Token.Value, SiteID: account.SiteID}
	err := s.gateway.AddInventoryLocation(ctx, sess, account.Location)
	if err == nil {
		s.log.Info("eBay location updated",
			"account_id", account.ID,
			"location_id", account.Location.LocationID,
		)
		return nil
	}

	if appErr, ok := ebay.AsApplication(err); ok {
		return &LocationUpdateError{
			Message: validationMessage(appErr.Details),
			Details: appErr.Details,
			Err:     err,
		}
	}
	return fmt.Errorf("updating eBay location: %w", err)
}

func validationMessage(details []domain.StatusDetail) string {
	msgs := make([]string, 0, len(details))
	for _, d := range details {
		msg := d.LongMessage
		if msg == "" {
			msg = d.ShortMessage
		}
		if msg != "" {
			msgs = append(msgs, msg)
		}
	}
	if len(msgs) == 0 {
		return "eBay rejected the location"
	}
	return strings.Join(msgs, "; ")
}
