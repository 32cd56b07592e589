package handlers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/donaldgifford/ebay-connector/internal/store"
	domain "github.com/donaldgifford/ebay-connector/pkg/types"
)

// DefaultAuthHeader carries the username set by the trusted front proxy.
const DefaultAuthHeader = "X-Auth-User"

// AuthenticationError is returned when the trusted header does not map to
// an account.
type AuthenticationError struct {
	Username string
	Err      error
}

func (e *AuthenticationError) Error() string {
	if e.Username == "" {
		return "missing identity header"
	}
	return fmt.Sprintf("no account for user %q", e.Username)
}

func (e *AuthenticationError) Unwrap() error {
	return e.Err
}

// AccountResolver maps the trusted-header identity to an account.
type AccountResolver interface {
	GetAccountByUsername(ctx context.Context, username string) (*domain.Account, error)
}

type accountKey struct{}

// AccountFrom returns the account resolved by the Authenticate middleware.
func AccountFrom(ctx context.Context) (*domain.Account, bool) {
	acc, ok := ctx.Value(accountKey{}).(*domain.Account)
	return acc, ok
}

// WithAccount stores acc in ctx the way Authenticate does.
func WithAccount(ctx context.Context, acc *domain.Account) context.Context {
	return context.WithValue(ctx, accountKey{}, acc)
}

// Authenticate returns huma middleware resolving the account named by the
// trusted header. Requests without a known identity are answered with 401.
func Authenticate(api huma.API, accounts AccountResolver, header string, log *slog.Logger) func(huma.Context, func(huma.Context)) {
	if header == "" {
		header = DefaultAuthHeader
	}
	return func(ctx huma.Context, next func(huma.Context)) {
		username := ctx.Header(header)
		if username == "" {
			writeAuthError(api, ctx, &AuthenticationError{})
			return
		}

		acc, err := accounts.GetAccountByUsername(ctx.Context(), username)
		if err != nil {
			if !errors.Is(err, store.ErrNotFound) {
				log.Error("resolving account", "username", username, "error", err)
				_ = huma.WriteErr(api, ctx, http.StatusInternalServerError, "resolving account failed")
				return
			}
			writeAuthError(api, ctx, &AuthenticationError{Username: username, Err: err})
			return
		}

		next(huma.WithValue(ctx, accountKey{}, acc))
	}
}

func writeAuthError(api huma.API, ctx huma.Context, err *AuthenticationError) {
	_ = huma.WriteErr(api, ctx, http.StatusUnauthorized, err.Error())
}

// currentAccount returns the authenticated account of a request.
func currentAccount(ctx context.Context) (*domain.Account, error) {
	acc, ok := AccountFrom(ctx)
	if !ok {
		return nil, huma.Error401Unauthorized((&AuthenticationError{}).Error())
	}
	return acc, nil
}
