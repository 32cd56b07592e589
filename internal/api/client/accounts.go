package client

import (
	"context"

	domain "github.com/donaldgifford/ebay-connector/pkg/types"
)

// GetAccount returns the caller's account.
func (c *Client) GetAccount(ctx context.Context) (*domain.Account, error) {
	var acc domain.Account
	if err := c.get(ctx, "/api/v1/accounts", nil, &acc); err != nil {
		return nil, err
	}
	return &acc, nil
}
