package ebay

import (
	"context"
	"strings"
)

type exchangeKey struct{}

// Exchange captures the raw request and response documents of the calls made
// with a context returned by WithExchange. Tokens are redacted.
type Exchange struct {
	Request  string
	Response string
}

// WithExchange returns a context whose eBay calls record their payloads
// into ex. The last call wins.
func WithExchange(ctx context.Context, ex *Exchange) context.Context {
	return context.WithValue(ctx, exchangeKey{}, ex)
}

func exchangeFrom(ctx context.Context) *Exchange {
	ex, _ := ctx.Value(exchangeKey{}).(*Exchange)
	return ex
}

func (ex *Exchange) recordRequest(body []byte, token string) {
	if ex == nil {
		return
	}
	s := string(body)
	if token != "" {
		s = strings.ReplaceAll(s, token, "***")
	}
	ex.Request = s
	ex.Response = ""
}

func (ex *Exchange) recordResponse(body []byte) {
	if ex == nil {
		return
	}
	ex.Response = string(body)
}
