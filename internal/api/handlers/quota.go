package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/donaldgifford/ebay-connector/internal/ebay"
)

// UsageSource reports the eBay call budget.
type UsageSource interface {
	Usage() ebay.Usage
}

// QuotaHandler reports how much of the eBay call budget is left.
type QuotaHandler struct {
	usage UsageSource
}

// NewQuotaHandler creates a QuotaHandler. A nil source reports an
// unmetered budget.
func NewQuotaHandler(u UsageSource) *QuotaHandler {
	return &QuotaHandler{usage: u}
}

// QuotaBody is the current eBay call budget.
type QuotaBody struct {
	DailyLimit int64     `json:"daily_limit" example:"5000"                 doc:"Configured daily call limit, 0 when unmetered"`
	DailyUsed  int64     `json:"daily_used"  example:"142"                  doc:"Calls made in the current 24-hour window"`
	Remaining  int64     `json:"remaining"   example:"4858"                 doc:"Calls left in the current window"`
	Exhausted  bool      `json:"exhausted"                                  doc:"Calls are refused until reset_at"`
	ResetAt    time.Time `json:"reset_at"    example:"2026-06-16T14:30:00Z" doc:"When the current window expires"`
	PerSecond  float64   `json:"per_second"  example:"5"                    doc:"Sustained calls per second"`
	Burst      int       `json:"burst"       example:"10"                   doc:"Calls allowed in a burst"`
}

// QuotaOutput wraps QuotaBody.
type QuotaOutput struct {
	Body QuotaBody
}

// GetQuota returns the current call budget.
func (h *QuotaHandler) GetQuota(_ context.Context, _ *struct{}) (*QuotaOutput, error) {
	if h.usage == nil {
		return &QuotaOutput{}, nil
	}
	u := h.usage.Usage()
	return &QuotaOutput{Body: QuotaBody{
		DailyLimit: u.Limit,
		DailyUsed:  u.Count,
		Remaining:  u.Remaining,
		Exhausted:  u.Exhausted(),
		ResetAt:    u.ResetAt,
		PerSecond:  u.PerSecond,
		Burst:      u.Burst,
	}}, nil
}

// RegisterQuotaRoutes registers the quota endpoint.
func RegisterQuotaRoutes(api huma.API, h *QuotaHandler) {
	huma.Register(api, huma.Operation{
		OperationID: "get-quota",
		Method:      http.MethodGet,
		Path:        "/api/v1/quota",
		Summary:     "Get the eBay call budget",
		Description: "Reports calls made and left in the rolling 24-hour window along with the burst settings.",
		Tags:        []string{"ebay"},
	}, h.GetQuota)
}
