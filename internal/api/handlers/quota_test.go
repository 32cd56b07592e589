package handlers_test

import (
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/danielgtaylor/huma/v2/humatest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/donaldgifford/ebay-connector/internal/api/handlers"
	"github.com/donaldgifford/ebay-connector/internal/ebay"
)

func getQuota(t *testing.T, src handlers.UsageSource) handlers.QuotaBody {
	t.Helper()
	_, api := humatest.New(t)
	handlers.RegisterQuotaRoutes(api, handlers.NewQuotaHandler(src))

	resp := api.Get("/api/v1/quota")
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	var out handlers.QuotaBody
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &out))
	return out
}

func TestGetQuota(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 6, 15, 14, 30, 0, 0, time.UTC)
	clock := ebay.WithRateLimiterNowFunc(func() time.Time { return now })

	tests := []struct {
		name  string
		daily int64
		calls int
		want  handlers.QuotaBody
	}{
		{
			name:  "untouched budget",
			daily: 5000,
			want:  handlers.QuotaBody{DailyLimit: 5000, Remaining: 5000},
		},
		{
			name:  "partly used",
			daily: 100,
			calls: 3,
			want:  handlers.QuotaBody{DailyLimit: 100, DailyUsed: 3, Remaining: 97},
		},
		{
			name:  "used up",
			daily: 2,
			calls: 2,
			want:  handlers.QuotaBody{DailyLimit: 2, DailyUsed: 2, Exhausted: true},
		},
		{
			name:  "unmetered",
			calls: 4,
			want:  handlers.QuotaBody{DailyUsed: 4},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			rl := ebay.NewRateLimiter(100, 10, tt.daily, clock)
			for range tt.calls {
				require.NoError(t, rl.Wait(t.Context()))
			}

			want := tt.want
			want.ResetAt = now.Add(24 * time.Hour)
			want.PerSecond = 100
			want.Burst = 10
			got := getQuota(t, rl)
			assert.True(t, want.ResetAt.Equal(got.ResetAt))
			got.ResetAt = want.ResetAt
			assert.Equal(t, want, got)
		})
	}
}

func TestGetQuota_WithoutLimiter(t *testing.T) {
	t.Parallel()

	assert.Equal(t, handlers.QuotaBody{}, getQuota(t, nil))
}
