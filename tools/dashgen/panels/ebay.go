package panels

import (
	"fmt"

	"github.com/grafana/grafana-foundation-sdk/go/stat"
	"github.com/grafana/grafana-foundation-sdk/go/timeseries"
)

// APICallsRate shows eBay API calls per second by outcome.
func APICallsRate() *timeseries.PanelBuilder {
	return series("API Calls Rate", "eBay Trading and Inventory API calls per second by outcome", ThirdWidth).
		WithTarget(PromQuery(`sum by (outcome) (ebc:ebay_api_calls:rate5m)`, "{{outcome}}", "A")).
		Unit("reqps")
}

// CallLatency shows the p95 latency of each eBay call.
func CallLatency() *timeseries.PanelBuilder {
	return series("Call Latency (p95)", "95th percentile eBay API latency per call", ThirdWidth).
		WithTarget(PromQuery(
			`histogram_quantile(0.95, sum(rate(ebc_ebay_api_call_duration_seconds_bucket{`+Job+`}[5m])) by (le, call))`,
			"{{call}}", "A",
		)).
		Unit("s").
		Legend(TableLegend("mean", "max"))
}

// DailyUsage shows the rolling 24h call count against the daily limit.
func DailyUsage() *timeseries.PanelBuilder {
	return series("Daily Usage vs Limit", fmt.Sprintf("Rolling 24h eBay API call count (limit: %d)", EbayDailyLimit), ThirdWidth).
		WithTarget(PromQuery(`ebc_ebay_daily_usage{`+Job+`}`, "usage", "A")).
		Thresholds(ThresholdsGreenYellowRed(float64(EbayDailyLimit)*0.8, float64(EbayDailyLimit))).
		ColorScheme(ColorSchemeThresholds())
}

// LimitHits shows how often the daily limit was reached in the last day.
func LimitHits() *stat.PanelBuilder {
	return counter24h("Limit Hits (24h)", "Times the eBay daily limit was reached in the last 24 hours",
		`increase(ebc_ebay_daily_limit_hits_total{`+Job+`}[24h])`, 1, 3).
		Height(StatHeight).
		Span(StatWidth)
}
