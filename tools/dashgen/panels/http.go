package panels

import (
	"fmt"

	"github.com/grafana/grafana-foundation-sdk/go/timeseries"
)

// RequestRate shows API requests per second by route.
func RequestRate() *timeseries.PanelBuilder {
	return series("Request Rate", "API requests per second by route", TSWidth).
		WithTarget(PromQuery(
			`sum by (path) (rate(ebc_http_requests_total{`+Job+`}[5m]))`,
			"{{path}}", "A",
		)).
		Unit("reqps").
		Legend(TableLegend("mean", "max"))
}

// LatencyPercentiles shows p50, p95 and p99 request latency.
func LatencyPercentiles() *timeseries.PanelBuilder {
	p := series("Latency Percentiles", "API request duration percentiles", TSWidth).
		Unit("s").
		Legend(TableLegend("mean", "max"))
	for i, q := range []string{"0.50", "0.95", "0.99"} {
		p.WithTarget(PromQuery(
			fmt.Sprintf(`histogram_quantile(%s, sum(rate(ebc_http_request_duration_seconds_bucket{%s}[5m])) by (le))`, q, Job),
			"p"+q[2:],
			string(rune('A'+i)),
		))
	}
	return p
}

// ErrorRate shows the share of 5xx responses.
func ErrorRate() *timeseries.PanelBuilder {
	return series("Error Rate %", "API 5xx responses as percentage of all requests", TSWidth).
		WithTarget(PromQuery(`ebc:http_errors:rate5m / ebc:http_requests:rate5m * 100`, "error %", "A")).
		Unit("percent").
		Thresholds(ThresholdsGreenYellowRed(1, 5)).
		ColorScheme(ColorSchemeThresholds())
}
