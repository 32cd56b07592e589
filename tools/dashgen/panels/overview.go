package panels

import (
	"fmt"

	"github.com/grafana/grafana-foundation-sdk/go/common"
	"github.com/grafana/grafana-foundation-sdk/go/gauge"
	"github.com/grafana/grafana-foundation-sdk/go/stat"
)

func probe(title, metric, meaning string) *stat.PanelBuilder {
	return single(title, fmt.Sprintf("%s (1 = %s, 0 = failing)", title, meaning), StatWidth, StatHeight).
		WithTarget(PromQuery(metric, "", "A")).
		Thresholds(ThresholdsRedGreen(1)).
		ColorMode(common.BigValueColorModeBackground).
		TextMode(common.BigValueTextModeValue)
}

// HealthzStat shows the liveness probe result.
func HealthzStat() *stat.PanelBuilder {
	return probe("Healthz", `ebc_healthz_up{`+Job+`}`, "ok")
}

// ReadyzStat shows the readiness probe result, which includes the database.
func ReadyzStat() *stat.PanelBuilder {
	return probe("Readyz", `ebc_readyz_up{`+Job+`}`, "ready")
}

// QuotaGauge shows eBay API daily usage as a percentage of the limit.
func QuotaGauge() *gauge.PanelBuilder {
	return gauge.NewPanelBuilder().
		Title("eBay Quota %").
		Description("Daily eBay API usage as percentage of the configured limit").
		Datasource(DSRef()).
		Height(StatHeight).
		Span(StatWidth).
		WithTarget(PromQuery(fmt.Sprintf(`ebc_ebay_daily_usage{%s} / %d * 100`, Job, EbayDailyLimit), "", "A")).
		Unit("percent").
		Min(0).
		Max(100).
		Thresholds(ThresholdsGreenYellowRed(80, 95)).
		ColorScheme(ColorSchemeThresholds())
}

// UptimeStat shows the time since the process started.
func UptimeStat() *stat.PanelBuilder {
	return single("Uptime", "Time since process start", StatWidth, StatHeight).
		WithTarget(PromQuery(`time() - process_start_time_seconds{`+Job+`}`, "", "A")).
		Unit("s").
		Thresholds(ThresholdsGreenOnly())
}
