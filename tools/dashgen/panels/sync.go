package panels

import (
	"github.com/grafana/grafana-foundation-sdk/go/common"
	"github.com/grafana/grafana-foundation-sdk/go/stat"
	"github.com/grafana/grafana-foundation-sdk/go/timeseries"
)

// SyncRuns shows hourly sync runs by domain and status.
func SyncRuns() *timeseries.PanelBuilder {
	return series("Sync Runs", "Sync runs per hour by domain and status", ThirdWidth).
		WithTarget(PromQuery(
			`sum by (domain, status) (increase(ebc_sync_runs_total{`+Job+`}[1h]))`,
			"{{domain}} {{status}}", "A",
		)).
		DrawStyle(common.GraphDrawStyleBars)
}

// SyncRecords shows records applied and skipped per domain.
func SyncRecords() *timeseries.PanelBuilder {
	return series("Sync Records", "Records applied or skipped per second by domain", ThirdWidth).
		WithTarget(PromQuery(`sum by (domain, result) (ebc:sync_records:rate5m)`, "{{domain}} {{result}}", "A")).
		Unit("ops").
		Legend(TableLegend("mean", "max"))
}

// SyncDuration shows the p95 run duration per domain.
func SyncDuration() *timeseries.PanelBuilder {
	return series("Sync Duration (p95)", "95th percentile sync run duration per domain", ThirdWidth).
		WithTarget(PromQuery(
			`histogram_quantile(0.95, sum(rate(ebc_sync_duration_seconds_bucket{`+Job+`}[1h])) by (le, domain))`,
			"{{domain}}", "A",
		)).
		Unit("s")
}

// WatermarkAge shows the oldest committed watermark.
func WatermarkAge() *stat.PanelBuilder {
	return single("Watermark Age", "Age of the oldest committed sync watermark", StatWidth, StatHeight).
		WithTarget(PromQuery(`max(ebc_sync_watermark_age_seconds{`+Job+`})`, "", "A")).
		Unit("s").
		Thresholds(ThresholdsGreenYellowRed(3600, 21600)).
		ColorMode(common.BigValueColorModeBackground)
}

// NextRun shows the time until each job runs next.
func NextRun() *stat.PanelBuilder {
	return single("Next Run", "Time until the next scheduled run per job", StatWidth, StatHeight).
		WithTarget(PromQuery(`ebc_scheduler_next_run_timestamp{`+Job+`} - time()`, "{{job}}", "A")).
		Unit("s").
		Thresholds(ThresholdsGreenOnly())
}
