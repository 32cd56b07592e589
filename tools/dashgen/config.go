package main

import "errors"

// KnownMetrics is the set of metric names exported by ebay-connector plus
// recording rule names referenced in dashboards and alerts.
var KnownMetrics = map[string]bool{
	// HTTP metrics.
	"ebc_http_request_duration_seconds": true,
	"ebc_http_requests_total":           true,
	"ebc_http_requests_in_flight":       true,

	// Health metrics.
	"ebc_healthz_up": true,
	"ebc_readyz_up":  true,

	// eBay API metrics.
	"ebc_ebay_api_calls_total":           true,
	"ebc_ebay_api_call_duration_seconds": true,
	"ebc_ebay_daily_usage":               true,
	"ebc_ebay_daily_limit_hits_total":    true,

	// Publishing metrics.
	"ebc_publish_outcomes_total": true,
	"ebc_item_updates_total":     true,

	// Sync metrics.
	"ebc_sync_records_total":           true,
	"ebc_sync_runs_total":              true,
	"ebc_sync_duration_seconds":        true,
	"ebc_sync_watermark_age_seconds":   true,
	"ebc_scheduler_next_run_timestamp": true,

	// Notification and task metrics.
	"ebc_notifications_total":           true,
	"ebc_notification_rejections_total": true,
	"ebc_task_retries_total":            true,
	"ebc_task_failures_total":           true,

	// Alert metrics.
	"ebc_alerts_fired_total":   true,
	"ebc_alert_failures_total": true,

	// Recording rules.
	"ebc:http_requests:rate5m":    true,
	"ebc:http_errors:rate5m":      true,
	"ebc:ebay_api_calls:rate5m":   true,
	"ebc:publish_outcomes:rate5m": true,
	"ebc:sync_records:rate5m":     true,
	"ebc:task_retries:rate5m":     true,
	"ebc:task_failures:rate5m":    true,

	// Standard Prometheus metrics referenced in dashboards.
	"up":                         true,
	"process_start_time_seconds": true,
}

// Config controls which artifacts the generator produces and where they go.
type Config struct {
	OutputDir        string
	DashboardEnabled bool
	RulesEnabled     bool
}

// DefaultConfig returns a Config that generates all artifacts into ../../deploy
// (relative to tools/dashgen/).
func DefaultConfig() Config {
	return Config{
		OutputDir:        "../../deploy",
		DashboardEnabled: true,
		RulesEnabled:     true,
	}
}

// Validate checks that the config is usable.
func (c Config) Validate() error {
	if c.OutputDir == "" {
		return errors.New("output directory must be set")
	}
	if !c.DashboardEnabled && !c.RulesEnabled {
		return errors.New("at least one of dashboard or rules must be enabled")
	}
	return nil
}
