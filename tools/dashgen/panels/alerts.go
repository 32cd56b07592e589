package panels

import (
	"github.com/grafana/grafana-foundation-sdk/go/stat"
	"github.com/grafana/grafana-foundation-sdk/go/timeseries"
)

// NotificationsRate shows inbound eBay notifications by event and status.
func NotificationsRate() *timeseries.PanelBuilder {
	return series("Inbound Notifications", "eBay platform notifications per second by event and status", TSWidth).
		WithTarget(PromQuery(
			`sum by (event, status) (rate(ebc_notifications_total{`+Job+`}[5m]))`,
			"{{event}} {{status}}", "A",
		)).
		Unit("ops")
}

// NotificationRejections shows notifications refused before dispatch.
func NotificationRejections() *stat.PanelBuilder {
	return counter24h("Rejected Notifications (24h)",
		"Notifications rejected for bad signatures, staleness or parse errors",
		`sum(increase(ebc_notification_rejections_total{`+Job+`}[24h]))`, 1, 10)
}

// TaskFailures shows background task retries and final failures.
func TaskFailures() *timeseries.PanelBuilder {
	return series("Task Retries and Failures", "Background task retries and final failures per second", TSWidth).
		WithTarget(PromQuery(`sum by (task) (ebc:task_retries:rate5m)`, "retry {{task}}", "A")).
		WithTarget(PromQuery(`sum by (task) (ebc:task_failures:rate5m)`, "failed {{task}}", "B")).
		Unit("ops")
}

// AlertFailures shows failed alert deliveries.
func AlertFailures() *stat.PanelBuilder {
	return counter24h("Alert Failures (24h)", "Failed Discord alert deliveries in the last 24 hours",
		`increase(ebc_alert_failures_total{`+Job+`}[24h])`, 1, 5)
}
