package rules

// AlertRules returns a PrometheusRule CR containing alert rules for
// ebay-connector operational monitoring.
func AlertRules() PrometheusRule {
	return PrometheusRule{
		APIVersion: "monitoring.coreos.com/v1",
		Kind:       "PrometheusRule",
		Metadata: PrometheusRuleMetadata{
			Name: "ebc-alerts",
			Labels: map[string]string{
				"prometheus": "system-rules-prometheus",
			},
		},
		Spec: PrometheusRuleSpec{
			Groups: []RuleGroup{
				{
					Name: "ebc-alerts",
					Rules: []Rule{
						{
							Alert:  "EbcDown",
							Expr:   `absent(up{job="ebay-connector"})`,
							For:    "2m",
							Labels: map[string]string{"severity": "critical"},
							Annotations: map[string]string{
								"summary":     "eBay connector is down",
								"description": "The ebay-connector job has been absent for more than 2 minutes.",
							},
						},
						{
							Alert:  "EbcReadinessDown",
							Expr:   `ebc_readyz_up == 0`,
							For:    "2m",
							Labels: map[string]string{"severity": "critical"},
							Annotations: map[string]string{
								"summary":     "eBay connector readiness check is failing",
								"description": "The readiness probe has been reporting not-ready for more than 2 minutes.",
							},
						},
						{
							Alert:  "EbcHighErrorRate",
							Expr:   `ebc:http_errors:rate5m / ebc:http_requests:rate5m > 0.05`,
							For:    "5m",
							Labels: map[string]string{"severity": "warning"},
							Annotations: map[string]string{
								"summary":     "High HTTP error rate on the eBay connector",
								"description": "More than 5% of HTTP requests are returning 5xx errors over the last 5 minutes.",
							},
						},
						{
							Alert:  "EbcPublishFailures",
							Expr:   `sum(ebc:publish_outcomes:rate5m{outcome=~"application_failed|fatal"}) > 0`,
							For:    "15m",
							Labels: map[string]string{"severity": "warning"},
							Annotations: map[string]string{
								"summary":     "Listings are failing to publish",
								"description": "Publish attempts have ended in failure for more than 15 minutes.",
							},
						},
						{
							Alert:  "EbcSyncFailing",
							Expr:   `sum by (domain) (increase(ebc_sync_runs_total{status="failed"}[1h])) > 2`,
							For:    "0m",
							Labels: map[string]string{"severity": "warning"},
							Annotations: map[string]string{
								"summary":     "Delta sync runs are failing",
								"description": "More than two sync runs of one domain failed within the last hour.",
							},
						},
						{
							Alert:  "EbcWatermarkStale",
							Expr:   `max by (domain) (ebc_sync_watermark_age_seconds) > 21600`,
							For:    "10m",
							Labels: map[string]string{"severity": "warning"},
							Annotations: map[string]string{
								"summary":     "Sync watermark has not advanced",
								"description": "A sync domain has not committed a watermark in more than six hours.",
							},
						},
						{
							Alert:  "EbcEbayQuotaHigh",
							Expr:   `ebc_ebay_daily_usage > 4000`,
							For:    "5m",
							Labels: map[string]string{"severity": "warning"},
							Annotations: map[string]string{
								"summary":     "eBay API daily usage is above 80% of the quota",
								"description": "Daily eBay API usage has exceeded 4000 calls (default limit is 5000).",
							},
						},
						{
							Alert:  "EbcEbayLimitReached",
							Expr:   `increase(ebc_ebay_daily_limit_hits_total[5m]) > 0`,
							For:    "0m",
							Labels: map[string]string{"severity": "critical"},
							Annotations: map[string]string{
								"summary":     "eBay API daily limit has been reached",
								"description": "The eBay daily call quota has been exhausted. Publishing and sync are paused until reset.",
							},
						},
						{
							Alert:  "EbcNotificationsRejected",
							Expr:   `sum(increase(ebc_notification_rejections_total{reason="signature"}[15m])) > 5`,
							For:    "0m",
							Labels: map[string]string{"severity": "warning"},
							Annotations: map[string]string{
								"summary":     "eBay notifications are failing signature checks",
								"description": "More than five notifications failed signature verification in 15 minutes.",
							},
						},
						{
							Alert:  "EbcAlertDeliveryFailures",
							Expr:   `increase(ebc_alert_failures_total[5m]) > 0`,
							For:    "1m",
							Labels: map[string]string{"severity": "warning"},
							Annotations: map[string]string{
								"summary":     "Alert delivery failures detected",
								"description": "One or more Discord alert webhooks have failed to send.",
							},
						},
					},
				},
			},
		},
	}
}
