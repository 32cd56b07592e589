package rules

// RecordingRules returns a PrometheusRule CR containing pre-computed rate
// expressions used by dashboards and alert rules.
func RecordingRules() PrometheusRule {
	return PrometheusRule{
		APIVersion: "monitoring.coreos.com/v1",
		Kind:       "PrometheusRule",
		Metadata: PrometheusRuleMetadata{
			Name: "ebc-recording-rules",
			Labels: map[string]string{
				"prometheus": "system-rules-prometheus",
			},
		},
		Spec: PrometheusRuleSpec{
			Groups: []RuleGroup{
				{
					Name: "ebc-recording",
					Rules: []Rule{
						{
							Record: "ebc:http_requests:rate5m",
							Expr:   `sum(rate(ebc_http_requests_total[5m]))`,
						},
						{
							Record: "ebc:http_errors:rate5m",
							Expr:   `sum(rate(ebc_http_requests_total{status=~"5.."}[5m]))`,
						},
						{
							Record: "ebc:ebay_api_calls:rate5m",
							Expr:   `sum by (call, outcome) (rate(ebc_ebay_api_calls_total[5m]))`,
						},
						{
							Record: "ebc:publish_outcomes:rate5m",
							Expr:   `sum by (outcome) (rate(ebc_publish_outcomes_total[5m]))`,
						},
						{
							Record: "ebc:sync_records:rate5m",
							Expr:   `sum by (domain, result) (rate(ebc_sync_records_total[5m]))`,
						},
						{
							Record: "ebc:task_retries:rate5m",
							Expr:   `sum by (task) (rate(ebc_task_retries_total[5m]))`,
						},
						{
							Record: "ebc:task_failures:rate5m",
							Expr:   `sum by (task) (rate(ebc_task_failures_total[5m]))`,
						},
					},
				},
			},
		},
	}
}
