package panels

import "github.com/grafana/grafana-foundation-sdk/go/timeseries"

// PublishOutcomes shows listing publish attempts by outcome.
func PublishOutcomes() *timeseries.PanelBuilder {
	return series("Publish Outcomes", "Listing publish attempts per second by outcome", TSWidth).
		WithTarget(PromQuery(`sum by (outcome) (ebc:publish_outcomes:rate5m)`, "{{outcome}}", "A")).
		Unit("ops").
		Legend(TableLegend("mean", "max"))
}

// ItemUpdates shows stock and price updates applied against eBay by final
// status.
func ItemUpdates() *timeseries.PanelBuilder {
	return series("Item Updates", "Item updates per second by final status", TSWidth).
		WithTarget(PromQuery(`sum by (status) (rate(ebc_item_updates_total{`+Job+`}[5m]))`, "{{status}}", "A")).
		Unit("ops")
}
