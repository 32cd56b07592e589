// Package dashboards assembles Grafana dashboard definitions from panel builders.
package dashboards

import (
	"github.com/grafana/grafana-foundation-sdk/go/dashboard"

	"github.com/donaldgifford/ebay-connector/tools/dashgen/panels"
)

// BuildOverview constructs the connector overview dashboard with all metric
// rows.
func BuildOverview() *dashboard.DashboardBuilder {
	b := dashboard.NewDashboardBuilder("eBay Connector Overview").
		Uid("ebc-overview").
		Tags([]string{"ebc", "ebay-connector"}).
		Refresh("30s").
		Time("now-6h", "now").
		Timezone("browser").
		Editable().
		Tooltip(dashboard.DashboardCursorSyncCrosshair).
		WithVariable(datasourceVar())

	b.WithRow(dashboard.NewRowBuilder("Overview").
		WithPanel(panels.HealthzStat()).
		WithPanel(panels.ReadyzStat()).
		WithPanel(panels.QuotaGauge()).
		WithPanel(panels.UptimeStat()))

	b.WithRow(dashboard.NewRowBuilder("HTTP").
		WithPanel(panels.RequestRate()).
		WithPanel(panels.LatencyPercentiles()).
		WithPanel(panels.ErrorRate()))

	b.WithRow(dashboard.NewRowBuilder("eBay API").
		WithPanel(panels.APICallsRate()).
		WithPanel(panels.CallLatency()).
		WithPanel(panels.DailyUsage()).
		WithPanel(panels.LimitHits()))

	b.WithRow(dashboard.NewRowBuilder("Publishing").
		WithPanel(panels.PublishOutcomes()).
		WithPanel(panels.ItemUpdates()))

	b.WithRow(dashboard.NewRowBuilder("Sync").
		WithPanel(panels.SyncRuns()).
		WithPanel(panels.SyncRecords()).
		WithPanel(panels.SyncDuration()).
		WithPanel(panels.WatermarkAge()).
		WithPanel(panels.NextRun()))

	b.WithRow(dashboard.NewRowBuilder("Notifications & Tasks").
		WithPanel(panels.NotificationsRate()).
		WithPanel(panels.NotificationRejections()).
		WithPanel(panels.TaskFailures()).
		WithPanel(panels.AlertFailures()))

	return b
}

func datasourceVar() *dashboard.DatasourceVariableBuilder {
	return dashboard.NewDatasourceVariableBuilder("datasource").
		Label("Datasource").
		Type("prometheus")
}
