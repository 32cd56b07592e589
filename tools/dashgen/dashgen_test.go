package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/donaldgifford/ebay-connector/tools/dashgen/dashboards"
	"github.com/donaldgifford/ebay-connector/tools/dashgen/rules"
	"github.com/donaldgifford/ebay-connector/tools/dashgen/validate"
)

func TestDefaultConfigValid(t *testing.T) {
	t.Parallel()
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
}

func TestConfigValidate_EmptyOutputDir(t *testing.T) {
	t.Parallel()
	cfg := Config{OutputDir: "", DashboardEnabled: true}
	assert.Error(t, cfg.Validate())
}

func TestConfigValidate_NothingEnabled(t *testing.T) {
	t.Parallel()
	cfg := Config{OutputDir: "/tmp", DashboardEnabled: false, RulesEnabled: false}
	assert.Error(t, cfg.Validate())
}

func TestBuildOverviewDashboard(t *testing.T) {
	t.Parallel()

	dash, err := dashboards.BuildOverview().Build()
	require.NoError(t, err)

	require.NotNil(t, dash.Uid)
	assert.Equal(t, "ebc-overview", *dash.Uid)

	require.NotNil(t, dash.Title)
	assert.Equal(t, "eBay Connector Overview", *dash.Title)

	require.NotNil(t, dash.Templating)
	assert.Len(t, dash.Templating.List, 1)
	assert.Equal(t, "datasource", dash.Templating.List[0].Name)

	assert.Len(t, dash.Panels, 6)

	totalPanels := 0
	for _, p := range dash.Panels {
		if p.RowPanel != nil {
			totalPanels += len(p.RowPanel.Panels)
		}
	}
	assert.Equal(t, 22, totalPanels)
}

func TestRecordingRules(t *testing.T) {
	t.Parallel()

	cr := rules.RecordingRules()
	assert.Equal(t, "monitoring.coreos.com/v1", cr.APIVersion)
	assert.Equal(t, "PrometheusRule", cr.Kind)
	assert.Equal(t, "ebc-recording-rules", cr.Metadata.Name)

	require.Len(t, cr.Spec.Groups, 1)
	group := cr.Spec.Groups[0]
	assert.Equal(t, "ebc-recording", group.Name)
	require.Len(t, group.Rules, 7)

	for _, rule := range group.Rules {
		assert.True(t, strings.HasPrefix(rule.Record, "ebc:"), rule.Record)
		assert.NotEmpty(t, rule.Expr)
	}

	result := validate.Rules(cr, KnownMetrics)
	assert.True(t, result.Ok(), "validation errors: %v", result.Errors)

	data, err := yaml.Marshal(cr)
	require.NoError(t, err)
	assert.Contains(t, string(data), "apiVersion: monitoring.coreos.com/v1")
}

func TestAlertRules(t *testing.T) {
	t.Parallel()

	cr := rules.AlertRules()
	assert.Equal(t, "ebc-alerts", cr.Metadata.Name)

	require.Len(t, cr.Spec.Groups, 1)
	group := cr.Spec.Groups[0]
	require.Len(t, group.Rules, 10)

	for _, rule := range group.Rules {
		assert.True(t, strings.HasPrefix(rule.Alert, "Ebc"), rule.Alert)
		assert.NotEmpty(t, rule.Labels["severity"], "alert %s missing severity", rule.Alert)
		assert.NotEmpty(t, rule.Annotations["summary"], "alert %s missing summary", rule.Alert)
		assert.NotEmpty(t, rule.Annotations["description"], "alert %s missing description", rule.Alert)
	}

	result := validate.Rules(cr, KnownMetrics)
	assert.True(t, result.Ok(), "validation errors: %v", result.Errors)
}

func TestValidateExpr(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		expr   string
		wantOk bool
	}{
		{name: "known counter", expr: `rate(ebc_sync_runs_total[5m])`, wantOk: true},
		{name: "histogram bucket", expr: `histogram_quantile(0.95, sum(rate(ebc_sync_duration_seconds_bucket[5m])) by (le))`, wantOk: true},
		{name: "recording rule", expr: `ebc:http_errors:rate5m / ebc:http_requests:rate5m`, wantOk: true},
		{name: "unknown metric", expr: `rate(ebc_listings_scraped_total[5m])`},
		{name: "syntax error", expr: `sum(rate(ebc_sync_runs_total[5m])`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			res := validate.Expr(tt.expr, KnownMetrics)
			assert.Equal(t, tt.wantOk, res.Ok(), "errors: %v", res.Errors)
		})
	}
}

func TestRun_WritesArtifacts(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	require.NoError(t, run(Config{OutputDir: dir, DashboardEnabled: true, RulesEnabled: true}, false))

	dash, err := os.ReadFile(filepath.Join(dir, "grafana", "data", "ebc-overview.json"))
	require.NoError(t, err)
	assert.Contains(t, string(dash), `"uid": "ebc-overview"`)

	res, err := validate.DashboardJSON(dash, KnownMetrics)
	require.NoError(t, err)
	assert.True(t, res.Ok(), "validation errors: %v", res.Errors)
	assert.Empty(t, res.Warnings)

	for _, name := range []string{"ebc-recording-rules.yaml", "ebc-alerts.yaml"} {
		data, err := os.ReadFile(filepath.Join(dir, "prometheus", name))
		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(string(data), generatedHeader), name)
	}
}

func TestRun_ValidateOnlyWritesNothing(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	require.NoError(t, run(Config{OutputDir: dir, DashboardEnabled: true, RulesEnabled: true}, true))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}
