// Package validate checks generated dashboards and rules against the
// metrics the connector actually exports.
package validate

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/prometheus/prometheus/promql/parser"

	"github.com/donaldgifford/ebay-connector/tools/dashgen/rules"
)

// histogramSuffixes are the series a histogram exposes under its base name.
var histogramSuffixes = []string{"_bucket", "_sum", "_count"}

// Result collects validation findings. Errors fail generation.
type Result struct {
	Errors   []error
	Warnings []string
}

// Ok reports whether no errors were found.
func (r Result) Ok() bool {
	return len(r.Errors) == 0
}

func (r *Result) merge(o Result) {
	r.Errors = append(r.Errors, o.Errors...)
	r.Warnings = append(r.Warnings, o.Warnings...)
}

// Expr parses a PromQL expression and checks every selected metric name.
func Expr(expr string, known map[string]bool) Result {
	var res Result
	node, err := parser.ParseExpr(expr)
	if err != nil {
		res.Errors = append(res.Errors, fmt.Errorf("parsing %q: %w", expr, err))
		return res
	}
	parser.Inspect(node, func(n parser.Node, _ []parser.Node) error {
		vs, ok := n.(*parser.VectorSelector)
		if !ok || vs.Name == "" {
			return nil
		}
		if !isKnown(vs.Name, known) {
			res.Errors = append(res.Errors, fmt.Errorf("unknown metric %q in %q", vs.Name, expr))
		}
		return nil
	})
	return res
}

func isKnown(name string, known map[string]bool) bool {
	if known[name] {
		return true
	}
	for _, suffix := range histogramSuffixes {
		if base, ok := strings.CutSuffix(name, suffix); ok && known[base] {
			return true
		}
	}
	return false
}

// panelJSON is the subset of a serialized panel the validator reads.
type panelJSON struct {
	Title   string      `json:"title"`
	Targets []targetRef `json:"targets"`
	Panels  []panelJSON `json:"panels"`
}

type targetRef struct {
	Expr string `json:"expr"`
}

// DashboardJSON validates every query of a serialized dashboard, including
// the panels nested in rows.
func DashboardJSON(data []byte, known map[string]bool) (Result, error) {
	var dash struct {
		Panels []panelJSON `json:"panels"`
	}
	if err := json.Unmarshal(data, &dash); err != nil {
		return Result{}, fmt.Errorf("decoding dashboard: %w", err)
	}

	var res Result
	var walk func(ps []panelJSON)
	walk = func(ps []panelJSON) {
		for _, p := range ps {
			if len(p.Panels) == 0 && len(p.Targets) == 0 {
				res.Warnings = append(res.Warnings, fmt.Sprintf("panel %q has no queries", p.Title))
			}
			for _, t := range p.Targets {
				res.merge(Expr(t.Expr, known))
			}
			walk(p.Panels)
		}
	}
	walk(dash.Panels)
	return res, nil
}

// Rules validates the expressions of a PrometheusRule. Recording rule names
// must be known too, so dashboards can reference them.
func Rules(cr rules.PrometheusRule, known map[string]bool) Result {
	var res Result
	for _, g := range cr.Spec.Groups {
		for _, r := range g.Rules {
			if r.Record != "" && !known[r.Record] {
				res.Errors = append(res.Errors, fmt.Errorf("recording rule %q is not in the known metrics", r.Record))
			}
			if r.Record == "" && r.Alert == "" {
				res.Errors = append(res.Errors, fmt.Errorf("rule in group %q has neither record nor alert", g.Name))
			}
			res.merge(Expr(r.Expr, known))
		}
	}
	return res
}
