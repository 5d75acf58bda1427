// Copyright 2024 The Lattice Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package report_test

import (
	"context"
	"regexp"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/lattice-sql/lattice/combined"
	"github.com/lattice-sql/lattice/dialect"
	"github.com/lattice-sql/lattice/dsquery"
	"github.com/lattice-sql/lattice/field"
	"github.com/lattice-sql/lattice/planner"
	"github.com/lattice-sql/lattice/report"
	"github.com/lattice-sql/lattice/schema"
)

// salesRow is one raw row of the fake "sales" table, grounded on
// spec.md §8 scenario 1's Partner A/B/C sample scenario.
type salesRow struct {
	partnerName string
	sales       int64
	revenue     float64
}

var sampleRows = []salesRow{
	{"Partner A", 11, 165.0},
	{"Partner B", 2, 19.0},
	{"Partner C", 5, 118.5},
}

// aliasPattern extracts every "AS <alias>" from a compiled SELECT list,
// in order, so the fake connection can answer with values in whatever
// column order the compiler actually produced.
var aliasPattern = regexp.MustCompile(`AS (\w+)`)

type fakeDataSource struct {
	name     string
	graph    *schema.Graph
	registry *field.Registry
}

func (d *fakeDataSource) Name() string              { return d.name }
func (d *fakeDataSource) Priority() int             { return 0 }
func (d *fakeDataSource) Graph() *schema.Graph      { return d.graph }
func (d *fakeDataSource) Registry() *field.Registry { return d.registry }
func (d *fakeDataSource) Dialect() *dialect.Dialect { return dialect.MySQL }

type fakeRowIter struct {
	rows []dsquery.Row
	i    int
}

func (it *fakeRowIter) Next(ctx context.Context) (dsquery.Row, bool, error) {
	if it.i >= len(it.rows) {
		return nil, false, nil
	}
	row := it.rows[it.i]
	it.i++
	return row, true, nil
}
func (it *fakeRowIter) Close() error { return nil }

type fakeConn struct{}

func (c *fakeConn) ConnectionID() int64                      { return 1 }
func (c *fakeConn) Close() error                             { return nil }
func (c *fakeConn) Kill(ctx context.Context, id int64) error { return nil }

func (c *fakeConn) Query(ctx context.Context, sql string, args []any) (dsquery.RowIter, error) {
	aliases := aliasPattern.FindAllStringSubmatch(sql, -1)
	var rows []dsquery.Row
	for _, r := range sampleRows {
		row := make(dsquery.Row, len(aliases))
		for i, m := range aliases {
			switch m[1] {
			case "partner_name":
				row[i] = r.partnerName
			case "sales":
				row[i] = r.sales
			case "revenue":
				row[i] = r.revenue
			}
		}
		rows = append(rows, row)
	}
	return &fakeRowIter{rows: rows}, nil
}

type fakeConnPool struct{}

func (p *fakeConnPool) Conn(ctx context.Context, dataSourceName string) (dsquery.Conn, *dialect.Dialect, error) {
	return &fakeConn{}, dialect.MySQL, nil
}

type fakeWarehouse struct {
	datasources []planner.DataSource
	registry    *field.Registry
	pool        dsquery.ConnPool
}

func (w *fakeWarehouse) DataSources() []planner.DataSource { return w.datasources }
func (w *fakeWarehouse) Registry() *field.Registry         { return w.registry }
func (w *fakeWarehouse) ConnPool() dsquery.ConnPool        { return w.pool }
func (w *fakeWarehouse) ExecSpec() dsquery.ExecSpec        { return dsquery.ExecSpec{} }
func (w *fakeWarehouse) Logger() logrus.FieldLogger        { return logrus.StandardLogger() }

func buildSampleWarehouse(t *testing.T) *fakeWarehouse {
	t.Helper()

	salesTable := &schema.Table{
		FQN:        "sales",
		Kind:       schema.MetricTable,
		PrimaryKey: []string{"sale_id"},
		Columns: []*schema.Column{
			{Name: "partner_name", Bindings: []*schema.ColumnFieldBinding{{FieldName: "partner_name"}}},
			{Name: "sale_count", Bindings: []*schema.ColumnFieldBinding{{FieldName: "sales"}}},
			{Name: "amount", Bindings: []*schema.ColumnFieldBinding{{FieldName: "revenue"}}},
		},
	}
	graph, err := schema.NewGraph([]*schema.Table{salesTable})
	require.NoError(t, err)

	reg := field.NewRegistry("test", nil)
	require.NoError(t, reg.Define(&field.Dimension{FieldName: "partner_name", ValueType: "string"}))
	require.NoError(t, reg.Define(&field.Metric{FieldName: "sales", ValueType: "number", Agg: field.Sum}))
	require.NoError(t, reg.Define(&field.Metric{FieldName: "revenue", ValueType: "number", Agg: field.Sum}))

	ds := &fakeDataSource{name: "primary", graph: graph, registry: reg}
	return &fakeWarehouse{
		datasources: []planner.DataSource{ds},
		registry:    reg,
		pool:        &fakeConnPool{},
	}
}

func TestReportExecuteAggregatesByPartner(t *testing.T) {
	require := require.New(t)
	wh := buildSampleWarehouse(t)

	r := report.New(wh, report.Spec{
		Metrics:    []string{"sales", "revenue"},
		Dimensions: []string{"partner_name"},
	})
	result, err := r.Execute(context.Background())
	require.NoError(err)
	require.Equal(report.Finished, r.State())
	require.ElementsMatch([]string{"partner_name", "sales", "revenue"}, result.Columns)
	require.Len(result.Rows, 3)
}

// TestReportExecuteEvaluatesFormulaMetric grounds spec.md §8 scenario 5: a
// FormulaMetric requested alongside its own leaves must appear as its own
// column in the Result, evaluated at the Combined Layer.
func TestReportExecuteEvaluatesFormulaMetric(t *testing.T) {
	require := require.New(t)
	wh := buildSampleWarehouse(t)
	formula := "{revenue}/{sales}"
	require.NoError(wh.registry.Define(&field.FormulaField{
		FieldName: "rev_per_sale",
		ValueType: "float",
		FieldKind: field.FormulaMetricKind,
		Formula:   formula,
		Refs:      field.ParseFormula(formula),
	}))

	r := report.New(wh, report.Spec{
		Metrics:    []string{"revenue", "sales", "rev_per_sale"},
		Dimensions: []string{"partner_name"},
	})
	result, err := r.Execute(context.Background())
	require.NoError(err)
	require.Contains(result.Columns, "rev_per_sale")

	idx := indexOfColumn(result.Columns, "rev_per_sale")
	for _, row := range result.Rows {
		require.NotNil(row[idx])
	}
}

// TestReportExecuteAppliesRollupTotals grounds spec.md §8 scenario 3: a
// rollup spec must append a sentinel-marked subtotal row that a caller
// never sees without Execute rendering it (report.go wires combined.Rollup
// and combined.Display into the pipeline).
func TestReportExecuteAppliesRollupTotals(t *testing.T) {
	require := require.New(t)
	wh := buildSampleWarehouse(t)

	r := report.New(wh, report.Spec{
		Metrics:    []string{"sales", "revenue"},
		Dimensions: []string{"partner_name"},
		Rollup:     &combined.RollupMode{Totals: true},
	})
	result, err := r.Execute(context.Background())
	require.NoError(err)
	require.Len(result.Rows, 4)

	partnerIdx := indexOfColumn(result.Columns, "partner_name")
	salesIdx := indexOfColumn(result.Columns, "sales")
	revenueIdx := indexOfColumn(result.Columns, "revenue")

	last := result.Rows[len(result.Rows)-1]
	require.Equal("Totals", last[partnerIdx])
	require.EqualValues(18, last[salesIdx])
	require.EqualValues(302.5, last[revenueIdx])
}

// TestReportExecuteAppliesTechnicalMeanWindow grounds spec.md §8 scenario 6:
// rows before the window fills must be nil, not a partial-window average.
func TestReportExecuteAppliesTechnicalMeanWindow(t *testing.T) {
	require := require.New(t)
	wh := buildSampleWarehouse(t)

	r := report.New(wh, report.Spec{
		Metrics:    []string{"sales", "revenue"},
		Dimensions: []string{"partner_name"},
		Technicals: map[string]*field.Technical{
			"sales": {Type: field.TechMean, Window: 2, Mode: field.ModeAll},
		},
	})
	result, err := r.Execute(context.Background())
	require.NoError(err)
	require.Len(result.Rows, 3)

	salesIdx := indexOfColumn(result.Columns, "sales")
	require.Nil(result.Rows[0][salesIdx])
	require.EqualValues(6.5, result.Rows[1][salesIdx])
	require.EqualValues(3.5, result.Rows[2][salesIdx])
}

func indexOfColumn(columns []string, name string) int {
	for i, c := range columns {
		if c == name {
			return i
		}
	}
	return -1
}

func TestReportKillBeforeExecuteReturnsReportKilled(t *testing.T) {
	require := require.New(t)
	wh := buildSampleWarehouse(t)

	r := report.New(wh, report.Spec{
		Metrics:    []string{"sales"},
		Dimensions: []string{"partner_name"},
	})
	r.Kill()
	_, err := r.Execute(context.Background())
	require.Error(err)
	require.Equal(report.Killed, r.State())
}
