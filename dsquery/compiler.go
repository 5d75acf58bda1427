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

package dsquery

import (
	"fmt"
	"sort"
	"strings"

	"github.com/lattice-sql/lattice/dialect"
	"github.com/lattice-sql/lattice/field"
	"github.com/lattice-sql/lattice/planner"
	"github.com/lattice-sql/lattice/schema"
)

// ColumnSpec describes one SELECT-list entry of a compiled DataSource
// query, used by the Combined Layer to understand the shape of the result
// it is about to ingest (spec.md §4.3 "a schema for how the Combined
// Layer will ingest the result").
type ColumnSpec struct {
	Name        string
	FieldName   string
	IsGrain     bool
	IsWeightNum bool
	IsWeightDen bool
}

// Compiled is one fully-built DataSource-layer SQL query
// (spec.md §4.4 "Compilation").
type Compiled struct {
	Query   *planner.Query
	SQL     string
	Args    []any
	Columns []ColumnSpec
}

// Compile builds the SQL for one planner.Query: SELECT grain dimensions
// (with type conversions applied), aggregated metrics (ds_formula or
// agg(column), weighted metrics as two synthetic sums), FROM/JOIN over the
// chosen TableSet, translated criteria, and GROUP BY (spec.md §4.4).
func Compile(q *planner.Query, d *dialect.Dialect, criteria []dialect.Criterion) (*Compiled, error) {
	var selectCols []string
	var columns []ColumnSpec
	var args []any

	anchor := q.TableSet.MetricTable

	for _, dim := range q.Grain {
		table, col, binding := resolveGrainColumn(q.TableSet, dim)
		if table == nil {
			return nil, fmt.Errorf("dimension %q not bound to any table in chosen table set", dim)
		}
		ref := qualify(table, col)
		expr := ref
		if binding.TimePart != "" && d.SupportsTypeConversion && d.TimePartExpr != nil {
			expr = d.TimePartExpr(ref, binding.TimePart)
		}
		selectCols = append(selectCols, fmt.Sprintf("%s AS %s", expr, dim))
		columns = append(columns, ColumnSpec{Name: dim, FieldName: dim, IsGrain: true})
	}

	for _, m := range q.Metrics {
		cols, err := compileMetric(q.TableSet, m)
		if err != nil {
			return nil, err
		}
		for _, c := range cols {
			selectCols = append(selectCols, c.expr)
			columns = append(columns, c.spec)
		}
	}

	from := fmt.Sprintf("%s", anchor.FQN)
	joinClause, err := buildJoinClause(q.TableSet)
	if err != nil {
		return nil, err
	}

	where, whereArgs, err := compileCriteria(q.TableSet, d, criteria)
	if err != nil {
		return nil, err
	}
	args = append(args, whereArgs...)

	groupBy := strings.Join(q.Grain, ", ")

	var b strings.Builder
	fmt.Fprintf(&b, "SELECT %s FROM %s", strings.Join(selectCols, ", "), from)
	if joinClause != "" {
		b.WriteString(" " + joinClause)
	}
	if where != "" {
		fmt.Fprintf(&b, " WHERE %s", where)
	}
	if groupBy != "" {
		fmt.Fprintf(&b, " GROUP BY %s", groupBy)
	}

	return &Compiled{Query: q, SQL: b.String(), Args: args, Columns: columns}, nil
}

type metricColumn struct {
	expr string
	spec ColumnSpec
}

func compileMetric(ts *schema.JoinSet, m *field.Metric) ([]metricColumn, error) {
	table, col, binding := resolveMetricColumn(ts, m.Name())
	if table == nil {
		return nil, fmt.Errorf("metric %q not bound to any table in chosen table set", m.Name())
	}
	ref := qualify(table, col)

	aggExpr := func(ref string) string {
		if binding.DSFormula != "" {
			return binding.DSFormula
		}
		if m.Agg == field.CountDistinct {
			return fmt.Sprintf("COUNT(DISTINCT %s)", ref)
		}
		return fmt.Sprintf("%s(%s)", sqlAggName(m.Agg), ref)
	}

	if m.IsWeighted() {
		wTable, wCol, _ := resolveMetricColumn(ts, m.WeightingMetric)
		if wTable == nil {
			return nil, fmt.Errorf("weighting metric %q not bound to any table in chosen table set", m.WeightingMetric)
		}
		wRef := qualify(wTable, wCol)
		num := fmt.Sprintf("SUM(%s * %s) AS %s", ref, wRef, field.NumeratorName(m.Name()))
		den := fmt.Sprintf("SUM(%s) AS %s", wRef, field.DenominatorName(m.Name()))
		return []metricColumn{
			{expr: num, spec: ColumnSpec{Name: field.NumeratorName(m.Name()), FieldName: m.Name(), IsWeightNum: true}},
			{expr: den, spec: ColumnSpec{Name: field.DenominatorName(m.Name()), FieldName: m.Name(), IsWeightDen: true}},
		}, nil
	}

	expr := aggExpr(ref)
	if m.HasIfNull {
		expr = fmt.Sprintf("IFNULL(%s, %v)", expr, m.IfNull)
	}
	return []metricColumn{
		{expr: fmt.Sprintf("%s AS %s", expr, m.Name()), spec: ColumnSpec{Name: m.Name(), FieldName: m.Name()}},
	}, nil
}

func sqlAggName(a field.Aggregation) string {
	switch a {
	case field.Sum:
		return "SUM"
	case field.Mean:
		return "AVG"
	case field.Count:
		return "COUNT"
	case field.CountDistinct:
		return "COUNT" // compileMetric special-cases CountDistinct before calling this
	case field.Min:
		return "MIN"
	case field.Max:
		return "MAX"
	default:
		return "SUM"
	}
}

func resolveGrainColumn(ts *schema.JoinSet, dim string) (*schema.Table, *schema.Column, *schema.ColumnFieldBinding) {
	for _, t := range ts.Tables() {
		for _, c := range t.ColumnsFor(dim) {
			b, _ := c.BindingFor(dim)
			return t, c, b
		}
	}
	return nil, nil, nil
}

func resolveMetricColumn(ts *schema.JoinSet, name string) (*schema.Table, *schema.Column, *schema.ColumnFieldBinding) {
	return resolveGrainColumn(ts, name)
}

func qualify(t *schema.Table, c *schema.Column) string {
	return fmt.Sprintf("%s.%s", t.FQN, c.Name)
}

// buildJoinClause renders JOIN clauses over the TableSet's join chain. Each
// non-anchor table is attached to its declared parent (if present in the
// set) or a declared sibling, joined on their shared primary key
// (spec.md §4.2 rules 1-3, §3.3 "siblings ... sharing a primary key").
func buildJoinClause(ts *schema.JoinSet) (string, error) {
	if len(ts.Joins) == 0 {
		return "", nil
	}
	byFQN := make(map[string]*schema.Table)
	for _, t := range ts.Tables() {
		byFQN[t.FQN] = t
	}

	joins := append([]*schema.Table(nil), ts.Joins...)
	sort.Slice(joins, func(i, j int) bool { return joins[i].FQN < joins[j].FQN })

	var b strings.Builder
	for _, t := range joins {
		partner := joinPartner(t, byFQN)
		if partner == nil {
			return "", fmt.Errorf("no join edge found for table %q in chosen table set", t.FQN)
		}
		onCols := sharedPrimaryKey(t, partner)
		var conds []string
		for _, dim := range onCols {
			_, pc, _ := pkColumn(partner, dim)
			_, tc, _ := pkColumn(t, dim)
			conds = append(conds, fmt.Sprintf("%s.%s = %s.%s", partner.FQN, pc.Name, t.FQN, tc.Name))
		}
		fmt.Fprintf(&b, " JOIN %s ON %s", t.FQN, strings.Join(conds, " AND "))
	}
	return strings.TrimSpace(b.String()), nil
}

func joinPartner(t *schema.Table, set map[string]*schema.Table) *schema.Table {
	if t.Parent != "" {
		if p, ok := set[t.Parent]; ok {
			return p
		}
	}
	for _, sibName := range t.Siblings {
		if s, ok := set[sibName]; ok {
			return s
		}
	}
	return nil
}

func sharedPrimaryKey(a, b *schema.Table) []string {
	bset := make(map[string]bool, len(b.PrimaryKey))
	for _, d := range b.PrimaryKey {
		bset[d] = true
	}
	var out []string
	for _, d := range a.PrimaryKey {
		if bset[d] {
			out = append(out, d)
		}
	}
	if len(out) == 0 {
		// parent/child joins use the child's FK, named after the parent's
		// own primary key dimension(s), even when not itself part of the
		// child's declared PK (e.g. "sales" joining up to "leads" on
		// lead_id while sales' PK is sale_id).
		return b.PrimaryKey
	}
	return out
}

func pkColumn(t *schema.Table, dim string) (*schema.Table, *schema.Column, *schema.ColumnFieldBinding) {
	cols := t.ColumnsFor(dim)
	if len(cols) == 0 {
		return t, &schema.Column{Name: dim}, nil
	}
	b, _ := cols[0].BindingFor(dim)
	return t, cols[0], b
}
