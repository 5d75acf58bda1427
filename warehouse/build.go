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

package warehouse

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/lattice-sql/lattice/dialect"
	"github.com/lattice-sql/lattice/dsquery"
	"github.com/lattice-sql/lattice/field"
	"github.com/lattice-sql/lattice/schema"
)

// Build materializes a Config into a Warehouse: one global Field
// Registry, one DataSource (with its own child Registry and Schema
// Graph) per configured datasource, in declared priority order
// (spec.md §6.1).
func Build(id, name string, cfg *Config, store *Store, pool dsquery.ConnPool, execSpec dsquery.ExecSpec, log logrus.FieldLogger) (*Warehouse, error) {
	root := field.NewRegistry("warehouse", nil)
	for name, mc := range cfg.Metrics {
		if err := defineMetric(root, name, mc); err != nil {
			return nil, ErrInvalidConfig.New(err.Error())
		}
	}
	for name, dc := range cfg.Dimensions {
		if err := defineDimension(root, name, dc); err != nil {
			return nil, ErrInvalidConfig.New(err.Error())
		}
	}

	var datasources []*DataSource
	for dsName, dsc := range cfg.DataSources {
		ds, err := buildDataSource(dsName, dsc, root)
		if err != nil {
			return nil, ErrInvalidConfig.New(err.Error())
		}
		datasources = append(datasources, ds)
	}

	return New(id, name, root, datasources, store, pool, execSpec, log)
}

func defineMetric(reg *field.Registry, name string, mc MetricConfig) error {
	if mc.Formula != "" {
		return reg.Define(&field.FormulaField{
			FieldName: name, ValueType: mc.Type, FieldKind: field.FormulaMetricKind,
			Formula: mc.Formula, Refs: field.ParseFormula(mc.Formula), Rounding: mc.Rounding,
			Technical: parseTechnical(mc.Technical),
		})
	}
	m := &field.Metric{
		FieldName: name, ValueType: mc.Type, Agg: aggOf(mc.Aggregation),
		Rounding: mc.Rounding, WeightingMetric: mc.WeightingMetric,
		RequiredGrain: mc.RequiredGrain, Technical: parseTechnical(mc.Technical),
	}
	if mc.Divisors != nil {
		m.Divisors = &field.Divisors{Metrics: mc.Divisors.Metrics, Formula: mc.Divisors.Formula}
	}
	if err := reg.Define(m); err != nil {
		return err
	}
	if m.Divisors != nil {
		variants, err := field.ExpandDivisors(m)
		if err != nil {
			return err
		}
		for _, v := range variants {
			if err := reg.Define(v); err != nil {
				return err
			}
		}
	}
	return nil
}

func defineDimension(reg *field.Registry, name string, dc DimConfig) error {
	if dc.Formula != "" {
		return reg.Define(&field.FormulaField{
			FieldName: name, ValueType: dc.Type, FieldKind: field.FormulaDimensionKind,
			Formula: dc.Formula, Refs: field.ParseFormula(dc.Formula),
		})
	}
	return reg.Define(&field.Dimension{FieldName: name, ValueType: dc.Type})
}

func parseTechnical(spec string) *field.Technical {
	if spec == "" {
		return nil
	}
	return &field.Technical{Type: field.TechnicalType(spec), Mode: field.ModeGroup}
}

func buildDataSource(name string, dsc DSConfig, root *field.Registry) (*DataSource, error) {
	dsReg := field.NewRegistry(name, root)
	for fname, mc := range dsc.Metrics {
		if err := defineMetric(dsReg, fname, mc); err != nil {
			return nil, err
		}
	}
	for fname, dc := range dsc.Dimensions {
		if err := defineDimension(dsReg, fname, dc); err != nil {
			return nil, err
		}
	}

	var tables []*schema.Table
	for tname, tc := range dsc.Tables {
		tables = append(tables, buildTable(tname, tc))
	}
	graph, err := schema.NewGraph(tables)
	if err != nil {
		return nil, fmt.Errorf("building schema graph for datasource %q: %w", name, err)
	}

	d := dialect.MySQL
	if dsc.Dialect == "combined" {
		d = dialect.Combined
	}

	dsn := dsc.Connect.URL
	if dsc.Connect.Func != "" {
		dsn = fmt.Sprintf("func:%s", dsc.Connect.Func)
	}

	return &DataSource{
		DSName: name, DSPriority: dsc.Priority, DSGraph: graph, DSRegistry: dsReg,
		DSDialect: d, ConnDSN: dsn,
	}, nil
}

func buildTable(name string, tc TableConfig) *schema.Table {
	kind := schema.MetricTable
	if tc.Type == "dimension" {
		kind = schema.DimensionTable
	}
	t := &schema.Table{
		FQN: name, Kind: kind, Parent: tc.Parent, Siblings: tc.Siblings,
		PrimaryKey: tc.PrimaryKey, IncompleteDimensions: tc.IncompleteDimensions,
		Priority: tc.Priority, UseFullColumnNames: tc.UseFullColumnNames,
	}
	for colName, cc := range tc.Columns {
		col := &schema.Column{Name: colName}
		for _, fref := range cc.Fields {
			col.Bindings = append(col.Bindings, &schema.ColumnFieldBinding{
				FieldName: fref.Name, DSFormula: fref.DSFormula, RequiredGrain: fref.RequiredGrain,
				AllowTypeConversions: cc.AllowTypeConversions, TypeConversionPrefix: cc.TypeConversionPrefix,
				TimePart:              dialect.TimePart(fref.TimePart),
				DSCriteriaConversions: criteriaConversionsOf(fref.DSCriteriaConversions),
			})
		}
		t.Columns = append(t.Columns, col)
	}
	return t
}

// criteriaConversionsOf turns declarative per-operator rewrite configs into
// the Rewrite closures schema.ColumnFieldBinding needs (spec.md §3.2).
func criteriaConversionsOf(configs []CriteriaConversionConfig) map[dialect.Operator]schema.CriteriaConversion {
	if len(configs) == 0 {
		return nil
	}
	out := make(map[dialect.Operator]schema.CriteriaConversion, len(configs))
	for _, cc := range configs {
		cc := cc
		op := dialect.Operator(cc.Operator)
		out[op] = schema.CriteriaConversion{
			Operator: op,
			Rewrite: func(value any) (string, dialect.Operator, any) {
				v := toFloat64(value)
				rewritten := v + cc.Offset
				if cc.Negate {
					rewritten = cc.Offset - v
				}
				return cc.Column, op, rewritten
			},
		}
	}
	return out
}

func toFloat64(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case float32:
		return float64(n)
	case int:
		return float64(n)
	case int64:
		return float64(n)
	default:
		return 0
	}
}
