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

// Package schema implements the Schema Graph (spec.md §4.2): tables, their
// column-to-field bindings, and the declared parent/sibling relationships
// that the Planner walks to find legal join paths.
package schema

import "github.com/lattice-sql/lattice/dialect"

// TableKind distinguishes fact (metric) tables from pure dimension tables
// (spec.md §3.3).
type TableKind string

const (
	MetricTable    TableKind = "metric"
	DimensionTable TableKind = "dimension"
)

// CriteriaConversion rewrites a WHERE predicate on a bound field into the
// physical column's own terms, e.g. `age = 5` -> `birth_year = 2020-5`
// (spec.md §3.2).
type CriteriaConversion struct {
	Operator dialect.Operator
	Rewrite  func(value any) (column string, op dialect.Operator, rewritten any)
}

// ColumnFieldBinding attaches a physical Column to a Field it can produce
// (spec.md §3.2).
type ColumnFieldBinding struct {
	FieldName             string
	DSFormula              string // e.g. "COUNT(DISTINCT sales.id)"
	DSCriteriaConversions  map[dialect.Operator]CriteriaConversion
	RequiredGrain          []string
	AllowTypeConversions   bool
	TypeConversionPrefix   string
	DisabledTypeConversions []dialect.TimePart

	// TimePart, when set, means this binding's field is a dialect
	// type-conversion expansion (spec.md §4.4) of the underlying column,
	// e.g. a "year" dimension bound to a "created_at" column with
	// TimePart=dialect.PartYear. The DataSource compiler emits
	// dialect.TimePartExpr(column, TimePart) for SELECT, and prefers
	// dialect.InvertValue over wrapping the column in WHERE.
	TimePart dialect.TimePart
}

// Column is a single physical column of a Table.
type Column struct {
	Name     string
	Bindings []*ColumnFieldBinding
}

// BindingFor returns the binding attaching fieldName to this column, if any.
func (c *Column) BindingFor(fieldName string) (*ColumnFieldBinding, bool) {
	for _, b := range c.Bindings {
		if b.FieldName == fieldName {
			return b, true
		}
	}
	return nil, false
}

// Table is a physical table in one DataSource (spec.md §3.3).
type Table struct {
	FQN                  string
	Kind                 TableKind
	Parent               string // FQN of the parent table, empty if none
	Siblings             []string
	PrimaryKey           []string
	IncompleteDimensions []string
	Priority             int
	UseFullColumnNames   bool
	PrefixWith           string
	Columns              []*Column
}

// ColumnsFor returns every column bound to fieldName on this table.
func (t *Table) ColumnsFor(fieldName string) []*Column {
	var out []*Column
	for _, c := range t.Columns {
		if _, ok := c.BindingFor(fieldName); ok {
			out = append(out, c)
		}
	}
	return out
}

// HasColumn reports whether any column on t binds fieldName.
func (t *Table) HasColumn(fieldName string) bool {
	return len(t.ColumnsFor(fieldName)) > 0
}

// hasColumn is the internal alias used by ProvidesAtGrain.
func (t *Table) hasColumn(fieldName string) bool {
	return t.HasColumn(fieldName)
}

// isIncomplete reports whether dim is in t's declared incomplete-dimensions
// set (present on the table, but not guaranteed at primary-key granularity).
func (t *Table) isIncomplete(dim string) bool {
	for _, d := range t.IncompleteDimensions {
		if d == dim {
			return true
		}
	}
	return false
}

// inPrimaryKey reports whether dim is part of t's declared primary key.
func (t *Table) inPrimaryKey(dim string) bool {
	for _, d := range t.PrimaryKey {
		if d == dim {
			return true
		}
	}
	return false
}

// ProvidesAtGrain implements spec.md §4.2 rule 4: a dimension d is provided
// by table t directly (no join needed) iff d is bound to some column of t,
// and either d is in t's primary key, or d is declared at PK granularity
// (not in IncompleteDimensions), or t is a pure dimension table.
func (t *Table) ProvidesAtGrain(dim string) bool {
	if !t.hasColumn(dim) {
		return false
	}
	if t.inPrimaryKey(dim) {
		return true
	}
	if t.Kind == DimensionTable {
		return true
	}
	return !t.isIncomplete(dim)
}
