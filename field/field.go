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

// Package field implements the Field Registry: the canonical catalogue of
// metrics and dimensions, formula parsing, and scope-aware field lookup
// described in spec.md §3.1, §3.2 and §4.1.
package field

import "gopkg.in/src-d/go-errors.v1"

// Kind tags the five polymorphic field variants (spec.md §9 "Polymorphic
// Fields"). A single tagged union keeps dependency introspection uniform
// without an inheritance hierarchy.
type Kind int

const (
	MetricKind Kind = iota
	FormulaMetricKind
	DimensionKind
	FormulaDimensionKind
	AdHocKind
)

func (k Kind) String() string {
	switch k {
	case MetricKind:
		return "metric"
	case FormulaMetricKind:
		return "formula_metric"
	case DimensionKind:
		return "dimension"
	case FormulaDimensionKind:
		return "formula_dimension"
	case AdHocKind:
		return "adhoc"
	default:
		return "unknown"
	}
}

// IsMetric reports whether the kind aggregates numeric measures.
func (k Kind) IsMetric() bool {
	return k == MetricKind || k == FormulaMetricKind
}

// IsFormula reports whether the kind is defined by a formula expression.
func (k Kind) IsFormula() bool {
	return k == FormulaMetricKind || k == FormulaDimensionKind || k == AdHocKind
}

// Aggregation is one of the scalar aggregation functions a Metric may carry.
type Aggregation string

const (
	Sum           Aggregation = "sum"
	Mean          Aggregation = "mean"
	Count         Aggregation = "count"
	CountDistinct Aggregation = "count_distinct"
	Min           Aggregation = "min"
	Max           Aggregation = "max"
)

// Field is the shared interface implemented by Metric, FormulaMetric,
// Dimension, FormulaDimension and AdHoc. Kind-specific behavior (DS-layer
// emission vs combined-layer emission) lives on the concrete types; callers
// that only need name/kind/dependency introspection can work against this
// interface alone.
type Field interface {
	// Name is the field's identifier, unique within its defining scope.
	Name() string
	// Kind identifies which of the five variants this Field is.
	Kind() Kind
	// Type is the field's declared data type (warehouse-level type name,
	// e.g. "int", "float", "string", "date").
	Type() string
	// Dependencies returns the names referenced by this field's formula,
	// if any. Non-formula fields return nil.
	Dependencies() []string
}

var (
	// ErrUnknownField is raised when a name doesn't resolve in any scope.
	ErrUnknownField = errors.NewKind("unknown field %q")
	// ErrIncompatibleShadow is raised when a narrower-scope definition of a
	// name isn't compatible with the wider-scope definition it shadows.
	ErrIncompatibleShadow = errors.NewKind("field %q redefined with incompatible kind or aggregation in a narrower scope")
	// ErrFormulaCycle is raised at build time when a formula's dependency
	// graph contains a cycle.
	ErrFormulaCycle = errors.NewKind("formula field %q participates in a dependency cycle: %s")
	// ErrFormulaDepthExceeded guards against runaway formula expansion.
	ErrFormulaDepthExceeded = errors.NewKind("formula field %q exceeds max expansion depth (%d)")
	// ErrFormulaUnresolvedLeaf is raised when a FormulaMetric doesn't
	// transitively resolve to any non-formula metric.
	ErrFormulaUnresolvedLeaf = errors.NewKind("formula metric %q does not resolve to any concrete metric")
	// ErrFormulaDimensionRef is raised when a FormulaDimension references a
	// metric, or a FormulaMetric references a dimension.
	ErrFormulaDimensionRef = errors.NewKind("formula %s %q may not reference %s %q")
)

// MaxFormulaDepth bounds transitive formula expansion (spec.md §4.1).
const MaxFormulaDepth = 8

// Metric is a concrete numeric measure (spec.md §3.1).
type Metric struct {
	FieldName       string
	ValueType       string
	Agg             Aggregation
	Rounding        *int
	WeightingMetric string
	IfNull          any
	HasIfNull       bool
	RequiredGrain   []string
	Technical       *Technical
	Divisors        *Divisors
}

func (m *Metric) Name() string           { return m.FieldName }
func (m *Metric) Kind() Kind             { return MetricKind }
func (m *Metric) Type() string           { return m.ValueType }
func (m *Metric) Dependencies() []string { return nil }

// IsWeighted reports whether this metric reconstructs a weighted mean
// (spec.md §4.1 "Weighted mean").
func (m *Metric) IsWeighted() bool {
	return m.Agg == Mean && m.WeightingMetric != ""
}

// Dimension is a grouping/filter field (spec.md §3.1).
type Dimension struct {
	FieldName string
	ValueType string
	Values    []string
	Sorter    func(a, b string) bool
}

func (d *Dimension) Name() string           { return d.FieldName }
func (d *Dimension) Kind() Kind             { return DimensionKind }
func (d *Dimension) Type() string           { return d.ValueType }
func (d *Dimension) Dependencies() []string { return nil }

// FormulaField is a metric or dimension defined by a formula string
// referencing other fields by `{name}` (spec.md §3.1).
type FormulaField struct {
	FieldName string
	ValueType string
	FieldKind Kind // FormulaMetricKind or FormulaDimensionKind
	Formula   string
	Refs      []string // parsed {name} references, in source order
	Rounding  *int
	Technical *Technical
}

func (f *FormulaField) Name() string           { return f.FieldName }
func (f *FormulaField) Kind() Kind             { return f.FieldKind }
func (f *FormulaField) Type() string           { return f.ValueType }
func (f *FormulaField) Dependencies() []string { return f.Refs }

// AdHoc is a FormulaField scoped to a single Report's lifetime
// (spec.md §3.1, §3.7).
type AdHoc struct {
	FormulaField
	ReportID string
}

func (a *AdHoc) Kind() Kind { return AdHocKind }

var (
	_ Field = (*Metric)(nil)
	_ Field = (*Dimension)(nil)
	_ Field = (*FormulaField)(nil)
	_ Field = (*AdHoc)(nil)
)
