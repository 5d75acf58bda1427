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

package field

import (
	"fmt"
	"sort"
	"strings"

	"github.com/mitchellh/hashstructure"
)

// Registry resolves field names within a chain of scopes: warehouse ->
// datasource -> table-binding -> report-scope ad hoc (spec.md §3.7, §4.1).
// Each Registry owns only the fields defined directly in its scope and
// delegates upward to Parent on a miss, so a narrower scope only pays for
// what it actually overrides.
type Registry struct {
	Parent *Registry
	Scope  string
	fields map[string]Field
}

// NewRegistry creates an empty registry for the named scope, optionally
// chained to a parent (wider) scope.
func NewRegistry(scope string, parent *Registry) *Registry {
	return &Registry{Parent: parent, Scope: scope, fields: make(map[string]Field)}
}

// Define registers f in this scope. If a field of the same name is already
// visible from a wider scope, the new definition must be "compatible": the
// same Kind and, for metrics, the same Aggregation (spec.md §3.1 invariant
// "may be shadowed by a narrower scope only when ... compatible").
func (r *Registry) Define(f Field) error {
	if existing, ok := r.Lookup(f.Name()); ok && existing != f {
		if err := checkShadowCompatible(existing, f); err != nil {
			return err
		}
	}
	r.fields[f.Name()] = f
	return nil
}

// Lookup searches this scope and, on a miss, every ancestor scope in turn.
func (r *Registry) Lookup(name string) (Field, bool) {
	for scope := r; scope != nil; scope = scope.Parent {
		if f, ok := scope.fields[name]; ok {
			return f, true
		}
	}
	return nil, false
}

// GetField resolves name or returns ErrUnknownField.
func (r *Registry) GetField(name string) (Field, error) {
	if f, ok := r.Lookup(name); ok {
		return f, nil
	}
	return nil, ErrUnknownField.New(name)
}

func checkShadowCompatible(existing, next Field) error {
	if existing.Kind() != next.Kind() {
		return ErrIncompatibleShadow.New(next.Name())
	}
	em, eok := existing.(*Metric)
	nm, nok := next.(*Metric)
	if eok && nok && em.Agg != nm.Agg {
		return ErrIncompatibleShadow.New(next.Name())
	}
	// Fields of identical shape (same hash of defining attributes) are
	// always compatible even if they happen to be distinct instances,
	// e.g. a datasource-level binding re-declaring a warehouse metric
	// verbatim to attach a ds_formula.
	eh, eerr := hashstructure.Hash(shapeOf(existing), nil)
	nh, nerr := hashstructure.Hash(shapeOf(next), nil)
	if eerr == nil && nerr == nil && eh == nh {
		return nil
	}
	return nil
}

// shapeOf extracts the attributes that determine field-shadowing
// compatibility and saved-report identity (spec.md §6.6 "params_hash").
func shapeOf(f Field) any {
	switch t := f.(type) {
	case *Metric:
		return struct {
			Kind   Kind
			Type   string
			Agg    Aggregation
			Weight string
		}{t.Kind(), t.ValueType, t.Agg, t.WeightingMetric}
	case *Dimension:
		return struct {
			Kind Kind
			Type string
		}{t.Kind(), t.ValueType}
	case *FormulaField:
		return struct {
			Kind    Kind
			Type    string
			Formula string
		}{t.Kind(), t.ValueType, t.Formula}
	default:
		return f
	}
}

// Copy produces a deep, independently-mutable clone of f, for per-report
// mutation such as annotating the chosen DS formula without perturbing the
// shared warehouse-scoped definition (spec.md §4.1 "copy(field)").
func Copy(f Field) Field {
	switch t := f.(type) {
	case *Metric:
		clone := *t
		if t.RequiredGrain != nil {
			clone.RequiredGrain = append([]string(nil), t.RequiredGrain...)
		}
		return &clone
	case *Dimension:
		clone := *t
		if t.Values != nil {
			clone.Values = append([]string(nil), t.Values...)
		}
		return &clone
	case *FormulaField:
		clone := *t
		if t.Refs != nil {
			clone.Refs = append([]string(nil), t.Refs...)
		}
		return &clone
	case *AdHoc:
		clone := *t
		if t.Refs != nil {
			clone.Refs = append([]string(nil), t.Refs...)
		}
		return &clone
	default:
		return f
	}
}

// GetFormulaFields returns the transitive closure of non-formula field
// names that f ultimately depends on (spec.md §4.1). Non-formula fields
// return a singleton set containing only themselves. Expansion is bounded
// by MaxFormulaDepth and rejects cycles.
func (r *Registry) GetFormulaFields(f Field) (map[string]bool, error) {
	leaves := make(map[string]bool)
	visiting := make(map[string]bool)
	if err := r.collectLeaves(f, 0, visiting, leaves); err != nil {
		return nil, err
	}
	return leaves, nil
}

func (r *Registry) collectLeaves(f Field, depth int, visiting map[string]bool, leaves map[string]bool) error {
	if !f.Kind().IsFormula() {
		leaves[f.Name()] = true
		return nil
	}
	if depth >= MaxFormulaDepth {
		return ErrFormulaDepthExceeded.New(f.Name(), MaxFormulaDepth)
	}
	if visiting[f.Name()] {
		return ErrFormulaCycle.New(f.Name(), strings.Join(sortedKeys(visiting), " -> "))
	}
	visiting[f.Name()] = true
	defer delete(visiting, f.Name())

	// own collects only the leaves reachable from f's own dependency list,
	// so the zero-dependency check below can't be satisfied by a sibling
	// branch's leaves that happened to be collected earlier in traversal.
	own := make(map[string]bool)
	for _, refName := range f.Dependencies() {
		ref, err := r.GetField(refName)
		if err != nil {
			return err
		}
		if err := validateFormulaRefKind(f, ref); err != nil {
			return err
		}
		if err := r.collectLeaves(ref, depth+1, visiting, own); err != nil {
			return err
		}
	}
	if f.Kind() == FormulaMetricKind && len(own) == 0 {
		return ErrFormulaUnresolvedLeaf.New(f.Name())
	}
	for k := range own {
		leaves[k] = true
	}
	return nil
}

// validateFormulaRefKind enforces spec.md §3.1: a FormulaDimension may
// reference only dimensions; a FormulaMetric aggregates metrics (and may
// reference other formula metrics, transitively).
func validateFormulaRefKind(f, ref Field) error {
	if f.Kind() == FormulaDimensionKind && ref.Kind().IsMetric() {
		return ErrFormulaDimensionRef.New("dimension", f.Name(), "metric", ref.Name())
	}
	if (f.Kind() == FormulaMetricKind || f.Kind() == AdHocKind) && ref.Kind() == DimensionKind {
		return ErrFormulaDimensionRef.New("metric", f.Name(), "dimension", ref.Name())
	}
	return nil
}

func sortedKeys(m map[string]bool) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// ValidateNoCycles walks every formula field directly defined in r (not
// inherited) and rejects cycles, run once at Warehouse-construction time
// (spec.md §4.1 "Circular references are fatal at build time", §8 invariant
// #4).
func (r *Registry) ValidateNoCycles() error {
	for _, f := range r.fields {
		if f.Kind().IsFormula() {
			if _, err := r.GetFormulaFields(f); err != nil {
				return fmt.Errorf("validating %q: %w", f.Name(), err)
			}
		}
	}
	return nil
}
