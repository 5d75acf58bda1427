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

// Package planner implements the Planner (spec.md §4.3): given a Report's
// metrics, dimensions and criteria, it enumerates legal TableSets and
// joins per DataSource that cover each metric at the requested grain, and
// selects a minimal set of DataSource queries.
package planner

import (
	"sort"

	"gopkg.in/src-d/go-errors.v1"

	"github.com/lattice-sql/lattice/dialect"
	"github.com/lattice-sql/lattice/field"
	"github.com/lattice-sql/lattice/schema"
)

var (
	// ErrUnsupportedGrain is raised when one or more metrics cannot be
	// satisfied at the requested grain in any DataSource (spec.md §7).
	ErrUnsupportedGrain = errors.NewKind("metric(s) %v cannot be satisfied at grain %v")
)

// DataSource is the minimal view of a configured DataSource the Planner
// needs. warehouse.DataSource satisfies this interface structurally.
type DataSource interface {
	Name() string
	Priority() int
	Graph() *schema.Graph
	Registry() *field.Registry
	Dialect() *dialect.Dialect
}

// Spec is the Planner's input, derived from a Report (spec.md §4.3).
type Spec struct {
	Metrics    []string
	Dimensions []string
	Criteria   []string // field names referenced by criteria LHS
	MaxJoins   int
	MaxJoinCandidates int
}

// Query is one compiled-to-be DataSource plan (spec.md §4.3 "Output").
type Query struct {
	DataSource  DataSource
	TableSet    *schema.JoinSet
	Metrics     []*field.Metric // leaf metrics assigned to this query
	Grain       []string        // grain dimensions, in deterministic order
	UseFullColumnNames bool
}

// Plan runs the grain-satisfaction planner over datasources in priority
// order (spec.md §4.3). datasources must already be sorted by declared
// Warehouse priority (lowest index = highest priority, spec.md §3.5).
func Plan(datasources []DataSource, spec Spec) ([]*Query, error) {
	grain := ComputeGrain(datasources, spec)

	leafMetrics, err := expandMetrics(datasources, spec.Metrics)
	if err != nil {
		return nil, err
	}

	if len(leafMetrics) == 0 {
		return planPureDimensionReport(datasources, grain, spec)
	}

	candidatesByMetric := make(map[string][]metricCandidate)
	var unsatisfied []string
	for name, m := range leafMetrics {
		cands := candidatesForMetric(datasources, m, grain, spec.MaxJoins, spec.MaxJoinCandidates)
		if len(cands) == 0 {
			unsatisfied = append(unsatisfied, name)
			continue
		}
		candidatesByMetric[name] = cands
	}
	if len(unsatisfied) > 0 {
		sort.Strings(unsatisfied)
		return nil, ErrUnsupportedGrain.New(unsatisfied, grain)
	}

	return buildQueries(datasources, leafMetrics, candidatesByMetric, grain)
}

// ComputeGrain derives grain = D ∪ fields_in(K) ∪ fields_in(formula_deps(M))
// (spec.md §4.3 "Input"), expanding formula dimensions to their dimension
// leaves and including any dimension-kind leaf a metric formula happens to
// reference (in practice none, since formula metrics may only reference
// metrics — spec.md §3.1 — but the union is computed generally).
func ComputeGrain(datasources []DataSource, spec Spec) []string {
	set := make(map[string]bool)
	reg := registryOf(datasources)

	addDimLeaves := func(name string) {
		f, err := reg.GetField(name)
		if err != nil {
			return
		}
		if f.Kind() == field.DimensionKind {
			set[name] = true
			return
		}
		leaves, err := reg.GetFormulaFields(f)
		if err != nil {
			return
		}
		for leaf := range leaves {
			set[leaf] = true
		}
	}

	for _, d := range spec.Dimensions {
		addDimLeaves(d)
	}
	for _, c := range spec.Criteria {
		addDimLeaves(c)
	}
	for _, m := range spec.Metrics {
		f, err := reg.GetField(m)
		if err != nil {
			continue
		}
		leaves, err := reg.GetFormulaFields(f)
		if err != nil {
			continue
		}
		for leaf := range leaves {
			lf, err := reg.GetField(leaf)
			if err == nil && lf.Kind() == field.DimensionKind {
				set[leaf] = true
			}
		}
	}

	out := make([]string, 0, len(set))
	for d := range set {
		out = append(out, d)
	}
	sort.Strings(out)
	return out
}

func registryOf(datasources []DataSource) *field.Registry {
	if len(datasources) == 0 {
		return field.NewRegistry("empty", nil)
	}
	return datasources[0].Registry()
}

// expandMetrics resolves every requested metric name to its transitive
// closure of non-formula leaf metrics (spec.md §4.3 step 1).
func expandMetrics(datasources []DataSource, names []string) (map[string]*field.Metric, error) {
	reg := registryOf(datasources)
	out := make(map[string]*field.Metric)
	for _, name := range names {
		f, err := reg.GetField(name)
		if err != nil {
			return nil, err
		}
		leaves, err := reg.GetFormulaFields(f)
		if err != nil {
			return nil, err
		}
		for leafName := range leaves {
			leaf, err := reg.GetField(leafName)
			if err != nil {
				return nil, err
			}
			if m, ok := leaf.(*field.Metric); ok {
				out[m.Name()] = m
			}
		}
	}
	return out, nil
}
