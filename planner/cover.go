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

package planner

import (
	"sort"

	"github.com/lattice-sql/lattice/field"
	"github.com/lattice-sql/lattice/schema"
)

// metricCandidate is one (DataSource, TableSet) pair able to satisfy a
// single leaf metric at the requested grain.
type metricCandidate struct {
	ds       DataSource
	dsIndex  int
	tableSet *schema.JoinSet
}

// candidatesForMetric finds every (DataSource, TableSet) able to produce m
// at grain, across all datasources, honoring m.RequiredGrain
// (spec.md §4.3 step 2).
func candidatesForMetric(datasources []DataSource, m *field.Metric, grain []string, maxJoins, maxCandidates int) []metricCandidate {
	if len(m.RequiredGrain) > 0 && !subset(m.RequiredGrain, grain) {
		return nil
	}

	var out []metricCandidate
	for dsIdx, ds := range datasources {
		g := ds.Graph()
		for _, t := range g.Tables() {
			if t.Kind != schema.MetricTable {
				continue
			}
			if !t.HasColumn(m.Name()) {
				continue
			}
			covers := g.PossibleJoins(t, grain, maxJoins, maxCandidates)
			for _, js := range covers {
				out = append(out, metricCandidate{ds: ds, dsIndex: dsIdx, tableSet: js})
			}
		}
	}
	return out
}

func subset(needles, haystack []string) bool {
	set := make(map[string]bool, len(haystack))
	for _, h := range haystack {
		set[h] = true
	}
	for _, n := range needles {
		if !set[n] {
			return false
		}
	}
	return true
}

// buildQueries implements spec.md §4.3 steps 3 and 6: pin each metric to
// the earliest-priority DataSource able to satisfy it, then greedily
// minimize the number of queries issued within that DataSource.
func buildQueries(datasources []DataSource, leafMetrics map[string]*field.Metric, candidatesByMetric map[string][]metricCandidate, grain []string) ([]*Query, error) {
	// Step 6: pin each metric to its best (lowest dsIndex) DataSource.
	byDS := make(map[int][]string) // dsIndex -> metric names assigned
	restricted := make(map[string][]metricCandidate)
	for name, cands := range candidatesByMetric {
		best := cands[0].dsIndex
		for _, c := range cands {
			if c.dsIndex < best {
				best = c.dsIndex
			}
		}
		var filtered []metricCandidate
		for _, c := range cands {
			if c.dsIndex == best {
				filtered = append(filtered, c)
			}
		}
		restricted[name] = filtered
		byDS[best] = append(byDS[best], name)
	}

	var dsIndices []int
	for idx := range byDS {
		dsIndices = append(dsIndices, idx)
	}
	sort.Ints(dsIndices)

	var queries []*Query
	for _, dsIdx := range dsIndices {
		names := byDS[dsIdx]
		sort.Strings(names) // deterministic base order before rarity sort
		sort.SliceStable(names, func(i, j int) bool {
			return len(restricted[names[i]]) < len(restricted[names[j]])
		})

		type bucket struct {
			tableSet *schema.JoinSet
			metrics  []*field.Metric
		}
		var buckets []*bucket

		for _, name := range names {
			cands := restricted[name]
			// Prefer joining an already-chosen bucket that this metric's
			// table also supports (spec.md §4.3 step 3: "assign each to
			// the TableSet with the most already-assigned metrics").
			var best *bucket
			var bestCand metricCandidate
			for _, cand := range cands {
				for _, b := range buckets {
					if b.tableSet.MetricTable.FQN == cand.tableSet.MetricTable.FQN && sameJoinSet(b.tableSet, cand.tableSet) {
						if best == nil || len(b.metrics) > len(best.metrics) {
							best = b
							bestCand = cand
						}
					}
				}
			}
			if best != nil {
				best.metrics = append(best.metrics, leafMetrics[name])
				_ = bestCand
				continue
			}
			// No compatible bucket yet: open one using this metric's
			// best-ranked (shortest-join, highest-priority) candidate.
			buckets = append(buckets, &bucket{tableSet: cands[0].tableSet, metrics: []*field.Metric{leafMetrics[name]}})
		}

		ds := datasources[dsIdx]
		for _, b := range buckets {
			sort.Slice(b.metrics, func(i, j int) bool { return b.metrics[i].Name() < b.metrics[j].Name() })
			queries = append(queries, &Query{
				DataSource:         ds,
				TableSet:           b.tableSet,
				Metrics:            b.metrics,
				Grain:              grain,
				UseFullColumnNames: b.tableSet.MetricTable.UseFullColumnNames,
			})
		}
	}

	// Deterministic plan order: by DataSource priority, then metric table
	// FQN (spec.md §8 invariant #5, planner determinism).
	sort.SliceStable(queries, func(i, j int) bool {
		if queries[i].DataSource.Priority() != queries[j].DataSource.Priority() {
			return queries[i].DataSource.Priority() < queries[j].DataSource.Priority()
		}
		return queries[i].TableSet.MetricTable.FQN < queries[j].TableSet.MetricTable.FQN
	})
	return queries, nil
}

func sameJoinSet(a, b *schema.JoinSet) bool {
	if len(a.Joins) != len(b.Joins) {
		return false
	}
	for i := range a.Joins {
		if a.Joins[i].FQN != b.Joins[i].FQN {
			return false
		}
	}
	return true
}

// planPureDimensionReport implements spec.md §4.3 step 4: a report with no
// metrics becomes a single query against the smallest table set whose
// columns cover the grain.
func planPureDimensionReport(datasources []DataSource, grain []string, spec Spec) ([]*Query, error) {
	var best *Query
	for dsIdx, ds := range datasources {
		g := ds.Graph()
		for _, t := range g.Tables() {
			covers := g.PossibleJoins(t, grain, spec.MaxJoins, spec.MaxJoinCandidates)
			for _, js := range covers {
				cand := &Query{DataSource: ds, TableSet: js, Grain: grain, UseFullColumnNames: t.UseFullColumnNames}
				if best == nil || isSmallerPlan(dsIdx, js, best) {
					best = cand
				}
			}
		}
	}
	if best == nil {
		return nil, ErrUnsupportedGrain.New([]string{"<no metrics>"}, grain)
	}
	return []*Query{best}, nil
}

func isSmallerPlan(dsIdx int, js *schema.JoinSet, best *Query) bool {
	if len(js.Joins) != len(best.TableSet.Joins) {
		return len(js.Joins) < len(best.TableSet.Joins)
	}
	return js.MetricTable.FQN < best.TableSet.MetricTable.FQN
}
