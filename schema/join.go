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

package schema

import (
	"sort"
	"strings"
)

// JoinSet is a metric table plus the join chain sufficient to produce a
// report's grain (the "TableSet" of the GLOSSARY).
type JoinSet struct {
	MetricTable *Table
	Joins       []*Table // additional tables joined in, sorted by FQN
}

// Tables returns the metric table followed by every joined table.
func (js *JoinSet) Tables() []*Table {
	out := make([]*Table, 0, 1+len(js.Joins))
	out = append(out, js.MetricTable)
	out = append(out, js.Joins...)
	return out
}

// signature is a deterministic string key identifying the table set,
// independent of discovery order, used to de-duplicate covers.
func (js *JoinSet) signature() string {
	names := make([]string, len(js.Joins))
	for i, t := range js.Joins {
		names[i] = t.FQN
	}
	sort.Strings(names)
	return js.MetricTable.FQN + "|" + strings.Join(names, ",")
}

type pathCandidate struct {
	provider *Table
	path     []*Table // chain of tables joined from start to provider, start excluded
}

// candidatePathsFor runs a breadth-first search from start over the
// neighbor graph (parent upward, siblings lateral) for every table that
// provides dim at grain, up to maxJoins hops, returning candidates sorted
// by (path length, table priority, FQN) for deterministic enumeration
// (spec.md §4.2 "Join enumeration").
func (g *Graph) candidatePathsFor(start *Table, dim string, maxJoins int) []pathCandidate {
	type frontierEntry struct {
		table *Table
		path  []*Table
	}

	var out []pathCandidate
	visited := map[string]bool{start.FQN: true}
	frontier := []frontierEntry{{table: start, path: nil}}

	if start.ProvidesAtGrain(dim) {
		out = append(out, pathCandidate{provider: start, path: nil})
	}

	for depth := 0; depth < maxJoins && len(frontier) > 0; depth++ {
		var next []frontierEntry
		for _, entry := range frontier {
			for _, neighbor := range g.FindNeighborTables(entry.table) {
				if visited[neighbor.FQN] {
					continue
				}
				visited[neighbor.FQN] = true
				path := append(append([]*Table(nil), entry.path...), neighbor)
				next = append(next, frontierEntry{table: neighbor, path: path})
				if neighbor.ProvidesAtGrain(dim) {
					out = append(out, pathCandidate{provider: neighbor, path: path})
				}
			}
		}
		frontier = next
	}

	sort.SliceStable(out, func(i, j int) bool {
		if len(out[i].path) != len(out[j].path) {
			return len(out[i].path) < len(out[j].path)
		}
		if out[i].provider.Priority != out[j].provider.Priority {
			return out[i].provider.Priority < out[j].provider.Priority
		}
		return out[i].provider.FQN < out[j].provider.FQN
	})
	return out
}

// PossibleJoins enumerates candidate TableSets rooted at start that cover
// every dimension in grain, bounded by maxJoins (max |join set|) and
// maxCandidates (cap on distinct covers returned). Enumeration order is
// deterministic: by increasing join count, then table priority sum, then
// lexicographic table FQN (spec.md §4.2 "Join enumeration"). Returns nil
// (no error) if grain is unsatisfiable from start;
// the Planner is responsible for turning that into UnsupportedGrainError
// with full context about the offending metric.
func (g *Graph) PossibleJoins(start *Table, grain []string, maxJoins, maxCandidates int) []*JoinSet {
	var needed []string
	for _, dim := range grain {
		if !start.ProvidesAtGrain(dim) {
			needed = append(needed, dim)
		}
	}
	if len(needed) == 0 {
		return []*JoinSet{{MetricTable: start}}
	}

	candidatesByDim := make(map[string][]pathCandidate, len(needed))
	for _, dim := range needed {
		cands := g.candidatePathsFor(start, dim, maxJoins)
		if len(cands) == 0 {
			return nil
		}
		candidatesByDim[dim] = cands
	}
	// Rarest-first ordering bounds the branching factor of the search,
	// mirroring the Planner's own greedy "rarest candidate first" policy
	// (spec.md §4.3 step 3).
	sort.Slice(needed, func(i, j int) bool {
		return len(candidatesByDim[needed[i]]) < len(candidatesByDim[needed[j]])
	})

	var covers []*JoinSet
	seen := make(map[string]bool)

	var search func(idx int, used map[string]*Table)
	search = func(idx int, used map[string]*Table) {
		if len(covers) >= maxCandidates {
			return
		}
		if idx == len(needed) {
			joins := make([]*Table, 0, len(used))
			for _, t := range used {
				joins = append(joins, t)
			}
			sort.Slice(joins, func(i, j int) bool { return joins[i].FQN < joins[j].FQN })
			js := &JoinSet{MetricTable: start, Joins: joins}
			sig := js.signature()
			if !seen[sig] {
				seen[sig] = true
				covers = append(covers, js)
			}
			return
		}
		dim := needed[idx]
		for _, cand := range candidatesByDim[dim] {
			merged := make(map[string]*Table, len(used)+len(cand.path))
			for k, v := range used {
				merged[k] = v
			}
			for _, t := range cand.path {
				merged[t.FQN] = t
			}
			if len(merged) > maxJoins {
				continue
			}
			search(idx+1, merged)
			if len(covers) >= maxCandidates {
				return
			}
		}
	}
	search(0, map[string]*Table{})

	sort.SliceStable(covers, func(i, j int) bool {
		if len(covers[i].Joins) != len(covers[j].Joins) {
			return len(covers[i].Joins) < len(covers[j].Joins)
		}
		pi, pj := prioritySum(covers[i]), prioritySum(covers[j])
		if pi != pj {
			return pi < pj
		}
		return covers[i].signature() < covers[j].signature()
	})
	if len(covers) > maxCandidates {
		covers = covers[:maxCandidates]
	}
	return covers
}

func prioritySum(js *JoinSet) int {
	sum := js.MetricTable.Priority
	for _, t := range js.Joins {
		sum += t.Priority
	}
	return sum
}
