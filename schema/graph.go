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

	"gopkg.in/src-d/go-errors.v1"
)

var (
	// ErrUnknownTable is raised when a referenced table FQN isn't declared.
	ErrUnknownTable = errors.NewKind("unknown table %q")
	// ErrSiblingPKMismatch is raised at graph-construction time when two
	// declared siblings don't share an identical primary key (spec.md §9
	// open question: the source doesn't enforce this, implementers must).
	ErrSiblingPKMismatch = errors.NewKind("sibling tables %q and %q do not share an identical primary key")
)

// Graph holds every Table declared within a single DataSource and answers
// join-path queries over their declared parent/sibling relationships
// (spec.md §4.2).
type Graph struct {
	tables map[string]*Table
}

// NewGraph builds a Graph from a set of tables, validating declared
// relationships.
func NewGraph(tables []*Table) (*Graph, error) {
	g := &Graph{tables: make(map[string]*Table, len(tables))}
	for _, t := range tables {
		g.tables[t.FQN] = t
	}
	if err := g.validate(); err != nil {
		return nil, err
	}
	return g, nil
}

func (g *Graph) validate() error {
	for _, t := range g.tables {
		if t.Parent != "" {
			if _, ok := g.tables[t.Parent]; !ok {
				return ErrUnknownTable.New(t.Parent)
			}
		}
		for _, sibName := range t.Siblings {
			sib, ok := g.tables[sibName]
			if !ok {
				return ErrUnknownTable.New(sibName)
			}
			if !samePK(t.PrimaryKey, sib.PrimaryKey) {
				return ErrSiblingPKMismatch.New(t.FQN, sibName)
			}
		}
	}
	return nil
}

func samePK(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// Table looks up a table by FQN.
func (g *Graph) Table(fqn string) (*Table, bool) {
	t, ok := g.tables[fqn]
	return t, ok
}

// Tables returns every table in the graph, sorted by FQN for deterministic
// iteration.
func (g *Graph) Tables() []*Table {
	out := make([]*Table, 0, len(g.tables))
	for _, t := range g.tables {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].FQN < out[j].FQN })
	return out
}

// FindNeighborTables returns every table reachable from t by a single join
// step: t's parent (upward), and t's declared siblings (lateral)
// (spec.md §4.2 rules 1-3). Children are deliberately excluded: a parent
// may not join downward to pick up dimensions (rule 2).
func (g *Graph) FindNeighborTables(t *Table) []*Table {
	var out []*Table
	if t.Parent != "" {
		if p, ok := g.tables[t.Parent]; ok {
			out = append(out, p)
		}
	}
	for _, sibName := range t.Siblings {
		if s, ok := g.tables[sibName]; ok {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].FQN < out[j].FQN })
	return out
}

// FindDescendentTables returns the transitive closure of child edges from
// t: every table whose ancestry (by declared Parent) passes through t
// (spec.md §4.2 "Descendents").
func (g *Graph) FindDescendentTables(t *Table) []*Table {
	children := make(map[string][]*Table)
	for _, other := range g.tables {
		if other.Parent != "" {
			children[other.Parent] = append(children[other.Parent], other)
		}
	}
	var out []*Table
	var walk func(fqn string)
	walk = func(fqn string) {
		for _, c := range children[fqn] {
			out = append(out, c)
			walk(c.FQN)
		}
	}
	walk(t.FQN)
	sort.Slice(out, func(i, j int) bool { return out[i].FQN < out[j].FQN })
	return out
}
