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

package combined

import (
	"fmt"
	"sort"
)

// Pivot rotates one dimension's distinct values into columns, one column
// per (pivotValue, metric) pair, grounded on the column-rotation shape
// other semantic-layer query builders in the examples use for their own
// pivot support (spec.md §10 "Supplemented Features").
func Pivot(frame []frameRow, rowDims []string, pivotDim string, metrics []string) ([]frameRow, []string) {
	values := distinctSorted(frame, pivotDim)

	type group struct {
		keyVals map[string]any
		byPivot map[string]frameRow
	}
	groups := make(map[string]*group)
	var order []string
	for _, r := range frame {
		key := keyOf(r, rowDims)
		g, ok := groups[key]
		if !ok {
			g = &group{keyVals: map[string]any{}, byPivot: map[string]frameRow{}}
			for _, d := range rowDims {
				g.keyVals[d] = r[d]
			}
			groups[key] = g
			order = append(order, key)
		}
		g.byPivot[toString(r[pivotDim])] = r
	}
	sort.Strings(order)

	var columns []string
	columns = append(columns, rowDims...)
	for _, v := range values {
		for _, m := range metrics {
			columns = append(columns, fmt.Sprintf("%s_%s", v, m))
		}
	}

	out := make([]frameRow, 0, len(order))
	for _, key := range order {
		g := groups[key]
		row := make(frameRow, len(columns))
		for d, v := range g.keyVals {
			row[d] = v
		}
		for _, v := range values {
			src, ok := g.byPivot[v]
			for _, m := range metrics {
				col := fmt.Sprintf("%s_%s", v, m)
				if ok {
					row[col] = src[m]
				} else {
					row[col] = nil
				}
			}
		}
		out = append(out, row)
	}
	return out, columns
}

func distinctSorted(frame []frameRow, dim string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, r := range frame {
		v := toString(r[dim])
		if !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	sort.Strings(out)
	return out
}
