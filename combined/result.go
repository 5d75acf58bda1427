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
	"sort"

	"github.com/dolthub/go-mysql-server/sql"
)

// FramesFromQuery zips a go-mysql-server schema and row set into frameRows,
// the shape ApplyTechnical, Rollup and Pivot all operate on.
func FramesFromQuery(schema sql.Schema, rows []sql.Row) []frameRow {
	out := make([]frameRow, len(rows))
	for i, r := range rows {
		fr := make(frameRow, len(schema))
		for c, col := range schema {
			fr[col.Name] = r[c]
		}
		out[i] = fr
	}
	return out
}

// SortByGrain orders frame by grain ascending, with RollupSentinel values
// always sorting last within their column regardless of the underlying
// Go string ordering already achieving that via \U0010FFFF's code point
// (spec.md §9 "Rollup sentinel").
func SortByGrain(frame []frameRow, grain []string) {
	sort.SliceStable(frame, func(i, j int) bool {
		for _, g := range grain {
			a, b := toString(frame[i][g]), toString(frame[j][g])
			if a != b {
				return a < b
			}
		}
		return false
	})
}
