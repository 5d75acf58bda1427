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

// RollupSentinel is the in-band marker value substituted for a dimension
// column on rollup rows (spec.md §6.5, §9 "Rollup sentinel"). It is the
// maximum Unicode code point, chosen because it sorts after every ordinary
// string value, so rollup rows render last in grain order without a
// special-cased ORDER BY.
const RollupSentinel = "\U0010FFFF"

// RollupRow pairs a combined-layer row with the out-of-band marker some
// callers prefer over parsing the in-band sentinel back out of string
// columns (spec.md §9's "allowed marker-column variant").
type RollupRow struct {
	Row      frameRow
	IsRollup bool
}

// markRollup stamps dim with RollupSentinel and sets IsRollup, used by
// every rollup mode in rollup.go.
func markRollup(r frameRow, dims []string) RollupRow {
	out := make(frameRow, len(r))
	for k, v := range r {
		out[k] = v
	}
	for _, d := range dims {
		out[d] = RollupSentinel
	}
	return RollupRow{Row: out, IsRollup: true}
}

// Display replaces the in-band sentinel with a human-readable "Totals"
// label, the projection Report.Result applies before handing rows to a
// caller (spec.md §6.5 "display" projection).
func Display(r frameRow) frameRow {
	out := make(frameRow, len(r))
	for k, v := range r {
		if s, ok := v.(string); ok && s == RollupSentinel {
			out[k] = "Totals"
			continue
		}
		out[k] = v
	}
	return out
}
