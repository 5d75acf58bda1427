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

import "sort"

// RollupMode selects which grain prefixes get a subtotal row
// (spec.md §3.6 "rollup"): Totals adds a single grand-total row; All adds
// one subtotal level per grain dimension (classic SQL ROLLUP); Levels = k
// adds subtotals for only the last k dimensions.
type RollupMode struct {
	Totals bool
	All    bool
	Levels int // meaningful when neither Totals nor All is set
}

// Rollup computes subtotal rows over frame (already grouped at full
// grain) for each requested level, summing metrics with aggFn and
// sentinel-marking the collapsed dimensions (spec.md §3.6, §9 "Rollup
// sentinel").
func Rollup(frame []frameRow, grain []string, metrics []string, mode RollupMode, aggFn map[string]func([]float64) float64) []RollupRow {
	base := make([]RollupRow, len(frame))
	for i, r := range frame {
		base[i] = RollupRow{Row: r, IsRollup: false}
	}

	levels := rollupLevels(len(grain), mode)
	for _, depth := range levels {
		base = append(base, rollupAtDepth(frame, grain, metrics, depth, aggFn)...)
	}
	return base
}

// rollupLevels returns the grain-prefix lengths to roll up at, longest
// first so ORDER BY naturally interleaves totals beneath their own
// subgroup via the sentinel's sort-last property.
func rollupLevels(grainLen int, mode RollupMode) []int {
	if mode.Totals {
		return []int{0}
	}
	if mode.All {
		out := make([]int, grainLen)
		for i := range out {
			out[i] = grainLen - 1 - i
		}
		return out
	}
	k := mode.Levels
	if k <= 0 {
		return nil
	}
	if k > grainLen {
		k = grainLen
	}
	out := make([]int, k)
	for i := 0; i < k; i++ {
		out[i] = grainLen - 1 - i
	}
	return out
}

// rollupAtDepth groups frame by grain[:depth], summing metrics across the
// collapsed grain[depth:] dimensions, and stamps those with the rollup
// sentinel.
func rollupAtDepth(frame []frameRow, grain, metrics []string, depth int, aggFn map[string]func([]float64) float64) []RollupRow {
	keep := grain[:depth]
	collapse := grain[depth:]

	type group struct {
		keyVals map[string]any
		rows    []frameRow
	}
	groups := make(map[string]*group)
	var order []string
	for _, r := range frame {
		key := keyOf(r, keep)
		g, ok := groups[key]
		if !ok {
			g = &group{keyVals: map[string]any{}}
			for _, k := range keep {
				g.keyVals[k] = r[k]
			}
			groups[key] = g
			order = append(order, key)
		}
		g.rows = append(g.rows, r)
	}
	sort.Strings(order)

	out := make([]RollupRow, 0, len(order))
	for _, key := range order {
		g := groups[key]
		row := make(frameRow, len(keep)+len(metrics))
		for k, v := range g.keyVals {
			row[k] = v
		}
		for _, m := range metrics {
			series := make([]float64, len(g.rows))
			for i, r := range g.rows {
				series[i] = toFloat(r[m])
			}
			fn := aggFn[m]
			if fn == nil {
				fn = sumFn
			}
			row[m] = fn(series)
		}
		out = append(out, markRollup(row, collapse))
	}
	return out
}

func sumFn(xs []float64) float64 {
	total := 0.0
	for _, x := range xs {
		total += x
	}
	return total
}
