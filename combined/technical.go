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
	"math"
	"sort"
	"strconv"

	"github.com/lattice-sql/lattice/field"
)

// frameRow is one already-combined output row, addressed by column name,
// the shape technicals and rollups operate on (spec.md §3.6, §4.5). Plain
// Go structures, not SQL, compute these: no pack dependency models rolling
// window math (DESIGN.md "Standard-library-only concerns").
type frameRow map[string]any

// ApplyTechnical computes t over column within frame, grouped by the grain
// columns preceding the last one when t.Mode is ModeGroup, or over the
// whole frame when ModeAll (spec.md §3.6). frame must already be sorted by
// grain; ApplyTechnical preserves row order and returns a new column of
// values to merge back in under the technical's own output name.
func ApplyTechnical(frame []frameRow, grain []string, column string, t *field.Technical) []any {
	if t == nil {
		out := make([]any, len(frame))
		for i, r := range frame {
			out[i] = r[column]
		}
		return out
	}

	groups := partitionIndices(frame, grain, t.Mode)
	out := make([]any, len(frame))
	for _, idxs := range groups {
		series := make([]float64, len(idxs))
		for i, idx := range idxs {
			series[i] = toFloat(frame[idx][column])
		}
		result := computeTechnical(series, t)
		for i, idx := range idxs {
			out[idx] = result[i]
		}
	}
	return out
}

// partitionIndices groups frame row indices by every grain dimension but
// the last (the "series" axis), per spec.md §3.6's partition modes.
func partitionIndices(frame []frameRow, grain []string, mode field.TechnicalMode) [][]int {
	if mode == field.ModeAll || len(grain) == 0 {
		idxs := make([]int, len(frame))
		for i := range frame {
			idxs[i] = i
		}
		return [][]int{idxs}
	}

	partitionKey := grain[:len(grain)-1]
	groups := make(map[string][]int)
	var order []string
	for i, r := range frame {
		key := keyOf(r, partitionKey)
		if _, ok := groups[key]; !ok {
			order = append(order, key)
		}
		groups[key] = append(groups[key], i)
	}
	sort.Strings(order)
	out := make([][]int, 0, len(order))
	for _, k := range order {
		out = append(out, groups[k])
	}
	return out
}

func keyOf(r frameRow, cols []string) string {
	var b []byte
	for _, c := range cols {
		b = append(b, []byte(toString(r[c]))...)
		b = append(b, 0)
	}
	return string(b)
}

func computeTechnical(series []float64, t *field.Technical) []any {
	n := len(series)
	out := make([]any, n)
	switch t.Type {
	case field.TechSum:
		running := 0.0
		for i, v := range series {
			running += v
			out[i] = running
			_ = i
		}
		// plain per-row pass-through sum isn't cumulative unless the
		// metric is itself a cumulative sum; "sum" technical reports the
		// partition total on every row (spec.md §3.6 "sum").
		total := 0.0
		for _, v := range series {
			total += v
		}
		for i := range out {
			out[i] = total
		}
	case field.TechCumSum:
		running := 0.0
		for i, v := range series {
			running += v
			out[i] = running
		}
	case field.TechDiff:
		for i := range series {
			if i == 0 {
				out[i] = nil
				continue
			}
			out[i] = series[i] - series[i-1]
		}
	case field.TechPctChange:
		for i := range series {
			if i == 0 || series[i-1] == 0 {
				out[i] = nil
				continue
			}
			out[i] = (series[i] - series[i-1]) / series[i-1]
		}
	case field.TechMean:
		w := t.Window
		if w < 1 {
			w = 1
		}
		for i := range series {
			lo := i - w + 1
			if lo < 0 {
				out[i] = nil
				continue
			}
			out[i] = mean(series[lo : i+1])
		}
	case field.TechBollinger:
		w := t.Window
		if w < 1 {
			w = 1
		}
		for i := range series {
			lo := i - w + 1
			if lo < 0 {
				lo = 0
			}
			window := series[lo : i+1]
			m := mean(window)
			out[i] = m + 2*stddev(window, m)
		}
	case field.TechRank:
		out = rankOf(series)
	default:
		for i, v := range series {
			out[i] = v
		}
	}
	return out
}

func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	sum := 0.0
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

func stddev(xs []float64, m float64) float64 {
	if len(xs) < 2 {
		return 0
	}
	sq := 0.0
	for _, x := range xs {
		d := x - m
		sq += d * d
	}
	return math.Sqrt(sq / float64(len(xs)-1))
}

func rankOf(xs []float64) []any {
	type idxVal struct {
		idx int
		val float64
	}
	pairs := make([]idxVal, len(xs))
	for i, v := range xs {
		pairs[i] = idxVal{i, v}
	}
	sort.SliceStable(pairs, func(i, j int) bool { return pairs[i].val > pairs[j].val })

	out := make([]any, len(xs))
	rank := 0
	for i, p := range pairs {
		if i == 0 || pairs[i].val != pairs[i-1].val {
			rank = i + 1
		}
		out[p.idx] = rank
	}
	return out
}

func toFloat(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case float32:
		return float64(n)
	case int:
		return float64(n)
	case int64:
		return float64(n)
	case string:
		// the scratch engine round-trips ingested metric columns as text
		// (engine.go's scratchColumnType), so numeric values often arrive
		// here as their string form.
		f, err := strconv.ParseFloat(n, 64)
		if err != nil {
			return 0
		}
		return f
	default:
		return 0
	}
}

func toString(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}
