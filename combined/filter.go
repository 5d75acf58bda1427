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
	"strconv"
	"strings"

	"github.com/lattice-sql/lattice/dialect"
)

// RowsOf unwraps a Rollup result back down to plain frameRows, the shape
// SortByGrain, Pivot and Display all operate on.
func RowsOf(rows []RollupRow) []frameRow {
	out := make([]frameRow, len(rows))
	for i, r := range rows {
		out[i] = r.Row
	}
	return out
}

// FilterRows keeps only the rows of frame matching every criterion, a
// row_filters pass over the already-combined result (spec.md §6.3) rather
// than a WHERE clause compiled against a physical table, since the metrics
// a row_filter names may themselves be technicals or rollup subtotals that
// only exist after the combined SQL step.
func FilterRows(frame []frameRow, criteria []dialect.Criterion) []frameRow {
	if len(criteria) == 0 {
		return frame
	}
	out := make([]frameRow, 0, len(frame))
	for _, r := range frame {
		keep := true
		for _, c := range criteria {
			if !matchesCriterion(r[c.FieldName], c) {
				keep = false
				break
			}
		}
		if keep {
			out = append(out, r)
		}
	}
	return out
}

func matchesCriterion(v any, c dialect.Criterion) bool {
	switch c.Op {
	case dialect.IsNull:
		return v == nil
	case dialect.IsNotNull:
		return v != nil
	case dialect.Eq:
		return compareValues(v, c.Value) == 0
	case dialect.Neq:
		return compareValues(v, c.Value) != 0
	case dialect.Gt:
		return compareValues(v, c.Value) > 0
	case dialect.Gte:
		return compareValues(v, c.Value) >= 0
	case dialect.Lt:
		return compareValues(v, c.Value) < 0
	case dialect.Lte:
		return compareValues(v, c.Value) <= 0
	case dialect.In:
		for _, want := range c.Values {
			if compareValues(v, want) == 0 {
				return true
			}
		}
		return false
	case dialect.NotIn:
		for _, want := range c.Values {
			if compareValues(v, want) == 0 {
				return false
			}
		}
		return true
	case dialect.Between:
		return len(c.Values) == 2 && compareValues(v, c.Values[0]) >= 0 && compareValues(v, c.Values[1]) <= 0
	case dialect.NotBetween:
		return !(len(c.Values) == 2 && compareValues(v, c.Values[0]) >= 0 && compareValues(v, c.Values[1]) <= 0)
	case dialect.Like:
		return strings.Contains(toString(v), strings.Trim(toString(c.Value), "%"))
	case dialect.NotLike:
		return !strings.Contains(toString(v), strings.Trim(toString(c.Value), "%"))
	default:
		return true
	}
}

// compareValues orders two row_filter operands numerically when both sides
// parse as numbers, falling back to string comparison for dimension values.
func compareValues(a, b any) int {
	af, aok := asFloat(a)
	bf, bok := asFloat(b)
	if aok && bok {
		switch {
		case af < bf:
			return -1
		case af > bf:
			return 1
		default:
			return 0
		}
	}
	return strings.Compare(toString(a), toString(b))
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case string:
		f, err := strconv.ParseFloat(n, 64)
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}
