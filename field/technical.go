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

package field

import "fmt"

// TechnicalType names a post-aggregation transform (spec.md §3.6).
type TechnicalType string

const (
	TechMean       TechnicalType = "mean"
	TechSum        TechnicalType = "sum"
	TechCumSum     TechnicalType = "cumsum"
	TechDiff       TechnicalType = "diff"
	TechPctChange  TechnicalType = "pct_change"
	TechBollinger  TechnicalType = "boll"
	TechRank       TechnicalType = "rank"
)

// TechnicalMode controls partitioning of the technical window
// (spec.md §3.6).
type TechnicalMode string

const (
	// ModeGroup resets the window on every value of the grain dimension
	// preceding the last one.
	ModeGroup TechnicalMode = "group"
	// ModeAll applies the technical over a single partition.
	ModeAll TechnicalMode = "all"
)

// Technical is a named post-aggregation transform attached to a Metric or
// FormulaField (spec.md §3.6).
type Technical struct {
	Type   TechnicalType
	Window int // meaningful for mean(n) / boll(n); 0 otherwise
	Mode   TechnicalMode
}

// String renders the technical the way it appears in report params, e.g.
// "mean(5)" or "rank".
func (t *Technical) String() string {
	if t == nil {
		return ""
	}
	switch t.Type {
	case TechMean, TechBollinger:
		return fmt.Sprintf("%s(%d)", t.Type, t.Window)
	default:
		return string(t.Type)
	}
}

// Divisors describes a code-generator that expands `{name}_per_{d}` metrics
// for each divisor metric (spec.md §3.1).
type Divisors struct {
	Metrics []string
	Formula string // template referencing {base} and {divisor}
}
