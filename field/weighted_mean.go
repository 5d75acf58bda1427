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

// A weighted-mean metric `x` with weighting metric `w` reconstructs its
// aggregate as SUM(x*w)/SUM(w) rather than AVG(x) (spec.md §4.1 "Weighted
// mean"). The DS layer computes the two sums as synthetic columns; the
// combined layer divides them. These two helpers name those synthetic
// columns so the planner, the DS compiler and the combined-layer query
// builder agree on them without coordinating through anything but the
// metric's own name.

// NumeratorName is the synthetic column name for SUM(x*w).
func NumeratorName(metric string) string {
	return fmt.Sprintf("__%s_weighted_numerator", metric)
}

// DenominatorName is the synthetic column name for SUM(w).
func DenominatorName(metric string) string {
	return fmt.Sprintf("__%s_weighted_denominator", metric)
}

// ReconstructExpr returns the combined-layer SQL expression that
// reconstructs the weighted mean from its two synthetic sums, using
// NULLIF to return NULL (not an error) when the weights sum to zero, per
// spec.md §9's normative note on this case.
func ReconstructExpr(metric string) string {
	num := NumeratorName(metric)
	den := DenominatorName(metric)
	return fmt.Sprintf("SUM(%s) / NULLIF(SUM(%s), 0)", num, den)
}
