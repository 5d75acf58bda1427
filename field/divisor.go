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

// ExpandDivisors synthesizes one FormulaMetric per divisor declared on a
// Metric's Divisors config, named "{base}_per_{divisor}" (spec.md §3.1,
// §4.1 "Divisors / aggregation variants").
func ExpandDivisors(base *Metric) ([]*FormulaField, error) {
	if base.Divisors == nil {
		return nil, nil
	}
	out := make([]*FormulaField, 0, len(base.Divisors.Metrics))
	for _, divisor := range base.Divisors.Metrics {
		name := fmt.Sprintf("%s_per_%s", base.FieldName, divisor)
		formula := ExpandFormula(base.Divisors.Formula, func(ref string) string {
			switch ref {
			case "base":
				return "{" + base.FieldName + "}"
			case "divisor":
				return "{" + divisor + "}"
			default:
				return "{" + ref + "}"
			}
		})
		out = append(out, &FormulaField{
			FieldName: name,
			ValueType: base.ValueType,
			FieldKind: FormulaMetricKind,
			Formula:   formula,
			Refs:      ParseFormula(formula),
			Rounding:  base.Rounding,
		})
	}
	return out, nil
}

// AggregationVariants synthesizes one Metric per entry of a map-valued
// aggregation config, e.g. `aggregation: {sum: revenue_sum, mean: revenue_avg}`
// produces two concrete metrics sharing every other attribute of base but a
// distinct Agg and name (spec.md §4.1).
func AggregationVariants(base *Metric, aggs map[Aggregation]string) ([]*Metric, error) {
	out := make([]*Metric, 0, len(aggs))
	for agg, customName := range aggs {
		name := customName
		if name == "" {
			name = fmt.Sprintf("%s_%s", base.FieldName, agg)
		}
		clone := *base
		clone.FieldName = name
		clone.Agg = agg
		clone.Divisors = nil
		out = append(out, &clone)
	}
	return out, nil
}
