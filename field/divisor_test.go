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

package field_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/lattice-sql/lattice/field"
)

func TestExpandDivisors(t *testing.T) {
	require := require.New(t)

	revenue := &field.Metric{
		FieldName: "revenue",
		ValueType: "float",
		Agg:       field.Sum,
		Divisors: &field.Divisors{
			Metrics: []string{"leads", "sales"},
			Formula: "{base}/{divisor}",
		},
	}

	derived, err := field.ExpandDivisors(revenue)
	require.NoError(err)
	require.Len(derived, 2)
	require.Equal("revenue_per_leads", derived[0].Name())
	require.Equal("{revenue}/{leads}", derived[0].Formula)
	require.Equal("revenue_per_sales", derived[1].Name())
	require.ElementsMatch([]string{"revenue", "sales"}, derived[1].Refs)
}

func TestAggregationVariants(t *testing.T) {
	require := require.New(t)

	base := &field.Metric{FieldName: "price", ValueType: "float", Agg: field.Sum}
	variants, err := field.AggregationVariants(base, map[field.Aggregation]string{
		field.Mean: "",
		field.Max:  "price_high",
	})
	require.NoError(err)
	require.Len(variants, 2)

	names := map[string]field.Aggregation{}
	for _, v := range variants {
		names[v.Name()] = v.Agg
	}
	require.Equal(field.Mean, names["price_mean"])
	require.Equal(field.Max, names["price_high"])
}

func TestWeightedMeanNames(t *testing.T) {
	require := require.New(t)
	require.Equal("__revenue_weighted_numerator", field.NumeratorName("revenue"))
	require.Equal("__revenue_weighted_denominator", field.DenominatorName("revenue"))
	require.Contains(field.ReconstructExpr("revenue"), "NULLIF")
}
