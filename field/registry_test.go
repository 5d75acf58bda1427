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

func baseRegistry(t *testing.T) *field.Registry {
	t.Helper()
	r := field.NewRegistry("warehouse", nil)
	require.NoError(t, r.Define(&field.Metric{FieldName: "leads", ValueType: "int", Agg: field.Sum}))
	require.NoError(t, r.Define(&field.Metric{FieldName: "revenue", ValueType: "float", Agg: field.Sum}))
	require.NoError(t, r.Define(&field.Dimension{FieldName: "partner_name", ValueType: "string"}))
	return r
}

func TestRegistryGetField(t *testing.T) {
	require := require.New(t)
	r := baseRegistry(t)

	f, err := r.GetField("revenue")
	require.NoError(err)
	require.Equal(field.MetricKind, f.Kind())

	_, err = r.GetField("nope")
	require.True(field.ErrUnknownField.Is(err))
}

func TestRegistryScopeShadowing(t *testing.T) {
	require := require.New(t)
	wh := baseRegistry(t)
	ds := field.NewRegistry("datasource", wh)

	// a compatible narrower-scope redefinition (same kind/agg) is fine
	require.NoError(ds.Define(&field.Metric{FieldName: "revenue", ValueType: "float", Agg: field.Sum}))

	// an incompatible redefinition (different aggregation) is rejected
	err := ds.Define(&field.Metric{FieldName: "revenue", ValueType: "float", Agg: field.Mean})
	require.Error(err)
	require.True(field.ErrIncompatibleShadow.Is(err))
}

func TestGetFormulaFieldsResolvesLeaves(t *testing.T) {
	require := require.New(t)
	r := baseRegistry(t)

	formula := "{revenue}/{leads}"
	rpl := &field.FormulaField{
		FieldName: "rpl",
		ValueType: "float",
		FieldKind: field.FormulaMetricKind,
		Formula:   formula,
		Refs:      field.ParseFormula(formula),
	}
	require.NoError(r.Define(rpl))

	leaves, err := r.GetFormulaFields(rpl)
	require.NoError(err)
	require.Len(leaves, 2)
	require.True(leaves["revenue"])
	require.True(leaves["leads"])
}

func TestGetFormulaFieldsChainedDepth(t *testing.T) {
	require := require.New(t)
	r := baseRegistry(t)

	rplFormula := "{revenue}/{leads}"
	rpl := &field.FormulaField{FieldName: "rpl", ValueType: "float", FieldKind: field.FormulaMetricKind, Formula: rplFormula, Refs: field.ParseFormula(rplFormula)}
	require.NoError(r.Define(rpl))

	squaredFormula := "{rpl}*{rpl}"
	squared := &field.FormulaField{FieldName: "rpl_squared", ValueType: "float", FieldKind: field.FormulaMetricKind, Formula: squaredFormula, Refs: field.ParseFormula(squaredFormula)}
	require.NoError(r.Define(squared))

	leaves, err := r.GetFormulaFields(squared)
	require.NoError(err)
	require.Len(leaves, 2)
	require.True(leaves["revenue"])
	require.True(leaves["leads"])
}

func TestFormulaCycleRejected(t *testing.T) {
	require := require.New(t)
	r := field.NewRegistry("warehouse", nil)

	a := &field.FormulaField{FieldName: "a", ValueType: "float", FieldKind: field.FormulaMetricKind, Formula: "{b}", Refs: []string{"b"}}
	b := &field.FormulaField{FieldName: "b", ValueType: "float", FieldKind: field.FormulaMetricKind, Formula: "{a}", Refs: []string{"a"}}
	require.NoError(r.Define(a))
	require.NoError(r.Define(b))

	err := r.ValidateNoCycles()
	require.Error(err)
}

func TestFormulaDimensionCannotReferenceMetric(t *testing.T) {
	require := require.New(t)
	r := baseRegistry(t)

	bad := &field.FormulaField{FieldName: "bad_dim", ValueType: "string", FieldKind: field.FormulaDimensionKind, Formula: "{revenue}", Refs: []string{"revenue"}}
	require.NoError(r.Define(bad))

	_, err := r.GetFormulaFields(bad)
	require.Error(err)
	require.True(field.ErrFormulaDimensionRef.Is(err))
}

func TestFormulaMetricWithNoLeavesRejectedRegardlessOfSiblingOrder(t *testing.T) {
	require := require.New(t)
	r := baseRegistry(t)

	// zeroDep has no dependencies of its own: it must be rejected even
	// though it is resolved as a sibling dependency after "revenue" has
	// already populated the shared leaf set for this GetFormulaFields call.
	zeroDep := &field.FormulaField{FieldName: "zero_dep", ValueType: "float", FieldKind: field.FormulaMetricKind, Formula: "1", Refs: nil}
	require.NoError(r.Define(zeroDep))

	bad := &field.FormulaField{
		FieldName: "bad",
		ValueType: "float",
		FieldKind: field.FormulaMetricKind,
		Formula:   "{revenue}+{zero_dep}",
		Refs:      []string{"revenue", "zero_dep"},
	}
	require.NoError(r.Define(bad))

	_, err := r.GetFormulaFields(bad)
	require.Error(err)
	require.True(field.ErrFormulaUnresolvedLeaf.Is(err))
}

func TestCopyIsIndependent(t *testing.T) {
	require := require.New(t)
	orig := &field.Metric{FieldName: "revenue", ValueType: "float", Agg: field.Sum, RequiredGrain: []string{"partner_name"}}

	clone := field.Copy(orig).(*field.Metric)
	clone.RequiredGrain[0] = "mutated"

	require.Equal("partner_name", orig.RequiredGrain[0])
	require.Equal("mutated", clone.RequiredGrain[0])
}
