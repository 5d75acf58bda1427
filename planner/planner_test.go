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

package planner_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/lattice-sql/lattice/dialect"
	"github.com/lattice-sql/lattice/field"
	"github.com/lattice-sql/lattice/planner"
	"github.com/lattice-sql/lattice/schema"
)

// testDataSource is a minimal planner.DataSource used across planner
// tests, grounded on spec.md §8's sample schema
// (partners -> campaigns -> leads -> sales).
type testDataSource struct {
	name     string
	priority int
	graph    *schema.Graph
	registry *field.Registry
}

func (d *testDataSource) Name() string                { return d.name }
func (d *testDataSource) Priority() int                { return d.priority }
func (d *testDataSource) Graph() *schema.Graph         { return d.graph }
func (d *testDataSource) Registry() *field.Registry    { return d.registry }
func (d *testDataSource) Dialect() *dialect.Dialect    { return dialect.MySQL }

func sampleDataSource(t *testing.T) *testDataSource {
	t.Helper()

	partners := &schema.Table{
		FQN: "partners", Kind: schema.DimensionTable, PrimaryKey: []string{"partner_id"},
		Columns: []*schema.Column{
			{Name: "id", Bindings: []*schema.ColumnFieldBinding{{FieldName: "partner_id"}}},
			{Name: "name", Bindings: []*schema.ColumnFieldBinding{{FieldName: "partner_name"}}},
		},
	}
	campaigns := &schema.Table{
		FQN: "campaigns", Kind: schema.DimensionTable, Parent: "partners", PrimaryKey: []string{"campaign_id"},
		Columns: []*schema.Column{
			{Name: "id", Bindings: []*schema.ColumnFieldBinding{{FieldName: "campaign_id"}}},
			{Name: "name", Bindings: []*schema.ColumnFieldBinding{{FieldName: "campaign_name"}}},
		},
	}
	leads := &schema.Table{
		FQN: "leads", Kind: schema.MetricTable, Parent: "campaigns", PrimaryKey: []string{"lead_id"},
		Columns: []*schema.Column{
			{Name: "id", Bindings: []*schema.ColumnFieldBinding{{FieldName: "lead_id"}, {FieldName: "leads"}}},
		},
	}
	sales := &schema.Table{
		FQN: "sales", Kind: schema.MetricTable, Parent: "leads", PrimaryKey: []string{"sale_id"},
		IncompleteDimensions: []string{"lead_id"},
		Columns: []*schema.Column{
			{Name: "id", Bindings: []*schema.ColumnFieldBinding{{FieldName: "sale_id"}, {FieldName: "sales"}}},
			{Name: "amount", Bindings: []*schema.ColumnFieldBinding{{FieldName: "revenue"}}},
		},
	}

	g, err := schema.NewGraph([]*schema.Table{partners, campaigns, leads, sales})
	require.NoError(t, err)

	reg := field.NewRegistry("warehouse", nil)
	require.NoError(t, reg.Define(&field.Metric{FieldName: "leads", ValueType: "int", Agg: field.Sum}))
	require.NoError(t, reg.Define(&field.Metric{FieldName: "sales", ValueType: "int", Agg: field.Sum}))
	require.NoError(t, reg.Define(&field.Metric{FieldName: "revenue", ValueType: "float", Agg: field.Sum}))
	require.NoError(t, reg.Define(&field.Dimension{FieldName: "partner_name", ValueType: "string"}))
	require.NoError(t, reg.Define(&field.Dimension{FieldName: "campaign_name", ValueType: "string"}))
	require.NoError(t, reg.Define(&field.Dimension{FieldName: "sale_id", ValueType: "int"}))

	return &testDataSource{name: "warehouse_db", priority: 0, graph: g, registry: reg}
}

func TestPlanSingleDataSourceSharesQuery(t *testing.T) {
	require := require.New(t)
	ds := sampleDataSource(t)

	queries, err := planner.Plan([]planner.DataSource{ds}, planner.Spec{
		Metrics:           []string{"sales", "leads", "revenue"},
		Dimensions:        []string{"partner_name"},
		MaxJoins:          4,
		MaxJoinCandidates: 10,
	})
	require.NoError(err)
	require.Len(queries, 2, "sales and revenue share the sales table; leads needs a separate query")
}

func TestPlanUnsupportedGrainDownwardFanOut(t *testing.T) {
	require := require.New(t)
	ds := sampleDataSource(t)

	_, err := planner.Plan([]planner.DataSource{ds}, planner.Spec{
		Metrics:           []string{"leads"},
		Dimensions:        []string{"sale_id"},
		MaxJoins:          4,
		MaxJoinCandidates: 10,
	})
	require.Error(err)
	require.True(planner.ErrUnsupportedGrain.Is(err))
}

func TestPlanDeterministicAcrossRuns(t *testing.T) {
	require := require.New(t)
	ds := sampleDataSource(t)
	spec := planner.Spec{
		Metrics:           []string{"sales", "leads", "revenue"},
		Dimensions:        []string{"partner_name", "campaign_name"},
		MaxJoins:          4,
		MaxJoinCandidates: 10,
	}

	first, err := planner.Plan([]planner.DataSource{ds}, spec)
	require.NoError(err)
	second, err := planner.Plan([]planner.DataSource{ds}, spec)
	require.NoError(err)

	require.Equal(len(first), len(second))
	for i := range first {
		require.Equal(first[i].TableSet.MetricTable.FQN, second[i].TableSet.MetricTable.FQN)
	}
}

func TestComputeGrainIncludesCriteriaFields(t *testing.T) {
	require := require.New(t)
	ds := sampleDataSource(t)

	grain := planner.ComputeGrain([]planner.DataSource{ds}, planner.Spec{
		Dimensions: []string{"campaign_name"},
		Criteria:   []string{"partner_name"},
	})
	require.ElementsMatch([]string{"campaign_name", "partner_name"}, grain)
}

func TestPlanPureDimensionReport(t *testing.T) {
	require := require.New(t)
	ds := sampleDataSource(t)

	queries, err := planner.Plan([]planner.DataSource{ds}, planner.Spec{
		Dimensions:        []string{"partner_name"},
		MaxJoins:          4,
		MaxJoinCandidates: 10,
	})
	require.NoError(err)
	require.Len(queries, 1)
	require.Equal("partners", queries[0].TableSet.MetricTable.FQN)
}
