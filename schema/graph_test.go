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

package schema_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/lattice-sql/lattice/schema"
)

// sampleSchema builds the spec's running example: partners -> campaigns ->
// leads -> sales, a strict parent chain (spec.md §8 "Concrete scenarios").
func sampleSchema(t *testing.T) *schema.Graph {
	t.Helper()

	partners := &schema.Table{
		FQN: "partners", Kind: schema.DimensionTable,
		PrimaryKey: []string{"partner_id"},
		Columns: []*schema.Column{
			{Name: "id", Bindings: []*schema.ColumnFieldBinding{{FieldName: "partner_id"}}},
			{Name: "name", Bindings: []*schema.ColumnFieldBinding{{FieldName: "partner_name"}}},
		},
	}
	campaigns := &schema.Table{
		FQN: "campaigns", Kind: schema.DimensionTable,
		Parent:     "partners",
		PrimaryKey: []string{"campaign_id"},
		Columns: []*schema.Column{
			{Name: "id", Bindings: []*schema.ColumnFieldBinding{{FieldName: "campaign_id"}}},
			{Name: "name", Bindings: []*schema.ColumnFieldBinding{{FieldName: "campaign_name"}}},
		},
	}
	leads := &schema.Table{
		FQN: "leads", Kind: schema.MetricTable,
		Parent:     "campaigns",
		PrimaryKey: []string{"lead_id"},
		Columns: []*schema.Column{
			{Name: "id", Bindings: []*schema.ColumnFieldBinding{{FieldName: "lead_id"}, {FieldName: "leads"}}},
		},
	}
	sales := &schema.Table{
		FQN: "sales", Kind: schema.MetricTable,
		Parent:               "leads",
		PrimaryKey:           []string{"sale_id"},
		IncompleteDimensions: []string{"lead_id"},
		Columns: []*schema.Column{
			{Name: "id", Bindings: []*schema.ColumnFieldBinding{{FieldName: "sale_id"}, {FieldName: "sales"}}},
			{Name: "amount", Bindings: []*schema.ColumnFieldBinding{{FieldName: "revenue"}}},
		},
	}

	g, err := schema.NewGraph([]*schema.Table{partners, campaigns, leads, sales})
	require.NoError(t, err)
	return g
}

func TestProvidesAtGrain(t *testing.T) {
	require := require.New(t)
	g := sampleSchema(t)

	leads, _ := g.Table("leads")
	require.True(leads.ProvidesAtGrain("lead_id"))
	require.False(leads.ProvidesAtGrain("partner_name")) // needs a join

	partners, _ := g.Table("partners")
	require.True(partners.ProvidesAtGrain("partner_name"))
}

func TestFindNeighborTablesExcludesChildren(t *testing.T) {
	require := require.New(t)
	g := sampleSchema(t)

	campaigns, _ := g.Table("campaigns")
	neighbors := g.FindNeighborTables(campaigns)
	require.Len(neighbors, 1)
	require.Equal("partners", neighbors[0].FQN)
}

func TestFindDescendentTables(t *testing.T) {
	require := require.New(t)
	g := sampleSchema(t)

	partners, _ := g.Table("partners")
	descendents := g.FindDescendentTables(partners)
	names := make([]string, len(descendents))
	for i, d := range descendents {
		names[i] = d.FQN
	}
	require.ElementsMatch([]string{"campaigns", "leads", "sales"}, names)
}

func TestPossibleJoinsUpwardOnly(t *testing.T) {
	require := require.New(t)
	g := sampleSchema(t)

	leads, _ := g.Table("leads")
	covers := g.PossibleJoins(leads, []string{"partner_name"}, 4, 10)
	require.Len(covers, 1)
	require.Equal([]string{"campaigns", "partners"}, fqns(covers[0].Joins))
}

func TestPossibleJoinsCannotFanOutDownward(t *testing.T) {
	require := require.New(t)
	g := sampleSchema(t)

	// leads cannot reach sale_id: sale_id lives on a *child* table of
	// leads, and rule 2 forbids joining downward to pick up dimensions
	// (spec.md §8 scenario 4).
	leads, _ := g.Table("leads")
	covers := g.PossibleJoins(leads, []string{"sale_id"}, 4, 10)
	require.Empty(covers)
}

func TestPossibleJoinsMaxJoinsExceeded(t *testing.T) {
	require := require.New(t)
	g := sampleSchema(t)

	sales, _ := g.Table("sales")
	// partner_name needs three joins (leads -> campaigns -> partners); with
	// maxJoins=1 it must fail.
	covers := g.PossibleJoins(sales, []string{"partner_name"}, 1, 10)
	require.Empty(covers)
}

func TestSiblingPKMismatchRejected(t *testing.T) {
	require := require.New(t)

	a := &schema.Table{FQN: "a", PrimaryKey: []string{"id"}, Siblings: []string{"b"}}
	b := &schema.Table{FQN: "b", PrimaryKey: []string{"other_id"}}

	_, err := schema.NewGraph([]*schema.Table{a, b})
	require.Error(err)
	require.True(schema.ErrSiblingPKMismatch.Is(err))
}

func fqns(tables []*schema.Table) []string {
	out := make([]string, len(tables))
	for i, t := range tables {
		out[i] = t.FQN
	}
	return out
}
