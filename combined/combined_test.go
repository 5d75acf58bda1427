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
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/lattice-sql/lattice/dsquery"
	"github.com/lattice-sql/lattice/field"
)

// partnerSalesFrame grounds on spec.md §8's sample scenario: Partner A/B/C
// with per-partner revenue and lead counts.
func partnerSalesFrame() []frameRow {
	return []frameRow{
		{"partner_name": "Partner A", "revenue": 100.0, "leads": 10.0},
		{"partner_name": "Partner B", "revenue": 200.0, "leads": 20.0},
		{"partner_name": "Partner C", "revenue": 300.0, "leads": 30.0},
	}
}

func TestRollupTotalsAddsGrandTotalRow(t *testing.T) {
	require := require.New(t)
	frame := partnerSalesFrame()
	rows := Rollup(frame, []string{"partner_name"}, []string{"revenue", "leads"}, RollupMode{Totals: true}, nil)

	require.Len(rows, 4)
	var total RollupRow
	for _, r := range rows {
		if r.IsRollup {
			total = r
		}
	}
	require.Equal(600.0, total.Row["revenue"])
	require.Equal(60.0, total.Row["leads"])
	require.Equal(RollupSentinel, total.Row["partner_name"])
}

func TestDisplayReplacesSentinelWithTotalsLabel(t *testing.T) {
	require := require.New(t)
	row := frameRow{"partner_name": RollupSentinel, "revenue": 600.0}
	displayed := Display(row)
	require.Equal("Totals", displayed["partner_name"])
}

func TestApplyTechnicalMeanWindow(t *testing.T) {
	require := require.New(t)
	frame := []frameRow{
		{"month": "1", "revenue": 100.0},
		{"month": "2", "revenue": 200.0},
		{"month": "3", "revenue": 300.0},
		{"month": "4", "revenue": 400.0},
		{"month": "5", "revenue": 500.0},
	}
	out := ApplyTechnical(frame, []string{"month"}, "revenue", &field.Technical{Type: field.TechMean, Window: 5, Mode: field.ModeAll})
	require.Equal(300.0, out[4])
}

func TestApplyTechnicalCumSum(t *testing.T) {
	require := require.New(t)
	frame := []frameRow{
		{"month": "1", "revenue": 100.0},
		{"month": "2", "revenue": 200.0},
	}
	out := ApplyTechnical(frame, []string{"month"}, "revenue", &field.Technical{Type: field.TechCumSum, Mode: field.ModeAll})
	require.Equal(100.0, out[0])
	require.Equal(300.0, out[1])
}

func TestBuildCombineSQLJoinsOnGrain(t *testing.T) {
	require := require.New(t)
	sql, err := BuildCombineSQL(
		[]string{"partner_name"},
		[]TableInput{
			{Name: "ds_leads", Columns: []dsquery.ColumnSpec{
				{Name: "partner_name", FieldName: "partner_name", IsGrain: true},
				{Name: "leads", FieldName: "leads"},
			}},
			{Name: "ds_sales", Columns: []dsquery.ColumnSpec{
				{Name: "partner_name", FieldName: "partner_name", IsGrain: true},
				{Name: "revenue", FieldName: "revenue"},
			}},
		},
		nil, nil,
	)
	require.NoError(err)
	require.Contains(sql, "UNION")
	require.Contains(sql, "COALESCE")
	require.Contains(sql, "ORDER BY partner_name")
}

func TestPivotRotatesDimensionIntoColumns(t *testing.T) {
	require := require.New(t)
	frame := []frameRow{
		{"region": "east", "channel": "email", "revenue": 100.0},
		{"region": "east", "channel": "social", "revenue": 50.0},
		{"region": "west", "channel": "email", "revenue": 75.0},
	}
	rows, cols := Pivot(frame, []string{"region"}, "channel", []string{"revenue"})
	require.Contains(cols, "email_revenue")
	require.Contains(cols, "social_revenue")
	require.Len(rows, 2)
}
