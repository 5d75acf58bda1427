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

package warehouse_test

import (
	"testing"

	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v2"

	"github.com/lattice-sql/lattice/warehouse"
)

func TestLoadConfigParsesConnectStringShape(t *testing.T) {
	require := require.New(t)
	cfg, err := warehouse.LoadConfig([]byte(`
datasources:
  primary:
    connect: "mysql://user@host/warehouse"
`))
	require.NoError(err)
	require.Equal("mysql://user@host/warehouse", cfg.DataSources["primary"].Connect.URL)
}

func TestLoadConfigParsesConnectObjectShape(t *testing.T) {
	require := require.New(t)
	cfg, err := warehouse.LoadConfig([]byte(`
datasources:
  primary:
    connect:
      func: redshift_connector
      params:
        host: db.internal
`))
	require.NoError(err)
	conn := cfg.DataSources["primary"].Connect
	require.Equal("redshift_connector", conn.Func)
	require.Equal("db.internal", conn.Params["host"])
}

func TestLoadConfigParsesFieldRefObjectShape(t *testing.T) {
	require := require.New(t)
	cfg, err := warehouse.LoadConfig([]byte(`
datasources:
  primary:
    tables:
      sales:
        columns:
          amount:
            fields:
              - name: revenue
                ds_formula: "SUM(amount_cents) / 100"
`))
	require.NoError(err)
	col := cfg.DataSources["primary"].Tables["sales"].Columns["amount"]
	require.Len(col.Fields, 1)
	require.Equal("revenue", col.Fields[0].Name)
	require.Equal("SUM(amount_cents) / 100", col.Fields[0].DSFormula)
}

func TestLoadConfigParsesCriteriaConversions(t *testing.T) {
	require := require.New(t)
	cfg, err := warehouse.LoadConfig([]byte(`
datasources:
  primary:
    tables:
      customers:
        columns:
          birth_year:
            fields:
              - name: age
                time_part: year
                ds_criteria_conversions:
                  - operator: "="
                    column: birth_year
                    offset: 2020
                    negate: true
`))
	require.NoError(err)
	col := cfg.DataSources["primary"].Tables["customers"].Columns["birth_year"]
	require.Len(col.Fields, 1)
	require.Equal("year", col.Fields[0].TimePart)
	require.Len(col.Fields[0].DSCriteriaConversions, 1)
	conv := col.Fields[0].DSCriteriaConversions[0]
	require.Equal("=", conv.Operator)
	require.Equal("birth_year", conv.Column)
	require.Equal(2020.0, conv.Offset)
	require.True(conv.Negate)
}

func TestConfigRoundTripsThroughYAML(t *testing.T) {
	require := require.New(t)
	original, err := warehouse.LoadConfig([]byte(`
metrics:
  revenue:
    type: number
    aggregation: sum
dimensions:
  partner_name:
    type: string
datasources:
  primary:
    connect: "mysql://warehouse"
    priority: 1
    tables:
      sales:
        type: metric
        primary_key: ["sale_id"]
        columns:
          amount:
            fields:
              - name: revenue
`))
	require.NoError(err)

	data, err := yaml.Marshal(original)
	require.NoError(err)

	reloaded, err := warehouse.LoadConfig(data)
	require.NoError(err)

	require.Equal(original.Metrics, reloaded.Metrics)
	require.Equal(original.Dimensions, reloaded.Dimensions)
	require.Equal(original.DataSources["primary"].Priority, reloaded.DataSources["primary"].Priority)
	require.Equal(
		original.DataSources["primary"].Tables["sales"].Columns["amount"].Fields[0].Name,
		reloaded.DataSources["primary"].Tables["sales"].Columns["amount"].Fields[0].Name,
	)
}
