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

package lattice

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/lattice-sql/lattice/dsquery"
)

func TestDefaultConfigValues(t *testing.T) {
	require := require.New(t)
	cfg := defaultConfig()
	require.Equal("info", cfg.LogLevel)
	require.Equal("sequential", cfg.DataSourceQueryMode)
	require.Equal(8, cfg.DataSourceMaxJoins)
}

func TestLoadConfigFromEnvOverridesDefaults(t *testing.T) {
	require := require.New(t)
	t.Setenv("DEBUG", "true")
	t.Setenv("DATASOURCE_QUERY_MODE", "multithread")
	t.Setenv("DATASOURCE_QUERY_WORKERS", "12")
	t.Setenv("DATASOURCE_CONTEXTS", "sales.host=db1.internal,sales.user=report_ro")

	cfg := LoadConfigFromEnv()
	require.True(cfg.Debug)
	require.Equal("multithread", cfg.DataSourceQueryMode)
	require.Equal(12, cfg.DataSourceQueryWorkers)
	require.Equal("db1.internal", cfg.DataSourceContexts["sales"]["host"])
	require.Equal("report_ro", cfg.DataSourceContexts["sales"]["user"])
}

func TestExecSpecTranslatesQueryMode(t *testing.T) {
	require := require.New(t)
	cfg := defaultConfig()
	cfg.DataSourceQueryMode = "multithread"
	cfg.DataSourceQueryWorkers = 6
	spec := cfg.ExecSpec()
	require.Equal(dsquery.Multithread, spec.Mode)
	require.Equal(6, spec.MaxWorkers)
}
