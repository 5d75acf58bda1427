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

package dialect_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/lattice-sql/lattice/dialect"
)

func TestMySQLInvertYearEquality(t *testing.T) {
	require := require.New(t)

	sql, args, ok := dialect.MySQL.InvertValue("created_at", dialect.PartYear, dialect.Eq, 2020)
	require.True(ok)
	require.Contains(sql, "created_at >=")
	require.Equal([]any{"2020-01-01", "2021-01-01"}, args)
}

func TestMySQLInvertFallsBackForUnsupportedOperator(t *testing.T) {
	require := require.New(t)

	_, _, ok := dialect.MySQL.InvertValue("created_at", dialect.PartYear, dialect.Gt, 2020)
	require.False(ok)
}

func TestMySQLKill(t *testing.T) {
	require := require.New(t)

	sql, ok := dialect.MySQL.Kill(42)
	require.True(ok)
	require.Equal("KILL 42", sql)

	_, ok = dialect.Combined.Kill(42)
	require.False(ok)
}
