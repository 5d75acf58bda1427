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

// Package dsquery implements the DataSource Query Compiler/Executor
// (spec.md §4.4): it builds one SQL query per chosen TableSet, applies
// per-column DS formulas and type conversions, and runs queries against
// the back-end SQL databases — which are an out-of-scope external
// collaborator (spec.md §1) reached only through the Conn interface below.
package dsquery

import "context"

// Row is one result row, column values in SELECT-list order.
type Row []any

// RowIter streams a query result without requiring the whole result set
// to fit in memory at once (spec.md §4.4 "streamed in configurable
// chunks").
type RowIter interface {
	// Next returns the next row, or (nil, false, nil) at end of input.
	Next(ctx context.Context) (Row, bool, error)
	Close() error
}

// Conn is the DataSource Layer's connection collaborator: the actual
// back-end SQL database is out of scope (spec.md §1); lattice only needs
// to run a compiled query and, for dialects that support it, cancel one
// in flight.
type Conn interface {
	// ConnectionID identifies this connection for an in-flight Kill,
	// meaningful only when the dialect reports CanKill.
	ConnectionID() int64
	// Query runs sql with args and returns a streaming result.
	Query(ctx context.Context, sql string, args []any) (RowIter, error)
	// Kill cancels a query server-side, best-effort (spec.md §4.4
	// "Execution model").
	Kill(ctx context.Context, connectionID int64) error
	Close() error
}
