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

// Package combined implements the Combined-Layer Engine (spec.md §4.5): a
// scratch relational database that ingests each DataSource query's result
// as its own table, then runs one SQL query over them to stitch grains
// together, evaluate formula fields, reconstruct weighted means, apply
// technicals and rollups, and render the final Result.
package combined

import (
	"context"
	"fmt"
	"sync/atomic"

	sqle "github.com/dolthub/go-mysql-server"
	"github.com/dolthub/go-mysql-server/memory"
	"github.com/dolthub/go-mysql-server/sql"
	"github.com/dolthub/go-mysql-server/sql/types"

	"github.com/lattice-sql/lattice/dsquery"
)

var scratchCounter uint64

// Scratch is one report's scratch database: one table per compiled
// DataSource query, dropped when the report finishes combining
// (spec.md §4.5 "a fresh scratch schema per report execution").
type Scratch struct {
	engine *sqle.Engine
	pro    *memory.DbProvider
	db     *memory.Database
	ctx    *sql.Context
}

// NewScratch creates an empty scratch database backed by the embedded
// in-memory SQL engine.
func NewScratch() *Scratch {
	id := atomic.AddUint64(&scratchCounter, 1)
	db := memory.NewDatabase(fmt.Sprintf("lattice_scratch_%d", id))
	pro := memory.NewDBProvider(db)
	engine := sqle.NewDefault(pro)
	ctx := sql.NewContext(context.Background(), sql.WithSession(memory.NewSession(sql.NewBaseSession(), pro)))
	ctx.SetCurrentDatabase(db.Name())
	return &Scratch{engine: engine, pro: pro, db: db, ctx: ctx}
}

// IngestTable creates a scratch table named name with the given compiled
// query's column shape and loads rows into it (spec.md §4.5 step "load
// each DataSource's result into its own scratch table").
func (s *Scratch) IngestTable(name string, c *dsquery.Compiled, rows []dsquery.Row) error {
	cols := make([]*sql.Column, len(c.Columns))
	for i, cs := range c.Columns {
		cols[i] = &sql.Column{Name: cs.Name, Type: scratchColumnType(cs), Nullable: true, Source: name}
	}
	table := memory.NewTable(s.db, name, sql.NewPrimaryKeySchema(cols), nil)
	s.db.AddTable(name, table)

	for _, row := range rows {
		if err := table.Insert(s.ctx, sql.Row(row)); err != nil {
			return fmt.Errorf("loading scratch table %q: %w", name, err)
		}
	}
	return nil
}

// scratchColumnType picks a generous column type for ingestion; combining
// SQL casts explicitly where a narrower type matters (spec.md §4.5's
// scratch tables only need to round-trip already-coerced values).
func scratchColumnType(cs dsquery.ColumnSpec) sql.Type {
	if cs.IsWeightNum || cs.IsWeightDen {
		return types.Float64
	}
	return types.Text
}

// Query runs sql against the scratch database and returns every row.
func (s *Scratch) Query(query string) (sql.Schema, []dsquery.Row, error) {
	schema, iter, err := s.engine.Query(s.ctx, query)
	if err != nil {
		return nil, nil, err
	}
	defer iter.Close(s.ctx)

	var rows []dsquery.Row
	for {
		row, err := iter.Next(s.ctx)
		if err != nil {
			if err == sql.ErrEndOfRows || err.Error() == "EOF" {
				break
			}
			return nil, nil, err
		}
		rows = append(rows, dsquery.Row(row))
	}
	return schema, rows, nil
}

// Close releases nothing itself and always returns nil. The embedded
// engine and its scratch tables are process-local and garbage-collected
// with s.
func (s *Scratch) Close() error {
	return nil
}
