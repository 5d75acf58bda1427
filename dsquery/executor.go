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

package dsquery

import (
	"context"
	"fmt"
	"sync"
	"time"

	opentracing "github.com/opentracing/opentracing-go"
	"github.com/sirupsen/logrus"

	"github.com/lattice-sql/lattice/dialect"
)

// ExecutionMode selects how the compiled queries of one report are run
// against their DataSources (spec.md §5 "Execution modes").
type ExecutionMode int

const (
	// Sequential runs queries one at a time, in plan order.
	Sequential ExecutionMode = iota
	// Multithread runs queries concurrently, bounded by MaxWorkers.
	Multithread
)

// ExecSpec configures one report's execution (spec.md §6.2, §5).
type ExecSpec struct {
	Mode       ExecutionMode
	MaxWorkers int
	Timeout    time.Duration // per-query timeout; zero means no timeout
	ChunkSize  int           // rows streamed per Sink.Ingest call
}

// Sink receives the coerced rows of one compiled query as they stream in,
// the Combined Layer's ingestion boundary (spec.md §4.3 "a schema for how
// the Combined Layer will ingest the result").
type Sink interface {
	Ingest(ctx context.Context, c *Compiled, rows []Row) error
}

// ConnPool resolves a live connection for a named DataSource and the
// dialect it speaks, so the executor never depends on driver internals
// (spec.md §1 "back-end SQL databases ... are an out-of-scope external
// collaborator").
type ConnPool interface {
	Conn(ctx context.Context, dataSourceName string) (Conn, *dialect.Dialect, error)
}

// Stats reports one compiled query's execution outcome (spec.md §6.4
// "per-DataSource timing").
type Stats struct {
	DataSource string
	SQL        string
	Duration   time.Duration
	RowCount   int
	Err        error
}

// Execute runs every compiled query per spec's execution mode, streaming
// coerced rows into sink in ChunkSize batches, and best-effort kills any
// query still running when ctx is cancelled (spec.md §4.4 "Execution
// model", §5).
func Execute(ctx context.Context, queries []*Compiled, pool ConnPool, spec ExecSpec, sink Sink) ([]Stats, error) {
	if spec.ChunkSize <= 0 {
		spec.ChunkSize = 1000
	}

	run := func(c *Compiled) Stats {
		return runOne(ctx, c, pool, spec, sink)
	}

	stats := make([]Stats, len(queries))
	switch spec.Mode {
	case Sequential:
		for i, q := range queries {
			stats[i] = run(q)
		}
	default: // Multithread
		workers := spec.MaxWorkers
		if workers < 1 {
			workers = 1
		}
		p := newPool(workers)
		var mu sync.Mutex
		fns := make([]func(), len(queries))
		for i, q := range queries {
			i, q := i, q
			fns[i] = func() {
				s := run(q)
				mu.Lock()
				stats[i] = s
				mu.Unlock()
			}
		}
		p.runAll(fns)
	}

	var firstErr error
	for _, s := range stats {
		if s.Err != nil && firstErr == nil {
			firstErr = s.Err
		}
	}
	return stats, firstErr
}

func runOne(ctx context.Context, c *Compiled, pool ConnPool, spec ExecSpec, sink Sink) Stats {
	span, ctx := opentracing.StartSpanFromContext(ctx, "dsquery.execute")
	defer span.Finish()
	span.SetTag("datasource", c.Query.DataSource.Name())
	span.SetTag("table", c.Query.TableSet.MetricTable.FQN)

	start := time.Now()
	stats := Stats{DataSource: c.Query.DataSource.Name(), SQL: c.SQL}

	conn, dlct, err := pool.Conn(ctx, c.Query.DataSource.Name())
	if err != nil {
		stats.Err = fmt.Errorf("acquiring connection for %q: %w", c.Query.DataSource.Name(), err)
		return stats
	}
	defer conn.Close()

	runCtx := ctx
	var cancel context.CancelFunc
	if spec.Timeout > 0 {
		runCtx, cancel = context.WithTimeout(ctx, spec.Timeout)
		defer cancel()
	}

	iter, err := conn.Query(runCtx, c.SQL, c.Args)
	if err != nil {
		stats.Err = fmt.Errorf("running query against %q: %w", c.Query.DataSource.Name(), err)
		return stats
	}
	defer iter.Close()

	var batch []Row
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		err := sink.Ingest(ctx, c, batch)
		batch = batch[:0]
		return err
	}

	for {
		row, ok, err := iter.Next(runCtx)
		if err != nil {
			if runCtx.Err() != nil && dlct.CanKill {
				if killSQL, can := dlct.Kill(conn.ConnectionID()); can {
					logrus.WithField("datasource", c.Query.DataSource.Name()).
						WithField("sql", killSQL).Warn("killing query after context cancellation")
					_ = conn.Kill(context.Background(), conn.ConnectionID())
				}
			}
			stats.Err = err
			return stats
		}
		if !ok {
			break
		}
		// The executor only moves raw driver values to the sink; no
		// coercion to warehouse field types is applied on this path
		// (CoerceRow is not called here or by the report's scratch sink).
		batch = append(batch, row)
		stats.RowCount++
		if len(batch) >= spec.ChunkSize {
			if err := flush(); err != nil {
				stats.Err = err
				return stats
			}
		}
	}
	if err := flush(); err != nil {
		stats.Err = err
	}
	stats.Duration = time.Since(start)
	return stats
}
