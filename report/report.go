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

package report

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/dolthub/go-mysql-server/sql"
	"github.com/sirupsen/logrus"
	"gopkg.in/src-d/go-errors.v1"

	"github.com/lattice-sql/lattice/combined"
	"github.com/lattice-sql/lattice/dialect"
	"github.com/lattice-sql/lattice/dsquery"
	"github.com/lattice-sql/lattice/field"
	"github.com/lattice-sql/lattice/planner"
)

var (
	// ErrReportKilled is raised when a kill request was honored
	// (spec.md §7 "ReportKilled").
	ErrReportKilled = errors.NewKind("report %s was killed")
	// ErrFailedExecution wraps a DataSource query failure (spec.md §7).
	ErrFailedExecution = errors.NewKind("report %s failed executing plan: %s")
	// ErrSubreportDepthExceeded guards against unbounded "in report" chains
	// (spec.md §10 "Subreport criteria").
	ErrSubreportDepthExceeded = errors.NewKind("subreport criteria nested deeper than %d levels")
)

// MaxSubreportDepth bounds recursive "in report"/"not in report" resolution.
const MaxSubreportDepth = 4

// Warehouse is the minimal view of a configured Warehouse the report
// package needs; warehouse.Warehouse satisfies this interface
// structurally, the same pattern planner.DataSource uses.
type Warehouse interface {
	DataSources() []planner.DataSource
	Registry() *field.Registry
	ConnPool() dsquery.ConnPool
	ExecSpec() dsquery.ExecSpec
	Logger() logrus.FieldLogger
}

// Spec is the public Report request (spec.md §6.3 "execute").
type Spec struct {
	ID           string
	Metrics      []string
	Dimensions   []string
	Criteria     []dialect.Criterion
	Rollup       *combined.RollupMode
	Technicals   map[string]*field.Technical // metric name -> technical
	OrderBy      []string
	Limit        int
	RowFilters   []dialect.Criterion // post-combine filters
	Pivot        string              // dimension to rotate into columns, empty if none
	AllowPartial bool
}

// Result is the rendered output of a finished Report (spec.md §6.4).
type Result struct {
	Columns  []string
	Rows     [][]any
	Warnings []string
	Stats    []dsquery.Stats
}

// Report is one execution of a Spec against a Warehouse, tracked through
// the state machine in state.go (spec.md §4.6).
type Report struct {
	wh      Warehouse
	spec    Spec
	machine *machine
	result  *Result
	depth   int // subreport recursion depth, zero at top level
}

// New creates a Report in the Created state.
func New(wh Warehouse, spec Spec) *Report {
	return &Report{wh: wh, spec: spec, machine: newMachine()}
}

// State returns the Report's current lifecycle state.
func (r *Report) State() State { return r.machine.current() }

// Kill requests cancellation; honored at the next safe suspension point
// (spec.md §4.6).
func (r *Report) Kill() { r.machine.requestKill() }

// Execute runs the full pipeline: plan, compile+run DataSource queries,
// combine, and render a Result (spec.md §4.6, §6.3 "execute").
func (r *Report) Execute(ctx context.Context) (*Result, error) {
	if err := r.machine.transition(Ready); err != nil {
		return nil, err
	}

	criteria, err := r.resolveSubreports(ctx, r.spec.Criteria)
	if err != nil {
		r.machine.transition(Failed)
		return nil, err
	}

	if err := r.machine.transition(Planning); err != nil {
		return nil, err
	}
	criteriaFields := make([]string, len(criteria))
	for i, c := range criteria {
		criteriaFields[i] = c.FieldName
	}
	queries, err := planner.Plan(r.wh.DataSources(), planner.Spec{
		Metrics:           r.spec.Metrics,
		Dimensions:        r.spec.Dimensions,
		Criteria:          criteriaFields,
		MaxJoins:          8,
		MaxJoinCandidates: 50,
	})
	if err != nil {
		r.machine.transition(Failed)
		return nil, err
	}
	if r.machine.current() == Killed {
		return nil, ErrReportKilled.New(r.spec.ID)
	}

	if err := r.machine.transition(Queued); err != nil {
		return nil, err
	}
	if err := r.machine.transition(Running); err != nil {
		return nil, err
	}

	compiled := make([]*dsquery.Compiled, 0, len(queries))
	for _, q := range queries {
		c, err := dsquery.Compile(q, q.DataSource.Dialect(), criteria)
		if err != nil {
			r.machine.transition(Failed)
			return nil, err
		}
		compiled = append(compiled, c)
	}

	scratch := combined.NewScratch()
	sink := &scratchSink{scratch: scratch}
	stats, err := dsquery.Execute(ctx, compiled, r.wh.ConnPool(), r.wh.ExecSpec(), sink)
	if err != nil {
		if r.machine.current() == Killed {
			return nil, ErrReportKilled.New(r.spec.ID)
		}
		if !r.spec.AllowPartial {
			r.machine.transition(Failed)
			return nil, ErrFailedExecution.New(r.spec.ID, err.Error())
		}
	}

	if err := r.machine.transition(Combining); err != nil {
		return nil, err
	}

	grain := planner.ComputeGrain(r.wh.DataSources(), planner.Spec{Dimensions: r.spec.Dimensions, Criteria: criteriaFields})
	tables := make([]combined.TableInput, len(compiled))
	for i, c := range compiled {
		tables[i] = combined.TableInput{Name: sink.tableName(c), Columns: c.Columns}
	}

	formulas := r.resolveFormulas()
	combineSQL, err := combined.BuildCombineSQL(grain, tables, formulas, r.wh.Registry())
	if err != nil {
		r.machine.transition(Failed)
		return nil, err
	}
	schema, rows, err := scratch.Query(combineSQL)
	if err != nil {
		r.machine.transition(Failed)
		return nil, err
	}

	columns := make([]string, len(schema))
	for i, col := range schema {
		columns[i] = col.Name
	}
	sqlRows := make([]sql.Row, len(rows))
	for i, row := range rows {
		sqlRows[i] = sql.Row(row)
	}
	frame := combined.FramesFromQuery(schema, sqlRows)
	combined.SortByGrain(frame, grain)

	for _, m := range r.spec.Metrics {
		t := r.spec.Technicals[m]
		if t == nil {
			continue
		}
		values := combined.ApplyTechnical(frame, grain, m, t)
		for i, v := range values {
			frame[i][m] = v
		}
	}

	if r.spec.Rollup != nil {
		frame = combined.RowsOf(combined.Rollup(frame, grain, r.spec.Metrics, *r.spec.Rollup, nil))
	}

	frame = combined.FilterRows(frame, r.spec.RowFilters)

	orderBy := r.spec.OrderBy
	if len(orderBy) == 0 {
		orderBy = grain
	}
	combined.SortByGrain(frame, orderBy)

	if r.spec.Limit > 0 && r.spec.Limit < len(frame) {
		frame = frame[:r.spec.Limit]
	}

	if r.spec.Pivot != "" {
		var rowDims []string
		for _, d := range r.spec.Dimensions {
			if d != r.spec.Pivot {
				rowDims = append(rowDims, d)
			}
		}
		frame, columns = combined.Pivot(frame, rowDims, r.spec.Pivot, r.spec.Metrics)
	}

	result := &Result{Stats: stats, Columns: columns}
	for _, fr := range frame {
		displayed := combined.Display(fr)
		row := make([]any, len(columns))
		for i, c := range columns {
			row[i] = displayed[c]
		}
		result.Rows = append(result.Rows, row)
	}

	var warnings []string
	if r.spec.AllowPartial && err == nil {
		for _, s := range stats {
			if s.Err != nil {
				warnings = append(warnings, s.Err.Error())
			}
		}
	}
	result.Warnings = warnings

	r.result = result
	if err := r.machine.transition(Finished); err != nil {
		return nil, err
	}
	return result, nil
}

// resolveFormulas collects every requested metric/dimension that resolves
// to a FormulaField, so the Combined Layer evaluates it instead of
// silently dropping it from the result (spec.md §4.1, §4.5 step 3:
// "Evaluates FormulaMetrics and FormulaDimensions at this layer").
func (r *Report) resolveFormulas() map[string]*field.FormulaField {
	formulas := make(map[string]*field.FormulaField)
	names := make([]string, 0, len(r.spec.Metrics)+len(r.spec.Dimensions))
	names = append(names, r.spec.Metrics...)
	names = append(names, r.spec.Dimensions...)
	for _, name := range names {
		f, err := r.wh.Registry().GetField(name)
		if err != nil {
			continue
		}
		if ff, ok := f.(*field.FormulaField); ok {
			formulas[name] = ff
		}
	}
	if len(formulas) == 0 {
		return nil
	}
	return formulas
}

// resolveSubreports eagerly executes every "in report"/"not in report"
// criterion into a concrete "in"/"not in" criterion before the Planner
// ever sees it (spec.md §10 "Subreport criteria").
func (r *Report) resolveSubreports(ctx context.Context, criteria []dialect.Criterion) ([]dialect.Criterion, error) {
	if r.depth >= MaxSubreportDepth {
		return nil, ErrSubreportDepthExceeded.New(MaxSubreportDepth)
	}
	out := make([]dialect.Criterion, len(criteria))
	for i, c := range criteria {
		if c.Subreport == nil {
			out[i] = c
			continue
		}
		sub := New(r.wh, Spec{
			Metrics:    nil,
			Dimensions: []string{c.Subreport.Column},
		})
		sub.depth = r.depth + 1
		subResult, err := sub.Execute(ctx)
		if err != nil {
			return nil, err
		}
		colIdx := 0
		for i, col := range subResult.Columns {
			if col == c.Subreport.Column {
				colIdx = i
			}
		}
		values := make([]any, 0, len(subResult.Rows))
		for _, row := range subResult.Rows {
			values = append(values, row[colIdx])
		}
		op := dialect.In
		if c.Op == dialect.NotInReport {
			op = dialect.NotIn
		}
		out[i] = dialect.Criterion{FieldName: c.FieldName, Op: op, Values: values}
	}
	return out, nil
}

// scratchSink adapts combined.Scratch to dsquery.Sink, naming one scratch
// table per compiled query deterministically by its DataSource and metric
// table (spec.md §4.5 "a fresh scratch schema per report execution").
type scratchSink struct {
	scratch *combined.Scratch
	names   map[*dsquery.Compiled]string
	seq     int
}

func (s *scratchSink) tableName(c *dsquery.Compiled) string {
	if s.names == nil {
		s.names = make(map[*dsquery.Compiled]string)
	}
	if name, ok := s.names[c]; ok {
		return name
	}
	s.seq++
	name := tableNameFor(c, s.seq)
	s.names[c] = name
	return name
}

func tableNameFor(c *dsquery.Compiled, seq int) string {
	parts := []string{c.Query.DataSource.Name(), c.Query.TableSet.MetricTable.FQN}
	sort.Strings(parts)
	return fmt.Sprintf("%s_q%d", strings.Join(parts, "_"), seq)
}

func (s *scratchSink) Ingest(ctx context.Context, c *dsquery.Compiled, rows []dsquery.Row) error {
	name := s.tableName(c)
	return s.scratch.IngestTable(name, c, rows)
}
