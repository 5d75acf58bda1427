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

// Package dialect describes the capabilities and SQL-emission vocabulary
// of a back-end SQL dialect (spec.md §3.4 "dialect descriptor", §4.4 type
// conversions, §9 "never invents a new SQL dialect" — lattice only
// describes dialects, it never implements one).
package dialect

import "fmt"

// Operator is one of the criteria operators in the public Report API
// (spec.md §6.3).
type Operator string

const (
	Eq         Operator = "="
	Neq        Operator = "!="
	Gt         Operator = ">"
	Gte        Operator = ">="
	Lt         Operator = "<"
	Lte        Operator = "<="
	In         Operator = "in"
	NotIn      Operator = "not in"
	Between    Operator = "between"
	NotBetween Operator = "not between"
	Like       Operator = "like"
	NotLike    Operator = "not like"
	IsNull     Operator = "is null"
	IsNotNull  Operator = "is not null"
	InReport   Operator = "in report"
	NotInReport Operator = "not in report"
)

// TimePart names a single dialect-specific type-conversion expansion of a
// date/datetime column (spec.md §4.4).
type TimePart string

const (
	PartYear       TimePart = "year"
	PartQuarter    TimePart = "quarter"
	PartMonth      TimePart = "month"
	PartDay        TimePart = "day"
	PartDayOfWeek  TimePart = "day_of_week"
	PartHour       TimePart = "hour"
)

// Dialect describes one back-end SQL dialect's capabilities
// (spec.md §3.4, §4.4, §4.5).
type Dialect struct {
	Name string

	// CanKill reports whether in-flight queries issued against this
	// dialect can be cancelled server-side (spec.md §4.4 "Execution
	// model").
	CanKill bool
	// SupportsTypeConversion reports whether this dialect can expand a
	// date/datetime column into parts (year, quarter, ...).
	SupportsTypeConversion bool
	// SupportsFullOuterJoin reports whether the combined-layer dialect can
	// express FULL OUTER JOIN directly, or whether it must be emulated via
	// a UNION of LEFT OUTER JOINs (spec.md §4.5 step 1).
	SupportsFullOuterJoin bool

	// TimePartExpr renders the SQL expression that projects one TimePart
	// out of a column reference in this dialect, e.g. MySQL's
	// "YEAR(created_at)" vs Postgres's "EXTRACT(YEAR FROM created_at)".
	TimePartExpr func(column string, part TimePart) string

	// InvertValue attempts to rewrite a criterion on a TimePart-converted
	// dimension back into a range predicate on the underlying column,
	// preserving index use (spec.md §4.4: "prefer rewriting the value ...
	// over wrapping the column"). ok is false when no invertible rewrite
	// exists for this part/operator, in which case the caller must fall
	// back to wrapping the column expression.
	InvertValue func(column string, part TimePart, op Operator, value any) (sql string, args []any, ok bool)
}

// Kill renders a dialect's kill-connection statement, if supported.
func (d *Dialect) Kill(connectionID int64) (string, bool) {
	if !d.CanKill {
		return "", false
	}
	return fmt.Sprintf("KILL %d", connectionID), true
}
