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
	"fmt"
	"strings"

	"github.com/lattice-sql/lattice/dialect"
	"github.com/lattice-sql/lattice/schema"
)

// compileCriteria translates each WHERE predicate from field terms into
// physical column terms, preferring a ds_criteria_conversions value
// rewrite or a dialect.InvertValue rewrite over wrapping the column
// expression in a type-conversion call, to preserve index use
// (spec.md §4.4 "Criteria translation").
func compileCriteria(ts *schema.JoinSet, d *dialect.Dialect, criteria []dialect.Criterion) (string, []any, error) {
	if len(criteria) == 0 {
		return "", nil, nil
	}
	var clauses []string
	var args []any
	for _, c := range criteria {
		clause, cArgs, err := compileOneCriterion(ts, d, c)
		if err != nil {
			return "", nil, err
		}
		clauses = append(clauses, clause)
		args = append(args, cArgs...)
	}
	return strings.Join(clauses, " AND "), args, nil
}

func compileOneCriterion(ts *schema.JoinSet, d *dialect.Dialect, c dialect.Criterion) (string, []any, error) {
	table, col, binding := resolveGrainColumn(ts, c.FieldName)
	if table == nil {
		return "", nil, fmt.Errorf("criterion field %q not bound to any table in chosen table set", c.FieldName)
	}
	ref := qualify(table, col)

	if binding != nil {
		if conv, ok := binding.DSCriteriaConversions[c.Op]; ok {
			column, op, rewritten := conv.Rewrite(c.Value)
			return renderOp(column, op, rewritten, c.Values)
		}
	}

	if binding != nil && binding.TimePart != "" {
		if d.InvertValue != nil {
			if sql, invArgs, ok := d.InvertValue(ref, binding.TimePart, c.Op, c.Value); ok {
				return sql, invArgs, nil
			}
		}
		if d.SupportsTypeConversion && d.TimePartExpr != nil {
			ref = d.TimePartExpr(ref, binding.TimePart)
		}
	}

	return renderOp(ref, c.Op, c.Value, c.Values)
}

func renderOp(ref string, op dialect.Operator, value any, values []any) (string, []any, error) {
	switch op {
	case dialect.Eq:
		return fmt.Sprintf("%s = ?", ref), []any{value}, nil
	case dialect.Neq:
		return fmt.Sprintf("%s != ?", ref), []any{value}, nil
	case dialect.Gt:
		return fmt.Sprintf("%s > ?", ref), []any{value}, nil
	case dialect.Gte:
		return fmt.Sprintf("%s >= ?", ref), []any{value}, nil
	case dialect.Lt:
		return fmt.Sprintf("%s < ?", ref), []any{value}, nil
	case dialect.Lte:
		return fmt.Sprintf("%s <= ?", ref), []any{value}, nil
	case dialect.Like:
		return fmt.Sprintf("%s LIKE ?", ref), []any{value}, nil
	case dialect.NotLike:
		return fmt.Sprintf("%s NOT LIKE ?", ref), []any{value}, nil
	case dialect.IsNull:
		return fmt.Sprintf("%s IS NULL", ref), nil, nil
	case dialect.IsNotNull:
		return fmt.Sprintf("%s IS NOT NULL", ref), nil, nil
	case dialect.In, dialect.NotIn:
		placeholders := make([]string, len(values))
		for i := range values {
			placeholders[i] = "?"
		}
		kw := "IN"
		if op == dialect.NotIn {
			kw = "NOT IN"
		}
		return fmt.Sprintf("%s %s (%s)", ref, kw, strings.Join(placeholders, ", ")), values, nil
	case dialect.Between, dialect.NotBetween:
		if len(values) != 2 {
			return "", nil, fmt.Errorf("between criterion on %q needs exactly 2 values, got %d", ref, len(values))
		}
		kw := "BETWEEN"
		if op == dialect.NotBetween {
			kw = "NOT BETWEEN"
		}
		return fmt.Sprintf("%s %s ? AND ?", ref, kw), values, nil
	case dialect.InReport, dialect.NotInReport:
		// Resolved to a plain In/NotIn by the report package before
		// reaching the compiler (spec.md §6.3); reaching here means the
		// subreport substitution step was skipped.
		return "", nil, fmt.Errorf("criterion on %q still carries an unresolved subreport operator %q", ref, op)
	default:
		return "", nil, fmt.Errorf("unsupported criteria operator %q", op)
	}
}
