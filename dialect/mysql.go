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

package dialect

import "fmt"

// MySQL describes the MySQL/MariaDB dialect: supports in-flight kill via
// `KILL <connection_id>`, native date-part functions, and no FULL OUTER
// JOIN (the combined layer must emulate it).
var MySQL = &Dialect{
	Name:                   "mysql",
	CanKill:                true,
	SupportsTypeConversion: true,
	SupportsFullOuterJoin:  false,
	TimePartExpr:           mysqlTimePartExpr,
	InvertValue:            mysqlInvertValue,
}

func mysqlTimePartExpr(column string, part TimePart) string {
	switch part {
	case PartYear:
		return fmt.Sprintf("YEAR(%s)", column)
	case PartQuarter:
		return fmt.Sprintf("QUARTER(%s)", column)
	case PartMonth:
		return fmt.Sprintf("MONTH(%s)", column)
	case PartDay:
		return fmt.Sprintf("DAY(%s)", column)
	case PartDayOfWeek:
		return fmt.Sprintf("DAYOFWEEK(%s)", column)
	case PartHour:
		return fmt.Sprintf("HOUR(%s)", column)
	default:
		return column
	}
}

// mysqlInvertValue rewrites an equality on a YEAR(...) conversion into a
// half-open range over the underlying column, e.g.
// `year = 2020` -> `created_at >= '2020-01-01' AND created_at < '2021-01-01'`
// (spec.md §4.4). Only equality on year is inverted this way; month, day
// and every other operator/part combination fall back to wrapping the column.
func mysqlInvertValue(column string, part TimePart, op Operator, value any) (string, []any, bool) {
	if op != Eq {
		return "", nil, false
	}
	switch part {
	case PartYear:
		year, ok := asInt(value)
		if !ok {
			return "", nil, false
		}
		return fmt.Sprintf("%s >= ? AND %s < ?", column, column),
			[]any{fmt.Sprintf("%04d-01-01", year), fmt.Sprintf("%04d-01-01", year+1)}, true
	case PartMonth:
		// month alone is ambiguous across years; not invertible without a
		// companion year criterion, so fall back to wrapping.
		return "", nil, false
	default:
		return "", nil, false
	}
}

func asInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int32:
		return int(n), true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	default:
		return 0, false
	}
}
