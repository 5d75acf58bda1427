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

package combined

import (
	"fmt"
	"sort"
	"strings"

	"github.com/lattice-sql/lattice/dsquery"
	"github.com/lattice-sql/lattice/field"
)

// TableInput describes one ingested scratch table for the combining SQL
// builder (spec.md §4.5 step 2).
type TableInput struct {
	Name    string
	Columns []dsquery.ColumnSpec
}

// BuildCombineSQL stitches every DataSource query's scratch table together
// on the shared grain, reconstructs weighted means, and evaluates formula
// fields, ordered by grain (spec.md §4.5). The combined-layer dialect has
// no FULL OUTER JOIN, so an N-way outer join is built as a left-associated
// chain of UNION-of-LEFT-JOIN emulations (spec.md §4.5 step 1).
func BuildCombineSQL(grain []string, tables []TableInput, formulas map[string]*field.FormulaField, reg *field.Registry) (string, error) {
	if len(tables) == 0 {
		return "", fmt.Errorf("combine: no DataSource result tables to stitch together")
	}

	stageAlias := func(i int) string { return fmt.Sprintf("stage_%d", i) }

	stageSQL, stageCols := singleTableStage(tables[0], grain)
	for i := 1; i < len(tables); i++ {
		stageSQL, stageCols = fullOuterEmulation(stageSQL, stageCols, tables[i], grain)
		_ = stageAlias
	}

	selectCols, err := buildFinalSelect(grain, stageCols, formulas, reg)
	if err != nil {
		return "", err
	}

	orderBy := strings.Join(grain, ", ")
	sql := fmt.Sprintf("SELECT %s FROM (%s) AS combined", strings.Join(selectCols, ", "), stageSQL)
	if orderBy != "" {
		sql += fmt.Sprintf(" ORDER BY %s", orderBy)
	}
	return sql, nil
}

// singleTableStage seeds the join chain with the first table's own rows,
// grain columns already named canonically.
func singleTableStage(t TableInput, grain []string) (string, []string) {
	cols := columnNames(t.Columns)
	return fmt.Sprintf("SELECT %s FROM %s", strings.Join(cols, ", "), t.Name), cols
}

func columnNames(cols []dsquery.ColumnSpec) []string {
	out := make([]string, len(cols))
	for i, c := range cols {
		out[i] = c.Name
	}
	return out
}

// fullOuterEmulation combines the accumulated left stage with one more
// physical table, on grain equality, via a UNION of two LEFT JOINs
// (spec.md §4.5 step 1).
func fullOuterEmulation(leftSQL string, leftCols []string, right TableInput, grain []string) (string, []string) {
	rightCols := columnNames(right.Columns)
	allCols := unionCols(leftCols, rightCols)

	on := make([]string, 0, len(grain))
	for _, g := range grain {
		if containsCol(leftCols, g) && containsCol(rightCols, g) {
			on = append(on, fmt.Sprintf("l.%s = r.%s", g, g))
		}
	}
	var onClause string
	if len(on) > 0 {
		onClause = strings.Join(on, " AND ")
	} else {
		onClause = "1 = 1"
	}

	project := func(primary, secondary string) []string {
		out := make([]string, 0, len(allCols))
		for _, g := range grain {
			if containsCol(leftCols, g) && containsCol(rightCols, g) {
				out = append(out, fmt.Sprintf("COALESCE(%s.%s, %s.%s) AS %s", primary, g, secondary, g, g))
			} else if containsCol(leftCols, g) {
				out = append(out, fmt.Sprintf("l.%s AS %s", g, g))
			} else {
				out = append(out, fmt.Sprintf("r.%s AS %s", g, g))
			}
		}
		for _, c := range allCols {
			if containsCol(grain, c) {
				continue
			}
			if containsCol(leftCols, c) {
				out = append(out, fmt.Sprintf("l.%s AS %s", c, c))
			} else {
				out = append(out, fmt.Sprintf("r.%s AS %s", c, c))
			}
		}
		return out
	}

	leftJoin := fmt.Sprintf(
		"SELECT %s FROM (%s) AS l LEFT JOIN %s AS r ON %s",
		strings.Join(project("l", "r"), ", "), leftSQL, right.Name, onClause,
	)
	rightOnly := fmt.Sprintf(
		"SELECT %s FROM %s AS r LEFT JOIN (%s) AS l ON %s WHERE %s",
		strings.Join(project("r", "l"), ", "), right.Name, leftSQL, onClause, allNull(leftCols, grain),
	)

	stage := fmt.Sprintf("%s UNION %s", leftJoin, rightOnly)
	return stage, allCols
}

func allNull(leftCols, grain []string) string {
	var conds []string
	for _, g := range grain {
		if containsCol(leftCols, g) {
			conds = append(conds, fmt.Sprintf("l.%s IS NULL", g))
		}
	}
	if len(conds) == 0 {
		return "1 = 0"
	}
	return strings.Join(conds, " AND ")
}

func unionCols(a, b []string) []string {
	seen := make(map[string]bool, len(a)+len(b))
	var out []string
	for _, c := range append(append([]string(nil), a...), b...) {
		if !seen[c] {
			seen[c] = true
			out = append(out, c)
		}
	}
	sort.Strings(out)
	return out
}

func containsCol(cols []string, name string) bool {
	for _, c := range cols {
		if c == name {
			return true
		}
	}
	return false
}

// buildFinalSelect renders the outer SELECT list: grain columns verbatim,
// weighted metrics reconstructed via field.ReconstructExpr, formula fields
// evaluated by substituting {name} with their already-combined column
// references, and every other column passed through.
func buildFinalSelect(grain []string, cols []string, formulas map[string]*field.FormulaField, reg *field.Registry) ([]string, error) {
	grainSet := make(map[string]bool, len(grain))
	for _, g := range grain {
		grainSet[g] = true
	}

	weighted := make(map[string]bool)
	for _, c := range cols {
		if strings.HasSuffix(c, "_weighted_numerator") {
			metric := strings.TrimPrefix(strings.TrimSuffix(c, "_weighted_numerator"), "__")
			weighted[metric] = true
		}
	}

	var out []string
	for _, g := range grain {
		out = append(out, g)
	}
	for _, c := range cols {
		if grainSet[c] || strings.HasPrefix(c, "__") {
			continue
		}
		if weighted[c] {
			out = append(out, fmt.Sprintf("%s AS %s", field.ReconstructExpr(c), c))
			continue
		}
		out = append(out, c)
	}

	names := make([]string, 0, len(formulas))
	for name := range formulas {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		f := formulas[name]
		expr := field.ExpandFormula(f.Formula, func(ref string) string { return ref })
		out = append(out, fmt.Sprintf("(%s) AS %s", expr, name))
	}

	return out, nil
}
