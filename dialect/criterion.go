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

// Criterion is one WHERE predicate of the public Report API
// (spec.md §6.3). FieldName names a lattice Field, not a physical column;
// the DataSource compiler resolves it to a column reference or rewrites it
// via a ds_criteria_conversions binding at compile time.
type Criterion struct {
	FieldName string
	Op        Operator
	Value     any   // for unary/binary operators
	Values    []any // for "in"/"not in"/"between"/"not between"

	// Subreport carries an "in report"/"not in report" operand: either a
	// stored spec ID or inline params, resolved by the report package at
	// Report construction time and substituted back into Value/Values
	// before the criterion ever reaches the Planner (spec.md §6.3).
	Subreport *SubreportRef
}

// SubreportRef names the subreport a "(not) in report" criterion draws its
// values from.
type SubreportRef struct {
	SpecID string
	Params any // inline params object, mutually exclusive with SpecID
	Column string // which column of the subreport result to project
}
