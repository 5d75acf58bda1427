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

// Combined describes the Combined-Layer's own scratch-database dialect
// (spec.md §4.5): the embedded go-mysql-server engine speaks a
// MySQL-compatible dialect and has no FULL OUTER JOIN, so the Combined
// Layer always emulates it with a UNION of LEFT OUTER JOINs
// (spec.md §4.5 step 1, §9 "Rollup sentinel").
var Combined = &Dialect{
	Name:                   "combined",
	CanKill:                false,
	SupportsTypeConversion: false,
	SupportsFullOuterJoin:  false,
}
