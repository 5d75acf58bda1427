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

package field

import "strings"

// ParseFormula extracts the ordered, de-duplicated set of `{name}` tokens
// referenced by a formula string (spec.md §3.1, §4.1). The formula body
// itself is opaque to lattice: it is emitted verbatim into the target
// layer's SQL, with `{name}` references substituted by ExpandFormula.
func ParseFormula(formula string) []string {
	var refs []string
	seen := make(map[string]bool)

	i := 0
	for i < len(formula) {
		open := strings.IndexByte(formula[i:], '{')
		if open < 0 {
			break
		}
		open += i
		close := strings.IndexByte(formula[open:], '}')
		if close < 0 {
			break
		}
		close += open
		name := strings.TrimSpace(formula[open+1 : close])
		if name != "" && !seen[name] {
			seen[name] = true
			refs = append(refs, name)
		}
		i = close + 1
	}
	return refs
}

// ExpandFormula substitutes every `{name}` reference in formula with the
// string returned by resolve(name). It is used by divisor expansion
// (ExpandDivisors) and the Combined-Layer query builder to emit a
// formula's body, once every reference has been resolved to a
// concrete SQL expression (a column reference, an aggregate, or another
// formula's own expansion).
func ExpandFormula(formula string, resolve func(name string) string) string {
	var b strings.Builder
	i := 0
	for i < len(formula) {
		open := strings.IndexByte(formula[i:], '{')
		if open < 0 {
			b.WriteString(formula[i:])
			break
		}
		open += i
		b.WriteString(formula[i:open])
		close := strings.IndexByte(formula[open:], '}')
		if close < 0 {
			b.WriteString(formula[open:])
			break
		}
		close += open
		name := strings.TrimSpace(formula[open+1 : close])
		b.WriteString(resolve(name))
		i = close + 1
	}
	return b.String()
}
