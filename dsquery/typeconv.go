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

	"github.com/spf13/cast"
)

// CoerceValue converts a raw driver value into the field's declared
// warehouse type (spec.md §3.1 field types "int", "float", "string",
// "date", "bool") so the Combined Layer always ingests consistently typed
// columns regardless of which DataSource driver produced the row.
func CoerceValue(raw any, valueType string) (any, error) {
	if raw == nil {
		return nil, nil
	}
	switch valueType {
	case "int":
		return cast.ToInt64E(raw)
	case "float":
		return cast.ToFloat64E(raw)
	case "string":
		return cast.ToStringE(raw)
	case "bool":
		return cast.ToBoolE(raw)
	case "date", "datetime":
		return cast.ToTimeE(raw)
	default:
		return raw, nil
	}
}

// CoerceRow applies CoerceValue across a row, given the column specs
// produced by Compile (spec.md §4.4 "type coercion at the row boundary").
func CoerceRow(row Row, specs []ColumnSpec, typeOf func(fieldName string) string) (Row, error) {
	out := make(Row, len(row))
	for i, v := range row {
		if i >= len(specs) {
			out[i] = v
			continue
		}
		vt := typeOf(specs[i].FieldName)
		if vt == "" {
			out[i] = v
			continue
		}
		cv, err := CoerceValue(v, vt)
		if err != nil {
			return nil, fmt.Errorf("coercing column %q to %s: %w", specs[i].Name, vt, err)
		}
		out[i] = cv
	}
	return out, nil
}
