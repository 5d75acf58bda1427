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

package warehouse

import (
	"fmt"

	"gopkg.in/yaml.v2"

	"github.com/lattice-sql/lattice/field"
)

// Config is the top-level Warehouse config shape (spec.md §6.1): `meta`,
// `metrics`, `dimensions`, `datasources`, loaded from JSON or YAML (YAML
// is a superset of JSON, so one decoder covers both, per the teacher's
// own config-loading convention).
type Config struct {
	Meta        map[string]any          `yaml:"meta"`
	Metrics     map[string]MetricConfig `yaml:"metrics"`
	Dimensions  map[string]DimConfig    `yaml:"dimensions"`
	DataSources map[string]DSConfig     `yaml:"datasources"`
}

// MetricConfig is one warehouse- or datasource-scoped metric definition.
type MetricConfig struct {
	Type            string         `yaml:"type"`
	Aggregation     string         `yaml:"aggregation"`
	Formula         string         `yaml:"formula"`
	WeightingMetric string         `yaml:"weighting_metric"`
	Rounding        *int           `yaml:"rounding"`
	RequiredGrain   []string       `yaml:"required_grain"`
	Technical       string         `yaml:"technical"`
	Divisors        *DivisorConfig `yaml:"divisors"`
}

// DivisorConfig mirrors field.Divisors in config form.
type DivisorConfig struct {
	Metrics []string `yaml:"metrics"`
	Formula string   `yaml:"formula"`
}

// DimConfig is one dimension definition.
type DimConfig struct {
	Type    string `yaml:"type"`
	Formula string `yaml:"formula"`
}

// Connect is a "connection URL or a {func, params} object invoking a
// registered connector" (spec.md §6.1) — a tagged string-or-object shape,
// the same dynamic-config pattern other semantic-layer configs in the
// pack use for polymorphic fields.
type Connect struct {
	URL    string         `yaml:"-"`
	Func   string         `yaml:"func"`
	Params map[string]any `yaml:"params"`
}

// UnmarshalYAML implements the string-or-object decoding for Connect.
func (c *Connect) UnmarshalYAML(unmarshal func(any) error) error {
	var asString string
	if err := unmarshal(&asString); err == nil {
		c.URL = asString
		return nil
	}
	var asObject struct {
		Func   string         `yaml:"func"`
		Params map[string]any `yaml:"params"`
	}
	if err := unmarshal(&asObject); err != nil {
		return fmt.Errorf("connect: expected a URL string or a {func, params} object: %w", err)
	}
	c.Func = asObject.Func
	c.Params = asObject.Params
	return nil
}

// MarshalYAML implements the inverse of UnmarshalYAML, so a Connect
// round-trips through save/load (spec.md §8 "load(save(config)) ==
// config").
func (c Connect) MarshalYAML() (any, error) {
	if c.Func == "" {
		return c.URL, nil
	}
	return struct {
		Func   string         `yaml:"func"`
		Params map[string]any `yaml:"params"`
	}{c.Func, c.Params}, nil
}

// DSConfig is one datasource config (spec.md §6.1).
type DSConfig struct {
	Connect    Connect                 `yaml:"connect"`
	Priority   int                     `yaml:"priority"`
	Dialect    string                  `yaml:"dialect"`
	Metrics    map[string]MetricConfig `yaml:"metrics"`
	Dimensions map[string]DimConfig    `yaml:"dimensions"`
	Tables     map[string]TableConfig  `yaml:"tables"`
}

// TableConfig mirrors schema.Table in config form.
type TableConfig struct {
	Type                 string                  `yaml:"type"`
	CreateFields         bool                    `yaml:"create_fields"`
	Parent               string                  `yaml:"parent"`
	Siblings             []string                `yaml:"siblings"`
	PrimaryKey           []string                `yaml:"primary_key"`
	IncompleteDimensions []string                `yaml:"incomplete_dimensions"`
	Priority             int                     `yaml:"priority"`
	UseFullColumnNames   bool                    `yaml:"use_full_column_names"`
	Columns              map[string]ColumnConfig `yaml:"columns"`
}

// ColumnConfig mirrors schema.Column/ColumnFieldBinding in config form.
type ColumnConfig struct {
	Fields                  []FieldRef `yaml:"fields"`
	AllowTypeConversions    bool       `yaml:"allow_type_conversions"`
	TypeConversionPrefix    string     `yaml:"type_conversion_prefix"`
	DisabledTypeConversions []string   `yaml:"disabled_type_conversions"`
}

// CriteriaConversionConfig is one per-operator WHERE-predicate rewrite
// (spec.md §3.2 "ds_criteria_conversions" — e.g. `age = 5` ->
// `birth_year = 2020-5`): Column names the physical column to filter on
// instead of the bound field's own column, and the rewritten value is
// `offset - value` when Negate is set, else `value + offset`.
type CriteriaConversionConfig struct {
	Operator string  `yaml:"operator"`
	Column   string  `yaml:"column"`
	Offset   float64 `yaml:"offset"`
	Negate   bool    `yaml:"negate"`
}

// FieldRef is "a list of names, or objects {name, ds_formula,
// ds_criteria_conversions, required_grain}" (spec.md §6.1) — another
// string-or-object tagged shape.
type FieldRef struct {
	Name                  string                     `yaml:"-"`
	DSFormula             string                     `yaml:"ds_formula"`
	RequiredGrain         []string                   `yaml:"required_grain"`
	TimePart              string                     `yaml:"time_part"`
	DSCriteriaConversions []CriteriaConversionConfig `yaml:"ds_criteria_conversions"`
}

// UnmarshalYAML implements the string-or-object decoding for FieldRef.
func (f *FieldRef) UnmarshalYAML(unmarshal func(any) error) error {
	var asString string
	if err := unmarshal(&asString); err == nil {
		f.Name = asString
		return nil
	}
	var asObject struct {
		Name                  string                     `yaml:"name"`
		DSFormula             string                     `yaml:"ds_formula"`
		RequiredGrain         []string                   `yaml:"required_grain"`
		TimePart              string                     `yaml:"time_part"`
		DSCriteriaConversions []CriteriaConversionConfig `yaml:"ds_criteria_conversions"`
	}
	if err := unmarshal(&asObject); err != nil {
		return fmt.Errorf("field ref: expected a name string or a {name, ds_formula, ...} object: %w", err)
	}
	f.Name = asObject.Name
	f.DSFormula = asObject.DSFormula
	f.RequiredGrain = asObject.RequiredGrain
	f.TimePart = asObject.TimePart
	f.DSCriteriaConversions = asObject.DSCriteriaConversions
	return nil
}

// MarshalYAML implements the inverse of UnmarshalYAML, so a FieldRef
// round-trips through save/load (spec.md §8 "load(save(config)) ==
// config").
func (f FieldRef) MarshalYAML() (any, error) {
	if f.DSFormula == "" && len(f.RequiredGrain) == 0 && f.TimePart == "" && len(f.DSCriteriaConversions) == 0 {
		return f.Name, nil
	}
	return struct {
		Name                  string                     `yaml:"name"`
		DSFormula             string                     `yaml:"ds_formula"`
		RequiredGrain         []string                   `yaml:"required_grain"`
		TimePart              string                     `yaml:"time_part"`
		DSCriteriaConversions []CriteriaConversionConfig `yaml:"ds_criteria_conversions"`
	}{f.Name, f.DSFormula, f.RequiredGrain, f.TimePart, f.DSCriteriaConversions}, nil
}

// LoadConfig decodes a Warehouse config from YAML bytes (a superset of
// JSON, so this single entry point serves both formats named in
// spec.md §6.1).
func LoadConfig(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("decoding warehouse config: %w", err)
	}
	return &cfg, nil
}

// aggOf maps a config's string aggregation name to field.Aggregation.
func aggOf(name string) field.Aggregation {
	switch name {
	case "mean":
		return field.Mean
	case "count":
		return field.Count
	case "count_distinct":
		return field.CountDistinct
	case "min":
		return field.Min
	case "max":
		return field.Max
	default:
		return field.Sum
	}
}
