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

// Package lattice is a semantic query layer: a warehouse of named metrics
// and dimensions backed by one or more SQL DataSources, planned,
// compiled, executed and combined into a single report result (spec.md
// §1-§4). It is the public facade over the field, schema, dialect,
// planner, dsquery, combined, report and warehouse packages, in the
// style of the teacher's own top-level `sqle` package (a `Config`, a
// constructor, and the engine it builds).
package lattice

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/lattice-sql/lattice/dialect"
	"github.com/lattice-sql/lattice/dsquery"
	"github.com/lattice-sql/lattice/field"
	"github.com/lattice-sql/lattice/report"
	"github.com/lattice-sql/lattice/warehouse"
)

// Warehouse is a configured semantic layer ready to plan and run Reports.
// It embeds *warehouse.Warehouse, re-exporting its field/DataSource
// management surface unchanged, and adds Report-level convenience
// methods.
type Warehouse struct {
	*warehouse.Warehouse
}

// Open loads a Warehouse config (YAML or JSON, per spec.md §6.1), builds
// it against the given Config, and opens its metadata store.
func Open(id, name string, configData []byte, cfg *Config, pool ConnPool) (*Warehouse, error) {
	if cfg == nil {
		cfg = defaultConfig()
	}
	parsed, err := warehouse.LoadConfig(configData)
	if err != nil {
		return nil, err
	}

	var store *warehouse.Store
	if cfg.DBURL != "" {
		store, err = warehouse.OpenStore(cfg.DBURL)
		if err != nil {
			return nil, fmt.Errorf("opening metadata store: %w", err)
		}
	}

	log := logrus.New()
	log.SetLevel(cfg.LogLevelParsed())

	wh, err := warehouse.Build(id, name, parsed, store, pool, cfg.ExecSpec(), log)
	if err != nil {
		return nil, err
	}
	return &Warehouse{Warehouse: wh}, nil
}

// ConnPool is the out-of-scope collaborator resolving a live connection
// per DataSource name (spec.md §1 "the back-end SQL databases themselves
// ... are out-of-scope external collaborators"); it is exactly
// dsquery.ConnPool, re-exported here so callers configuring a Warehouse
// never need to import the dsquery package directly.
type ConnPool = dsquery.ConnPool

// Report builds a new Report against this Warehouse from a Spec
// (spec.md §6.3 "execute").
func (w *Warehouse) Report(spec report.Spec) *report.Report {
	return report.New(w.Warehouse, spec)
}

// Execute is shorthand for Report(spec).Execute(ctx).
func (w *Warehouse) Execute(ctx context.Context, spec report.Spec) (*report.Result, error) {
	return w.Report(spec).Execute(ctx)
}

// Close releases the warehouse's metadata store handle, if one was opened.
func (w *Warehouse) Close() error {
	if s := w.Store(); s != nil {
		return s.Close()
	}
	return nil
}

// NewDialect is re-exported so callers wiring a custom DataSource dialect
// (beyond MySQL/Combined) can construct one without importing the
// dialect package directly.
func NewDialect(name string) *dialect.Dialect {
	return &dialect.Dialect{Name: name}
}

// NewFieldRegistry creates a root field Registry with no parent scope,
// the starting point for building a Warehouse programmatically instead
// of from a config file.
func NewFieldRegistry(scope string) *field.Registry {
	return field.NewRegistry(scope, nil)
}
