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

// Package warehouse composes the Field Registry, DataSources and
// metadata store into the Warehouse the rest of lattice executes reports
// against (spec.md §3.4, §3.5, §6.1, §6.2).
package warehouse

import (
	"fmt"
	"sort"

	"github.com/sirupsen/logrus"
	"gopkg.in/src-d/go-errors.v1"

	"github.com/lattice-sql/lattice/dialect"
	"github.com/lattice-sql/lattice/dsquery"
	"github.com/lattice-sql/lattice/field"
	"github.com/lattice-sql/lattice/planner"
	"github.com/lattice-sql/lattice/schema"
)

// ErrInvalidConfig is raised when a loaded Warehouse config fails
// validation (spec.md §7 "InvalidFieldConfig").
var ErrInvalidConfig = errors.NewKind("invalid warehouse config: %s")

// DataSource owns a connection descriptor, its own field registry, its
// Schema Graph, and a dialect descriptor (spec.md §3.4).
type DataSource struct {
	DSName     string
	DSPriority int
	DSGraph    *schema.Graph
	DSRegistry *field.Registry
	DSDialect  *dialect.Dialect
	ConnDSN    string // connection descriptor: the configured connect URL, or "func:<name>" for a connector object
}

func (d *DataSource) Name() string               { return d.DSName }
func (d *DataSource) Priority() int               { return d.DSPriority }
func (d *DataSource) Graph() *schema.Graph        { return d.DSGraph }
func (d *DataSource) Registry() *field.Registry   { return d.DSRegistry }
func (d *DataSource) Dialect() *dialect.Dialect   { return d.DSDialect }

var _ planner.DataSource = (*DataSource)(nil)

// Warehouse is the Warehouse-scoped composition root: a global Field
// Registry, an ordered list of DataSources (priority = slice order), an
// AdHoc table directory, and a metadata store (spec.md §3.5, §3.7).
type Warehouse struct {
	ID          string
	Name        string
	registry    *field.Registry
	datasources []*DataSource
	adhoc       *AdHocTableRegistry
	store       *Store
	pool        dsquery.ConnPool
	execSpec    dsquery.ExecSpec
	log         logrus.FieldLogger
}

// New builds a Warehouse, validating that no formula field anywhere in
// the registry chain participates in a cycle (spec.md §4.1 "Circular
// references are fatal at build time").
func New(id, name string, registry *field.Registry, datasources []*DataSource, store *Store, pool dsquery.ConnPool, execSpec dsquery.ExecSpec, log logrus.FieldLogger) (*Warehouse, error) {
	if err := registry.ValidateNoCycles(); err != nil {
		return nil, ErrInvalidConfig.New(err.Error())
	}
	for _, ds := range datasources {
		if err := ds.DSRegistry.ValidateNoCycles(); err != nil {
			return nil, ErrInvalidConfig.New(err.Error())
		}
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	sort.SliceStable(datasources, func(i, j int) bool { return datasources[i].DSPriority < datasources[j].DSPriority })
	return &Warehouse{
		ID: id, Name: name, registry: registry, datasources: datasources,
		adhoc: NewAdHocTableRegistry(), store: store, pool: pool, execSpec: execSpec, log: log,
	}, nil
}

// DataSources implements report.Warehouse.
func (w *Warehouse) DataSources() []planner.DataSource {
	out := make([]planner.DataSource, len(w.datasources))
	for i, ds := range w.datasources {
		out[i] = ds
	}
	return out
}

// Registry implements report.Warehouse.
func (w *Warehouse) Registry() *field.Registry { return w.registry }

// ConnPool implements report.Warehouse.
func (w *Warehouse) ConnPool() dsquery.ConnPool { return w.pool }

// ExecSpec implements report.Warehouse.
func (w *Warehouse) ExecSpec() dsquery.ExecSpec { return w.execSpec }

// Logger implements report.Warehouse.
func (w *Warehouse) Logger() logrus.FieldLogger { return w.log }

// AdHocTables exposes the warehouse's ad-hoc table directory
// (spec.md §10 "AdHoc DataSource directory").
func (w *Warehouse) AdHocTables() *AdHocTableRegistry { return w.adhoc }

// Store exposes the warehouse's metadata store.
func (w *Warehouse) Store() *Store { return w.store }

// AddMetric registers a new metric at Warehouse scope and re-validates
// the registry for cycles (spec.md §3.7 "add_metric").
func (w *Warehouse) AddMetric(m *field.Metric) error {
	if err := w.registry.Define(m); err != nil {
		return err
	}
	return w.registry.ValidateNoCycles()
}

// AddDimension registers a new dimension at Warehouse scope
// (spec.md §3.7 "add_dimension").
func (w *Warehouse) AddDimension(d *field.Dimension) error {
	return w.registry.Define(d)
}

func (w *Warehouse) String() string {
	return fmt.Sprintf("Warehouse(%s, %d datasources)", w.Name, len(w.datasources))
}
