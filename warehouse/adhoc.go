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
	"sync"

	"github.com/lattice-sql/lattice/schema"
)

// AdHocTableLoader is the out-of-scope ETL collaborator that materializes
// a named ad hoc table (e.g. a CSV/Excel upload) somewhere lattice's
// embedded scratch engine can read it; lattice only needs the table's
// schema to bind fields to it (spec.md §10 "AdHoc DataSource directory",
// §1 "the ETL/loading pipeline ... is an out-of-scope external
// collaborator").
type AdHocTableLoader interface {
	Schema(name string) (*schema.Table, error)
}

// AdHocTableRegistry is a Report-scoped directory of ad hoc tables,
// named by the ADHOC_DATASOURCE_DIRECTORY convention (spec.md §6.2).
type AdHocTableRegistry struct {
	mu     sync.RWMutex
	loader AdHocTableLoader
	tables map[string]*schema.Table
}

// NewAdHocTableRegistry creates an empty registry; SetLoader attaches the
// external collaborator lazily, since a Warehouse may be built before its
// ETL directory is configured.
func NewAdHocTableRegistry() *AdHocTableRegistry {
	return &AdHocTableRegistry{tables: make(map[string]*schema.Table)}
}

// SetLoader attaches the directory's ETL collaborator.
func (r *AdHocTableRegistry) SetLoader(loader AdHocTableLoader) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.loader = loader
}

// Table resolves name to its schema, consulting the loader on a cache
// miss (spec.md §3.1, §3.7 "AdHoc").
func (r *AdHocTableRegistry) Table(name string) (*schema.Table, error) {
	r.mu.RLock()
	if t, ok := r.tables[name]; ok {
		r.mu.RUnlock()
		return t, nil
	}
	loader := r.loader
	r.mu.RUnlock()
	if loader == nil {
		return nil, nil
	}
	t, err := loader.Schema(name)
	if err != nil {
		return nil, err
	}
	r.mu.Lock()
	r.tables[name] = t
	r.mu.Unlock()
	return t, nil
}
