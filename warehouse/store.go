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
	"encoding/json"
	"fmt"
	"time"

	"github.com/boltdb/bolt"
	"github.com/mitchellh/hashstructure"
	"github.com/satori/go.uuid"
	"gopkg.in/src-d/go-errors.v1"
)

// ErrStoreClosed is raised when a Store operation is attempted after Close.
var ErrStoreClosed = errors.NewKind("metadata store is closed")

var (
	warehousesBucket = []byte("warehouses")
	reportsBucket    = []byte("reports")
)

// WarehouseRecord is the persisted metadata for one Warehouse (spec.md
// §6.6's `warehouses(id, name, config_url, params_hash)`): the config
// itself is fetched from ConfigURL by an out-of-scope collaborator at
// load time, never stored verbatim here. ParamsHash is a hash of the
// fetched config contents, kept for change detection between saves.
type WarehouseRecord struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	ConfigURL  string    `json:"config_url"`
	ParamsHash uint64    `json:"params_hash"`
	CreatedAt  time.Time `json:"created_at"`
}

// ReportRecord is the persisted metadata for one saved Report spec
// (spec.md §6.6's `reports(id, warehouse_id, params_json)`): params are
// stored verbatim as JSON, never a pre-computed plan, since execution
// always recomputes the plan. ParamsHash and State are kept alongside
// for de-duplication/caching and status queries.
type ReportRecord struct {
	ID          string    `json:"id"`
	WarehouseID string    `json:"warehouse_id"`
	ParamsJSON  []byte    `json:"params_json"`
	ParamsHash  uint64    `json:"params_hash"`
	State       string    `json:"state"`
	CreatedAt   time.Time `json:"created_at"`
}

// Store is lattice's bolt-backed metadata store: two buckets,
// "warehouses" and "reports", keyed by UUID (spec.md §6.6). It tracks
// which Warehouse configs and Report runs exist without depending on an
// external RDBMS for lattice's own bookkeeping.
type Store struct {
	db *bolt.DB
}

// OpenStore opens (creating if absent) a bolt database at path and
// ensures both top-level buckets exist.
func OpenStore(path string) (*Store, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("opening metadata store %q: %w", path, err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(warehousesBucket); err != nil {
			return err
		}
		_, err := tx.CreateBucketIfNotExists(reportsBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("initializing metadata store buckets: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the underlying bolt file lock.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// SaveWarehouse upserts a WarehouseRecord, assigning a UUID if ID is empty.
func (s *Store) SaveWarehouse(rec *WarehouseRecord) error {
	if s.db == nil {
		return ErrStoreClosed.New()
	}
	if rec.ID == "" {
		rec.ID = uuid.NewV4().String()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encoding warehouse record: %w", err)
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(warehousesBucket).Put([]byte(rec.ID), data)
	})
}

// LoadWarehouse fetches a WarehouseRecord by ID.
func (s *Store) LoadWarehouse(id string) (*WarehouseRecord, error) {
	if s.db == nil {
		return nil, ErrStoreClosed.New()
	}
	var rec WarehouseRecord
	found := false
	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(warehousesBucket).Get([]byte(id))
		if data == nil {
			return nil
		}
		found = true
		return json.Unmarshal(data, &rec)
	})
	if err != nil {
		return nil, fmt.Errorf("loading warehouse record %q: %w", id, err)
	}
	if !found {
		return nil, nil
	}
	return &rec, nil
}

// DeleteWarehouse removes a WarehouseRecord by ID.
func (s *Store) DeleteWarehouse(id string) error {
	if s.db == nil {
		return ErrStoreClosed.New()
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(warehousesBucket).Delete([]byte(id))
	})
}

// SaveReport upserts a ReportRecord, assigning a UUID if ID is empty.
func (s *Store) SaveReport(rec *ReportRecord) error {
	if s.db == nil {
		return ErrStoreClosed.New()
	}
	if rec.ID == "" {
		rec.ID = uuid.NewV4().String()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encoding report record: %w", err)
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(reportsBucket).Put([]byte(rec.ID), data)
	})
}

// LoadReport fetches a ReportRecord by ID.
func (s *Store) LoadReport(id string) (*ReportRecord, error) {
	if s.db == nil {
		return nil, ErrStoreClosed.New()
	}
	var rec ReportRecord
	found := false
	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(reportsBucket).Get([]byte(id))
		if data == nil {
			return nil
		}
		found = true
		return json.Unmarshal(data, &rec)
	})
	if err != nil {
		return nil, fmt.Errorf("loading report record %q: %w", id, err)
	}
	if !found {
		return nil, nil
	}
	return &rec, nil
}

// DeleteReport removes a ReportRecord by ID.
func (s *Store) DeleteReport(id string) error {
	if s.db == nil {
		return ErrStoreClosed.New()
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(reportsBucket).Delete([]byte(id))
	})
}

// ParamsHash computes the de-duplication hash used for ReportRecord.ParamsHash,
// so two Report runs with identical spec params can be recognized as the
// same logical request (spec.md §6.6).
func ParamsHash(params any) (uint64, error) {
	return hashstructure.Hash(params, nil)
}
