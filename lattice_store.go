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

package lattice

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/lattice-sql/lattice/report"
	"github.com/lattice-sql/lattice/warehouse"
)

// ConfigFetcher resolves a config_url into the raw config bytes it names.
// It is the out-of-scope external collaborator behind save/execute_id
// (spec.md §6.3, §6.6): lattice persists the URL, never the config
// contents, and relies on this collaborator to fetch it again on every
// load so execution always works from a fresh read.
type ConfigFetcher interface {
	Fetch(ctx context.Context, configURL string) ([]byte, error)
}

// Save registers a Warehouse config by URL in the metadata store,
// returning its warehouse_id (spec.md §6.3 "save(name, config_url) ->
// warehouse_id"). The config is fetched and parsed once up front so an
// invalid config_url fails fast rather than at first execute_id.
func Save(ctx context.Context, store *warehouse.Store, fetcher ConfigFetcher, name, configURL string) (string, error) {
	data, err := fetcher.Fetch(ctx, configURL)
	if err != nil {
		return "", fmt.Errorf("fetching config %q: %w", configURL, err)
	}
	if _, err := warehouse.LoadConfig(data); err != nil {
		return "", err
	}
	hash, err := warehouse.ParamsHash(string(data))
	if err != nil {
		return "", fmt.Errorf("hashing config: %w", err)
	}
	rec := &warehouse.WarehouseRecord{Name: name, ConfigURL: configURL, ParamsHash: hash}
	if err := store.SaveWarehouse(rec); err != nil {
		return "", err
	}
	return rec.ID, nil
}

// SaveReport persists a Report spec verbatim, returning its spec_id
// (spec.md §6.3 "save_report(params) -> spec_id").
func SaveReport(store *warehouse.Store, warehouseID string, spec report.Spec) (string, error) {
	data, err := json.Marshal(spec)
	if err != nil {
		return "", fmt.Errorf("encoding report spec: %w", err)
	}
	hash, err := warehouse.ParamsHash(spec)
	if err != nil {
		return "", fmt.Errorf("hashing report spec: %w", err)
	}
	rec := &warehouse.ReportRecord{
		WarehouseID: warehouseID,
		ParamsJSON:  data,
		ParamsHash:  hash,
		State:       "Created",
	}
	if err := store.SaveReport(rec); err != nil {
		return "", err
	}
	return rec.ID, nil
}

// ExecuteID rebuilds the Warehouse named by a saved spec's warehouse_id
// and executes the saved spec (spec.md §6.3 "execute_id(spec_id)"). Per
// §6.6, params are stored verbatim and execution always recomputes the
// plan: ExecuteID never reuses a cached Result. It reuses the caller's
// already-open store rather than opening a second handle on the same
// metadata file, which bolt's file lock would otherwise block on.
func ExecuteID(ctx context.Context, store *warehouse.Store, fetcher ConfigFetcher, cfg *Config, pool ConnPool, specID string) (*report.Result, error) {
	rec, err := store.LoadReport(specID)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, fmt.Errorf("report spec %q not found", specID)
	}
	whRec, err := store.LoadWarehouse(rec.WarehouseID)
	if err != nil {
		return nil, err
	}
	if whRec == nil {
		return nil, fmt.Errorf("warehouse %q not found", rec.WarehouseID)
	}
	configData, err := fetcher.Fetch(ctx, whRec.ConfigURL)
	if err != nil {
		return nil, fmt.Errorf("fetching config %q: %w", whRec.ConfigURL, err)
	}
	parsed, err := warehouse.LoadConfig(configData)
	if err != nil {
		return nil, err
	}
	if cfg == nil {
		cfg = defaultConfig()
	}

	log := logrus.New()
	log.SetLevel(cfg.LogLevelParsed())
	wh, err := warehouse.Build(whRec.ID, whRec.Name, parsed, store, pool, cfg.ExecSpec(), log)
	if err != nil {
		return nil, err
	}

	var spec report.Spec
	if err := json.Unmarshal(rec.ParamsJSON, &spec); err != nil {
		return nil, fmt.Errorf("decoding report spec %q: %w", specID, err)
	}
	return report.New(wh, spec).Execute(ctx)
}

// DeleteReport removes a saved Report spec (spec.md §6.3
// "delete(spec_id)").
func DeleteReport(store *warehouse.Store, specID string) error {
	return store.DeleteReport(specID)
}
