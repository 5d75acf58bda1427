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
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/lattice-sql/lattice/dsquery"
)

// Config is the process-wide, environment-driven configuration
// (spec.md §6.2): loaded once at startup and treated as an immutable
// record thereafter. Per-request state lives on report.Report, not here.
type Config struct {
	Debug                       bool
	LogLevel                    string
	LoadTableChunkSize          int
	DBURL                       string
	AdHocDataSourceDirectory    string
	DataSourceQueryMode         string // "sequential" or "multithread"
	DataSourceQueryTimeout      time.Duration
	DataSourceQueryWorkers      int
	DataSourceMaxJoins          int
	DataSourceMaxJoinCandidates int
	// DataSourceContexts holds per-datasource named variable bags used to
	// interpolate connection URL placeholders like {user}, {host}.
	DataSourceContexts map[string]map[string]string
}

// defaultConfig mirrors the teacher's own documented defaults for a
// process-wide Config: conservative chunk size, sequential execution,
// generous but bounded join search.
func defaultConfig() *Config {
	return &Config{
		LogLevel:                    "info",
		LoadTableChunkSize:          10000,
		DataSourceQueryMode:         "sequential",
		DataSourceQueryTimeout:      0,
		DataSourceQueryWorkers:      4,
		DataSourceMaxJoins:          8,
		DataSourceMaxJoinCandidates: 50,
		DataSourceContexts:          make(map[string]map[string]string),
	}
}

// LoadConfigFromEnv reads the recognized environment keys from spec.md
// §6.2 into a Config, falling back to defaultConfig's values for anything
// unset. DATASOURCE_CONTEXTS is parsed as
// "datasource.key=value,datasource.key=value,...".
func LoadConfigFromEnv() *Config {
	cfg := defaultConfig()

	if v, ok := os.LookupEnv("DEBUG"); ok {
		cfg.Debug, _ = strconv.ParseBool(v)
	}
	if v, ok := os.LookupEnv("LOG_LEVEL"); ok && v != "" {
		cfg.LogLevel = v
	}
	if v, ok := os.LookupEnv("LOAD_TABLE_CHUNK_SIZE"); ok {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.LoadTableChunkSize = n
		}
	}
	if v, ok := os.LookupEnv("DB_URL"); ok {
		cfg.DBURL = v
	}
	if v, ok := os.LookupEnv("ADHOC_DATASOURCE_DIRECTORY"); ok {
		cfg.AdHocDataSourceDirectory = v
	}
	if v, ok := os.LookupEnv("DATASOURCE_QUERY_MODE"); ok && v != "" {
		cfg.DataSourceQueryMode = v
	}
	if v, ok := os.LookupEnv("DATASOURCE_QUERY_TIMEOUT"); ok {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.DataSourceQueryTimeout = d
		}
	}
	if v, ok := os.LookupEnv("DATASOURCE_QUERY_WORKERS"); ok {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.DataSourceQueryWorkers = n
		}
	}
	if v, ok := os.LookupEnv("DATASOURCE_MAX_JOINS"); ok {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.DataSourceMaxJoins = n
		}
	}
	if v, ok := os.LookupEnv("DATASOURCE_MAX_JOIN_CANDIDATES"); ok {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.DataSourceMaxJoinCandidates = n
		}
	}
	if v, ok := os.LookupEnv("DATASOURCE_CONTEXTS"); ok && v != "" {
		cfg.DataSourceContexts = parseDataSourceContexts(v)
	}
	return cfg
}

func parseDataSourceContexts(raw string) map[string]map[string]string {
	out := make(map[string]map[string]string)
	for _, pair := range strings.Split(raw, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		kv := strings.SplitN(pair, "=", 2)
		if len(kv) != 2 {
			continue
		}
		dotted := strings.SplitN(kv[0], ".", 2)
		if len(dotted) != 2 {
			continue
		}
		ds, key := dotted[0], dotted[1]
		if out[ds] == nil {
			out[ds] = make(map[string]string)
		}
		out[ds][key] = kv[1]
	}
	return out
}

// ExecSpec translates the Config's execution knobs into a
// dsquery.ExecSpec for a single Warehouse (spec.md §6.2, §5).
func (c *Config) ExecSpec() dsquery.ExecSpec {
	mode := dsquery.Sequential
	if c.DataSourceQueryMode == "multithread" {
		mode = dsquery.Multithread
	}
	return dsquery.ExecSpec{
		Mode:       mode,
		MaxWorkers: c.DataSourceQueryWorkers,
		Timeout:    c.DataSourceQueryTimeout,
		ChunkSize:  c.LoadTableChunkSize,
	}
}

// LogLevelParsed converts LogLevel into a logrus.Level, defaulting to
// logrus.InfoLevel on an unrecognized value.
func (c *Config) LogLevelParsed() logrus.Level {
	lvl, err := logrus.ParseLevel(c.LogLevel)
	if err != nil {
		return logrus.InfoLevel
	}
	return lvl
}
