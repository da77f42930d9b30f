/*******************************************************************************
*
* Copyright 2024 SAP SE
*
* Licensed under the Apache License, Version 2.0 (the "License");
* you may not use this file except in compliance with the License.
* You should have received a copy of the License along with this
* program. If not, you may obtain a copy of the License at
*
*     http://www.apache.org/licenses/LICENSE-2.0
*
* Unless required by applicable law or agreed to in writing, software
* distributed under the License is distributed on an "AS IS" BASIS,
* WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
* See the License for the specific language governing permissions and
* limitations under the License.
*
*******************************************************************************/

package rsc

import (
	"encoding/json"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/sapcc/go-bits/logg"
)

// Configuration holds all configurable parameters of the cache. Values are
// read first from a JSON file named by RSC_CONFIG_PATH (defaulting to
// ".config" in the working directory, if present), then overridden by
// WAKE_RSC_CONFIG_* environment variables -- mirroring the precedence of the
// reference implementation's config loader (environment wins over file).
type Configuration struct {
	// DatabaseURL is a postgres:// connection string, e.g.
	// "postgres://postgres@localhost/rsc?sslmode=disable".
	DatabaseURL string `json:"database_url"`

	// ListenAddress is the host:port that the API server binds to.
	ListenAddress string `json:"listen_address"`

	// ActiveBlobStoreID is the UUID of the BlobStore row that new blobs are
	// written to. Existing blobs keep referencing whichever store they were
	// written to originally.
	ActiveBlobStoreID string `json:"active_blob_store_id"`

	// SmallBlobStoreID is the UUID of the "db-embedded"-kind BlobStore row
	// that multipart parts marked with the "blob/small" content type are
	// routed to instead of ActiveBlobStoreID (spec §4.4).
	SmallBlobStoreID string `json:"small_blob_store_id"`

	// JobTTL is how long after its creation a job may remain before the
	// eviction engine deletes it, whether or not it was used (spec §4.8).
	JobTTL Duration `json:"job_ttl"`

	// BlobGracePeriod is how long an orphaned blob (no job referencing it as
	// stdout/stderr or an output) survives before being swept.
	BlobGracePeriod Duration `json:"blob_grace_period"`

	// JobEvictionKind selects the eviction policy. Only "ttl" is implemented;
	// "lru" is accepted by the schema but refused at startup, see
	// ErrLRUNotImplemented.
	JobEvictionKind string `json:"job_eviction_kind"`

	// MinCacheableRuntime is the admission controller's minimum runtime
	// threshold (spec §4.7): jobs that ran faster than this are not worth
	// caching and insertion is rejected with ErrRuntimeTooShort.
	MinCacheableRuntime Duration `json:"min_cacheable_runtime"`

	// MaxConcurrentInserts bounds the admission controller's load-shedding
	// gate (spec §4.7, §5).
	MaxConcurrentInserts int `json:"max_concurrent_inserts"`

	// EvictionTickInterval is parsed from the configuration but not read by
	// the background scheduler, whose jobloop jobs pace themselves.
	EvictionTickInterval Duration `json:"eviction_tick_interval"`

	// HistoryFlushInterval is parsed from the configuration but not read:
	// history counters are written to the database as each event happens.
	HistoryFlushInterval Duration `json:"history_flush_interval"`
}

const envPrefix = "WAKE_RSC_CONFIG_"

// ParseConfiguration reads Configuration from an optional JSON file and
// environment variable overrides, then fills in defaults for anything still
// unset. It calls logg.Fatal (process exit) on unrecoverable errors, in
// keeping with how the reference bootstrap handles configuration, since a
// misconfigured cache should never limp along with half-applied settings.
func ParseConfiguration() Configuration {
	cfg := Configuration{
		ListenAddress:        ":8080",
		JobTTL:               Duration(30 * 24 * 3600 * 1e9),
		BlobGracePeriod:      Duration(24 * 3600 * 1e9),
		JobEvictionKind:      "ttl",
		MinCacheableRuntime:  0,
		MaxConcurrentInserts: 64,
		EvictionTickInterval: Duration(5 * 60 * 1e9),
		HistoryFlushInterval: Duration(60 * 1e9),
	}

	configPath := os.Getenv("RSC_CONFIG_PATH")
	if configPath == "" {
		configPath = ".config"
	}
	if buf, err := os.ReadFile(configPath); err == nil {
		if err := json.Unmarshal(buf, &cfg); err != nil {
			logg.Fatal("cannot parse %s: %s", configPath, err.Error())
		}
	} else if !os.IsNotExist(err) {
		logg.Fatal("cannot read %s: %s", configPath, err.Error())
	}

	applyEnvOverrides(&cfg)

	if cfg.DatabaseURL == "" {
		logg.Fatal("missing database_url (set %sDATABASE_URL or database_url in %s)", envPrefix, configPath)
	}
	if cfg.JobEvictionKind != "ttl" {
		logg.Fatal(ErrLRUNotImplemented.Error())
	}
	if cfg.MaxConcurrentInserts == 0 {
		logg.Fatal("max_concurrent_inserts (load_shed.target) must not be 0 (set %sMAX_CONCURRENT_INSERTS or max_concurrent_inserts in %s)", envPrefix, configPath)
	}

	return cfg
}

func applyEnvOverrides(cfg *Configuration) {
	getenv := func(key string) (string, bool) {
		v, ok := os.LookupEnv(envPrefix + key)
		return v, ok
	}

	if v, ok := getenv("DATABASE_URL"); ok {
		cfg.DatabaseURL = v
	}
	if v, ok := getenv("LISTEN_ADDRESS"); ok {
		cfg.ListenAddress = v
	}
	if v, ok := getenv("ACTIVE_BLOB_STORE_ID"); ok {
		cfg.ActiveBlobStoreID = v
	}
	if v, ok := getenv("SMALL_BLOB_STORE_ID"); ok {
		cfg.SmallBlobStoreID = v
	}
	if v, ok := getenv("JOB_EVICTION_KIND"); ok {
		cfg.JobEvictionKind = v
	}
	if v, ok := getenv("MAX_CONCURRENT_INSERTS"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			logg.Fatal("invalid %sMAX_CONCURRENT_INSERTS: %s", envPrefix, err.Error())
		}
		cfg.MaxConcurrentInserts = n
	}
	for _, field := range []struct {
		envSuffix string
		target    *Duration
	}{
		{"JOB_TTL", &cfg.JobTTL},
		{"BLOB_GRACE_PERIOD", &cfg.BlobGracePeriod},
		{"MIN_CACHEABLE_RUNTIME", &cfg.MinCacheableRuntime},
		{"EVICTION_TICK_INTERVAL", &cfg.EvictionTickInterval},
		{"HISTORY_FLUSH_INTERVAL", &cfg.HistoryFlushInterval},
	} {
		if v, ok := getenv(field.envSuffix); ok {
			d, err := parseDurationLiteral(v)
			if err != nil {
				logg.Fatal("invalid %s%s: %s", envPrefix, field.envSuffix, err.Error())
			}
			*field.target = d
		}
	}
}

// parseDurationLiteral accepts plain Go duration syntax ("5m", "30s") for
// environment variable overrides, since writing JSON into an env var is
// impractical for operators.
func parseDurationLiteral(s string) (Duration, error) {
	d, err := time.ParseDuration(strings.TrimSpace(s))
	if err != nil {
		return 0, err
	}
	return Duration(d), nil
}
