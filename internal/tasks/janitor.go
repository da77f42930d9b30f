/******************************************************************************
*
*  Copyright 2020 SAP SE
*
*  Licensed under the Apache License, Version 2.0 (the "License");
*  you may not use this file except in compliance with the License.
*  You may obtain a copy of the License at
*
*      http://www.apache.org/licenses/LICENSE-2.0
*
*  Unless required by applicable law or agreed to in writing, software
*  distributed under the License is distributed on an "AS IS" BASIS,
*  WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
*  See the License for the specific language governing permissions and
*  limitations under the License.
*
******************************************************************************/

// Package tasks implements the cache's background scheduler (spec §4.11):
// the eviction engine (§4.8) that expires jobs past their TTL and sweeps orphaned
// blobs, wired up with github.com/sapcc/go-bits/jobloop exactly as the
// reference bootstrap wires its own garbage collection jobs.
package tasks

import (
	"math/rand"
	"time"

	"github.com/sapcc/wake-rsc/internal/rsc"
)

// Janitor contains the toolbox of the rsc-janitor process: one goroutine per
// jobloop.Job, all sharing the same DB handle and blob store lookup.
type Janitor struct {
	cfg    rsc.Configuration
	db     *rsc.DB
	stores func(storeID string) (rsc.BlobStore, error)

	// non-pure functions that can be replaced by deterministic doubles in tests
	timeNow   func() time.Time
	addJitter func(time.Duration) time.Duration
}

// NewJanitor creates a new Janitor. stores resolves a blob_stores.id to the
// runtime rsc.BlobStore instance backing it.
func NewJanitor(cfg rsc.Configuration, db *rsc.DB, stores func(string) (rsc.BlobStore, error)) *Janitor {
	return &Janitor{cfg, db, stores, time.Now, addJitter}
}

// OverrideTimeNow replaces time.Now with a test double.
func (j *Janitor) OverrideTimeNow(timeNow func() time.Time) *Janitor {
	j.timeNow = timeNow
	return j
}

// DisableJitter replaces addJitter with a no-op for this Janitor.
func (j *Janitor) DisableJitter() *Janitor {
	j.addJitter = func(d time.Duration) time.Duration { return d }
	return j
}

// addJitter returns a random duration within +/- 10% of the requested value.
// This evens out the load of a scheduled job over time, by spreading jobs
// that would normally run right next to each other without corrupting the
// individual schedules too much.
func addJitter(duration time.Duration) time.Duration {
	//nolint:gosec // this is not crypto-relevant, so math/rand is okay
	r := rand.Float64() //NOTE: 0 <= r < 1
	return time.Duration(float64(duration) * (0.9 + 0.2*r))
}
